package postgres

import (
	"context"
	"io/fs"
	"math"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	t.Run("Should prefer an explicit connection string", func(t *testing.T) {
		cfg := &Config{ConnString: "postgres://u:p@db:6543/books", Host: "ignored"}
		assert.Equal(t, "postgres://u:p@db:6543/books", DSN(cfg))
	})

	t.Run("Should assemble a DSN with defaults", func(t *testing.T) {
		assert.Equal(t, "postgres://postgres@localhost:5432/postgres?sslmode=disable", DSN(&Config{}))
	})

	t.Run("Should escape credentials", func(t *testing.T) {
		cfg := &Config{Host: "db", Port: "5433", User: "app", Password: "p@ss word", DBName: "bookstore", SSLMode: "require"}
		assert.Equal(t, "postgres://app:p%40ss%20word@db:5433/bookstore?sslmode=require", DSN(cfg))
	})

	t.Run("Should return empty for nil config", func(t *testing.T) {
		assert.Empty(t, DSN(nil))
	})
}

func TestDeriveConnectionBounds(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		maxConns, minConns := deriveConnectionBounds(&Config{})
		assert.Equal(t, int32(defaultMaxConns), maxConns)
		assert.Equal(t, int32(defaultMinConns), minConns)
	})

	t.Run("Should clamp idle connections to the maximum", func(t *testing.T) {
		maxConns, minConns := deriveConnectionBounds(&Config{MaxOpenConns: 5, MaxIdleConns: 50})
		assert.Equal(t, int32(5), maxConns)
		assert.Equal(t, int32(5), minConns)
	})

	t.Run("Should clamp oversized pools to int32", func(t *testing.T) {
		maxConns, _ := deriveConnectionBounds(&Config{MaxOpenConns: math.MaxInt32 + 10})
		assert.Equal(t, int32(math.MaxInt32), maxConns)
	})
}

func TestBuildPoolConfig(t *testing.T) {
	t.Run("Should apply pool settings from config", func(t *testing.T) {
		cfg := &Config{Host: "db", MaxOpenConns: 8, MaxIdleConns: 2, ConnectTimeout: defaultPingTimeout}
		poolCfg, _, err := buildPoolConfig(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, int32(8), poolCfg.MaxConns)
		assert.Equal(t, int32(2), poolCfg.MinConns)
		assert.Equal(t, defaultHealthCheckPeriod, poolCfg.HealthCheckPeriod)
		assert.Equal(t, defaultPingTimeout, poolCfg.ConnConfig.ConnectTimeout)
		assert.Equal(t, "db", poolCfg.ConnConfig.Host)
	})

	t.Run("Should reject an unparsable connection string", func(t *testing.T) {
		_, _, err := buildPoolConfig(context.Background(), &Config{ConnString: "postgres://%zz"})
		assert.Error(t, err)
	})
}

func TestPoolLabel(t *testing.T) {
	t.Run("Should sanitize host and database", func(t *testing.T) {
		assert.Equal(t, "db.local:5432/book_store", poolLabel(&Config{Host: "DB.local", Port: "5432", DBName: "Book Store"}))
	})

	t.Run("Should fall back to the default label", func(t *testing.T) {
		assert.Equal(t, defaultPoolLabel, poolLabel(nil))
		assert.Equal(t, defaultPoolLabel, poolLabel(&Config{ConnString: "postgres://db/books"}))
	})
}

func TestObservePool(t *testing.T) {
	t.Run("Should chain an existing PrepareConn hook", func(t *testing.T) {
		poolCfg, err := pgxpool.ParseConfig("postgres://postgres@localhost:5432/bookstore")
		require.NoError(t, err)
		called := false
		poolCfg.PrepareConn = func(context.Context, *pgx.Conn) (bool, error) {
			called = true
			return true, nil
		}
		obs, err := observePool(&Config{Host: "localhost"}, poolCfg)
		require.NoError(t, err)
		ok, err := poolCfg.PrepareConn(context.Background(), nil)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, called)
		assert.Equal(t, "localhost", obs.label)
	})

	t.Run("Should tolerate a nil observer", func(t *testing.T) {
		var obs *poolObserver
		assert.NotPanics(t, func() {
			obs.attach(nil)
			obs.detach()
		})
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Run("Should embed the book and todos migrations in order", func(t *testing.T) {
		entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Contains(t, entries[0], "create_book")
		assert.Contains(t, entries[1], "create_todos")
	})
}
