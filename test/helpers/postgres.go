// Package helpers provides a Postgres container shared by the integration
// tests of one package.
package helpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/compozy/bookstore/engine/infra/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage   = "postgres:15-alpine"
	startupTimeout  = 60 * time.Second
	testDBName      = "bookstore_test"
	testDBUser      = "bookstore"
	testDBPassword  = "bookstore"
	truncateTimeout = 10 * time.Second
)

var (
	sharedOnce  sync.Once
	sharedStore *postgres.Store
	sharedDSN   string
	sharedErr   error
)

// SkipIfShort skips container-backed tests under -short.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}
}

// GetSharedPostgresStore starts one migrated Postgres container per test
// binary and returns a store on it with both tables emptied. The container
// is reaped by testcontainers when the binary exits.
func GetSharedPostgresStore(t *testing.T) (*postgres.Store, string) {
	t.Helper()
	SkipIfShort(t)
	sharedOnce.Do(func() {
		sharedStore, sharedDSN, sharedErr = startPostgres(context.Background())
	})
	require.NoError(t, sharedErr, "failed to start Postgres test container")
	ResetTables(t, sharedStore)
	return sharedStore, sharedDSN
}

func startPostgres(ctx context.Context) (*postgres.Store, string, error) {
	container, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("start container: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("connection string: %w", err)
	}
	if err := postgres.ApplyMigrationsWithLock(ctx, dsn); err != nil {
		return nil, "", err
	}
	store, err := postgres.NewStore(ctx, &postgres.Config{
		ConnString:     dsn,
		MaxOpenConns:   10,
		ConnectRetries: 3,
	})
	if err != nil {
		return nil, "", err
	}
	return store, dsn, nil
}

// ResetTables empties book and todos.
func ResetTables(t *testing.T, store *postgres.Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), truncateTimeout)
	defer cancel()
	_, err := store.Pool().Exec(ctx, "TRUNCATE book, todos")
	require.NoError(t, err)
}
