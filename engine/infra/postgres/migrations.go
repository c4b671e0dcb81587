package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/compozy/bookstore/pkg/logger"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"

	// Register pgx stdlib driver for database/sql usage in migrations.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// migrationLockID is the advisory lock key shared by every bookstore migrator.
const migrationLockID int64 = 0x626f6f6b73746f72

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationState describes one embedded migration and whether it is applied.
type MigrationState struct {
	Version   int64     `json:"version"`
	Name      string    `json:"name"`
	Applied   bool      `json:"applied"`
	AppliedAt time.Time `json:"applied_at,omitzero"`
}

// ApplyMigrations creates the book and todos tables from the embedded SQL
// files. dsn must be understood by the pgx stdlib driver.
func ApplyMigrations(ctx context.Context, dsn string) error {
	return withMigrationDB(ctx, dsn, func(db *sql.DB) error {
		return RunMigrationsForDB(ctx, db)
	})
}

// ApplyMigrationsWithLock migrates while holding a session advisory lock so
// concurrent starters apply each migration once.
func ApplyMigrationsWithLock(ctx context.Context, dsn string) error {
	locker, err := lock.NewPostgresSessionLocker(lock.WithLockID(migrationLockID))
	if err != nil {
		return fmt.Errorf("create migration locker: %w", err)
	}
	return withMigrationDB(ctx, dsn, func(db *sql.DB) error {
		return migrateUp(ctx, db, goose.WithSessionLocker(locker))
	})
}

// RunMigrationsForDB applies migrations on an existing *sql.DB.
func RunMigrationsForDB(ctx context.Context, db *sql.DB) error {
	return migrateUp(ctx, db)
}

// MigrationStatus lists every embedded migration in version order.
func MigrationStatus(ctx context.Context, dsn string) ([]MigrationState, error) {
	var states []MigrationState
	err := withMigrationDB(ctx, dsn, func(db *sql.DB) error {
		provider, err := newMigrationProvider(db)
		if err != nil {
			return err
		}
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("read migration status: %w", err)
		}
		states = make([]MigrationState, 0, len(statuses))
		for _, st := range statuses {
			states = append(states, MigrationState{
				Version:   st.Source.Version,
				Name:      st.Source.Path,
				Applied:   st.State == goose.StateApplied,
				AppliedAt: st.AppliedAt,
			})
		}
		return nil
	})
	return states, err
}

func withMigrationDB(ctx context.Context, dsn string, fn func(*sql.DB) error) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return classifyError("open db for migrations", err)
	}
	return fn(db)
}

func newMigrationProvider(db *sql.DB, opts ...goose.ProviderOption) (*goose.Provider, error) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub, opts...)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, nil
}

func migrateUp(ctx context.Context, db *sql.DB, opts ...goose.ProviderOption) error {
	provider, err := newMigrationProvider(db, opts...)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	results, err := provider.Up(ctx)
	for _, res := range results {
		log.Debug("Migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info("Migrations applied", "version", version, "new", len(results))
	return nil
}
