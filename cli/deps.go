package cli

import (
	"context"
	"fmt"

	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/compozy/bookstore/engine/infra/postgres"
	"github.com/compozy/bookstore/pkg/config"
	"github.com/compozy/bookstore/pkg/logger"
)

// openService connects to Postgres and builds the data-access service. The
// caller closes the returned store.
func openService(ctx context.Context, cfg *config.Config, migrate bool) (*postgres.Store, *bookstore.Service, error) {
	pgCfg := postgresConfig(&cfg.Database)
	if migrate {
		if err := postgres.ApplyMigrationsWithLock(ctx, postgres.DSN(pgCfg)); err != nil {
			return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}
	store, err := postgres.NewStore(ctx, pgCfg)
	if err != nil {
		return nil, nil, err
	}
	svc := bookstore.NewService(store.Pool(), postgres.WithRollbackTimeout(cfg.Database.RollbackTimeout))
	return store, svc, nil
}

func closeStore(ctx context.Context, store *postgres.Store) {
	if err := store.Close(context.WithoutCancel(ctx)); err != nil {
		logger.FromContext(ctx).Warn("Failed to close store", "error", err)
	}
}
