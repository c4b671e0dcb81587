package cli

import (
	"github.com/compozy/bookstore/engine/infra/postgres"
	"github.com/compozy/bookstore/pkg/config"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/spf13/cobra"
)

// MigrateCmd applies the embedded schema migrations.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the book and todos tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dsn := postgres.DSN(postgresConfig(&config.FromContext(ctx).Database))
			if status, _ := cmd.Flags().GetBool("status"); status {
				states, err := postgres.MigrationStatus(ctx, dsn)
				if err != nil {
					return err
				}
				return printJSON(cmd, states)
			}
			if err := postgres.ApplyMigrationsWithLock(ctx, dsn); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("Schema is up to date")
			return nil
		},
	}
	cmd.Flags().Bool("status", false, "List migrations and whether they are applied instead of migrating")
	return cmd
}
