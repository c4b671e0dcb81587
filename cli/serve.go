package cli

import (
	"context"
	"time"

	"github.com/compozy/bookstore/engine/infra/monitoring"
	"github.com/compozy/bookstore/engine/infra/server"
	"github.com/compozy/bookstore/pkg/config"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/spf13/cobra"
)

const monitoringShutdownTimeout = 5 * time.Second

// ServeCmd starts the HTTP API.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start-server"},
		Short:   "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().String("host", "", "Host interface for the HTTP server")
	cmd.Flags().Int("port", 0, "Port for the HTTP server")
	cmd.Flags().Bool("monitoring", false, "Expose Prometheus metrics")
	cmd.Flags().Bool("auto-migrate", true, "Apply migrations before serving")
	return cmd
}

func runServe(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx)
	mon := monitoring.NewServiceWithFallback(ctx, monitoringConfig(&cfg.Monitoring))
	mon.SetAsGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), monitoringShutdownTimeout)
		defer cancel()
		if err := mon.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down monitoring", "error", err)
		}
	}()
	store, svc, err := openService(ctx, cfg, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	defer closeStore(ctx, store)
	srv, err := server.NewServer(ctx, cfg, svc, mon)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
