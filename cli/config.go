package cli

import (
	"context"
	"fmt"

	"github.com/compozy/bookstore/engine/infra/monitoring"
	"github.com/compozy/bookstore/engine/infra/postgres"
	"github.com/compozy/bookstore/pkg/config"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/spf13/cobra"
)

// SetupGlobalConfig loads the env file and configuration, configures the
// logger and attaches both to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	level, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	logger.SetupLogger(level, logJSON, logSource)
	envPath, err := loadEnvFile(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
	log := logger.GetDefault()
	log.Debug("Configuration loaded", "env_file", envPath, "environment", cfg.Runtime.Environment)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}

func loadConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	sources := []config.Source{}
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	sources = append(sources, config.NewCLIProvider(extractCLIFlags(cmd)))
	return config.NewService().Load(ctx, sources...)
}

func postgresConfig(db *config.DatabaseConfig) *postgres.Config {
	return &postgres.Config{
		ConnString:      db.ConnString,
		Host:            db.Host,
		Port:            db.Port,
		User:            db.User,
		Password:        db.Password.Value(),
		DBName:          db.DBName,
		SSLMode:         db.SSLMode,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnMaxIdleTime: db.ConnMaxIdleTime,
		ConnectTimeout:  db.ConnectTimeout,
		PingTimeout:     db.PingTimeout,
		ConnectRetries:  uint64(max(db.ConnectRetries, 0)),
	}
}

func monitoringConfig(m *config.MonitoringConfig) *monitoring.Config {
	return &monitoring.Config{Enabled: m.Enabled, Path: m.Path}
}
