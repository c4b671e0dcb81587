package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

const (
	defaultMaxConns           = 20
	defaultMinConns           = 0
	defaultHealthCheckPeriod  = 30 * time.Second
	defaultConnectTimeout     = 5 * time.Second
	defaultPingTimeout        = 3 * time.Second
	defaultHealthCheckTimeout = 1 * time.Second
	defaultConnectBackoff     = 500 * time.Millisecond
)

// Store owns the connection pool. Repositories and the coordinator receive
// Store.Pool() through the DB interface; nothing reaches the pool globally.
type Store struct {
	pool               *pgxpool.Pool
	observer           *poolObserver
	healthCheckTimeout time.Duration
}

// NewStore builds the pool described by cfg and pings it. Startup pings are
// retried up to cfg.ConnectRetries times; nothing after construction is.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, observer, err := buildPoolConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, core.NewConnectionError("postgres: new pool", err)
	}
	if err := pingWithRetry(ctx, pool, durationOr(cfg.PingTimeout, defaultPingTimeout), cfg.ConnectRetries); err != nil {
		pool.Close()
		return nil, err
	}
	observer.attach(pool)
	logger.FromContext(ctx).Info("Postgres store ready",
		"host", cfg.Host,
		"db_name", cfg.DBName,
		"ssl_mode", cfg.SSLMode,
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	)
	return &Store{
		pool:               pool,
		observer:           observer,
		healthCheckTimeout: durationOr(cfg.HealthCheckTimeout, defaultHealthCheckTimeout),
	}, nil
}

// Close drains the pool. Open scopes must be finished before calling it.
func (s *Store) Close(ctx context.Context) error {
	s.observer.detach()
	s.pool.Close()
	logger.FromContext(ctx).Info("Postgres store closed")
	return nil
}

// Pool exposes the pool for repositories and the coordinator.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// HealthCheck pings the pool within the configured health check timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, durationOr(s.healthCheckTimeout, defaultHealthCheckTimeout))
	defer cancel()
	if err := s.pool.Ping(hctx); err != nil {
		return core.NewConnectionError("postgres: health check", err)
	}
	return nil
}

// buildPoolConfig parses the DSN and applies pool sizing and timeouts.
// A metrics failure is logged and the pool is built without instrumentation.
func buildPoolConfig(ctx context.Context, cfg *Config) (*pgxpool.Config, *poolObserver, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse config: %s", core.ErrConnection, core.RedactError(err))
	}
	observer, err := observePool(cfg, poolCfg)
	if err != nil {
		logger.FromContext(ctx).Warn("Postgres metrics disabled", "error", err)
	}
	poolCfg.MaxConns, poolCfg.MinConns = deriveConnectionBounds(cfg)
	poolCfg.HealthCheckPeriod = durationOr(cfg.HealthCheckPeriod, defaultHealthCheckPeriod)
	poolCfg.ConnConfig.ConnectTimeout = durationOr(cfg.ConnectTimeout, defaultConnectTimeout)
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	return poolCfg, observer, nil
}

// deriveConnectionBounds maps MaxOpenConns/MaxIdleConns onto pgxpool's
// MaxConns/MinConns, clamped to int32 with min never above max.
func deriveConnectionBounds(cfg *Config) (maxConns, minConns int32) {
	maxConns = defaultMaxConns
	if cfg.MaxOpenConns > 0 {
		maxConns = int32(min(cfg.MaxOpenConns, math.MaxInt32))
	}
	minConns = defaultMinConns
	if cfg.MaxIdleConns > 0 {
		minConns = int32(min(cfg.MaxIdleConns, int(maxConns)))
	}
	return maxConns, minConns
}

func pingWithRetry(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, retries uint64) error {
	log := logger.FromContext(ctx)
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(defaultConnectBackoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			log.Warn("Postgres ping failed", "attempt", attempt, "error", core.RedactError(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return core.NewConnectionError("postgres: ping", err)
	}
	return nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
