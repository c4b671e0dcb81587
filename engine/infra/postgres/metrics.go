package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/infra/monitoring/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName        = "bookstore.postgres"
	metricsSubsystem = "postgres"
	defaultPoolLabel = "default"
	// maxWaitSamples caps histogram records emitted per acquire.
	maxWaitSamples = 128
)

// storeInstruments are shared by every Store in the process and bound to the
// meter provider that was global when the first Store was built.
type storeInstruments struct {
	connections  metric.Int64ObservableGauge
	acquireWait  metric.Float64Histogram
	txOutcomes   metric.Int64Counter
	readDuration metric.Float64Histogram
	rowsSkipped  metric.Int64Counter
}

var (
	instrumentsOnce sync.Once
	instruments     atomic.Pointer[storeInstruments]
	instrumentsErr  error
	observedPools   sync.Map
)

func loadInstruments() (*storeInstruments, error) {
	instrumentsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		inst, err := newStoreInstruments(meter)
		if err != nil {
			instrumentsErr = err
			return
		}
		if _, err := meter.RegisterCallback(observePools(inst), inst.connections); err != nil {
			instrumentsErr = err
			return
		}
		instruments.Store(inst)
	})
	return instruments.Load(), instrumentsErr
}

func newStoreInstruments(meter metric.Meter) (*storeInstruments, error) {
	var inst storeInstruments
	var err error
	if inst.connections, err = meter.Int64ObservableGauge(
		metrics.MetricNameWithSubsystem(metricsSubsystem, "connections"),
		metric.WithDescription("Pool connections by state (open, in_use, idle, max)"),
	); err != nil {
		return nil, err
	}
	if inst.acquireWait, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem(metricsSubsystem, "connection_wait_duration_seconds"),
		metric.WithDescription("Time spent waiting for a pool connection"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.ConnectionWaitBuckets...),
	); err != nil {
		return nil, err
	}
	if inst.txOutcomes, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem(metricsSubsystem, "transactions_total"),
		metric.WithDescription("Transaction scopes by terminal outcome"),
	); err != nil {
		return nil, err
	}
	if inst.readDuration, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem(metricsSubsystem, "book_read_duration_seconds"),
		metric.WithDescription("Duration of full book reads by strategy"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.QueryDurationBuckets...),
	); err != nil {
		return nil, err
	}
	if inst.rowsSkipped, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem(metricsSubsystem, "book_rows_skipped_total"),
		metric.WithDescription("Streamed book rows dropped because they failed to decode"),
	); err != nil {
		return nil, err
	}
	return &inst, nil
}

func observePools(inst *storeInstruments) metric.Callback {
	return func(_ context.Context, o metric.Observer) error {
		observedPools.Range(func(key, _ any) bool {
			obs, ok := key.(*poolObserver)
			if !ok {
				return true
			}
			pool := obs.pool.Load()
			if pool == nil {
				return true
			}
			stats := pool.Stat()
			for state, value := range map[string]int32{
				"open":   stats.TotalConns(),
				"in_use": stats.AcquiredConns(),
				"idle":   stats.IdleConns(),
				"max":    stats.MaxConns(),
			} {
				o.ObserveInt64(inst.connections, int64(value), metric.WithAttributes(
					attribute.String("pool", obs.label),
					attribute.String("state", state),
				))
			}
			return true
		})
		return nil
	}
}

// poolObserver feeds one pool's statistics into the shared instruments.
type poolObserver struct {
	label string
	pool  atomic.Pointer[pgxpool.Pool]

	mu        sync.Mutex
	lastCount int64
	lastWait  time.Duration
}

// observePool hooks pool acquisition so waits show up in the wait histogram.
// The observer starts reporting once attach is called with the built pool.
func observePool(cfg *Config, poolCfg *pgxpool.Config) (*poolObserver, error) {
	if poolCfg == nil {
		return nil, fmt.Errorf("postgres: metrics need a pool config")
	}
	if _, err := loadInstruments(); err != nil {
		return nil, fmt.Errorf("postgres: init metrics: %w", err)
	}
	obs := &poolObserver{label: poolLabel(cfg)}
	next := poolCfg.PrepareConn
	poolCfg.PrepareConn = func(ctx context.Context, conn *pgx.Conn) (bool, error) {
		if next != nil {
			if ok, err := next(ctx, conn); !ok || err != nil {
				return ok, err
			}
		}
		obs.recordWait(ctx)
		return true, nil
	}
	return obs, nil
}

func (o *poolObserver) attach(pool *pgxpool.Pool) {
	if o == nil || pool == nil {
		return
	}
	stats := pool.Stat()
	o.mu.Lock()
	o.lastCount = stats.EmptyAcquireCount()
	o.lastWait = stats.EmptyAcquireWaitTime()
	o.mu.Unlock()
	o.pool.Store(pool)
	observedPools.Store(o, struct{}{})
}

func (o *poolObserver) detach() {
	if o == nil {
		return
	}
	observedPools.Delete(o)
	o.pool.Store(nil)
}

// recordWait turns the pool's cumulative empty-acquire counters into
// per-acquire samples of the average wait since the last observation.
func (o *poolObserver) recordWait(ctx context.Context) {
	inst := instruments.Load()
	pool := o.pool.Load()
	if inst == nil || pool == nil {
		return
	}
	stats := pool.Stat()
	o.mu.Lock()
	count := stats.EmptyAcquireCount() - o.lastCount
	wait := stats.EmptyAcquireWaitTime() - o.lastWait
	o.lastCount = stats.EmptyAcquireCount()
	o.lastWait = stats.EmptyAcquireWaitTime()
	o.mu.Unlock()
	if count <= 0 || wait <= 0 {
		return
	}
	avg := wait.Seconds() / float64(count)
	attrs := metric.WithAttributes(attribute.String("pool", o.label))
	for range min(count, maxWaitSamples) {
		inst.acquireWait.Record(ctx, avg, attrs)
	}
}

// recordTxOutcome counts a terminal scope transition.
func recordTxOutcome(ctx context.Context, outcome string) {
	if inst := instruments.Load(); inst != nil {
		inst.txOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// recordRead observes one ReadAll call.
func recordRead(ctx context.Context, strategy book.ReadStrategy, started time.Time, err error) {
	inst := instruments.Load()
	if inst == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	inst.readDuration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(
		attribute.String("strategy", strategy.String()),
		attribute.String("result", result),
	))
}

func recordSkippedRow(ctx context.Context) {
	if inst := instruments.Load(); inst != nil {
		inst.rowsSkipped.Add(ctx, 1)
	}
}

// poolLabel identifies a pool as host:port/dbname using lowercase label-safe
// characters.
func poolLabel(cfg *Config) string {
	if cfg == nil || (cfg.Host == "" && cfg.DBName == "") {
		return defaultPoolLabel
	}
	label := cfg.Host
	if cfg.Port != "" {
		label += ":" + cfg.Port
	}
	if cfg.DBName != "" {
		label += "/" + cfg.DBName
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '.', r == ':', r == '/', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.ToLower(strings.TrimSpace(label)))
}
