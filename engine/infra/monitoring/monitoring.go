package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/compozy/bookstore/engine/infra/monitoring/middleware"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "bookstore"

// Service owns the meter provider and the Prometheus registry behind /metrics.
// A disabled Service hands out a no-op meter and serves 503 on /metrics.
type Service struct {
	config   *Config
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	registry *prom.Registry
	system   metric.Registration
	initErr  error
}

func newDisabledService(cfg *Config, initErr error) *Service {
	return &Service{
		config:  cfg,
		meter:   noop.NewMeterProvider().Meter(meterName),
		initErr: initErr,
	}
}

// NewService builds a Prometheus-backed meter provider. The registry also
// carries the Go runtime and process collectors.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return newDisabledService(cfg, nil), nil
	}
	registry := prom.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)
	system, err := registerServiceMetrics(meter, time.Now())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("register service metrics: %w", err), provider.Shutdown(ctx))
	}
	log.Info("Monitoring enabled", "path", cfg.Path)
	return &Service{
		config:   cfg,
		meter:    meter,
		provider: provider,
		registry: registry,
		system:   system,
	}, nil
}

// NewServiceWithFallback never fails: an initialization error is logged and
// a disabled service returned.
func NewServiceWithFallback(ctx context.Context, cfg *Config) *Service {
	service, err := NewService(ctx, cfg)
	if err != nil {
		logger.FromContext(ctx).Error("Monitoring unavailable, continuing without metrics", "error", err)
		return newDisabledService(cfg, err)
	}
	return service
}

func (s *Service) Meter() metric.Meter { return s.meter }

func (s *Service) Path() string {
	if s.config == nil || s.config.Path == "" {
		return DefaultConfig().Path
	}
	return s.config.Path
}

func (s *Service) IsInitialized() bool { return s.provider != nil }

func (s *Service) InitializationError() error { return s.initErr }

// GinMiddleware returns the HTTP metrics middleware, or a pass-through when
// monitoring is disabled.
func (s *Service) GinMiddleware(ctx context.Context) gin.HandlerFunc {
	if !s.IsInitialized() {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.HTTPMetrics(ctx, s.meter)
}

// ExporterHandler serves the Prometheus registry.
func (s *Service) ExporterHandler() http.Handler {
	if !s.IsInitialized() {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Monitoring service not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// SetAsGlobal installs the provider as the global OpenTelemetry meter
// provider so postgres pool and transaction metrics reach /metrics. Call it
// before opening the store.
func (s *Service) SetAsGlobal() {
	if s.provider != nil {
		otel.SetMeterProvider(s.provider)
	}
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}
	var unregErr error
	if s.system != nil {
		unregErr = s.system.Unregister()
	}
	return errors.Join(unregErr, s.provider.Shutdown(ctx))
}
