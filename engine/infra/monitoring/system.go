package monitoring

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/compozy/bookstore/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Build variables set via ldflags, e.g.
// -X 'github.com/compozy/bookstore/engine/infra/monitoring.Version=v1.0.0'
var (
	Version    = "unknown"
	CommitHash = "unknown"
)

// registerServiceMetrics publishes bookstore_build_info and
// bookstore_uptime_seconds. Unregister the result on shutdown.
func registerServiceMetrics(meter metric.Meter, started time.Time) (metric.Registration, error) {
	buildInfo, errInfo := meter.Int64ObservableGauge(
		metrics.MetricName("build_info"),
		metric.WithDescription("Build information (value=1)"),
	)
	uptime, errUptime := meter.Float64ObservableGauge(
		metrics.MetricName("uptime_seconds"),
		metric.WithDescription("Seconds since the service started"),
		metric.WithUnit("s"),
	)
	if err := errors.Join(errInfo, errUptime); err != nil {
		return nil, err
	}
	version, commit, goVersion := getBuildInfo()
	infoAttrs := metric.WithAttributes(
		attribute.String("version", version),
		attribute.String("commit_hash", commit),
		attribute.String("go_version", goVersion),
	)
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(buildInfo, 1, infoAttrs)
		o.ObserveFloat64(uptime, time.Since(started).Seconds())
		return nil
	}, buildInfo, uptime)
}

// getBuildInfo prefers ldflags values and falls back to the embedded build info.
func getBuildInfo() (version, commit, goVersion string) {
	version, commit = Version, CommitHash
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version, commit, runtime.Version()
	}
	if version == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, setting := range info.Settings {
		if commit == "unknown" && setting.Key == "vcs.revision" {
			commit = setting.Value
		}
	}
	return version, commit, runtime.Version()
}
