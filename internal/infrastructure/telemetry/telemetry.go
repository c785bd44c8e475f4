// Package telemetry wires OpenTelemetry traces, metrics and logs, Pyroscope
// profiling and the Prometheus sweep collector for the loan engine.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every exported resource
const ServiceVersion = "1.0.0"

// shutdownTimeout bounds the flush of each provider on shutdown
const shutdownTimeout = 10 * time.Second

// Config is the exporter side of the telemetry configuration
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Environment       string
	Insecure          bool
	MetricsInterval   time.Duration
	ProfilingEnabled  bool
	ProfilingEndpoint string
}

// ConfigFrom maps the application settings onto the telemetry Config
func ConfigFrom(tc config.TelemetryConfig, env string) Config {
	return Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Environment:       env,
		Insecure:          tc.Insecure,
		ProfilingEnabled:  tc.ProfilingEnabled,
		ProfilingEndpoint: tc.ProfilingEndpoint,
	}
}

func newResource(serviceName, environment string) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	}
	if environment != "" {
		attrs = append(attrs, resource.WithAttributes(attribute.String("deployment.environment.name", environment)))
	}
	res, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return resource.Merge(resource.Default(), res)
}

// Providers holds every telemetry pipeline the server starts
type Providers struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
	logger   *zap.Logger
}

// Setup starts the trace, metric and log pipelines and the profiler. Disabled
// pipelines are no-ops; a failure tears down whatever already started.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Providers, error) {
	p := &Providers{logger: logger}
	var err error

	if p.Tracer, err = NewTracerProvider(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if p.Meter, err = NewMeterProvider(ctx, cfg, logger); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	if p.Logs, err = NewLoggerProvider(ctx, cfg, logger); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	if p.Profiler, err = NewProfiler(ProfilerConfigFrom(cfg), logger); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	if p.Profiler.IsEnabled() {
		p.Tracer.EnableSpanProfiles()
	}
	return p, nil
}

// Shutdown flushes and stops every started pipeline
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.Profiler != nil {
		errs = append(errs, p.Profiler.Stop())
	}
	if p.Logs != nil {
		errs = append(errs, p.Logs.Shutdown(ctx))
	}
	if p.Meter != nil {
		errs = append(errs, p.Meter.Shutdown(ctx))
	}
	if p.Tracer != nil {
		errs = append(errs, p.Tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// shutdownWithTimeout runs fn with shutdownTimeout applied to ctx
func shutdownWithTimeout(ctx context.Context, logger *zap.Logger, what string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("Telemetry shutdown failed", zap.String("pipeline", what), zap.Error(err))
		return fmt.Errorf("failed to shutdown %s: %w", what, err)
	}
	logger.Info("Telemetry pipeline stopped", zap.String("pipeline", what))
	return nil
}
