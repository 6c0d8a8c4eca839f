// Package observability provides OpenTelemetry tracing and metrics for
// the rollout core: flag evaluation counts, log admission counts, and
// experiment simulation throughput. Export goes over OTLP gRPC; a
// disabled provider is a safe no-op so library callers never branch on
// telemetry being configured.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/driftline/rollout/pkg/environment"
	"github.com/driftline/rollout/pkg/severity"
)

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    environment.Environment
	OTLPEndpoint   string        // e.g. "localhost:4317" for gRPC
	BatchTimeout   time.Duration // how long to batch spans before export
	Enabled        bool
	Insecure       bool // dev only
}

// DefaultConfig returns development defaults.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "rollout-core",
		ServiceVersion: "1.0.0",
		Environment:    environment.Development,
		OTLPEndpoint:   "localhost:4317",
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       true,
	}
}

// Provider manages the trace and metric providers plus the domain
// instruments. A nil *Provider and a disabled provider both record
// nothing.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	flagEvaluations metric.Int64Counter
	eventsAdmitted  metric.Int64Counter
	usersSimulated  metric.Int64Counter
	conversions     metric.Int64Counter
	stepDuration    metric.Float64Histogram
}

// New creates an observability provider.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if !config.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(string(config.Environment)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("driftline.rollout",
		trace.WithInstrumentationVersion(config.ServiceVersion),
	)
	p.meter = otel.Meter("driftline.rollout",
		metric.WithInstrumentationVersion(config.ServiceVersion),
	)

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", string(config.Environment),
		"endpoint", config.OTLPEndpoint,
	)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(p.config.BatchTimeout),
		),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint),
	}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error

	p.flagEvaluations, err = p.meter.Int64Counter("rollout.flag.evaluations.total",
		metric.WithDescription("Total feature flag evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return err
	}

	p.eventsAdmitted, err = p.meter.Int64Counter("rollout.log.admitted.total",
		metric.WithDescription("Log events admitted past the severity filter"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return err
	}

	p.usersSimulated, err = p.meter.Int64Counter("rollout.experiment.users.total",
		metric.WithDescription("Synthetic users simulated"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return err
	}

	p.conversions, err = p.meter.Int64Counter("rollout.experiment.conversions.total",
		metric.WithDescription("Simulated conversions recorded"),
		metric.WithUnit("{conversion}"),
	)
	if err != nil {
		return err
	}

	p.stepDuration, err = p.meter.Float64Histogram("rollout.experiment.step.duration",
		metric.WithDescription("Simulation batch duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1),
	)
	return err
}

// RecordEvaluation counts one flag evaluation and its outcome.
func (p *Provider) RecordEvaluation(ctx context.Context, flagID string, env environment.Environment, enabled bool) {
	if p == nil || p.flagEvaluations == nil {
		return
	}
	p.flagEvaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flag.id", flagID),
		attribute.String("environment", string(env)),
		attribute.Bool("enabled", enabled),
	))
}

// RecordAdmission counts one admitted log event by severity.
func (p *Provider) RecordAdmission(ctx context.Context, sev severity.Severity) {
	if p == nil || p.eventsAdmitted == nil {
		return
	}
	p.eventsAdmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", string(sev)),
	))
}

// RecordSimulation accumulates simulated users and conversions for one
// experiment.
func (p *Provider) RecordSimulation(ctx context.Context, experimentID string, users, conversions int64) {
	if p == nil || p.usersSimulated == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("experiment.id", experimentID))
	p.usersSimulated.Add(ctx, users, attrs)
	if conversions > 0 {
		p.conversions.Add(ctx, conversions, attrs)
	}
}

// RecordStepDuration records the wall time of one simulation batch.
func (p *Provider) RecordStepDuration(ctx context.Context, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.Record(ctx, d.Seconds())
}

// Tracer returns the provider's tracer, or a no-op tracer when
// disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return otel.Tracer("driftline.rollout.noop")
	}
	return p.tracer
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
