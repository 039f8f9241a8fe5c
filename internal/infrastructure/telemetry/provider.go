// Package telemetry exports traces, metrics and logs of the document
// service over OTLP and holds the document generation instruments.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every exported resource
var ServiceVersion = "dev"

const shutdownTimeout = 10 * time.Second

// Config selects what is exported and where. Enabled gates every signal;
// MetricsEnabled and LogsEnabled additionally gate their own pipelines.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	SamplingRatio     float64
	MetricsEnabled    bool
	// MetricsInterval defaults to one minute
	MetricsInterval time.Duration
	LogsEnabled     bool
}

// pipeline is the export lifecycle shared by traces, metrics and logs. A
// pipeline without an SDK provider is disabled and all its calls are no-ops.
type pipeline struct {
	signal string
	sdk    interface {
		ForceFlush(context.Context) error
		Shutdown(context.Context) error
	}
	logger *zap.Logger
}

func newPipeline(signal string, logger *zap.Logger) pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return pipeline{signal: signal, logger: logger}
}

// Enabled reports whether the signal is exported.
func (p *pipeline) Enabled() bool { return p.sdk != nil }

// ForceFlush exports everything buffered so far.
func (p *pipeline) ForceFlush(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the exporter.
func (p *pipeline) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown %s export: %w", p.signal, err)
	}
	p.logger.Info("Telemetry export stopped", zap.String("signal", p.signal))
	return nil
}

func (p *pipeline) started(cfg Config, fields ...zap.Field) {
	p.logger.Info("Telemetry export started", append([]zap.Field{
		zap.String("signal", p.signal),
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
	}, fields...)...)
}

func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}
	return res, nil
}

// TracerProvider exports spans and installs itself as the global provider.
type TracerProvider struct {
	pipeline
	provider *sdktrace.TracerProvider
}

// NewTracerProvider starts span export. When cfg.Enabled is false the
// global no-op provider stays in place.
func NewTracerProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{pipeline: newPipeline("traces", logger)}
	if !cfg.Enabled {
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	tp.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRatio)),
	)
	tp.sdk = tp.provider
	otel.SetTracerProvider(tp.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tp.started(cfg, zap.Float64("sampling_ratio", cfg.SamplingRatio))
	return tp, nil
}

// samplerFor honours an upstream decision carried in traceparent and
// samples new traces at ratio.
func samplerFor(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1.0:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0.0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Tracer returns a named tracer, from the global provider when disabled.
func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.provider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return tp.provider.Tracer(name, opts...)
}
