package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/infrastructure/config"
	"github.com/labdocs/backend/internal/infrastructure/telemetry"
)

// telemetryStack holds the OpenTelemetry providers. Every provider falls
// back to a no-op when disabled or when its exporter cannot be created.
type telemetryStack struct {
	tracer  *telemetry.TracerProvider
	meters  *telemetry.MeterProvider
	logs    *telemetry.LoggerProvider
	metrics *telemetry.DocumentMetrics
	// logger is the base logger, bridged to OTLP when logs export is on
	logger *zap.Logger
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) *telemetryStack {
	t := &telemetryStack{logger: log}
	tc := cfg.Telemetry
	export := telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		Insecure:          tc.Insecure,
		ServiceName:       tc.ServiceName,
		SamplingRatio:     tc.SamplingRatio,
		MetricsEnabled:    tc.MetricsEnabled,
		MetricsInterval:   tc.MetricsInterval,
		LogsEnabled:       tc.LogsEnabled,
	}

	tp, err := telemetry.NewTracerProvider(ctx, export, log)
	if err != nil {
		log.Warn("Tracing disabled", zap.Error(err))
	} else {
		t.tracer = tp
	}

	mp, err := telemetry.NewMeterProvider(ctx, export, log)
	if err != nil {
		log.Warn("Metrics disabled", zap.Error(err))
		mp, _ = telemetry.NewMeterProvider(ctx, telemetry.Config{}, log)
	}
	t.meters = mp

	metrics, err := telemetry.NewDocumentMetrics(telemetry.DocumentMetricsConfig{
		Meter:  mp.Meter("labdoc.documents"),
		Logger: log,
	})
	if err != nil {
		log.Warn("Document metrics disabled", zap.Error(err))
	}
	t.metrics = metrics

	lp, err := telemetry.NewLoggerProvider(ctx, export, log)
	if err != nil {
		log.Warn("Log export disabled", zap.Error(err))
	} else {
		t.logs = lp
		t.logger = telemetry.Bridge(log, lp, tc.ServiceName)
	}

	return t
}

// shutdown flushes and stops the providers in reverse order.
func (t *telemetryStack) shutdown(ctx context.Context) {
	if t.logs != nil {
		if err := t.logs.Shutdown(ctx); err != nil {
			t.logger.Warn("Logger provider shutdown failed", zap.Error(err))
		}
	}
	if t.meters != nil {
		if err := t.meters.Shutdown(ctx); err != nil {
			t.logger.Warn("Meter provider shutdown failed", zap.Error(err))
		}
	}
	if t.tracer != nil {
		if err := t.tracer.Shutdown(ctx); err != nil {
			t.logger.Warn("Tracer provider shutdown failed", zap.Error(err))
		}
	}
}
