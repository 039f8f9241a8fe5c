package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Generation outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// DocumentMetrics records document generation metrics. A nil
// *DocumentMetrics is valid and records nothing.
type DocumentMetrics struct {
	generations     *Counter
	duration        *Histogram
	pages           *Histogram
	size            *Histogram
	inFlight        *UpDownCounter
	archiveFailures *Counter
	logger          *zap.Logger
}

// DocumentMetricsConfig holds configuration for DocumentMetrics
type DocumentMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewDocumentMetrics creates the document generation instruments.
func NewDocumentMetrics(cfg DocumentMetricsConfig) (*DocumentMetrics, error) {
	if cfg.Meter == nil {
		return nil, errors.New("NewDocumentMetrics: meter cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &DocumentMetrics{logger: logger}
	var err error

	m.generations, err = NewCounter(cfg.Meter,
		"labdoc.documents.generated",
		"Number of document generation requests by type and outcome",
		"{document}")
	if err != nil {
		return nil, err
	}

	m.duration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "labdoc.documents.duration",
		Description: "Time from request to validated PDF",
		Unit:        "s",
		Boundaries:  RenderDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.pages, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "labdoc.documents.pages",
		Description: "Pages per generated document",
		Unit:        "{page}",
		Boundaries:  PageCountBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.size, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "labdoc.documents.size",
		Description: "Generated PDF size",
		Unit:        "By",
		Boundaries:  SizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.inFlight, err = NewUpDownCounter(cfg.Meter,
		"labdoc.documents.in_flight",
		"Documents currently being generated",
		"{document}")
	if err != nil {
		return nil, err
	}

	m.archiveFailures, err = NewCounter(cfg.Meter,
		"labdoc.archive.failures",
		"PDFs that could not be archived",
		"{document}")
	if err != nil {
		return nil, err
	}

	logger.Debug("Document metrics initialized")
	return m, nil
}

// GenerationResult describes one finished generation
type GenerationResult struct {
	DocumentType string
	Backend      string
	ErrorCode    string // empty on success
	Duration     time.Duration
	Pages        int
	Size         int
}

// Started marks a generation as in flight. Call Finished exactly once.
func (m *DocumentMetrics) Started(ctx context.Context, docType string) {
	if m == nil {
		return
	}
	m.inFlight.Add(ctx, 1, AttrDocumentType.String(docType))
}

// Finished records the outcome of a generation started with Started.
func (m *DocumentMetrics) Finished(ctx context.Context, r GenerationResult) {
	if m == nil {
		return
	}
	m.inFlight.Add(ctx, -1, AttrDocumentType.String(r.DocumentType))

	outcome := OutcomeSuccess
	if r.ErrorCode != "" {
		outcome = OutcomeFailure
	}
	attrs := []attribute.KeyValue{
		AttrDocumentType.String(r.DocumentType),
		AttrBackend.String(r.Backend),
		AttrOutcome.String(outcome),
	}
	if r.ErrorCode != "" {
		attrs = append(attrs, AttrErrorCode.String(r.ErrorCode))
	}

	m.generations.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, r.Duration, attrs...)
	if outcome == OutcomeSuccess {
		m.pages.Record(ctx, float64(r.Pages), attrs[:2]...)
		m.size.Record(ctx, float64(r.Size), attrs[:2]...)
	}
}

// ArchiveFailed counts a PDF that was delivered but not archived.
func (m *DocumentMetrics) ArchiveFailed(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	m.archiveFailures.Inc(ctx, AttrArchiveBackend.String(backend))
}
