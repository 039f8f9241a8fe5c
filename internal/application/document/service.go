// Package document routes generation requests to the rendering backend
// that owns each document type and drives the per-request state machine.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/logger"
	"github.com/labdocs/backend/internal/infrastructure/printing"
	"github.com/labdocs/backend/internal/infrastructure/telemetry"
)

// DocumentBackend turns a job into PDF bytes.
type DocumentBackend interface {
	Kind() document.BackendKind
	Render(ctx context.Context, job *document.Job) ([]byte, error)
}

// Canceller is implemented by backends whose renders can be interrupted.
type Canceller interface {
	Cancel(requestID string) bool
}

// Service is the document router. It holds no per-request state; every
// Generate call owns its own Generation.
type Service struct {
	backends       map[document.BackendKind]DocumentBackend
	resultsBackend document.BackendKind
	defaultLang    string
	validate       *validator.Validate
	archive        printing.PDFStorage
	archiveName    string
	metrics        *telemetry.DocumentMetrics
	logger         *zap.Logger
	now            func() time.Time
	newID          func() string
}

// Option configures a Service
type Option func(*Service)

// WithBackend registers a backend under its Kind.
func WithBackend(b DocumentBackend) Option {
	return func(s *Service) {
		s.backends[b.Kind()] = b
	}
}

// WithResultsBackend selects which backend renders the Results Report.
// The default is the HTML backend.
func WithResultsBackend(kind document.BackendKind) Option {
	return func(s *Service) {
		s.resultsBackend = kind
	}
}

// WithDefaultLang sets the language used when neither the caller nor the
// request names one.
func WithDefaultLang(lang string) Option {
	return func(s *Service) {
		s.defaultLang = lang
	}
}

// WithArchive stores every delivered PDF in storage. name labels the
// storage in logs and metrics.
func WithArchive(storage printing.PDFStorage, name string) Option {
	return func(s *Service) {
		s.archive = storage
		s.archiveName = name
	}
}

// WithMetrics sets the generation metrics
func WithMetrics(m *telemetry.DocumentMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRequestIDGenerator overrides the id assigned to requests that do
// not carry one in their context.
func WithRequestIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService creates the router. At least one backend must be registered
// and the results backend must be one of them.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		backends:       make(map[document.BackendKind]DocumentBackend),
		resultsBackend: document.BackendHTML,
		validate:       newValidator(),
		logger:         zap.NewNop(),
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.backends) == 0 {
		return nil, errors.New("document service: no rendering backend registered")
	}
	if _, ok := s.backends[s.resultsBackend]; !ok {
		return nil, fmt.Errorf("document service: results backend %q is not registered", s.resultsBackend)
	}
	return s, nil
}

// BackendFor returns the backend kind that renders t.
func (s *Service) BackendFor(t document.DocumentType) document.BackendKind {
	if t.Kind == document.KindResultsReport {
		return s.resultsBackend
	}
	return t.Backend()
}

// Generate renders one document. documentType falls back to
// data.DocumentType, and lang to data.Lang and then the default language. The request id is
// taken from ctx (see logger.WithRequestID) or generated.
//
// On failure no bytes are returned.
func (s *Service) Generate(ctx context.Context, documentType string, data *document.ReportRequest, lang string) (*document.RenderedDocument, error) {
	if documentType == "" && data != nil {
		documentType = data.DocumentType
	}
	if lang == "" && data != nil {
		lang = data.Lang
	}
	if lang == "" {
		lang = s.defaultLang
	}

	requestID := logger.GetRequestID(ctx)
	if requestID == "" {
		requestID = s.newID()
	}

	gen := document.NewGeneration(requestID, documentType)
	log := s.logger.With(
		zap.String("request_id", requestID),
		zap.String("document_type", documentType),
	)

	ctx, span := telemetry.StartServiceSpan(ctx, "document", "generate",
		telemetry.WithAttribute(telemetry.SpanAttrRequestID, requestID),
		telemetry.WithAttribute(telemetry.SpanAttrDocumentType, documentType),
		telemetry.WithAttribute(telemetry.SpanAttrLang, lang),
	)
	defer span.End()
	if data != nil {
		telemetry.SetAttribute(span, telemetry.SpanAttrTestCount, len(data.Tests))
	}

	label := metricLabel(documentType)
	s.metrics.Started(ctx, label)
	result := telemetry.GenerationResult{DocumentType: label}

	doc, err := s.run(ctx, gen, documentType, data, lang, &result)

	if err != nil {
		_ = gen.Fail(err)
		result.Duration = gen.Elapsed()
		result.ErrorCode = document.CodeOf(err)
		s.metrics.Finished(ctx, result)

		telemetry.SetAttribute(span, telemetry.SpanAttrState, gen.State.String())
		telemetry.RecordError(span, err)
		log.Warn("Document generation failed",
			zap.String("code", result.ErrorCode),
			zap.Duration("elapsed", gen.Elapsed()),
			zap.Error(err))
		return nil, err
	}

	result.Duration = gen.Elapsed()
	s.metrics.Finished(ctx, result)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrState, gen.State.String(),
		telemetry.SpanAttrBackend, string(doc.Backend),
		telemetry.SpanAttrPageCount, doc.PageCount,
		telemetry.SpanAttrSize, doc.Size(),
	)
	telemetry.SetOK(span)
	log.Info("Document generated",
		zap.String("backend", string(doc.Backend)),
		zap.Int("pages", doc.PageCount),
		zap.Int("size", doc.Size()),
		zap.Duration("elapsed", gen.Elapsed()))

	s.archiveDocument(ctx, doc, log)
	return doc, nil
}

// unsupportedLabel stands in for document types that do not parse.
const unsupportedLabel = "unsupported"

// metricLabel maps a requested document type onto its kind, so department
// names and malformed values never become metric series.
func metricLabel(documentType string) string {
	t, err := document.ParseDocumentType(documentType)
	if err != nil {
		return unsupportedLabel
	}
	return string(t.Kind)
}

// run walks gen from Requested to Done. It leaves gen in the state where
// the failure happened.
func (s *Service) run(
	ctx context.Context,
	gen *document.Generation,
	documentType string,
	data *document.ReportRequest,
	lang string,
	result *telemetry.GenerationResult,
) (*document.RenderedDocument, error) {
	docType, err := document.ParseDocumentType(documentType)
	if err != nil {
		return nil, err
	}

	if err := gen.Advance(document.StateAssembling); err != nil {
		return nil, err
	}
	if err := s.validateRequest(data); err != nil {
		return nil, err
	}
	kind := s.BackendFor(docType)
	result.Backend = string(kind)
	backend, ok := s.backends[kind]
	if !ok {
		return nil, document.NewRenderEngineError(
			fmt.Sprintf("no %s backend configured for %s", kind, docType), nil)
	}
	job := &document.Job{
		RequestID:   gen.RequestID,
		Type:        docType,
		Request:     data,
		Lang:        strings.TrimSpace(lang),
		RequestedAt: gen.StartedAt,
	}

	if err := gen.Advance(document.StateRendering); err != nil {
		return nil, err
	}
	pdf, err := backend.Render(ctx, job)
	if err != nil {
		return nil, err
	}

	if err := gen.Advance(document.StateFinalizing); err != nil {
		return nil, err
	}
	if err := document.ValidatePDF(pdf); err != nil {
		return nil, err
	}
	pages := document.CountPages(pdf)
	result.Pages = pages
	result.Size = len(pdf)

	if err := gen.Advance(document.StateDone); err != nil {
		return nil, err
	}
	return &document.RenderedDocument{
		Data:         pdf,
		PageCount:    pages,
		DocumentType: docType,
		Backend:      kind,
		GeneratedAt:  s.now(),
		RequestID:    gen.RequestID,
	}, nil
}

// archiveDocument stores doc when an archive is configured. Failures are
// logged and counted only.
func (s *Service) archiveDocument(ctx context.Context, doc *document.RenderedDocument, log *zap.Logger) {
	if s.archive == nil {
		return
	}
	stored, err := s.archive.Store(ctx, &printing.StoreRequest{
		RequestID:    doc.RequestID,
		DocumentType: doc.DocumentType.String(),
		GeneratedAt:  doc.GeneratedAt,
		PDFData:      doc.Data,
	})
	if err != nil {
		s.metrics.ArchiveFailed(ctx, s.archiveName)
		log.Error("Failed to archive document",
			zap.String("archive", s.archiveName),
			zap.Error(err))
		return
	}
	telemetry.AddEvent(telemetry.SpanFromContext(ctx), "document.archived",
		telemetry.SpanAttrArchivePath, stored.Path)
	log.Debug("Document archived",
		zap.String("archive", s.archiveName),
		zap.String("path", stored.Path))
}

// Cancel interrupts the in-flight render of requestID. It returns false
// when no backend knows the request, which includes canvas renders since
// those run synchronously to completion.
func (s *Service) Cancel(requestID string) bool {
	cancelled := false
	for _, b := range s.backends {
		if c, ok := b.(Canceller); ok && c.Cancel(requestID) {
			cancelled = true
		}
	}
	if cancelled {
		s.logger.Info("Document render cancelled", zap.String("request_id", requestID))
	}
	return cancelled
}
