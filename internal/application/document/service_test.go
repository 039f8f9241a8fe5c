package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/canvas"
	"github.com/labdocs/backend/internal/infrastructure/logger"
	"github.com/labdocs/backend/internal/infrastructure/printing"
	"github.com/labdocs/backend/internal/infrastructure/storage"
	"github.com/labdocs/backend/internal/infrastructure/telemetry"
)

var fixedNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// fakeRenderer stands in for the headless engine.
type fakeRenderer struct {
	mu        sync.Mutex
	requests  []*printing.RenderRequest
	cancelled []string
	err       error
}

func (f *fakeRenderer) Render(_ context.Context, req *printing.RenderRequest) (*printing.RenderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &printing.RenderResult{PDFData: []byte("%PDF-1.4\n1 0 obj << /Type /Page >> endobj\n%%EOF"), PageCount: 1}, nil
}

func (f *fakeRenderer) Cancel(requestID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, requestID)
	return requestID == "in-flight"
}

func (f *fakeRenderer) Close() error { return nil }

// stubBackend returns canned output.
type stubBackend struct {
	kind  document.BackendKind
	data  []byte
	err   error
	calls int
}

func (b *stubBackend) Kind() document.BackendKind { return b.kind }

func (b *stubBackend) Render(context.Context, *document.Job) ([]byte, error) {
	b.calls++
	return b.data, b.err
}

// failingStorage rejects every write.
type failingStorage struct{}

func (failingStorage) Store(context.Context, *printing.StoreRequest) (*printing.StoreResult, error) {
	return nil, errors.New("disk full")
}
func (failingStorage) Get(context.Context, string) (io.ReadCloser, error) { return nil, nil }
func (failingStorage) Delete(context.Context, string) error               { return nil }
func (failingStorage) CleanupOlderThan(context.Context, time.Duration) (int, error) {
	return 0, nil
}
func (failingStorage) GetURL(string) string { return "" }

func newCanvasBackend() *canvas.Backend {
	return canvas.NewBackend(nil, nil,
		canvas.WithCompression(false),
		canvas.WithClock(func() time.Time { return fixedNow }),
	)
}

func newHTMLBackend(t *testing.T, renderer printing.PDFRenderer) *printing.HTMLBackend {
	t.Helper()
	locales, err := printing.LoadLocales()
	require.NoError(t, err)
	b, err := printing.NewHTMLBackend(printing.HTMLBackendConfig{
		Store:    printing.NewTemplateStore(nil),
		Renderer: renderer,
		Locales:  locales,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	return b
}

func newTestService(t *testing.T, renderer printing.PDFRenderer, opts ...Option) *Service {
	t.Helper()
	if renderer == nil {
		renderer = &fakeRenderer{}
	}
	base := []Option{
		WithBackend(newCanvasBackend()),
		WithBackend(newHTMLBackend(t, renderer)),
		WithClock(func() time.Time { return fixedNow }),
	}
	svc, err := NewService(append(base, opts...)...)
	require.NoError(t, err)
	return svc
}

func scenarioA() *document.ReportRequest {
	return &document.ReportRequest{
		DocumentType: "masterSlip",
		PatientInfo:  document.PatientInfo{Name: "John Doe", PatientID: "P001"},
		VisitInfo:    document.VisitInfo{VisitID: "V2024001"},
		Tests:        []document.TestResultRow{{TestName: "CBC", Department: "Hematology"}},
	}
}

// scenarioB returns 60 rows spread over four departments.
func scenarioB() *document.ReportRequest {
	depts := []string{"Hematology", "Chemistry", "Immunology", "Microbiology"}
	req := &document.ReportRequest{
		DocumentType: "resultsReport",
		PatientInfo:  document.PatientInfo{Name: "Jane Roe", PatientID: "P002", Age: "42", Gender: "F"},
		VisitInfo:    document.VisitInfo{VisitID: "V2024002", CollectionDate: "2024-04-30"},
	}
	for i := 0; i < 60; i++ {
		flag := document.FlagNormal
		if i%7 == 0 {
			flag = document.FlagHigh
		}
		req.Tests = append(req.Tests, document.TestResultRow{
			TestName:       fmt.Sprintf("Analyte %02d", i),
			Department:     depts[i/15],
			Result:         document.Text(fmt.Sprintf("%d.%d", i, i%10)),
			Units:          "mg/dL",
			ReferenceRange: "1-99",
			Flag:           flag,
		})
	}
	return req
}

func TestNewService(t *testing.T) {
	t.Run("no backends", func(t *testing.T) {
		_, err := NewService()
		require.Error(t, err)
	})

	t.Run("results backend not registered", func(t *testing.T) {
		_, err := NewService(WithBackend(newCanvasBackend()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "html")
	})

	t.Run("canvas only with canvas results", func(t *testing.T) {
		svc, err := NewService(WithBackend(newCanvasBackend()), WithResultsBackend(document.BackendCanvas))
		require.NoError(t, err)
		assert.Equal(t, document.BackendCanvas, svc.BackendFor(document.MustParseDocumentType("resultsReport")))
	})
}

func TestService_BackendFor(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		docType  string
		expected document.BackendKind
	}{
		{"resultsReport", document.BackendHTML},
		{"auditSheet", document.BackendHTML},
		{"labSlip", document.BackendCanvas},
		{"masterSlip", document.BackendCanvas},
		{"departmentSlip-Hematology", document.BackendCanvas},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, svc.BackendFor(document.MustParseDocumentType(tt.docType)), tt.docType)
	}
}

func TestService_Generate_MasterSlip(t *testing.T) {
	svc := newTestService(t, nil, WithRequestIDGenerator(func() string { return "req-a" }))

	doc, err := svc.Generate(context.Background(), "", scenarioA(), "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(doc.Data), "%PDF-"))
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, document.KindMasterSlip, doc.DocumentType.Kind)
	assert.Equal(t, document.BackendCanvas, doc.Backend)
	assert.Equal(t, "req-a", doc.RequestID)
	assert.Equal(t, fixedNow, doc.GeneratedAt)
}

func TestService_Generate_ResultsReportOnCanvas(t *testing.T) {
	svc := newTestService(t, nil, WithResultsBackend(document.BackendCanvas))

	doc, err := svc.Generate(context.Background(), "resultsReport", scenarioB(), "en")
	require.NoError(t, err)
	assert.Equal(t, document.BackendCanvas, doc.Backend)
	assert.GreaterOrEqual(t, doc.PageCount, 2)
}

func TestService_Generate_ResultsReportOnHTML(t *testing.T) {
	renderer := &fakeRenderer{}
	svc := newTestService(t, renderer)

	req := scenarioB()
	req.Tests = append(req.Tests, scenarioB().Tests...)
	doc, err := svc.Generate(context.Background(), "resultsReport", req, "")
	require.NoError(t, err)
	assert.Equal(t, document.BackendHTML, doc.Backend)

	require.Len(t, renderer.requests, 1)
	html := renderer.requests[0].HTML
	assert.Contains(t, html, "Hematology")
	assert.Contains(t, html, "Microbiology")
	assert.Contains(t, html, "(continued)")
	assert.Equal(t, doc.RequestID, renderer.requests[0].RequestID)
}

func TestService_Generate_LangFallsBackToRequest(t *testing.T) {
	renderer := &fakeRenderer{}
	svc := newTestService(t, renderer)

	req := scenarioB()
	req.Lang = "es"
	_, err := svc.Generate(context.Background(), "resultsReport", req, "")
	require.NoError(t, err)

	require.Len(t, renderer.requests, 1)
	assert.Contains(t, renderer.requests[0].HTML, `lang="es"`)
}

func TestService_Generate_DefaultLang(t *testing.T) {
	renderer := &fakeRenderer{}
	svc := newTestService(t, renderer, WithDefaultLang("fr"))

	_, err := svc.Generate(context.Background(), "resultsReport", scenarioB(), "")
	require.NoError(t, err)

	require.Len(t, renderer.requests, 1)
	assert.Contains(t, renderer.requests[0].HTML, `lang="fr"`)
}

func TestService_Generate_UnsupportedType(t *testing.T) {
	canvasStub := &stubBackend{kind: document.BackendCanvas, data: []byte("%PDF-1.4")}
	htmlStub := &stubBackend{kind: document.BackendHTML, data: []byte("%PDF-1.4")}
	svc, err := NewService(WithBackend(canvasStub), WithBackend(htmlStub))
	require.NoError(t, err)

	req := scenarioA()
	req.DocumentType = "unknownType"
	doc, err := svc.Generate(context.Background(), "", req, "")

	require.Error(t, err)
	assert.Nil(t, doc)
	assert.True(t, errors.Is(err, document.ErrUnsupportedDocumentType))
	assert.Zero(t, canvasStub.calls+htmlStub.calls)
}

func TestService_Generate_Validation(t *testing.T) {
	svc := newTestService(t, nil)

	tests := []struct {
		name    string
		mutate  func(r *document.ReportRequest)
		message string
	}{
		{"missing patient id", func(r *document.ReportRequest) { r.PatientInfo.PatientID = "" }, "patientInfo.patientId is required"},
		{"missing visit id", func(r *document.ReportRequest) { r.VisitInfo.VisitID = "" }, "visitInfo.visitId is required"},
		{"unknown flag", func(r *document.ReportRequest) { r.Tests[0].Flag = "weird" }, "tests[0].flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := scenarioA()
			tt.mutate(req)

			doc, err := svc.Generate(context.Background(), "masterSlip", req, "")
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, document.ErrInvalidRequest))
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	t.Run("nil request", func(t *testing.T) {
		_, err := svc.Generate(context.Background(), "masterSlip", nil, "")
		assert.True(t, errors.Is(err, document.ErrInvalidRequest))
	})

	t.Run("flags are case insensitive", func(t *testing.T) {
		req := scenarioA()
		req.Tests[0].Flag = "HIGH"
		_, err := svc.Generate(context.Background(), "masterSlip", req, "")
		assert.NoError(t, err)
	})
}

func TestService_Generate_BackendErrors(t *testing.T) {
	tests := []struct {
		name     string
		backend  *stubBackend
		expected error
	}{
		{"engine failure", &stubBackend{err: document.NewRenderEngineError("chrome crashed", nil)}, document.ErrRenderEngine},
		{"timeout", &stubBackend{err: document.NewRenderTimeoutError("timed out", context.DeadlineExceeded)}, document.ErrRenderTimeout},
		{"empty output", &stubBackend{data: nil}, document.ErrInvalidOutput},
		{"not a pdf", &stubBackend{data: []byte("<html></html>")}, document.ErrInvalidOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.backend.kind = document.BackendHTML
			svc, err := NewService(WithBackend(tt.backend))
			require.NoError(t, err)

			doc, err := svc.Generate(context.Background(), "auditSheet", scenarioA(), "")
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, tt.expected))
		})
	}
}

func TestService_Generate_MissingBackend(t *testing.T) {
	htmlStub := &stubBackend{kind: document.BackendHTML, data: []byte("%PDF-1.4")}
	svc, err := NewService(WithBackend(htmlStub))
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "labSlip", scenarioA(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, document.ErrRenderEngine))
}

func TestService_Generate_Overflow(t *testing.T) {
	svc := newTestService(t, nil)

	req := scenarioA()
	for i := 0; i < 80; i++ {
		req.Tests = append(req.Tests, document.TestResultRow{TestName: fmt.Sprintf("Test %d", i), Department: "Chemistry"})
	}
	doc, err := svc.Generate(context.Background(), "masterSlip", req, "")
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.True(t, errors.Is(err, document.ErrOverflow))
}

func TestService_Generate_Idempotent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx, _ := logger.WithRequestID(context.Background(), zap.NewNop(), "req-same")

	first, err := svc.Generate(ctx, "departmentSlip-Hematology", scenarioA(), "")
	require.NoError(t, err)
	second, err := svc.Generate(ctx, "departmentSlip-Hematology", scenarioA(), "")
	require.NoError(t, err)

	assert.Equal(t, "req-same", first.RequestID)
	assert.Equal(t, first.Data, second.Data)
}

func TestService_Generate_Archive(t *testing.T) {
	archive := storage.NewMemoryStorage()
	svc := newTestService(t, nil, WithArchive(archive, "memory"))
	ctx, _ := logger.WithRequestID(context.Background(), zap.NewNop(), "req-arch")

	doc, err := svc.Generate(ctx, "labSlip", scenarioA(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"labSlip/2024/05/req-arch.pdf"}, archive.Paths())
	rc, err := archive.Get(context.Background(), "labSlip/2024/05/req-arch.pdf")
	require.NoError(t, err)
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, doc.Data, stored)
}

func TestService_Generate_ArchiveFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewDocumentMetrics(telemetry.DocumentMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	svc := newTestService(t, nil,
		WithArchive(failingStorage{}, "filesystem"),
		WithLogger(zap.New(core)),
		WithMetrics(metrics),
	)

	doc, err := svc.Generate(context.Background(), "masterSlip", scenarioA(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Data)

	failures := logs.FilterMessage("Failed to archive document").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "filesystem", failures[0].ContextMap()["archive"])

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "labdoc.archive.failures" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			found = true
		}
	}
	assert.True(t, found)
}

func TestService_Generate_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewDocumentMetrics(telemetry.DocumentMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	svc := newTestService(t, nil, WithMetrics(metrics))
	_, err = svc.Generate(context.Background(), "masterSlip", scenarioA(), "")
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), "unknownType", scenarioA(), "")
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	outcomes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "labdoc.documents.generated" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				outcome, _ := dp.Attributes.Value(telemetry.AttrOutcome)
				outcomes[outcome.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{telemetry.OutcomeSuccess: 1, telemetry.OutcomeFailure: 1}, outcomes)
}

func TestService_Generate_MetricLabelsAreBounded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewDocumentMetrics(telemetry.DocumentMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	svc := newTestService(t, nil, WithMetrics(metrics))
	for _, requested := range []string{"departmentSlip-Hematology", "departmentSlip-XYZ"} {
		_, err = svc.Generate(context.Background(), requested, scenarioA(), "")
		require.NoError(t, err, requested)
	}
	for _, requested := range []string{"bogus-\u00e9-type", "report", "departmentSlip-"} {
		_, err = svc.Generate(context.Background(), requested, scenarioA(), "")
		require.Error(t, err, requested)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	labels := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "labdoc.documents.generated" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				value, ok := dp.Attributes.Value(telemetry.AttrDocumentType)
				require.True(t, ok)
				labels[value.AsString()] = true
			}
		}
	}
	assert.Equal(t, map[string]bool{"departmentSlip": true, "unsupported": true}, labels)
}

func TestMetricLabel(t *testing.T) {
	tests := []struct {
		requested string
		want      string
	}{
		{"masterSlip", "masterSlip"},
		{"departmentSlip-Hematology", "departmentSlip"},
		{"departmentSlip-Anything At All", "departmentSlip"},
		{"resultsReport", "resultsReport"},
		{"", "unsupported"},
		{"unknownType", "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			assert.Equal(t, tt.want, metricLabel(tt.requested))
		})
	}
}

func TestService_Cancel(t *testing.T) {
	renderer := &fakeRenderer{}
	svc := newTestService(t, renderer)

	assert.True(t, svc.Cancel("in-flight"))
	assert.False(t, svc.Cancel("unknown"))
	assert.Equal(t, []string{"in-flight", "unknown"}, renderer.cancelled)
}
