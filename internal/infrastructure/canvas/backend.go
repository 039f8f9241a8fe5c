package canvas

import (
	"bytes"
	"context"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/codes"
	"github.com/labdocs/backend/internal/infrastructure/trend"
)

const pdfCreator = "labdocs"

// Backend renders slips, and optionally the results report, by drawing PDF
// primitives directly. Rendering is synchronous; the context is only
// checked between stages.
type Backend struct {
	layout         document.SlipLayout
	slipGeometry   SlipGeometry
	reportGeometry ReportGeometry
	palette        Palette
	encoder        *codes.Encoder
	graphs         *trend.Renderer
	labels         LabelsFunc
	logger         *zap.Logger
	compress       bool
	now            func() time.Time
}

// BackendOption configures the canvas backend
type BackendOption func(*Backend)

// WithSlipLayout sets the sheet and slip geometry.
func WithSlipLayout(layout document.SlipLayout) BackendOption {
	return func(b *Backend) { b.layout = layout }
}

// WithSlipGeometry sets the internal slip layout.
func WithSlipGeometry(g SlipGeometry) BackendOption {
	return func(b *Backend) { b.slipGeometry = g }
}

// WithReportGeometry sets the results report geometry.
func WithReportGeometry(g ReportGeometry) BackendOption {
	return func(b *Backend) { b.reportGeometry = g }
}

// WithPalette sets the colors.
func WithPalette(p Palette) BackendOption {
	return func(b *Backend) { b.palette = p }
}

// WithLabels sets the caption resolver.
func WithLabels(fn LabelsFunc) BackendOption {
	return func(b *Backend) { b.labels = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) BackendOption {
	return func(b *Backend) { b.logger = logger }
}

// WithCompression toggles stream compression (on by default).
func WithCompression(on bool) BackendOption {
	return func(b *Backend) { b.compress = on }
}

// WithClock sets the source of the PDF creation date.
func WithClock(now func() time.Time) BackendOption {
	return func(b *Backend) { b.now = now }
}

// NewBackend creates a canvas backend.
func NewBackend(encoder *codes.Encoder, graphs *trend.Renderer, opts ...BackendOption) *Backend {
	b := &Backend{
		layout:         document.DefaultSlipLayout(),
		slipGeometry:   DefaultSlipGeometry(),
		reportGeometry: DefaultReportGeometry(),
		palette:        DefaultPalette(),
		encoder:        encoder,
		graphs:         graphs,
		logger:         zap.NewNop(),
		compress:       true,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.encoder == nil {
		b.encoder = codes.NewDefaultEncoder()
	}
	if b.graphs == nil {
		b.graphs = trend.NewRenderer(trend.DefaultConfig())
	}
	if b.labels == nil {
		b.labels = func(string) Labels { return DefaultLabels }
	}
	return b
}

// Kind returns the backend kind
func (b *Backend) Kind() document.BackendKind {
	return document.BackendCanvas
}

// Render produces the PDF for job.
func (b *Backend) Render(ctx context.Context, job *document.Job) ([]byte, error) {
	if job == nil || job.Request == nil {
		return nil, document.NewInvalidRequestError("render job has no request", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, document.NewRenderTimeoutError("render cancelled", err)
	}

	if err := checkRequestPrintable(job.Request, job.Type.Department); err != nil {
		return nil, err
	}

	switch job.Type.Kind {
	case document.KindMasterSlip, document.KindDepartmentSlip:
		return b.renderSheet(job)
	case document.KindLabSlip:
		return b.renderLabSlip(job)
	case document.KindResultsReport:
		return b.renderReport(ctx, job)
	}
	return nil, document.NewUnsupportedDocumentTypeError(job.Type.String())
}

func (b *Backend) newDocument(size document.Size, job *document.Job, title string) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(b.compress)
	pdf.SetCatalogSort(true)
	created := job.RequestedAt
	if created.IsZero() {
		created = b.now()
	}
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCreator(pdfCreator, false)
	pdf.SetTitle(title, true)
	RegisterFonts(pdf)
	return pdf
}

func (b *Backend) slipContent(job *document.Job) SlipContent {
	labels := b.labels(job.Lang)
	content := SlipContent{
		Heading: labels.Label(LabelSlipTitle),
		Patient: job.Request.PatientInfo,
		Visit:   job.Request.VisitInfo,
		Rows:    job.Rows(),
		Labels:  labels,
	}
	if job.Type.Kind == document.KindDepartmentSlip {
		content.Tag = job.Type.Department
	} else {
		content.Tag = labels.Label(LabelSlipAll)
		content.ShowDepartment = true
	}
	return content
}

// renderSheet stamps one composed slip on every tile of an A4 sheet.
func (b *Backend) renderSheet(job *document.Job) ([]byte, error) {
	pdf := b.newDocument(b.layout.Page(), job, job.Type.String())
	composer := NewSlipComposer(b.layout.Slip(), b.slipGeometry, b.palette, b.encoder, b.logger)

	tpl, err := composer.Compose(pdf, b.slipContent(job))
	if err != nil {
		return nil, err
	}

	pdf.AddPage()
	size := fpdf.SizeType{Wd: b.layout.Slip().Width, Ht: b.layout.Slip().Height}
	for _, origin := range b.layout.TileOrigins() {
		tl := b.layout.TopLeft(origin)
		pdf.UseTemplateScaled(tpl, fpdf.PointType{X: tl.X, Y: tl.Y}, size)
	}
	return b.output(pdf)
}

// renderLabSlip prints one slip on a page of its own size.
func (b *Backend) renderLabSlip(job *document.Job) ([]byte, error) {
	slip := b.layout.Slip()
	pdf := b.newDocument(slip, job, job.Type.String())
	composer := NewSlipComposer(slip, b.slipGeometry, b.palette, b.encoder, b.logger)

	tpl, err := composer.Compose(pdf, b.slipContent(job))
	if err != nil {
		return nil, err
	}

	pdf.AddPage()
	pdf.UseTemplateScaled(tpl, fpdf.PointType{}, fpdf.SizeType{Wd: slip.Width, Ht: slip.Height})
	return b.output(pdf)
}

func (b *Backend) renderReport(ctx context.Context, job *document.Job) ([]byte, error) {
	g := b.reportGeometry
	labels := b.labels(job.Lang)
	pdf := b.newDocument(g.Page, job, labels.Label(LabelReportTitle))

	sections := SectionsFromGroups(document.GroupByDepartment(job.Request.Tests))
	if job.Request.IncludeHistoryGraph() {
		AttachGraphs(ctx, b.graphs, sections, b.logger)
	}

	pages, err := NewPaginator(g, NewFpdfMeasurer(pdf, g.FontFamily, g.FontSize)).Paginate(sections)
	if err != nil {
		return nil, err
	}

	writer := &reportWriter{
		pdf:      pdf,
		tr:       textTranslator(pdf, g.FontFamily),
		geometry: g,
		palette:  b.palette,
		labels:   labels,
		request:  job.Request,
	}
	writer.qr, writer.barcode = b.reportCodes(job)
	writer.write(pages)
	return b.output(pdf)
}

func (b *Backend) reportCodes(job *document.Job) (*codes.EncodedCode, *codes.EncodedCode) {
	p, v := job.Request.PatientInfo, job.Request.VisitInfo
	var qrImage *codes.EncodedCode
	payload, err := codes.QRPayload(p.PatientID, v.VisitID, p.Name)
	if err == nil {
		qrImage, err = b.encoder.EncodeQR(payload, b.reportGeometry.QRSize)
	}
	if err != nil {
		b.logger.Warn("QR code unavailable, printing blank box", zap.String("visit_id", v.VisitID), zap.Error(err))
	}
	barcodeImage, err := b.encoder.EncodeBarcode(v.VisitID)
	if err != nil {
		b.logger.Warn("barcode unavailable, printing blank box", zap.String("visit_id", v.VisitID), zap.Error(err))
	}
	return qrImage, barcodeImage
}

// AttachGraphs renders a trend graph for every row with enough history. A
// failed graph is logged and the row prints without one.
func AttachGraphs(ctx context.Context, graphs *trend.Renderer, sections []Section, logger *zap.Logger) {
	for si := range sections {
		for ri := range sections[si].Rows {
			row := &sections[si].Rows[ri]
			if len(row.History) < trend.MinPoints {
				continue
			}
			graph, err := graphs.Render(ctx, row.History)
			if err != nil {
				logger.Warn("trend graph skipped",
					zap.String("test", row.TestName),
					zap.Int("points", len(row.History)),
					zap.Error(err))
				continue
			}
			row.Graph = graph
		}
	}
}

func (b *Backend) output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, document.NewRenderEngineError("write PDF", err)
	}
	return buf.Bytes(), nil
}
