package printing

import (
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/canvas"
	"github.com/labdocs/backend/internal/infrastructure/codes"
	"github.com/labdocs/backend/internal/infrastructure/trend"
)

// HTMLBackend renders documents by compiling an HTML template and printing
// it with a headless engine. Pages are laid out up front with the shared
// paginator so department headers and continuation markers match the
// canvas backend.
type HTMLBackend struct {
	store    *TemplateStore
	engine   *TemplateEngine
	renderer PDFRenderer
	locales  *LocaleRegistry
	encoder  *codes.Encoder
	graphs   *trend.Renderer
	geometry canvas.ReportGeometry
	palette  canvas.Palette
	timeout  time.Duration
	logger   *zap.Logger
}

// HTMLBackendConfig wires the HTML backend
type HTMLBackendConfig struct {
	Store    *TemplateStore
	Engine   *TemplateEngine
	Renderer PDFRenderer
	Locales  *LocaleRegistry
	Encoder  *codes.Encoder
	Graphs   *trend.Renderer
	// Geometry and Palette default to the canvas defaults
	Geometry *canvas.ReportGeometry
	Palette  *canvas.Palette
	// Timeout bounds one headless render; zero uses the renderer default
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewHTMLBackend creates an HTMLBackend. Store, Renderer and Locales are
// required.
func NewHTMLBackend(cfg HTMLBackendConfig) (*HTMLBackend, error) {
	if cfg.Store == nil || cfg.Renderer == nil || cfg.Locales == nil {
		return nil, fmt.Errorf("html backend requires a template store, a PDF renderer and locales")
	}
	b := &HTMLBackend{
		store:    cfg.Store,
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		locales:  cfg.Locales,
		encoder:  cfg.Encoder,
		graphs:   cfg.Graphs,
		geometry: canvas.DefaultReportGeometry(),
		palette:  canvas.DefaultPalette(),
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
	if b.engine == nil {
		b.engine = NewTemplateEngine()
	}
	if b.encoder == nil {
		b.encoder = codes.NewDefaultEncoder()
	}
	if b.graphs == nil {
		b.graphs = trend.NewRenderer(trend.DefaultConfig())
	}
	if cfg.Geometry != nil {
		b.geometry = *cfg.Geometry
	}
	if cfg.Palette != nil {
		b.palette = *cfg.Palette
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b, nil
}

// Kind implements the document backend contract
func (b *HTMLBackend) Kind() document.BackendKind {
	return document.BackendHTML
}

// CompiledDocument is the HTML produced for one job
type CompiledDocument struct {
	HTML      string
	Template  *StaticTemplate
	Title     string
	PageCount int
}

// Compile assembles the view model and compiles the template for job. It
// does not start a headless engine.
func (b *HTMLBackend) Compile(ctx context.Context, job *document.Job) (*CompiledDocument, error) {
	if job == nil || job.Request == nil {
		return nil, document.NewInvalidRequestError("document request is empty", nil)
	}
	kind := job.Type.Kind
	if kind != document.KindResultsReport && kind != document.KindAuditSheet {
		return nil, document.NewUnsupportedDocumentTypeError(job.Type.String())
	}

	tpl, err := b.store.GetByKind(kind)
	if err != nil {
		return nil, err
	}

	bundle := b.locales.Resolve(job.Lang)
	view, err := b.buildView(ctx, job, bundle)
	if err != nil {
		return nil, err
	}

	result, err := b.engine.Render(ctx, &RenderTemplateRequest{
		Template: tpl,
		Data:     view,
		Labels:   bundle,
	})
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Template compiled",
		zap.String("request_id", job.RequestID),
		zap.String("template", tpl.Name),
		zap.String("lang", bundle.Lang()),
		zap.Int("pages", view.PageCount),
		zap.Duration("duration", result.RenderDuration),
	)

	return &CompiledDocument{
		HTML:      result.HTML,
		Template:  tpl,
		Title:     view.Title,
		PageCount: view.PageCount,
	}, nil
}

// Render compiles job and prints it to PDF.
func (b *HTMLBackend) Render(ctx context.Context, job *document.Job) ([]byte, error) {
	compiled, err := b.Compile(ctx, job)
	if err != nil {
		return nil, err
	}

	result, err := b.renderer.Render(ctx, &RenderRequest{
		RequestID:    job.RequestID,
		HTML:         compiled.HTML,
		PageWidthMM:  compiled.Template.PageWidthMM,
		PageHeightMM: compiled.Template.PageHeightMM,
		Margins:      compiled.Template.Margins,
		Title:        compiled.Title,
		Timeout:      b.timeout,
	})
	if err != nil {
		return nil, err
	}

	printed := result.PageCount
	if printed == 0 {
		printed = document.CountPages(result.PDFData)
	}
	if printed > compiled.PageCount {
		b.logger.Warn("Headless engine printed more pages than were laid out",
			zap.String("request_id", job.RequestID),
			zap.Int("laid_out", compiled.PageCount),
			zap.Int("printed", printed),
		)
		return nil, document.NewOverflowError(fmt.Sprintf(
			"%d pages were laid out but %d were printed; page content did not fit",
			compiled.PageCount, printed))
	}
	return result.PDFData, nil
}

// Cancel terminates the headless render of an in-flight request
func (b *HTMLBackend) Cancel(requestID string) bool {
	return b.renderer.Cancel(requestID)
}

// =============================================================================
// View model
// =============================================================================

// ReportView is the data bound to the document templates
type ReportView struct {
	Lang          string
	Title         string
	DocumentType  string
	Patient       document.PatientInfo
	Visit         document.VisitInfo
	QRCode        template.URL
	Barcode       template.URL
	Pages         []PageView
	PageCount     int
	TotalTests    int
	AbnormalCount int
	Departments   []string
	// Style carries page geometry and palette as CSS custom properties
	Style template.CSS
}

// PageView is one pre-paginated page
type PageView struct {
	Number   int
	First    bool
	Last     bool
	Sections []SectionView
}

// SectionView is the part of a department that falls on one page
type SectionView struct {
	Department string
	Continued  bool
	Rows       []RowView
}

// RowView is one printed result line
type RowView struct {
	TestName       string
	Department     string
	Result         string
	Units          string
	ReferenceRange string
	Flag           document.Flag
	FlagCode       string
	Glyph          string
	Abnormal       bool
	Critical       bool
	Graph          template.URL
	Height         float64
}

func (b *HTMLBackend) buildView(ctx context.Context, job *document.Job, bundle *Bundle) (*ReportView, error) {
	req := job.Request
	groups := document.GroupByDepartment(req.Tests)
	sections := canvas.SectionsFromGroups(groups)
	if req.IncludeHistoryGraph() {
		canvas.AttachGraphs(ctx, b.graphs, sections, b.logger)
	}

	paginator := canvas.NewPaginator(b.geometry, canvas.NewDocumentMeasurer(b.geometry.FontSize))
	pages, err := paginator.Paginate(sections)
	if err != nil {
		return nil, err
	}

	titleKey := canvas.LabelReportTitle
	if job.Type.Kind == document.KindAuditSheet {
		titleKey = "audit.title"
	}

	view := &ReportView{
		Lang:         bundle.Lang(),
		Title:        bundle.Label(titleKey),
		DocumentType: job.Type.String(),
		Patient:      req.PatientInfo,
		Visit:        req.VisitInfo,
		PageCount:    len(pages),
		TotalTests:   len(req.Tests),
		Style:        b.styleSheet(),
	}
	for _, g := range groups {
		view.Departments = append(view.Departments, g.Name)
	}
	for _, row := range req.Tests {
		if row.Flag.IsAbnormal() {
			view.AbnormalCount++
		}
	}
	view.QRCode, view.Barcode = b.codes(req)

	for i, page := range pages {
		pv := PageView{Number: page.Number, First: i == 0, Last: i == len(pages)-1}
		for _, block := range page.Blocks {
			switch block.Kind {
			case canvas.BlockDepartmentHeader:
				pv.Sections = append(pv.Sections, SectionView{Department: block.Department, Continued: block.Continued})
			case canvas.BlockRow:
				if len(pv.Sections) == 0 {
					pv.Sections = append(pv.Sections, SectionView{Department: block.Department, Continued: true})
				}
				last := &pv.Sections[len(pv.Sections)-1]
				last.Rows = append(last.Rows, newRowView(block))
			}
		}
		view.Pages = append(view.Pages, pv)
	}
	return view, nil
}

func newRowView(block canvas.Block) RowView {
	row := block.Row
	cells := canvas.RowCells(row.TestResultRow)
	flag := row.Flag.Normalize()
	rv := RowView{
		TestName:       cells[0],
		Department:     block.Department,
		Result:         cells[1],
		Units:          cells[2],
		ReferenceRange: cells[3],
		Flag:           flag,
		FlagCode:       cells[4],
		Glyph:          flag.Glyph(),
		Abnormal:       flag.IsAbnormal(),
		Critical:       flag.IsCritical(),
		Height:         block.Height,
	}
	if row.Graph != nil {
		rv.Graph = template.URL(row.Graph.DataURI())
	}
	return rv
}

// codes encodes the report QR and barcode. Failures leave the URL empty so
// the template prints a blank box.
func (b *HTMLBackend) codes(req *document.ReportRequest) (template.URL, template.URL) {
	p, v := req.PatientInfo, req.VisitInfo
	var qrURL, barcodeURL template.URL

	payload, err := codes.QRPayload(p.PatientID, v.VisitID, p.Name)
	if err == nil {
		var qr *codes.EncodedCode
		if qr, err = b.encoder.EncodeQR(payload, b.geometry.QRSize); err == nil {
			qrURL = template.URL(qr.DataURI())
		}
	}
	if err != nil {
		b.logger.Warn("QR code unavailable, printing blank box", zap.String("visit_id", v.VisitID), zap.Error(err))
	}

	barcode, err := b.encoder.EncodeBarcode(v.VisitID)
	if err != nil {
		b.logger.Warn("barcode unavailable, printing blank box", zap.String("visit_id", v.VisitID), zap.Error(err))
	} else {
		barcodeURL = template.URL(barcode.DataURI())
	}
	return qrURL, barcodeURL
}

// fontFaces embeds the fonts the paginator measures with, so the headless
// engine wraps text where the layout expects.
var fontFaces = sync.OnceValue(func() string {
	var sb strings.Builder
	faces := []struct {
		weight string
		data   []byte
	}{
		{"normal", canvas.FontRegular()},
		{"bold", canvas.FontBold()},
	}
	for _, f := range faces {
		fmt.Fprintf(&sb, `@font-face{font-family:"%s";font-weight:%s;src:url(data:font/ttf;base64,%s) format("truetype");}`,
			canvas.FontFamily, f.weight, base64.StdEncoding.EncodeToString(f.data))
	}
	return sb.String()
})

// styleSheet exposes fonts, geometry and palette to the templates so the
// CSS boxes have the heights the paginator assumed.
func (b *HTMLBackend) styleSheet() template.CSS {
	g, p := b.geometry, b.palette
	widths := g.ColumnWidths()

	vars := []struct {
		name  string
		value string
	}{
		{"page-width", pt(g.Page.Width)},
		{"page-height", pt(g.Page.Height)},
		{"margin-top", pt(g.Margins.Top)},
		{"margin-right", pt(g.Margins.Right)},
		{"margin-bottom", pt(g.Margins.Bottom)},
		{"margin-left", pt(g.Margins.Left)},
		{"first-header-height", pt(g.FirstHeaderHeight)},
		{"header-height", pt(g.HeaderHeight)},
		{"footer-height", pt(g.FooterHeight)},
		{"department-height", pt(g.DepartmentHeight)},
		{"column-header-height", pt(g.ColumnHeaderHeight)},
		{"font-size", pt(g.FontSize)},
		{"line-height", pt(g.LineHeight)},
		{"cell-padding", pt(g.CellPadding)},
		{"col-test", pt(widths[0])},
		{"col-result", pt(widths[1])},
		{"col-units", pt(widths[2])},
		{"col-range", pt(widths[3])},
		{"col-flag", pt(widths[4])},
		{"graph-width", pt(g.GraphWidth)},
		{"graph-height", pt(g.GraphHeight)},
		{"qr-size", pt(g.QRSize)},
		{"color-text", hex(p.Text)},
		{"color-muted", hex(p.Muted)},
		{"color-rule", hex(p.Rule)},
		{"color-header", hex(p.HeaderFill)},
		{"color-department", hex(p.DepartmentFill)},
		{"color-high", hex(p.High)},
		{"color-low", hex(p.Low)},
		{"color-critical-high", hex(p.CriticalHigh)},
		{"color-critical-low", hex(p.CriticalLow)},
		{"row-critical-high", hex(p.CriticalRowHigh)},
		{"row-critical-low", hex(p.CriticalRowLow)},
	}

	var sb strings.Builder
	sb.WriteString(fontFaces())
	sb.WriteString(":root{")
	for _, v := range vars {
		fmt.Fprintf(&sb, "--%s:%s;", v.name, v.value)
	}
	sb.WriteString("}")
	return template.CSS(sb.String())
}

func pt(v float64) string {
	return fmt.Sprintf("%.2fpt", v)
}

func hex(c canvas.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
