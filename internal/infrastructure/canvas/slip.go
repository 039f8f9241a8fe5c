package canvas

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/codes"
)

const checkboxSize = 5.0

// SlipContent is what one work slip shows.
type SlipContent struct {
	Heading string
	// Tag is printed opposite the heading: the department or "all".
	Tag     string
	Patient document.PatientInfo
	Visit   document.VisitInfo
	Rows    []document.TestResultRow
	// ShowDepartment appends each test's department, for master slips.
	ShowDepartment bool
	Labels         Labels
}

// SlipComposer draws a single slip once as an fpdf template so that it can
// be stamped onto a sheet any number of times.
type SlipComposer struct {
	size     document.Size
	geometry SlipGeometry
	palette  Palette
	encoder  *codes.Encoder
	logger   *zap.Logger
}

// NewSlipComposer creates a SlipComposer for slips of the given size.
func NewSlipComposer(size document.Size, geometry SlipGeometry, palette Palette, encoder *codes.Encoder, logger *zap.Logger) *SlipComposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if encoder == nil {
		encoder = codes.NewDefaultEncoder()
	}
	return &SlipComposer{
		size:     size,
		geometry: geometry,
		palette:  palette,
		encoder:  encoder,
		logger:   logger,
	}
}

type slipLine struct {
	text  string
	lines int
}

// slipFrame holds the precomputed vertical positions of one slip.
type slipFrame struct {
	ruleY       float64
	blockY      float64
	blockHeight float64
	barcodeY    float64
	captionY    float64
	rule2Y      float64
	headingY    float64
	listY       float64
	available   float64
}

// frame lays the slip out around a demographics block of the given height.
// The block is never shorter than the QR code or five lines.
func (c *SlipComposer) frame(demographics float64) slipFrame {
	g := c.geometry
	var f slipFrame
	f.ruleY = g.Padding + g.TitleSize + 4
	f.blockY = f.ruleY + g.Gap
	f.blockHeight = max(5*g.LineHeight, g.QRSize, demographics)
	f.barcodeY = f.blockY + f.blockHeight + g.Gap
	f.captionY = f.barcodeY + g.BarcodeHeight + 1
	f.rule2Y = f.captionY + g.LineHeight + 2
	f.headingY = f.rule2Y + g.Gap
	f.listY = f.headingY + g.LineHeight
	f.available = c.size.Height - g.Padding - f.listY
	return f
}

// Capacity returns how many single-line tests fit on one slip.
func (c *SlipComposer) Capacity() int {
	return int(c.frame(0).available / c.geometry.LineHeight)
}

// Compose measures the content, failing with an OVERFLOW error when any
// part of it does not fit, and returns the slip as a template of pdf.
func (c *SlipComposer) Compose(pdf *fpdf.Fpdf, content SlipContent) (fpdf.Template, error) {
	g := c.geometry
	labels := content.Labels
	if labels == nil {
		labels = DefaultLabels
	}
	tr := textTranslator(pdf, g.FontFamily)

	// fonts used inside the template must be known to the parent document
	pdf.SetFont(g.FontFamily, "B", g.BodySize)
	pdf.SetFont(g.FontFamily, "", g.BodySize)

	body := NewFpdfMeasurer(pdf, g.FontFamily, g.BodySize)

	if err := c.checkTitle(pdf, content); err != nil {
		return nil, err
	}
	demographics, height := c.layoutDemographics(body, content, labels)
	frame := c.frame(height)
	if frame.available < g.LineHeight {
		return nil, document.NewOverflowError(fmt.Sprintf(
			"patient and visit details need %.1fpt and leave no room for the test list", height))
	}
	inner := c.size.Width - 2*g.Padding
	if w := body.Width(content.Visit.VisitID, false); w > inner {
		return nil, document.NewOverflowError(fmt.Sprintf(
			"visit id needs %.1fpt but the slip is %.1fpt wide", w, inner))
	}

	textWidth := inner - checkboxSize - 3
	lines := make([]slipLine, 0, len(content.Rows))
	var used float64
	for _, row := range content.Rows {
		text := row.TestName
		if content.ShowDepartment && strings.TrimSpace(row.Department) != "" {
			text = fmt.Sprintf("%s (%s)", row.TestName, row.Department)
		}
		n := body.Lines(text, textWidth, false)
		lines = append(lines, slipLine{text: text, lines: n})
		used += float64(n) * g.LineHeight
	}
	if used > frame.available+0.01 {
		return nil, document.NewOverflowError(fmt.Sprintf(
			"%d tests need %.1fpt but the slip holds %.1fpt; split the selection across slips",
			len(content.Rows), used, frame.available))
	}

	qrImage, barcodeImage := c.encodeCodes(content)

	tpl := pdf.CreateTemplateCustom(fpdf.PointType{}, fpdf.SizeType{Wd: c.size.Width, Ht: c.size.Height}, func(t *fpdf.Tpl) {
		c.draw(&t.Fpdf, tr, frame, content, labels, demographics, lines, qrImage, barcodeImage)
	})
	if pdf.Err() {
		return nil, document.NewRenderEngineError("compose slip", pdf.Error())
	}
	return tpl, nil
}

// checkTitle fails when the heading and the tag cannot share the title row.
func (c *SlipComposer) checkTitle(pdf *fpdf.Fpdf, content SlipContent) error {
	g := c.geometry
	inner := c.size.Width - 2*g.Padding
	heading := NewFpdfMeasurer(pdf, g.FontFamily, g.TitleSize).Width(content.Heading, true)
	tag := NewFpdfMeasurer(pdf, g.FontFamily, g.BodySize).Width(content.Tag, false)
	if need := heading + g.Gap + tag; need > inner {
		return document.NewOverflowError(fmt.Sprintf(
			"slip title %q and tag %q need %.1fpt but the slip is %.1fpt wide",
			content.Heading, content.Tag, need, inner))
	}
	return nil
}

// layoutDemographics wraps the patient and visit lines beside the QR code
// and returns them with their total height.
func (c *SlipComposer) layoutDemographics(m *FpdfMeasurer, content SlipContent, labels Labels) ([]slipLine, float64) {
	texts := []string{
		content.Patient.Name,
		labels.Label(LabelPatientID) + ": " + content.Patient.PatientID,
		labels.Label(LabelAge) + "/" + labels.Label(LabelGender) + ": " + joinNonEmpty(" / ", content.Patient.Age.String(), content.Patient.Gender),
		labels.Label(LabelVisitID) + ": " + content.Visit.VisitID,
		labels.Label(LabelCollected) + ": " + content.Visit.CollectionDate.String(),
	}

	width := c.demographicsWidth()
	out := make([]slipLine, len(texts))
	var height float64
	for i, text := range texts {
		n := m.Lines(text, width, i == 0)
		out[i] = slipLine{text: text, lines: n}
		height += float64(n) * c.geometry.LineHeight
	}
	return out, height
}

func (c *SlipComposer) demographicsWidth() float64 {
	g := c.geometry
	return c.size.Width - 2*g.Padding - g.QRSize - g.Gap
}

func (c *SlipComposer) encodeCodes(content SlipContent) (*codes.EncodedCode, *codes.EncodedCode) {
	var qrImage, barcodeImage *codes.EncodedCode

	payload, err := codes.QRPayload(content.Patient.PatientID, content.Visit.VisitID, content.Patient.Name)
	if err == nil {
		qrImage, err = c.encoder.EncodeQR(payload, c.geometry.QRSize)
	}
	if err != nil {
		c.logger.Warn("QR code unavailable, printing blank box",
			zap.String("visit_id", content.Visit.VisitID),
			zap.Error(err))
	}

	barcodeImage, err = c.encoder.EncodeBarcode(content.Visit.VisitID)
	if err != nil {
		c.logger.Warn("barcode unavailable, printing blank box",
			zap.String("visit_id", content.Visit.VisitID),
			zap.Error(err))
	}
	return qrImage, barcodeImage
}

func (c *SlipComposer) draw(
	pdf *fpdf.Fpdf,
	tr func(string) string,
	frame slipFrame,
	content SlipContent,
	labels Labels,
	demographics []slipLine,
	lines []slipLine,
	qrImage, barcodeImage *codes.EncodedCode,
) {
	g := c.geometry
	p := c.palette
	w, h := c.size.Width, c.size.Height
	inner := w - 2*g.Padding

	pdf.SetLineWidth(0.5)
	setDraw(pdf, p.Rule)
	pdf.Rect(0.5, 0.5, w-1, h-1, "D")

	// title row
	setText(pdf, p.Text)
	pdf.SetFont(g.FontFamily, "B", g.TitleSize)
	pdf.SetXY(g.Padding, g.Padding)
	pdf.CellFormat(inner, g.TitleSize, tr(content.Heading), "", 0, "L", false, 0, "")
	pdf.SetFont(g.FontFamily, "", g.BodySize)
	pdf.SetXY(g.Padding, g.Padding)
	pdf.CellFormat(inner, g.TitleSize, tr(content.Tag), "", 0, "R", false, 0, "")

	pdf.SetLineWidth(0.3)
	pdf.Line(g.Padding, frame.ruleY, w-g.Padding, frame.ruleY)

	// demographics
	y := frame.blockY
	for i, line := range demographics {
		style := ""
		if i == 0 {
			style = "B"
		}
		pdf.SetFont(g.FontFamily, style, g.BodySize)
		pdf.SetXY(g.Padding, y)
		pdf.MultiCell(c.demographicsWidth(), g.LineHeight, tr(line.text), "", "L", false)
		y += float64(line.lines) * g.LineHeight
	}

	qrX := w - g.Padding - g.QRSize
	placeCode(pdf, "slip-qr", qrImage, qrX, frame.blockY, g.QRSize, g.QRSize, p.Rule)
	placeCode(pdf, "slip-barcode", barcodeImage, g.Padding, frame.barcodeY, inner, g.BarcodeHeight, p.Rule)

	pdf.SetFont(g.FontFamily, "", g.BodySize)
	pdf.SetXY(g.Padding, frame.captionY)
	pdf.CellFormat(inner, g.LineHeight, tr(content.Visit.VisitID), "", 0, "C", false, 0, "")

	pdf.Line(g.Padding, frame.rule2Y, w-g.Padding, frame.rule2Y)

	// test list
	pdf.SetFont(g.FontFamily, "B", g.BodySize)
	pdf.SetXY(g.Padding, frame.headingY)
	pdf.CellFormat(inner, g.LineHeight, tr(fmt.Sprintf("%s (%d)", labels.Label(LabelSlipTests), len(lines))), "", 0, "L", false, 0, "")

	pdf.SetFont(g.FontFamily, "", g.BodySize)
	if len(lines) == 0 {
		setText(pdf, p.Muted)
		pdf.SetXY(g.Padding, frame.listY)
		pdf.CellFormat(inner, g.LineHeight, tr(labels.Label(LabelSlipNoTests)), "", 0, "L", false, 0, "")
		setText(pdf, p.Text)
		return
	}

	y = frame.listY
	textX := g.Padding + checkboxSize + 3
	for _, line := range lines {
		pdf.Rect(g.Padding, y+(g.LineHeight-checkboxSize)/2, checkboxSize, checkboxSize, "D")
		pdf.SetXY(textX, y)
		pdf.MultiCell(w-g.Padding-textX, g.LineHeight, tr(line.text), "", "L", false)
		y += float64(line.lines) * g.LineHeight
	}
}

// placeCode draws a code raster, or an empty box when encoding failed.
func placeCode(pdf *fpdf.Fpdf, name string, code *codes.EncodedCode, x, y, w, h float64, box Color) {
	if code == nil {
		setDraw(pdf, box)
		pdf.Rect(x, y, w, h, "D")
		return
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(code.PNG))
	pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func setText(pdf *fpdf.Fpdf, c Color) { pdf.SetTextColor(c.R, c.G, c.B) }

func setDraw(pdf *fpdf.Fpdf, c Color) { pdf.SetDrawColor(c.R, c.G, c.B) }

func setFill(pdf *fpdf.Fpdf, c Color) { pdf.SetFillColor(c.R, c.G, c.B) }
