package canvas

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/codes"
)

// reportWriter draws a paginated results report onto an fpdf document.
type reportWriter struct {
	pdf      *fpdf.Fpdf
	tr       func(string) string
	geometry ReportGeometry
	palette  Palette
	labels   Labels
	request  *document.ReportRequest
	qr       *codes.EncodedCode
	barcode  *codes.EncodedCode
	images   int
}

func (w *reportWriter) write(pages []Page) {
	w.pdf.AliasNbPages("")
	for _, page := range pages {
		w.pdf.AddPage()
		if page.Number == 1 {
			w.firstHeader()
		} else {
			w.continuationHeader()
		}
		for _, b := range page.Blocks {
			switch b.Kind {
			case BlockDepartmentHeader:
				w.departmentHeader(b)
			case BlockColumnHeader:
				w.columnHeader(b)
			case BlockRow:
				w.row(b)
			}
		}
		if page.Number == 1 && len(page.Blocks) == 0 {
			w.noResults()
		}
		w.footer(page.Number)
	}
}

func (w *reportWriter) font(style string, size float64) {
	w.pdf.SetFont(w.geometry.FontFamily, style, size)
}

func (w *reportWriter) firstHeader() {
	g, pdf := w.geometry, w.pdf
	left, top := g.Margins.Left, g.Margins.Top
	width := g.ContentWidth() - g.QRSize - 8

	setText(pdf, w.palette.Text)
	w.font("B", 14)
	pdf.SetXY(left, top)
	pdf.CellFormat(width, 18, w.tr(w.labels.Label(LabelReportTitle)), "", 0, "L", false, 0, "")

	p, v := w.request.PatientInfo, w.request.VisitInfo
	fields := [][2]string{
		{LabelName, p.Name},
		{LabelVisitID, v.VisitID},
		{LabelPatientID, p.PatientID},
		{LabelCollected, v.CollectionDate.String()},
		{LabelAge, joinNonEmpty(" / ", p.Age.String(), p.Gender)},
		{LabelReported, v.ReportDate.String()},
	}
	colWidth := width / 2
	for i, f := range fields {
		x := left + float64(i%2)*colWidth
		y := top + 22 + float64(i/2)*12
		w.font("B", g.FontSize)
		label := w.tr(w.labels.Label(f[0]) + ": ")
		lw := pdf.GetStringWidth(label)
		pdf.SetXY(x, y)
		pdf.CellFormat(lw, 12, label, "", 0, "L", false, 0, "")
		w.font("", g.FontSize)
		pdf.CellFormat(colWidth-lw, 12, w.tr(f[1]), "", 0, "L", false, 0, "")
	}

	placeCode(pdf, "report-qr", w.qr, left+g.ContentWidth()-g.QRSize, top, g.QRSize, g.QRSize, w.palette.Rule)
	barcodeY := top + 22 + 3*12 + 6
	placeCode(pdf, "report-barcode", w.barcode, left, barcodeY, 170, 24, w.palette.Rule)
	w.font("", 7)
	pdf.SetXY(left, barcodeY+25)
	pdf.CellFormat(170, 9, w.tr(v.VisitID), "", 0, "C", false, 0, "")

	rule := top + g.FirstHeaderHeight - 4
	setDraw(pdf, w.palette.Rule)
	pdf.SetLineWidth(0.6)
	pdf.Line(left, rule, left+g.ContentWidth(), rule)
}

func (w *reportWriter) continuationHeader() {
	g, pdf := w.geometry, w.pdf
	p, v := w.request.PatientInfo, w.request.VisitInfo

	setText(pdf, w.palette.Text)
	w.font("B", g.FontSize)
	pdf.SetXY(g.Margins.Left, g.Margins.Top)
	text := fmt.Sprintf("%s  |  %s: %s  |  %s: %s", p.Name,
		w.labels.Label(LabelPatientID), p.PatientID, w.labels.Label(LabelVisitID), v.VisitID)
	pdf.CellFormat(g.ContentWidth(), 14, w.tr(text), "", 0, "L", false, 0, "")

	rule := g.Margins.Top + g.HeaderHeight - 8
	setDraw(pdf, w.palette.Rule)
	pdf.SetLineWidth(0.6)
	pdf.Line(g.Margins.Left, rule, g.Margins.Left+g.ContentWidth(), rule)
}

func (w *reportWriter) departmentHeader(b Block) {
	g, pdf := w.geometry, w.pdf
	title := b.Department
	if b.Continued {
		title = fmt.Sprintf("%s (%s)", b.Department, w.labels.Label(LabelContinued))
	}
	setFill(pdf, w.palette.DepartmentFill)
	setText(pdf, w.palette.Text)
	w.font("B", g.FontSize+1)
	pdf.SetXY(g.Margins.Left, b.Y)
	pdf.CellFormat(g.ContentWidth(), b.Height, w.tr(title), "", 0, "L", true, 0, "")
}

func (w *reportWriter) columnHeader(b Block) {
	g, pdf := w.geometry, w.pdf
	setFill(pdf, w.palette.HeaderFill)
	setText(pdf, w.palette.Text)
	w.font("B", g.FontSize-1)
	x := g.Margins.Left
	widths := g.ColumnWidths()
	for i, label := range columnLabels(w.labels) {
		pdf.SetXY(x, b.Y)
		pdf.CellFormat(widths[i], b.Height, w.tr(label), "", 0, "L", true, 0, "")
		x += widths[i]
	}
}

func (w *reportWriter) row(b Block) {
	g, pdf, row := w.geometry, w.pdf, b.Row
	widths := g.ColumnWidths()
	flag := row.Flag.Normalize()

	if fill, ok := w.palette.RowFill(flag); ok {
		setFill(pdf, fill)
		pdf.Rect(g.Margins.Left, b.Y, g.ContentWidth(), b.Height, "F")
	}

	x := g.Margins.Left
	for i, text := range RowCells(row.TestResultRow) {
		style, color := w.palette.cellStyle(flag, i, text)
		w.font(style, g.FontSize)
		setText(pdf, color)
		pdf.SetXY(x+g.CellPadding, b.Y+g.CellPadding)
		pdf.MultiCell(widths[i]-2*g.CellPadding, g.LineHeight, w.tr(text), "", "L", false)

		if i == 4 && flag.Direction() != 0 {
			gx := x + g.CellPadding + pdf.GetStringWidth(text) + 3
			w.glyph(gx, b.Y+g.CellPadding+(g.LineHeight-5)/2, flag)
		}
		x += widths[i]
	}

	if row.Graph != nil {
		w.images++
		name := fmt.Sprintf("trend-%d", w.images)
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(row.Graph.PNG))
		gy := b.Y + b.Height - g.GraphHeight - g.CellPadding
		pdf.ImageOptions(name, g.Margins.Left+g.CellPadding, gy, g.GraphWidth, g.GraphHeight, false, opts, 0, "")
	}

	setDraw(pdf, w.palette.Rule)
	pdf.SetLineWidth(0.2)
	pdf.Line(g.Margins.Left, b.Y+b.Height, g.Margins.Left+g.ContentWidth(), b.Y+b.Height)
	setText(pdf, w.palette.Text)
}

// glyph draws the up or down triangle next to the flag text.
func (w *reportWriter) glyph(x, y float64, flag document.Flag) {
	const size = 5.0
	c := w.palette.FlagColor(flag)
	setFill(w.pdf, c)
	var pts []fpdf.PointType
	if flag.Direction() > 0 {
		pts = []fpdf.PointType{{X: x, Y: y + size}, {X: x + size, Y: y + size}, {X: x + size/2, Y: y}}
	} else {
		pts = []fpdf.PointType{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size/2, Y: y + size}}
	}
	w.pdf.Polygon(pts, "F")
}

func (w *reportWriter) noResults() {
	g, pdf := w.geometry, w.pdf
	setText(pdf, w.palette.Muted)
	w.font("", g.FontSize)
	pdf.SetXY(g.Margins.Left, g.BodyTop(1))
	pdf.CellFormat(g.ContentWidth(), g.LineHeight*2, w.tr(w.labels.Label(LabelNoResults)), "", 0, "L", false, 0, "")
	setText(pdf, w.palette.Text)
}

func (w *reportWriter) footer(page int) {
	g, pdf := w.geometry, w.pdf
	y := g.Page.Height - g.Margins.Bottom - g.FooterHeight + 6
	setText(pdf, w.palette.Muted)
	w.font("", 7)
	pdf.SetXY(g.Margins.Left, y)
	left := fmt.Sprintf("%s: %s", w.labels.Label(LabelVisitID), w.request.VisitInfo.VisitID)
	pdf.CellFormat(g.ContentWidth()/2, 10, w.tr(left), "", 0, "L", false, 0, "")
	right := fmt.Sprintf("%s %d %s {nb}", w.labels.Label(LabelPage), page, w.labels.Label(LabelOf))
	pdf.CellFormat(g.ContentWidth()/2, 10, w.tr(right), "", 0, "R", false, 0, "")
	setText(pdf, w.palette.Text)
}

// cellStyle returns the font style and color of column i of a row. Every
// column but the test name is bold and flag colored on abnormal rows;
// placeholders stay muted.
func (p Palette) cellStyle(flag document.Flag, i int, text string) (string, Color) {
	style, color := "", p.Text
	if i > 0 && flag.IsAbnormal() {
		style, color = "B", p.FlagColor(flag)
	}
	if i > 0 && text == "-" {
		color = p.Muted
	}
	return style, color
}
