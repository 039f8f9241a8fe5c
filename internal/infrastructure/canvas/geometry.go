package canvas

import "github.com/labdocs/backend/internal/domain/document"

// Color is an RGB triple
type Color struct {
	R, G, B int
}

// Palette holds every color used when drawing.
type Palette struct {
	Text            Color
	Muted           Color
	Rule            Color
	HeaderFill      Color
	DepartmentFill  Color
	High            Color
	Low             Color
	CriticalHigh    Color
	CriticalLow     Color
	CriticalRowHigh Color
	CriticalRowLow  Color
}

// DefaultPalette returns the print palette.
func DefaultPalette() Palette {
	return Palette{
		Text:            Color{20, 20, 20},
		Muted:           Color{110, 110, 110},
		Rule:            Color{170, 170, 170},
		HeaderFill:      Color{232, 232, 232},
		DepartmentFill:  Color{214, 226, 240},
		High:            Color{200, 30, 30},
		Low:             Color{30, 70, 200},
		CriticalHigh:    Color{140, 0, 0},
		CriticalLow:     Color{0, 30, 130},
		CriticalRowHigh: Color{255, 232, 232},
		CriticalRowLow:  Color{232, 238, 255},
	}
}

// FlagColor returns the text color for a flag
func (p Palette) FlagColor(f document.Flag) Color {
	switch f.Normalize() {
	case document.FlagHigh:
		return p.High
	case document.FlagLow:
		return p.Low
	case document.FlagCriticalHigh:
		return p.CriticalHigh
	case document.FlagCriticalLow:
		return p.CriticalLow
	}
	return p.Text
}

// RowFill returns the background tint of critical rows and false otherwise.
func (p Palette) RowFill(f document.Flag) (Color, bool) {
	switch f.Normalize() {
	case document.FlagCriticalHigh:
		return p.CriticalRowHigh, true
	case document.FlagCriticalLow:
		return p.CriticalRowLow, true
	}
	return Color{}, false
}

// Margins in points
type Margins struct {
	Top, Right, Bottom, Left float64
}

// ReportGeometry is the page and table geometry of the results report. All
// values are points.
type ReportGeometry struct {
	Page    document.Size
	Margins Margins
	// FirstHeaderHeight is reserved on page one for the title, demographics
	// and codes.
	FirstHeaderHeight float64
	// HeaderHeight is reserved on continuation pages.
	HeaderHeight       float64
	FooterHeight       float64
	DepartmentHeight   float64
	ColumnHeaderHeight float64
	FontFamily         string
	FontSize           float64
	LineHeight         float64
	CellPadding        float64
	// ColumnRatios split the content width across Test Name, Result, Units,
	// Reference Range and Flag.
	ColumnRatios [5]float64
	GraphWidth   float64
	GraphHeight  float64
	QRSize       float64
}

// DefaultReportGeometry returns the A4 results report geometry.
func DefaultReportGeometry() ReportGeometry {
	return ReportGeometry{
		Page:               document.A4,
		Margins:            Margins{Top: 36, Right: 36, Bottom: 36, Left: 36},
		FirstHeaderHeight:  112,
		HeaderHeight:       30,
		FooterHeight:       20,
		DepartmentHeight:   18,
		ColumnHeaderHeight: 16,
		FontFamily:         FontFamily,
		FontSize:           9,
		LineHeight:         11,
		CellPadding:        3,
		ColumnRatios:       [5]float64{0.34, 0.16, 0.13, 0.25, 0.12},
		GraphWidth:         90,
		GraphHeight:        30,
		QRSize:             72,
	}
}

// ContentWidth is the page width inside the margins
func (g ReportGeometry) ContentWidth() float64 {
	return g.Page.Width - g.Margins.Left - g.Margins.Right
}

// ColumnWidths returns the absolute widths of the five table columns.
func (g ReportGeometry) ColumnWidths() [5]float64 {
	var out [5]float64
	var sum float64
	for _, r := range g.ColumnRatios {
		sum += r
	}
	for i, r := range g.ColumnRatios {
		out[i] = g.ContentWidth() * r / sum
	}
	return out
}

// BodyTop returns the y of the first table block on the given page (1-based).
func (g ReportGeometry) BodyTop(page int) float64 {
	if page == 1 {
		return g.Margins.Top + g.FirstHeaderHeight
	}
	return g.Margins.Top + g.HeaderHeight
}

// BodyBottom returns the y the table must not cross.
func (g ReportGeometry) BodyBottom() float64 {
	return g.Page.Height - g.Margins.Bottom - g.FooterHeight
}

// SlipGeometry is the internal layout of one work slip.
type SlipGeometry struct {
	Padding       float64
	FontFamily    string
	TitleSize     float64
	BodySize      float64
	LineHeight    float64
	QRSize        float64
	BarcodeHeight float64
	Gap           float64
}

// DefaultSlipGeometry returns the layout used on 70x99mm cards.
func DefaultSlipGeometry() SlipGeometry {
	return SlipGeometry{
		Padding:       8,
		FontFamily:    FontFamily,
		TitleSize:     9,
		BodySize:      7,
		LineHeight:    8.5,
		QRSize:        58,
		BarcodeHeight: 24,
		Gap:           4,
	}
}
