package canvas

import "github.com/go-pdf/fpdf"

// Measurer reports how many lines a text needs at a given width. The
// pagination engine only depends on this, so each backend supplies the
// measurement that matches its own text engine.
type Measurer interface {
	Lines(text string, width float64, bold bool) int
}

// FpdfMeasurer measures with fpdf's own line splitting and font metrics.
type FpdfMeasurer struct {
	pdf    *fpdf.Fpdf
	family string
	size   float64
	tr     func(string) string
}

// NewFpdfMeasurer creates a measurer for a font registered on pdf.
func NewFpdfMeasurer(pdf *fpdf.Fpdf, family string, size float64) *FpdfMeasurer {
	return &FpdfMeasurer{
		pdf:    pdf,
		family: family,
		size:   size,
		tr:     textTranslator(pdf, family),
	}
}

// Lines implements Measurer. The font of the underlying document is left
// set to the measured style.
func (m *FpdfMeasurer) Lines(text string, width float64, bold bool) int {
	if text == "" || width <= 0 {
		return 1
	}
	style := ""
	if bold {
		style = "B"
	}
	m.pdf.SetFont(m.family, style, m.size)
	return max(len(m.pdf.SplitText(m.tr(text), width)), 1)
}

// Width returns the advance of text on a single line.
func (m *FpdfMeasurer) Width(text string, bold bool) float64 {
	style := ""
	if bold {
		style = "B"
	}
	m.pdf.SetFont(m.family, style, m.size)
	return m.pdf.GetStringWidth(m.tr(text))
}
