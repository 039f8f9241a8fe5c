package canvas

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labdocs/backend/internal/domain/document"
)

func newTestPDF(size document.Size) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	RegisterFonts(pdf)
	return pdf
}

// pdfText encodes s the way fpdf writes UTF-8 text into a content stream.
func pdfText(s string) string {
	var b strings.Builder
	for _, u := range utf16.Encode([]rune(s)) {
		b.WriteByte(byte(u >> 8))
		b.WriteByte(byte(u))
	}
	return strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`, "\r", `\r`).Replace(b.String())
}

func slipRows(n int) []document.TestResultRow {
	rows := make([]document.TestResultRow, n)
	for i := range rows {
		rows[i] = document.TestResultRow{TestName: fmt.Sprintf("T%02d", i), Department: "Chemistry"}
	}
	return rows
}

func TestSlipComposer_Capacity(t *testing.T) {
	c := NewSlipComposer(document.SlipCard, DefaultSlipGeometry(), DefaultPalette(), nil, nil)
	capacity := c.Capacity()
	assert.GreaterOrEqual(t, capacity, 10)

	content := SlipContent{
		Heading: "Work Slip",
		Patient: document.PatientInfo{Name: "John Doe", PatientID: "P001"},
		Visit:   document.VisitInfo{VisitID: "V2024001"},
	}

	content.Rows = slipRows(capacity)
	_, err := c.Compose(newTestPDF(document.A4), content)
	assert.NoError(t, err)

	content.Rows = slipRows(capacity + 1)
	_, err = c.Compose(newTestPDF(document.A4), content)
	assert.ErrorIs(t, err, document.ErrOverflow)
}

func TestSlipComposer_EmptyDepartment(t *testing.T) {
	c := NewSlipComposer(document.SlipCard, DefaultSlipGeometry(), DefaultPalette(), nil, nil)
	pdf := newTestPDF(document.A4)

	tpl, err := c.Compose(pdf, SlipContent{
		Heading: "Work Slip",
		Tag:     "Serology",
		Patient: document.PatientInfo{Name: "John Doe", PatientID: "P001"},
		Visit:   document.VisitInfo{VisitID: "V2024001"},
	})
	require.NoError(t, err)
	require.NotNil(t, tpl)
	_, size := tpl.Size()
	assert.InDelta(t, document.SlipCard.Width, size.Wd, 1e-9)
}

func TestSlipComposer_BadCodesDegrade(t *testing.T) {
	c := NewSlipComposer(document.SlipCard, DefaultSlipGeometry(), DefaultPalette(), nil, nil)

	// non-ASCII visit ids cannot be Code 128 encoded; the slip still renders
	tpl, err := c.Compose(newTestPDF(document.A4), SlipContent{
		Heading: "Work Slip",
		Patient: document.PatientInfo{Name: "Zoë", PatientID: "P-ü"},
		Visit:   document.VisitInfo{VisitID: "V-ñ"},
		Rows:    slipRows(2),
	})
	require.NoError(t, err)
	assert.NotNil(t, tpl)
}

func demoContent(name, tag string) SlipContent {
	return SlipContent{
		Heading: "Work Slip",
		Tag:     tag,
		Patient: document.PatientInfo{Name: name, PatientID: "P001", Age: "41", Gender: "M"},
		Visit:   document.VisitInfo{VisitID: "V2024001", CollectionDate: "2024-05-01"},
		Rows:    slipRows(3),
	}
}

func TestSlipComposer_LongNameWraps(t *testing.T) {
	c := NewSlipComposer(document.SlipCard, DefaultSlipGeometry(), DefaultPalette(), nil, nil)
	pdf := newTestPDF(document.A4)
	name := "Maximiliano Alejandro Fernandez-Rodriguez de la Cruz Villanueva"

	m := NewFpdfMeasurer(pdf, FontFamily, c.geometry.BodySize)
	require.Greater(t, m.Width(name, true), c.demographicsWidth(), "name is wider than one line")

	content := demoContent(name, "all")
	lines, height := c.layoutDemographics(m, content, DefaultLabels)
	assert.Greater(t, lines[0].lines, 1)
	assert.Greater(t, c.frame(height).barcodeY, c.frame(0).barcodeY, "barcode moves below the wrapped details")

	_, err := c.Compose(pdf, content)
	assert.NoError(t, err)
}

func TestSlipComposer_DemographicsOverflow(t *testing.T) {
	c := NewSlipComposer(document.SlipCard, DefaultSlipGeometry(), DefaultPalette(), nil, nil)
	name := strings.Repeat("Wolfeschlegelsteinhausen ", 30)

	_, err := c.Compose(newTestPDF(document.A4), demoContent(name, "all"))
	require.ErrorIs(t, err, document.ErrOverflow)
	assert.Contains(t, err.Error(), "patient and visit details")
}

func TestSlipComposer_TitleOverflow(t *testing.T) {
	c := NewSlipComposer(document.SlipCard, DefaultSlipGeometry(), DefaultPalette(), nil, nil)

	_, err := c.Compose(newTestPDF(document.A4), demoContent("John Doe", "Clinical Microbiology and Molecular Diagnostics"))
	require.ErrorIs(t, err, document.ErrOverflow)
	assert.Contains(t, err.Error(), "slip title")
}

func TestSlipComposer_VisitIDOverflow(t *testing.T) {
	c := NewSlipComposer(document.SlipCard, DefaultSlipGeometry(), DefaultPalette(), nil, nil)
	content := demoContent("John Doe", "all")
	content.Visit.VisitID = strings.Repeat("V2024001", 12)

	_, err := c.Compose(newTestPDF(document.A4), content)
	assert.ErrorIs(t, err, document.ErrOverflow)
}

func TestJoinNonEmpty(t *testing.T) {
	assert.Equal(t, "34 / F", joinNonEmpty(" / ", "34", "F"))
	assert.Equal(t, "F", joinNonEmpty(" / ", "", "F"))
	assert.Equal(t, "", joinNonEmpty(" / ", " ", ""))
}
