package canvas

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/labdocs/backend/internal/domain/document"
)

// FontFamily is the UTF-8 sans-serif family embedded in every canvas
// document. It covers Latin, Greek and Cyrillic scripts.
const FontFamily = "GoSans"

var (
	coverageOnce sync.Once
	coverage     *sfnt.Font
	coverageErr  error
)

// RegisterFonts embeds the regular and bold faces of FontFamily in pdf.
func RegisterFonts(pdf *fpdf.Fpdf) {
	pdf.AddUTF8FontFromBytes(FontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(FontFamily, "B", gobold.TTF)
}

// FontRegular returns the TrueType data of the regular face.
func FontRegular() []byte { return goregular.TTF }

// FontBold returns the TrueType data of the bold face.
func FontBold() []byte { return gobold.TTF }

// textTranslator returns the identity for FontFamily and the cp1252
// translator core fonts need.
func textTranslator(pdf *fpdf.Fpdf, family string) func(string) string {
	if strings.EqualFold(family, FontFamily) {
		return func(s string) string { return s }
	}
	return pdf.UnicodeTranslatorFromDescriptor("")
}

// NewDocumentMeasurer measures text in FontFamily on a scratch document,
// for layouts that are printed by another engine with the same font.
func NewDocumentMeasurer(size float64) *FpdfMeasurer {
	pdf := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: fpdf.SizeType{Wd: document.A4.Width, Ht: document.A4.Height}})
	RegisterFonts(pdf)
	pdf.SetCellMargin(0)
	return NewFpdfMeasurer(pdf, FontFamily, size)
}

// CheckPrintable returns an ENCODING error naming field when text holds a
// character FontFamily has no glyph for. Control characters are ignored.
func CheckPrintable(field, text string) error {
	coverageOnce.Do(func() {
		coverage, coverageErr = sfnt.Parse(goregular.TTF)
	})
	if coverageErr != nil {
		return document.NewEncodingError("load font coverage", coverageErr)
	}

	var buf sfnt.Buffer
	for _, r := range text {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			continue
		}
		idx, err := coverage.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			return document.NewEncodingError(
				fmt.Sprintf("%s contains %q (U+%04X) which the document font cannot print", field, r, r), err)
		}
	}
	return nil
}

// checkRequestPrintable checks every request field the canvas backend
// prints.
func checkRequestPrintable(req *document.ReportRequest, department string) error {
	p, v := req.PatientInfo, req.VisitInfo
	fields := []struct {
		name, text string
	}{
		{"patientInfo.name", p.Name},
		{"patientInfo.patientId", p.PatientID},
		{"patientInfo.age", p.Age.String()},
		{"patientInfo.gender", p.Gender},
		{"visitInfo.visitId", v.VisitID},
		{"visitInfo.collectionDate", v.CollectionDate.String()},
		{"visitInfo.reportDate", v.ReportDate.String()},
		{"department", department},
	}
	for _, f := range fields {
		if err := CheckPrintable(f.name, f.text); err != nil {
			return err
		}
	}
	for i, row := range req.Tests {
		for j, cell := range RowCells(row) {
			if err := CheckPrintable(fmt.Sprintf("tests[%d].%s", i, cellFields[j]), cell); err != nil {
				return err
			}
		}
		if err := CheckPrintable(fmt.Sprintf("tests[%d].department", i), row.Department); err != nil {
			return err
		}
	}
	return nil
}

var cellFields = [5]string{"testName", "result", "units", "referenceRange", "flag"}
