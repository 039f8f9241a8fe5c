package document

import (
	"bytes"
	"regexp"
	"time"
)

var pdfMagic = []byte("%PDF-")

// RenderedDocument is the output of one generation request.
type RenderedDocument struct {
	Data         []byte
	PageCount    int
	DocumentType DocumentType
	Backend      BackendKind
	GeneratedAt  time.Time
	RequestID    string
}

// Size returns the byte length of the PDF
func (d *RenderedDocument) Size() int {
	return len(d.Data)
}

// ContentType returns the MIME type of the document
func (d *RenderedDocument) ContentType() string {
	return "application/pdf"
}

// ValidatePDF checks that data is non-empty and starts with the PDF magic
// header.
func ValidatePDF(data []byte) error {
	if len(data) == 0 {
		return NewDocumentError(ErrCodeInvalidOutput, "generated PDF is empty", nil)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return NewDocumentError(ErrCodeInvalidOutput, "generated output is not a PDF", nil)
	}
	return nil
}

var pageObjectPattern = regexp.MustCompile(`/Type\s*/Page([^s]|$)`)

// CountPages estimates the number of pages by counting page objects. It
// returns at least 1 for any non-empty PDF.
func CountPages(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	return max(len(pageObjectPattern.FindAllIndex(data, -1)), 1)
}
