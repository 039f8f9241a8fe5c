package document

import (
	"errors"
	"fmt"
)

// Error codes for document generation failures
const (
	ErrCodeTemplateMissing         = "TEMPLATE_MISSING"
	ErrCodeRenderEngine            = "RENDER_ENGINE"
	ErrCodeRenderTimeout           = "RENDER_TIMEOUT"
	ErrCodeEncoding                = "ENCODING"
	ErrCodeUnsupportedDocumentType = "UNSUPPORTED_DOCUMENT_TYPE"
	ErrCodeOverflow                = "OVERFLOW"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeInvalidOutput           = "INVALID_OUTPUT"
	ErrCodeInvalidState            = "INVALID_STATE"
)

// DocumentError is the typed error returned by every generation stage.
// Two DocumentErrors match under errors.Is when their codes are equal, so
// callers can test against the sentinels below.
type DocumentError struct {
	Code    string
	Message string
	Cause   error
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// Is matches any DocumentError carrying the same code.
func (e *DocumentError) Is(target error) bool {
	var t *DocumentError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrTemplateMissing         = &DocumentError{Code: ErrCodeTemplateMissing, Message: "template missing"}
	ErrRenderEngine            = &DocumentError{Code: ErrCodeRenderEngine, Message: "render engine failure"}
	ErrRenderTimeout           = &DocumentError{Code: ErrCodeRenderTimeout, Message: "render timed out"}
	ErrEncoding                = &DocumentError{Code: ErrCodeEncoding, Message: "encoding failed"}
	ErrUnsupportedDocumentType = &DocumentError{Code: ErrCodeUnsupportedDocumentType, Message: "unsupported document type"}
	ErrOverflow                = &DocumentError{Code: ErrCodeOverflow, Message: "content overflow"}
	ErrInvalidRequest          = &DocumentError{Code: ErrCodeInvalidRequest, Message: "invalid request"}
	ErrInvalidOutput           = &DocumentError{Code: ErrCodeInvalidOutput, Message: "invalid output"}
)

// NewDocumentError creates a new DocumentError
func NewDocumentError(code, message string, cause error) *DocumentError {
	return &DocumentError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewTemplateMissingError reports a template that could not be loaded.
func NewTemplateMissingError(docType, name string, cause error) *DocumentError {
	return NewDocumentError(ErrCodeTemplateMissing,
		fmt.Sprintf("template %q for %s is missing", name, docType), cause)
}

// NewRenderEngineError reports a launch, navigation or export failure.
func NewRenderEngineError(message string, cause error) *DocumentError {
	return NewDocumentError(ErrCodeRenderEngine, message, cause)
}

// NewRenderTimeoutError reports a render that exceeded its deadline or was
// cancelled.
func NewRenderTimeoutError(message string, cause error) *DocumentError {
	return NewDocumentError(ErrCodeRenderTimeout, message, cause)
}

// NewEncodingError reports a QR code, barcode or text that could not be
// encoded for print.
func NewEncodingError(message string, cause error) *DocumentError {
	return NewDocumentError(ErrCodeEncoding, message, cause)
}

// NewUnsupportedDocumentTypeError reports an unknown document type.
func NewUnsupportedDocumentTypeError(value string) *DocumentError {
	return NewDocumentError(ErrCodeUnsupportedDocumentType,
		fmt.Sprintf("unsupported document type %q", value), nil)
}

// NewOverflowError reports content that does not fit its page or slip.
func NewOverflowError(message string) *DocumentError {
	return NewDocumentError(ErrCodeOverflow, message, nil)
}

// NewInvalidRequestError reports a request that failed validation.
func NewInvalidRequestError(message string, cause error) *DocumentError {
	return NewDocumentError(ErrCodeInvalidRequest, message, cause)
}

// CodeOf returns the code of the first DocumentError in err's chain, or an
// empty string.
func CodeOf(err error) string {
	var de *DocumentError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
