package dto

import (
	"net/http"

	"github.com/labdocs/backend/internal/domain/document"
)

// Transport error codes. Document generation failures reuse the codes of
// document.DocumentError.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Caller mistakes
	document.ErrCodeUnsupportedDocumentType: http.StatusBadRequest,
	document.ErrCodeInvalidRequest:          http.StatusBadRequest,

	// Well-formed requests whose content cannot be laid out
	document.ErrCodeOverflow: http.StatusUnprocessableEntity,
	document.ErrCodeEncoding: http.StatusUnprocessableEntity,

	// Server side failures
	document.ErrCodeTemplateMissing: http.StatusInternalServerError,
	document.ErrCodeRenderEngine:    http.StatusInternalServerError,
	document.ErrCodeInvalidOutput:   http.StatusInternalServerError,
	document.ErrCodeInvalidState:    http.StatusInternalServerError,

	document.ErrCodeRenderTimeout: http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorFromDocument converts a generation error into a response code,
// message and status. Unknown errors are reported as internal errors
// without leaking their text.
func ErrorFromDocument(err error) (code, message string, status int) {
	code = document.CodeOf(err)
	if code == "" {
		return ErrCodeInternal, "An unexpected error occurred", http.StatusInternalServerError
	}
	status = GetHTTPStatus(code)
	if status >= http.StatusInternalServerError && code != document.ErrCodeTemplateMissing {
		// Engine details stay in the logs
		return code, publicMessage(code), status
	}
	return code, err.Error(), status
}

func publicMessage(code string) string {
	switch code {
	case document.ErrCodeRenderTimeout:
		return "Document rendering timed out"
	case document.ErrCodeRenderEngine:
		return "Document rendering engine failed"
	case document.ErrCodeInvalidOutput:
		return "Rendering produced an invalid PDF"
	default:
		return "Document generation failed"
	}
}
