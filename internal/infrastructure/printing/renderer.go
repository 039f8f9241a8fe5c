package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labdocs/backend/internal/domain/document"
)

// Margins in millimeters
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// RenderRequest contains the parameters for rendering HTML to PDF
type RenderRequest struct {
	// RequestID keys the in-flight engine process so it can be cancelled
	RequestID string
	// HTML is the complete document to render
	HTML string
	// PageWidthMM and PageHeightMM define the output page
	PageWidthMM  float64
	PageHeightMM float64
	// Margins in millimeters; templates usually set their own via CSS
	Margins Margins
	// Title for the PDF document metadata
	Title string
	// Timeout overrides the default rendering timeout
	Timeout time.Duration
}

// A4Request returns a RenderRequest for an A4 portrait page.
func A4Request(requestID, title, html string) *RenderRequest {
	return &RenderRequest{
		RequestID:    requestID,
		HTML:         html,
		PageWidthMM:  210,
		PageHeightMM: 297,
		Title:        title,
	}
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	// PDFData is the raw PDF file content
	PDFData []byte
	// PageCount is the number of pages in the PDF
	PageCount int
	// RenderDuration is how long the rendering took
	RenderDuration time.Duration
}

// PDFRenderer defines the interface for rendering HTML to PDF
type PDFRenderer interface {
	// Render converts HTML content to a PDF document
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	// Cancel terminates the engine process of an in-flight request
	Cancel(requestID string) bool
	// Close releases any resources held by the renderer
	Close() error
}

func validateRenderRequest(req *RenderRequest) error {
	if req == nil {
		return document.NewRenderEngineError("render request is nil", nil)
	}
	if req.HTML == "" {
		return document.NewRenderEngineError("HTML content is empty", nil)
	}
	if req.PageWidthMM <= 0 || req.PageHeightMM <= 0 {
		return document.NewRenderEngineError(
			fmt.Sprintf("invalid page size %.1fx%.1fmm", req.PageWidthMM, req.PageHeightMM), nil)
	}
	return nil
}

// classifyRunError maps an engine failure to a timeout or engine error.
// A deadline or an explicit cancel both surface as RENDER_TIMEOUT.
func classifyRunError(ctx context.Context, engine string, timeout time.Duration, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return document.NewRenderTimeoutError(
			fmt.Sprintf("%s rendering timed out after %v", engine, timeout), err)
	case errors.Is(ctx.Err(), context.Canceled):
		return document.NewRenderTimeoutError(engine+" rendering was cancelled", err)
	}
	return document.NewRenderEngineError(engine+" execution failed", err)
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}
