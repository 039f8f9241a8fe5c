package printing

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/domain/document"
)

const (
	defaultBinaryPath   = "wkhtmltopdf"
	defaultTimeout      = 30 * time.Second
	defaultDPI          = 96
	defaultImageQuality = 94
)

// WkhtmltopdfConfig contains configuration for the wkhtmltopdf renderer
type WkhtmltopdfConfig struct {
	// BinaryPath is the path to the wkhtmltopdf binary
	// If empty, will search in PATH
	BinaryPath string
	// DefaultTimeout for rendering operations
	DefaultTimeout time.Duration
	// TempDir for temporary files during rendering
	TempDir string
	// DPI for rendering (default: 96)
	DPI int
	// ImageQuality (0-100, default: 94)
	ImageQuality int
	// Logger for debug output
	Logger *zap.Logger
}

// WkhtmltopdfRenderer renders HTML to PDF by running one wkhtmltopdf
// process per request.
type WkhtmltopdfRenderer struct {
	config  *WkhtmltopdfConfig
	logger  *zap.Logger
	handles *HandleTable
}

// NewWkhtmltopdfRenderer creates a new wkhtmltopdf-based PDF renderer
func NewWkhtmltopdfRenderer(config *WkhtmltopdfConfig) (*WkhtmltopdfRenderer, error) {
	if config == nil {
		config = &WkhtmltopdfConfig{}
	}

	// Set defaults
	if config.BinaryPath == "" {
		config.BinaryPath = defaultBinaryPath
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultTimeout
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if config.DPI == 0 {
		config.DPI = defaultDPI
	}
	if config.ImageQuality == 0 {
		config.ImageQuality = defaultImageQuality
	}

	// Verify wkhtmltopdf is available
	binaryPath, err := resolveBinaryPath(config.BinaryPath)
	if err != nil {
		return nil, document.NewRenderEngineError(
			fmt.Sprintf("wkhtmltopdf binary not found: %s", config.BinaryPath), err)
	}
	config.BinaryPath = binaryPath

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WkhtmltopdfRenderer{
		config:  config,
		logger:  logger,
		handles: NewHandleTable(),
	}, nil
}

// resolveBinaryPath finds the full path to the binary
func resolveBinaryPath(path string) (string, error) {
	// If it's an absolute path, check if it exists
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}

	// Search in PATH
	return exec.LookPath(path)
}

// Render converts HTML content to PDF
func (r *WkhtmltopdfRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if err := validateRenderRequest(req); err != nil {
		return nil, err
	}

	startTime := time.Now()

	// Determine timeout
	timeout := req.Timeout
	if timeout == 0 {
		timeout = r.config.DefaultTimeout
	}

	ctx, release := r.handles.Acquire(ctx, req.RequestID)
	defer release()

	// Create context with timeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Create temp file for HTML input
	htmlFile, err := os.CreateTemp(r.config.TempDir, "labdoc-*.html")
	if err != nil {
		return nil, document.NewRenderEngineError("failed to create temp HTML file", err)
	}
	htmlPath := htmlFile.Name()
	defer os.Remove(htmlPath)

	if _, err := htmlFile.WriteString(req.HTML); err != nil {
		htmlFile.Close()
		return nil, document.NewRenderEngineError("failed to write HTML to temp file", err)
	}
	htmlFile.Close()

	// Create temp file for PDF output
	pdfFile, err := os.CreateTemp(r.config.TempDir, "labdoc-*.pdf")
	if err != nil {
		return nil, document.NewRenderEngineError("failed to create temp PDF file", err)
	}
	pdfPath := pdfFile.Name()
	pdfFile.Close()
	defer os.Remove(pdfPath)

	args := r.buildArgs(req, htmlPath, pdfPath)

	r.logger.Debug("executing wkhtmltopdf",
		zap.String("binary", r.config.BinaryPath),
		zap.Strings("args", args))

	// CommandContext kills the process when ctx ends
	cmd := exec.CommandContext(ctx, r.config.BinaryPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		r.logger.Error("wkhtmltopdf failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err),
			zap.String("stderr", stderr.String()),
			zap.String("stdout", stdout.String()))
		return nil, classifyRunError(ctx, "wkhtmltopdf", timeout, err)
	}

	// Read the generated PDF
	pdfData, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, document.NewRenderEngineError("failed to read generated PDF", err)
	}

	if len(pdfData) == 0 {
		return nil, document.NewRenderEngineError("generated PDF is empty", nil)
	}

	pageCount := document.CountPages(pdfData)
	renderDuration := time.Since(startTime)

	r.logger.Info("PDF rendered successfully",
		zap.String("request_id", req.RequestID),
		zap.Int("bytes", len(pdfData)),
		zap.Int("pages", pageCount),
		zap.Duration("duration", renderDuration))

	return &RenderResult{
		PDFData:        pdfData,
		PageCount:      pageCount,
		RenderDuration: renderDuration,
	}, nil
}

// buildArgs constructs the command-line arguments for wkhtmltopdf
func (r *WkhtmltopdfRenderer) buildArgs(req *RenderRequest, htmlPath, pdfPath string) []string {
	args := []string{
		"--quiet",
		"--encoding", "UTF-8",
		"--dpi", strconv.Itoa(r.config.DPI),
		"--image-quality", strconv.Itoa(r.config.ImageQuality),
		"--page-width", formatMM(req.PageWidthMM),
		"--page-height", formatMM(req.PageHeightMM),
		"--margin-top", formatMM(req.Margins.Top),
		"--margin-right", formatMM(req.Margins.Right),
		"--margin-bottom", formatMM(req.Margins.Bottom),
		"--margin-left", formatMM(req.Margins.Left),
		"--disable-javascript",
		"--disable-local-file-access",
		"--disable-smart-shrinking",
		"--print-media-type",
	}

	if req.Title != "" {
		args = append(args, "--title", req.Title)
	}

	// Input and output
	return append(args, htmlPath, pdfPath)
}

func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "mm"
}

// Cancel kills the wkhtmltopdf process of an in-flight request
func (r *WkhtmltopdfRenderer) Cancel(requestID string) bool {
	return r.handles.Cancel(requestID)
}

// Close terminates every in-flight render
func (r *WkhtmltopdfRenderer) Close() error {
	r.handles.CancelAll()
	return nil
}

// Ensure WkhtmltopdfRenderer implements PDFRenderer
var _ PDFRenderer = (*WkhtmltopdfRenderer)(nil)
