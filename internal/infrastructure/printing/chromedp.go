package printing

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/domain/document"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultScale         = 1.0
)

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// DefaultTimeout for rendering operations
	DefaultTimeout time.Duration
	// ExecPath is the Chrome/Chromium binary; empty lets chromedp search for it
	ExecPath string
	// RemoteURL is the URL of a remote Chrome/Chromium instance (optional).
	// Each request then gets its own browser context on that instance
	// instead of its own process.
	RemoteURL string
	// Headless mode (default: true)
	Headless bool
	// DisableGPU disables GPU hardware acceleration (default: true for server environments)
	DisableGPU bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Scale for rendering (default: 1.0)
	Scale float64
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpRenderer renders HTML to PDF using Chrome DevTools Protocol.
// Every Render call launches its own browser process, which is killed when
// the render returns, times out or is cancelled.
type ChromedpRenderer struct {
	config  *ChromedpConfig
	logger  *zap.Logger
	handles *HandleTable
}

// NewChromedpRenderer creates a new chromedp-based PDF renderer
func NewChromedpRenderer(config *ChromedpConfig) (*ChromedpRenderer, error) {
	if config == nil {
		config = &ChromedpConfig{}
	}

	// Set defaults
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	if config.Scale == 0 {
		config.Scale = defaultScale
	}
	// Default to headless and disable GPU for server environments
	if !config.Headless {
		config.Headless = true
	}
	if !config.DisableGPU {
		config.DisableGPU = true
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChromedpRenderer{
		config:  config,
		logger:  logger,
		handles: NewHandleTable(),
	}, nil
}

// allocatorOptions returns the Chrome flags for a fresh process
func (r *ChromedpRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.config.Headless),
		chromedp.Flag("disable-gpu", r.config.DisableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		// Font rendering
		chromedp.Flag("font-render-hinting", "none"),
	)

	if r.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if r.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.config.ExecPath))
	}
	return opts
}

// newBrowser starts an isolated browser for one request.
func (r *ChromedpRenderer) newBrowser(ctx context.Context) (context.Context, context.CancelFunc) {
	logf := chromedp.WithLogf(func(format string, args ...interface{}) {
		r.logger.Debug(fmt.Sprintf(format, args...))
	})

	if r.config.RemoteURL != "" {
		allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, r.config.RemoteURL)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx, logf, chromedp.WithNewBrowserContext())
		return browserCtx, func() {
			browserCancel()
			allocCancel()
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, logf)
	return browserCtx, func() {
		browserCancel()
		allocCancel()
	}
}

// Render converts HTML content to PDF
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
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

	browserCtx, closeBrowser := r.newBrowser(ctx)
	defer closeBrowser()

	params := r.buildPrintParams(req)

	var pdfData []byte

	// Execute rendering
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, req.HTML).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(params.paperWidth).
				WithPaperHeight(params.paperHeight).
				WithMarginTop(params.marginTop).
				WithMarginRight(params.marginRight).
				WithMarginBottom(params.marginBottom).
				WithMarginLeft(params.marginLeft).
				WithScale(params.scale).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)

	if err != nil {
		r.logger.Error("chromedp rendering failed",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return nil, classifyRunError(ctx, "chromium", timeout, err)
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

// Cancel kills the browser of an in-flight request
func (r *ChromedpRenderer) Cancel(requestID string) bool {
	return r.handles.Cancel(requestID)
}

// printParams holds the parameters for PDF printing
type printParams struct {
	paperWidth   float64
	paperHeight  float64
	marginTop    float64
	marginRight  float64
	marginBottom float64
	marginLeft   float64
	scale        float64
}

// buildPrintParams constructs the print parameters from the render request
func (r *ChromedpRenderer) buildPrintParams(req *RenderRequest) *printParams {
	// Chrome uses inches
	return &printParams{
		paperWidth:   mmToInches(req.PageWidthMM),
		paperHeight:  mmToInches(req.PageHeightMM),
		marginTop:    mmToInches(req.Margins.Top),
		marginRight:  mmToInches(req.Margins.Right),
		marginBottom: mmToInches(req.Margins.Bottom),
		marginLeft:   mmToInches(req.Margins.Left),
		scale:        r.config.Scale,
	}
}

// Close terminates every in-flight render
func (r *ChromedpRenderer) Close() error {
	if n := r.handles.CancelAll(); n > 0 {
		r.logger.Info("cancelled in-flight renders on close", zap.Int("count", n))
	}
	return nil
}

// Ensure ChromedpRenderer implements PDFRenderer
var _ PDFRenderer = (*ChromedpRenderer)(nil)
