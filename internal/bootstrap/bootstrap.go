// Package bootstrap wires configuration into a ready document service. It
// is shared by the HTTP server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	documentapp "github.com/labdocs/backend/internal/application/document"
	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/canvas"
	"github.com/labdocs/backend/internal/infrastructure/codes"
	"github.com/labdocs/backend/internal/infrastructure/config"
	"github.com/labdocs/backend/internal/infrastructure/printing"
	"github.com/labdocs/backend/internal/infrastructure/storage"
	"github.com/labdocs/backend/internal/infrastructure/telemetry"
	"github.com/labdocs/backend/internal/infrastructure/trend"
)

// Options carries the dependencies that are not built from config.
type Options struct {
	Logger  *zap.Logger
	Metrics *telemetry.DocumentMetrics
	// Renderer replaces the configured headless engine
	Renderer printing.PDFRenderer
}

// Components is a wired document service and the resources it owns.
type Components struct {
	Service  *documentapp.Service
	Renderer printing.PDFRenderer
	Locales  *printing.LocaleRegistry
	// Archive is nil unless archiving is enabled
	Archive printing.PDFStorage
}

// Close releases the headless renderer.
func (c *Components) Close() error {
	if c.Renderer == nil {
		return nil
	}
	return c.Renderer.Close()
}

// Build creates the encoder, graph renderer, both rendering backends, the
// optional archive and the document service from cfg.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: configuration is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	encoder, err := NewEncoder(cfg.Documents)
	if err != nil {
		return nil, err
	}
	graphs := trend.NewRenderer(trend.DefaultConfig())

	locales, err := printing.LoadLocales()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	canvasBackend := canvas.NewBackend(encoder, graphs,
		canvas.WithCompression(cfg.Documents.Compress),
		canvas.WithLabels(func(lang string) canvas.Labels { return locales.Resolve(lang) }),
		canvas.WithLogger(log.Named("canvas")),
	)

	renderer := opts.Renderer
	if renderer == nil {
		renderer, err = NewRenderer(cfg.Headless, log.Named("headless"))
		if err != nil {
			return nil, err
		}
	}

	htmlBackend, err := printing.NewHTMLBackend(printing.HTMLBackendConfig{
		Store:    NewTemplateStore(cfg.Templates, log),
		Engine:   printing.NewTemplateEngine(),
		Renderer: renderer,
		Locales:  locales,
		Encoder:  encoder,
		Graphs:   graphs,
		Timeout:  cfg.Headless.Timeout,
		Logger:   log.Named("html"),
	})
	if err != nil {
		_ = renderer.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	serviceOpts := []documentapp.Option{
		documentapp.WithBackend(canvasBackend),
		documentapp.WithBackend(htmlBackend),
		documentapp.WithResultsBackend(document.BackendKind(cfg.Documents.ResultsBackend)),
		documentapp.WithDefaultLang(cfg.Documents.DefaultLang),
		documentapp.WithMetrics(opts.Metrics),
		documentapp.WithLogger(log),
	}

	var archive printing.PDFStorage
	if cfg.Archive.Enabled {
		archive, err = NewArchive(ctx, cfg.Archive, log.Named("archive"))
		if err != nil {
			_ = renderer.Close()
			return nil, err
		}
		serviceOpts = append(serviceOpts, documentapp.WithArchive(archive, cfg.Archive.Backend))
	}

	svc, err := documentapp.NewService(serviceOpts...)
	if err != nil {
		_ = renderer.Close()
		return nil, err
	}

	return &Components{
		Service:  svc,
		Renderer: renderer,
		Locales:  locales,
		Archive:  archive,
	}, nil
}

// NewEncoder builds the QR and barcode encoder.
func NewEncoder(cfg config.DocumentsConfig) (*codes.Encoder, error) {
	encCfg := codes.DefaultConfig()
	if ec := strings.TrimSpace(cfg.ErrorCorrection); ec != "" {
		encCfg.ErrorCorrection = codes.ErrorCorrection(strings.ToUpper(ec))
	}
	encoder, err := codes.NewEncoder(encCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return encoder, nil
}

// NewRenderer creates the configured headless engine.
func NewRenderer(cfg config.HeadlessConfig, log *zap.Logger) (printing.PDFRenderer, error) {
	switch cfg.Engine {
	case config.EngineChromedp, "":
		return printing.NewChromedpRenderer(&printing.ChromedpConfig{
			DefaultTimeout: cfg.Timeout,
			ExecPath:       cfg.ExecPath,
			RemoteURL:      cfg.RemoteURL,
			NoSandbox:      cfg.NoSandbox,
			Logger:         log,
		})
	case config.EngineWkhtmltopdf:
		return printing.NewWkhtmltopdfRenderer(&printing.WkhtmltopdfConfig{
			BinaryPath:     cfg.BinaryPath,
			DefaultTimeout: cfg.Timeout,
			TempDir:        cfg.TempDir,
			Logger:         log,
		})
	default:
		return nil, fmt.Errorf("bootstrap: unknown headless engine %q", cfg.Engine)
	}
}

// NewTemplateStore creates the template store for the HTML documents.
func NewTemplateStore(cfg config.TemplatesConfig, log *zap.Logger) *printing.TemplateStore {
	files := make(map[document.Kind]string)
	for _, kind := range []document.Kind{document.KindResultsReport, document.KindAuditSheet} {
		if file := cfg.File(string(kind)); file != "" {
			files[kind] = file
		}
	}
	return printing.NewTemplateStore(&printing.TemplateStoreConfig{
		ExternalDir: cfg.Dir,
		Files:       files,
		Logger:      log,
	})
}

// NewArchive creates the configured archive storage. An unreachable S3
// bucket is logged, not fatal, since archiving never blocks delivery.
func NewArchive(ctx context.Context, cfg config.ArchiveConfig, log *zap.Logger) (printing.PDFStorage, error) {
	switch cfg.Backend {
	case config.ArchiveFilesystem:
		fs, err := printing.NewFileSystemStorage(&printing.FileSystemStorageConfig{
			BasePath: cfg.Path,
			BaseURL:  cfg.BaseURL,
			Logger:   log,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: archive: %w", err)
		}
		return fs, nil
	case config.ArchiveS3:
		s3, err := storage.NewS3Storage(&cfg.S3, storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: archive: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Warn("Archive bucket not ready", zap.String("bucket", s3.GetBucket()), zap.Error(err))
		}
		return s3, nil
	case config.ArchiveMemory:
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown archive backend %q", cfg.Backend)
	}
}

// RunArchiveCleanup deletes archived PDFs older than retention every
// interval until ctx is done. It returns immediately when retention is not
// positive.
func RunArchiveCleanup(ctx context.Context, archive printing.PDFStorage, retention, interval time.Duration, log *zap.Logger) {
	if archive == nil || retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := archive.CleanupOlderThan(ctx, retention)
			if err != nil {
				log.Warn("Archive cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				log.Info("Archive cleanup", zap.Int("deleted", deleted), zap.Duration("retention", retention))
			}
		}
	}
}
