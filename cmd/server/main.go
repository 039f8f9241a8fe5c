package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/bootstrap"
	"github.com/labdocs/backend/internal/infrastructure/config"
	"github.com/labdocs/backend/internal/infrastructure/logger"
	"github.com/labdocs/backend/internal/interfaces/http/handler"
	"github.com/labdocs/backend/internal/interfaces/http/middleware"
	"github.com/labdocs/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Name:       cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	tel := setupTelemetry(ctx, cfg, baseLog)
	log := tel.logger
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting labdoc",
		zap.String("version", version),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("engine", cfg.Headless.Engine),
		zap.String("results_backend", cfg.Documents.ResultsBackend),
	)

	components, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		Logger:  log,
		Metrics: tel.metrics,
	})
	if err != nil {
		log.Fatal("Failed to build document service", zap.Error(err))
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.Error("Error closing renderer", zap.Error(err))
		}
	}()

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	if components.Archive != nil {
		log.Info("Document archive enabled",
			zap.String("backend", cfg.Archive.Backend),
			zap.Duration("retention", cfg.Archive.Retention))
		go bootstrap.RunArchiveCleanup(cleanupCtx, components.Archive, cfg.Archive.Retention, time.Hour, log)
	}

	engine := newEngine(cfg, log, tel)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	documents := handler.DocumentRoutes(handler.NewDocumentHandler(components.Service))
	health := handler.HealthRoutes(handler.NewHealthHandler(version, cfg.Headless.Engine, components.Locales.Languages()))
	r.Register(documents).RegisterPublic(health)
	r.Setup()

	for _, route := range documents.Routes() {
		log.Debug("Route registered", zap.String("method", route.Method), zap.String("path", "/api/v1"+route.Path))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	tel.shutdown(shutdownCtx)

	log.Info("Server exited gracefully")
}

func newEngine(cfg *config.Config, log *zap.Logger, tel *telemetryStack) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSOrigins

	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.App.Env == "production"

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
			SkipPaths:   []string{"/health"},
		}),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: tel.meters,
			Enabled:       cfg.Telemetry.MetricsEnabled,
			Logger:        log,
		}),
		middleware.SecureWithConfig(security),
		middleware.CORSWithConfig(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	return engine
}
