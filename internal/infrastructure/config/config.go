package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Headless  HeadlessConfig
	Templates TemplatesConfig
	Documents DocumentsConfig
	Archive   ArchiveConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	CORSOrigins    []string // empty disables CORS, "*" allows any origin
}

// Headless engines
const (
	EngineChromedp    = "chromedp"
	EngineWkhtmltopdf = "wkhtmltopdf"
)

// HeadlessConfig selects and tunes the HTML to PDF engine
type HeadlessConfig struct {
	Engine  string        // chromedp, wkhtmltopdf
	Timeout time.Duration // per request, the process is killed when exceeded
	// chromedp
	ExecPath  string
	RemoteURL string // optional remote browser, one browser context per request
	NoSandbox bool
	// wkhtmltopdf
	BinaryPath string
	TempDir    string
}

// TemplatesConfig holds the document template locations
type TemplatesConfig struct {
	// Dir overrides the embedded templates with files of the same name
	Dir string
	// Files maps a document kind (resultsReport, auditSheet) to a file name
	Files map[string]string
}

// File returns the configured template file for a document kind. Viper
// lower-cases map keys, so kinds match case-insensitively.
func (t TemplatesConfig) File(kind string) string {
	for k, file := range t.Files {
		if strings.EqualFold(k, kind) {
			return file
		}
	}
	return ""
}

// DocumentsConfig holds document generation settings
type DocumentsConfig struct {
	// ResultsBackend renders the results report with "html" or "canvas"
	ResultsBackend  string
	DefaultLang     string
	ErrorCorrection string // QR error correction level: L, M, Q, H
	Compress        bool   // compress canvas PDF streams
}

// Archive backends
const (
	ArchiveFilesystem = "filesystem"
	ArchiveS3         = "s3"
	ArchiveMemory     = "memory" // development only, lost on restart
)

// ArchiveConfig holds the optional PDF archive settings
type ArchiveConfig struct {
	Enabled   bool
	Backend   string // filesystem, s3, memory
	Path      string // filesystem base path
	BaseURL   string // filesystem URL prefix
	Retention time.Duration
	S3        StorageConfig
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	Prefix            string
	UseSSL            bool
	UsePathStyle      bool // required by MinIO and RustFS
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool // export zap logs through the otelzap bridge
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LABDOC_ prefix (e.g., LABDOC_HEADLESS_ENGINE)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./backend")
		v.AddConfigPath("/app")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("LABDOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			CORSOrigins:    v.GetStringSlice("http.cors_origins"),
		},
		Headless: HeadlessConfig{
			Engine:     v.GetString("headless.engine"),
			Timeout:    v.GetDuration("headless.timeout"),
			ExecPath:   v.GetString("headless.exec_path"),
			RemoteURL:  v.GetString("headless.remote_url"),
			NoSandbox:  v.GetBool("headless.no_sandbox"),
			BinaryPath: v.GetString("headless.binary_path"),
			TempDir:    v.GetString("headless.temp_dir"),
		},
		Templates: TemplatesConfig{
			Dir:   v.GetString("templates.dir"),
			Files: v.GetStringMapString("templates.files"),
		},
		Documents: DocumentsConfig{
			ResultsBackend:  v.GetString("documents.results_backend"),
			DefaultLang:     v.GetString("documents.default_lang"),
			ErrorCorrection: v.GetString("documents.error_correction"),
			Compress:        v.GetBool("documents.compress"),
		},
		Archive: ArchiveConfig{
			Enabled:   v.GetBool("archive.enabled"),
			Backend:   v.GetString("archive.backend"),
			Path:      v.GetString("archive.path"),
			BaseURL:   v.GetString("archive.base_url"),
			Retention: v.GetDuration("archive.retention"),
			S3: StorageConfig{
				Endpoint:          v.GetString("archive.s3.endpoint"),
				Region:            v.GetString("archive.s3.region"),
				Bucket:            v.GetString("archive.s3.bucket"),
				AccessKey:         v.GetString("archive.s3.access_key"),
				SecretKey:         v.GetString("archive.s3.secret_key"),
				Prefix:            v.GetString("archive.s3.prefix"),
				UseSSL:            v.GetBool("archive.s3.use_ssl"),
				UsePathStyle:      v.GetBool("archive.s3.use_path_style"),
				PresignExpiration: v.GetDuration("archive.s3.presign_expiration"),
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "labdoc"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Must outlive a full headless render
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	if cfg.Headless.Engine == "" {
		cfg.Headless.Engine = EngineChromedp
	}
	if cfg.Headless.Timeout == 0 {
		cfg.Headless.Timeout = 30 * time.Second
	}
	if cfg.Documents.ResultsBackend == "" {
		cfg.Documents.ResultsBackend = "html"
	}
	if cfg.Documents.DefaultLang == "" {
		cfg.Documents.DefaultLang = "en"
	}
	if cfg.Documents.ErrorCorrection == "" {
		cfg.Documents.ErrorCorrection = "M"
	}
	if cfg.Archive.Backend == "" {
		cfg.Archive.Backend = ArchiveFilesystem
	}
	if cfg.Archive.Path == "" {
		cfg.Archive.Path = "/data/labdocs"
	}
	if cfg.Archive.BaseURL == "" {
		cfg.Archive.BaseURL = "/archive"
	}
	if cfg.Archive.S3.Region == "" {
		cfg.Archive.S3.Region = "us-east-1"
	}
	if cfg.Archive.S3.PresignExpiration == 0 {
		cfg.Archive.S3.PresignExpiration = 15 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "labdoc"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	// Note: Insecure defaults to false for safety (TLS enabled by default)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if !slices.Contains([]string{EngineChromedp, EngineWkhtmltopdf}, c.Headless.Engine) {
		return fmt.Errorf("headless.engine must be %q or %q, got %q", EngineChromedp, EngineWkhtmltopdf, c.Headless.Engine)
	}
	if c.Headless.Timeout < 0 {
		return fmt.Errorf("headless.timeout cannot be negative")
	}
	if c.Documents.ResultsBackend != "html" && c.Documents.ResultsBackend != "canvas" {
		return fmt.Errorf("documents.results_backend must be \"html\" or \"canvas\", got %q", c.Documents.ResultsBackend)
	}
	switch strings.ToUpper(c.Documents.ErrorCorrection) {
	case "L", "M", "Q", "H":
	default:
		return fmt.Errorf("documents.error_correction must be one of L, M, Q, H, got %q", c.Documents.ErrorCorrection)
	}
	for kind := range c.Templates.Files {
		if k := strings.ToLower(kind); k != "resultsreport" && k != "auditsheet" {
			return fmt.Errorf("templates.files: no HTML template for document kind %q", kind)
		}
	}

	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case ArchiveFilesystem:
			if c.Archive.Path == "" {
				return fmt.Errorf("archive.path is required for the filesystem archive")
			}
		case ArchiveS3:
			if c.Archive.S3.Bucket == "" {
				return fmt.Errorf("archive.s3.bucket is required for the s3 archive")
			}
			if c.Archive.S3.AccessKey == "" || c.Archive.S3.SecretKey == "" {
				return fmt.Errorf("archive.s3.access_key and archive.s3.secret_key are required for the s3 archive")
			}
		case ArchiveMemory:
			if c.App.Env == "production" {
				return fmt.Errorf("archive.backend %q is not allowed in production", ArchiveMemory)
			}
		default:
			return fmt.Errorf("archive.backend must be %q, %q or %q, got %q",
				ArchiveFilesystem, ArchiveS3, ArchiveMemory, c.Archive.Backend)
		}
	}
	if c.Archive.Retention < 0 {
		return fmt.Errorf("archive.retention cannot be negative")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Archive.Enabled && c.Archive.Backend == ArchiveS3 && !c.Archive.S3.UseSSL &&
			!strings.HasPrefix(c.Archive.S3.Endpoint, "https://") {
			return fmt.Errorf("archive.s3 must use TLS in production")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}
