// Command labdoc renders one lab document from a JSON request file.
//
//	labdoc -type masterSlip -in request.json -out slip.pdf [-lang es]
//
// "-" reads the request from stdin or writes the PDF to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/bootstrap"
	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/config"
	"github.com/labdocs/backend/internal/infrastructure/logger"
)

// Exit codes
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitTimeout = 3
)

type options struct {
	docType    string
	in         string
	out        string
	lang       string
	configPath string
	timeout    time.Duration
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("labdoc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.docType, "type", "", "Document type (resultsReport, auditSheet, labSlip, masterSlip, departmentSlip-<Name>)")
	fs.StringVar(&opts.in, "in", "-", "Request JSON file, - for stdin")
	fs.StringVar(&opts.out, "out", "", "Output PDF file, - for stdout")
	fs.StringVar(&opts.lang, "lang", "", "Label language (default: request lang, then documents.default_lang)")
	fs.StringVar(&opts.configPath, "config", "", "Config file (default: ./config.toml when present)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Overall timeout, 0 uses headless.timeout plus a margin")
	fs.BoolVar(&opts.verbose, "v", false, "Log at debug level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.out == "" {
		fs.Usage()
		return nil, errors.New("-out is required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "labdoc: %v\n", err)
		}
		return exitUsage
	}

	logCfg := logger.CLIConfig()
	if opts.verbose {
		logCfg.Level = "debug"
	}
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "labdoc: failed to initialize logger: %v\n", err)
		return exitFailed
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "labdoc: %v\n", err)
		return exitFailed
	}

	req, err := readRequest(opts.in, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "labdoc: %v\n", err)
		return exitUsage
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.Headless.Timeout + 10*time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Logger: log})
	if err != nil {
		fmt.Fprintf(stderr, "labdoc: %v\n", err)
		return exitFailed
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.Warn("Failed to close renderer", zap.Error(err))
		}
	}()

	ctx, _ = logger.WithRequestID(ctx, log, "cli-"+uuid.NewString())
	doc, err := components.Service.Generate(ctx, opts.docType, req, opts.lang)
	if err != nil {
		fmt.Fprintf(stderr, "labdoc: %s: %v\n", document.CodeOf(err), err)
		if errors.Is(err, document.ErrRenderTimeout) {
			return exitTimeout
		}
		return exitFailed
	}

	if err := writeOutput(opts.out, stdout, doc.Data); err != nil {
		fmt.Fprintf(stderr, "labdoc: %v\n", err)
		return exitFailed
	}
	log.Info("Document written",
		zap.String("type", doc.DocumentType.String()),
		zap.String("backend", string(doc.Backend)),
		zap.Int("pages", doc.PageCount),
		zap.String("out", opts.out))
	return exitOK
}

func readRequest(path string, stdin io.Reader) (*document.ReportRequest, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req document.ReportRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
