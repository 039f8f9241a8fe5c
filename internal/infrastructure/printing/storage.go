package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrStorage marks archive failures. Archive errors never fail document
// delivery; callers log them.
var ErrStorage = errors.New("pdf storage failed")

func newStorageError(message string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrStorage, message)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, message, cause)
}

// PDFStorage defines the interface for archiving and retrieving generated PDFs
type PDFStorage interface {
	// Store saves a PDF file and returns its URL/path
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
	// Get retrieves a PDF file by its path
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes a PDF file
	Delete(ctx context.Context, path string) error
	// CleanupOlderThan removes files older than the specified duration
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
	// GetURL returns the accessible URL for a stored PDF
	GetURL(path string) string
}

// StoreRequest contains the parameters for storing a PDF
type StoreRequest struct {
	// RequestID is the generation request identifier
	RequestID string
	// DocumentType is the wire name of the document type
	DocumentType string
	// GeneratedAt places the file in its year/month folder
	GeneratedAt time.Time
	// PDFData is the raw PDF content
	PDFData []byte
}

// Validate checks the request fields shared by every storage backend
func (r *StoreRequest) Validate() error {
	if r == nil {
		return newStorageError("store request is nil", nil)
	}
	if r.RequestID == "" {
		return newStorageError("request ID is required", nil)
	}
	if !safeSegment(r.RequestID) || !safeSegment(r.DocumentType) {
		return newStorageError("request ID and document type must be plain path segments", nil)
	}
	if len(r.PDFData) == 0 {
		return newStorageError("PDF data is empty", nil)
	}
	return nil
}

// ObjectPath returns the relative archive path:
// {document_type}/{year}/{month}/{request_id}.pdf
func (r *StoreRequest) ObjectPath() string {
	at := r.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	docType := r.DocumentType
	if docType == "" {
		docType = "unknown"
	}
	return path.Join(
		docType,
		fmt.Sprintf("%d", at.Year()),
		fmt.Sprintf("%02d", at.Month()),
		r.RequestID+".pdf",
	)
}

// StoreResult contains the result of storing a PDF
type StoreResult struct {
	// Path is the storage path (relative to base)
	Path string
	// URL is the accessible URL for the PDF
	URL string
	// Size is the file size in bytes
	Size int64
}

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the root directory for PDF storage
	// Default: /data/labdocs
	BasePath string
	// BaseURL is the URL prefix for accessing PDFs
	// Example: https://lab.example.com/archive
	BaseURL string
	// RetentionDays is how long to keep PDFs (0 = forever)
	RetentionDays int
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStorage archives PDFs on the local file system
type FileSystemStorage struct {
	config *FileSystemStorageConfig
	logger *zap.Logger
}

// NewFileSystemStorage creates a new file system based PDF storage
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}

	// Set defaults
	if config.BasePath == "" {
		config.BasePath = "/data/labdocs"
	}
	if config.BaseURL == "" {
		config.BaseURL = "/archive"
	}

	// Ensure base directory exists
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, newStorageError(
			fmt.Sprintf("failed to create storage directory: %s", config.BasePath), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileSystemStorage{
		config: config,
		logger: logger,
	}, nil
}

// Store saves a PDF file to the file system
// Path structure: {base}/{document_type}/{year}/{month}/{request_id}.pdf
func (s *FileSystemStorage) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	select {
	case <-ctx.Done():
		return nil, newStorageError("operation cancelled", ctx.Err())
	default:
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	relativePath := req.ObjectPath()
	filePath := filepath.Join(s.config.BasePath, filepath.FromSlash(relativePath))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, newStorageError("failed to create directory", err)
	}

	if err := os.WriteFile(filePath, req.PDFData, 0644); err != nil {
		return nil, newStorageError("failed to write PDF file", err)
	}

	url := s.GetURL(relativePath)

	s.logger.Info("PDF archived",
		zap.String("request_id", req.RequestID),
		zap.String("path", filePath),
		zap.Int("size", len(req.PDFData)),
		zap.String("url", url))

	return &StoreResult{
		Path: relativePath,
		URL:  url,
		Size: int64(len(req.PDFData)),
	}, nil
}

// Get retrieves a PDF file by its relative path
func (s *FileSystemStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	// Check context cancellation
	select {
	case <-ctx.Done():
		return nil, newStorageError("operation cancelled", ctx.Err())
	default:
	}

	// Sanitize path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) || containsDotDot(path) { // Check raw path for ".."
		s.logger.Warn("blocked potentially malicious path",
			zap.String("path", path),
			zap.String("cleanPath", cleanPath))
		return nil, newStorageError("invalid path", nil)
	}

	fullPath := filepath.Join(s.config.BasePath, cleanPath)

	// Additional security: verify the resolved path is still under BasePath
	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return nil, newStorageError("failed to resolve base path", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return nil, newStorageError("failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		s.logger.Warn("path escape attempt blocked",
			zap.String("path", path),
			zap.String("absPath", absPath),
			zap.String("absBase", absBase))
		return nil, newStorageError("invalid path", nil)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newStorageError("PDF not found", err)
		}
		return nil, newStorageError("failed to open PDF file", err)
	}

	return file, nil
}

// Delete removes a PDF file
func (s *FileSystemStorage) Delete(ctx context.Context, path string) error {
	// Check context cancellation
	select {
	case <-ctx.Done():
		return newStorageError("operation cancelled", ctx.Err())
	default:
	}

	// Sanitize path
	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) || containsDotDot(path) { // Check raw path for ".."
		s.logger.Warn("blocked potentially malicious path",
			zap.String("path", path),
			zap.String("cleanPath", cleanPath))
		return newStorageError("invalid path", nil)
	}

	fullPath := filepath.Join(s.config.BasePath, cleanPath)

	// Additional security: verify the resolved path is still under BasePath
	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return newStorageError("failed to resolve base path", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return newStorageError("failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		s.logger.Warn("path escape attempt blocked",
			zap.String("path", path),
			zap.String("absPath", absPath),
			zap.String("absBase", absBase))
		return newStorageError("invalid path", nil)
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted, not an error
		}
		return newStorageError("failed to delete PDF file", err)
	}

	s.logger.Info("PDF deleted", zap.String("path", path))
	return nil
}

// CleanupOlderThan removes files older than the specified duration
func (s *FileSystemStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	deletedCount := 0

	err := filepath.Walk(s.config.BasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Only process PDF files
		if info.IsDir() || filepath.Ext(path) != ".pdf" {
			return nil
		}

		// Check modification time
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deletedCount++
				s.logger.Debug("deleted old PDF", zap.String("path", path))
			}
		}

		return nil
	})

	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return deletedCount, newStorageError("cleanup walk failed", err)
	}

	s.logger.Info("cleanup completed",
		zap.Int("deleted", deletedCount),
		zap.Duration("age", age))

	return deletedCount, nil
}

// GetURL returns the accessible URL for a stored PDF
func (s *FileSystemStorage) GetURL(path string) string {
	// Clean the path and convert to URL format (forward slashes)
	cleanPath := filepath.ToSlash(filepath.Clean(path))
	return fmt.Sprintf("%s/%s", s.config.BaseURL, cleanPath)
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	// Split by both forward and backward slashes for cross-platform support
	// Use raw string splitting to detect ".." before any path normalization
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

// safeSegment reports whether s can be used as a single path component
func safeSegment(s string) bool {
	return s == "" || (s != "." && s != ".." && !strings.ContainsAny(s, `/\`))
}

// Ensure FileSystemStorage implements PDFStorage
var _ PDFStorage = (*FileSystemStorage)(nil)
