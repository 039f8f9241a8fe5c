package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/labdocs/backend/internal/infrastructure/printing"
)

// Ensure MemoryStorage implements PDFStorage
var _ printing.PDFStorage = (*MemoryStorage)(nil)

// MemoryStorage keeps archived PDFs in process memory. Use it for
// development and tests where no filesystem or bucket is available.
type MemoryStorage struct {
	// BaseURL prefixes the URLs returned by GetURL
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data     []byte
	storedAt time.Time
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		BaseURL: "memory://archive",
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// Store keeps a copy of the PDF under its archive path
func (s *MemoryStorage) Store(ctx context.Context, req *printing.StoreRequest) (*printing.StoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	relative := req.ObjectPath()
	data := bytes.Clone(req.PDFData)

	s.mu.Lock()
	s.objects[relative] = memoryObject{data: data, storedAt: s.now()}
	s.mu.Unlock()

	return &printing.StoreResult{
		Path: relative,
		URL:  s.GetURL(relative),
		Size: int64(len(data)),
	}, nil
}

// Get returns a reader over a stored PDF
func (s *MemoryStorage) Get(ctx context.Context, relative string) (io.ReadCloser, error) {
	if relative == "" {
		return nil, errors.New("storage key is required")
	}
	s.mu.RLock()
	obj, ok := s.objects[relative]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Join(printing.ErrStorage, errors.New("PDF not found"))
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes a stored PDF; deleting a missing path is not an error
func (s *MemoryStorage) Delete(ctx context.Context, relative string) error {
	if relative == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	delete(s.objects, relative)
	s.mu.Unlock()
	return nil
}

// CleanupOlderThan drops PDFs stored before now-age
func (s *MemoryStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age)
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, obj := range s.objects {
		if obj.storedAt.Before(cutoff) {
			delete(s.objects, key)
			deleted++
		}
	}
	return deleted, nil
}

// GetURL returns the URL of a stored PDF
func (s *MemoryStorage) GetURL(relative string) string {
	return strings.TrimSuffix(s.BaseURL, "/") + "/" + relative
}

// Paths lists the stored archive paths
func (s *MemoryStorage) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for key := range s.objects {
		out = append(out, key)
	}
	return out
}

// Len returns the number of stored PDFs
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
