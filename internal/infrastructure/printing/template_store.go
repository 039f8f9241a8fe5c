package printing

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labdocs/backend/internal/domain/document"
)

// templateNamespace seeds stable template ids.
var templateNamespace = uuid.MustParse("6f1c2a4e-3b7d-5e90-9a41-2c8d7f0b1e63")

// TemplateStore manages the HTML document templates.
// It supports loading from an external directory (for customization)
// with fallback to embedded templates.
type TemplateStore struct {
	externalDir string
	files       map[document.Kind]string
	logger      *zap.Logger
	templates   []StaticTemplate
	missing     map[document.Kind]error
	mu          sync.RWMutex
}

// StaticTemplate is a document template with its content loaded
type StaticTemplate struct {
	ID           string // Stable id derived from kind and file name
	Kind         document.Kind
	Name         string
	Description  string
	PageWidthMM  float64
	PageHeightMM float64
	Margins      Margins
	Content      string
}

// TemplateStoreConfig configures the template store
type TemplateStoreConfig struct {
	// ExternalDir is the directory to load templates from.
	// If empty or the file is absent there, embedded templates are used.
	ExternalDir string
	// Files overrides the file name used for a kind.
	Files map[document.Kind]string
	// Logger reports templates that could not be loaded
	Logger *zap.Logger
}

// NewTemplateStore creates a new template store. A template that cannot be
// found is not a construction error; requests for it fail with
// TEMPLATE_MISSING.
func NewTemplateStore(config *TemplateStoreConfig) *TemplateStore {
	store := &TemplateStore{
		files:  make(map[document.Kind]string),
		logger: zap.NewNop(),
	}

	if config != nil {
		store.externalDir = config.ExternalDir
		for kind, file := range config.Files {
			store.files[kind] = file
		}
		if config.Logger != nil {
			store.logger = config.Logger
		}
	}

	store.loadTemplates()
	return store
}

// loadTemplates loads all templates from external dir or embedded
func (s *TemplateStore) loadTemplates() {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := GetDefaultTemplates()
	s.templates = make([]StaticTemplate, 0, len(defaults))
	s.missing = make(map[document.Kind]error)

	for _, dt := range defaults {
		path := dt.FilePath
		if override, ok := s.files[dt.Kind]; ok && override != "" {
			path = filepath.Join(filepath.Dir(dt.FilePath), override)
		}

		content, err := s.loadTemplateContent(path)
		if err != nil {
			s.logger.Warn("Document template unavailable",
				zap.String("kind", dt.Kind.String()),
				zap.String("path", path),
				zap.Error(err),
			)
			s.missing[dt.Kind] = err
			continue
		}

		s.templates = append(s.templates, StaticTemplate{
			ID:           generateTemplateID(dt.Kind, filepath.Base(path)),
			Kind:         dt.Kind,
			Name:         dt.Name,
			Description:  dt.Description,
			PageWidthMM:  dt.PageWidthMM,
			PageHeightMM: dt.PageHeightMM,
			Margins:      dt.Margins,
			Content:      content,
		})
	}
}

// loadTemplateContent loads template content from external dir or embedded
func (s *TemplateStore) loadTemplateContent(embeddedPath string) (string, error) {
	if s.externalDir != "" {
		externalPath := filepath.Join(s.externalDir, filepath.Base(embeddedPath))

		content, err := os.ReadFile(externalPath)
		if err == nil {
			return string(content), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	return LoadTemplateContent(embeddedPath)
}

// GetByKind returns the template for a document kind or a TEMPLATE_MISSING
// error when it could not be loaded.
func (s *TemplateStore) GetByKind(kind document.Kind) (*StaticTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.templates {
		if s.templates[i].Kind == kind {
			return &s.templates[i], nil
		}
	}

	name := kind.String()
	if dt := GetDefaultTemplateForKind(kind); dt != nil {
		name = dt.Name
	}
	return nil, document.NewTemplateMissingError(kind.String(), name, s.missing[kind])
}

// GetByID returns a template by its ID
func (s *TemplateStore) GetByID(id string) *StaticTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.templates {
		if s.templates[i].ID == id {
			return &s.templates[i]
		}
	}
	return nil
}

// GetAll returns all loaded templates
func (s *TemplateStore) GetAll() []StaticTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]StaticTemplate, len(s.templates))
	copy(result, s.templates)
	return result
}

// Reload re-reads all templates, picking up edits in the external directory
func (s *TemplateStore) Reload() {
	s.loadTemplates()
}

// generateTemplateID derives a stable UUID from kind and file name
func generateTemplateID(kind document.Kind, file string) string {
	return uuid.NewSHA1(templateNamespace, []byte(kind.String()+"/"+file)).String()
}
