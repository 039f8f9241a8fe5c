package printing

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"maps"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/labdocs/backend/internal/domain/document"
)

// TemplateEngine compiles HTML document templates against a report view model.
// Rendering is pure: the same template and data always produce the same HTML.
type TemplateEngine struct {
	funcMap template.FuncMap
}

// NewTemplateEngine creates an engine with the functions the bundled
// templates call. "t" and "title" are replaced per request when a label
// bundle is supplied.
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		funcMap: template.FuncMap{
			"t":         func(key string) string { return key },
			"title":     titleCase,
			"join":      strings.Join,
			"flagClass": flagClass,
			"default":   defaultText,
		},
	}
}

// RenderTemplateRequest represents a request to render a template
type RenderTemplateRequest struct {
	// Template is the document template to render
	Template *StaticTemplate
	// Data is the view model bound to the template
	Data any
	// Labels provides the "t" and "title" functions for the request language (optional)
	Labels *Bundle
}

// RenderTemplateResult contains the rendered HTML output
type RenderTemplateResult struct {
	HTML           string
	RenderDuration time.Duration
}

// Render renders a document template with the provided data
func (e *TemplateEngine) Render(ctx context.Context, req *RenderTemplateRequest) (*RenderTemplateResult, error) {
	if req == nil {
		return nil, document.NewRenderEngineError("render request is nil", nil)
	}
	if req.Template == nil || req.Template.Content == "" {
		var name, kind string
		if req.Template != nil {
			name, kind = req.Template.Name, req.Template.Kind.String()
		}
		return nil, document.NewTemplateMissingError(kind, name, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, document.NewRenderEngineError("template compilation cancelled", err)
	}

	startTime := time.Now()

	funcMap := maps.Clone(e.funcMap)
	if req.Labels != nil {
		funcMap["t"] = req.Labels.Label
		funcMap["title"] = req.Labels.Title
	}

	tmpl, err := template.New(req.Template.ID).Funcs(funcMap).Parse(req.Template.Content)
	if err != nil {
		return nil, document.NewTemplateMissingError(req.Template.Kind.String(), req.Template.Name,
			fmt.Errorf("failed to parse template: %w", err))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req.Data); err != nil {
		return nil, document.NewRenderEngineError("failed to execute template", err)
	}

	return &RenderTemplateResult{
		HTML:           buf.String(),
		RenderDuration: time.Since(startTime),
	}, nil
}

func titleCase(s string) string {
	return cases.Title(language.English, cases.NoLower).String(s)
}

// flagClass maps a flag to the CSS class used by the bundled templates.
func flagClass(f document.Flag) string {
	f = f.Normalize()
	if !f.IsAbnormal() {
		return "flag-normal"
	}
	return "flag-" + strings.ReplaceAll(string(f), "_", "-")
}

// defaultText prints def in place of a blank value.
func defaultText(value any, def string) any {
	switch v := value.(type) {
	case nil:
		return def
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
	case document.Text:
		if strings.TrimSpace(string(v)) == "" {
			return def
		}
	}
	return value
}
