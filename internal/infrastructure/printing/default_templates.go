package printing

import (
	"embed"
	"fmt"

	"github.com/labdocs/backend/internal/domain/document"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultTemplate describes a bundled document template
type DefaultTemplate struct {
	Kind         document.Kind
	Name         string
	Description  string
	PageWidthMM  float64
	PageHeightMM float64
	Margins      Margins
	FilePath     string // Path within embed.FS
}

// GetDefaultTemplates returns all bundled template configurations
func GetDefaultTemplates() []DefaultTemplate {
	return []DefaultTemplate{
		{
			Kind:         document.KindResultsReport,
			Name:         "results-report-a4",
			Description:  "Unified multi-department results report with demographics, codes and optional trend graphs",
			PageWidthMM:  210,
			PageHeightMM: 297,
			FilePath:     "templates/results_report.html",
		},
		{
			Kind:         document.KindAuditSheet,
			Name:         "audit-sheet-a4",
			Description:  "QC checklist listing every ordered test with verification columns and sign-off block",
			PageWidthMM:  210,
			PageHeightMM: 297,
			FilePath:     "templates/audit_sheet.html",
		},
	}
}

// LoadTemplateContent loads template content from the embedded filesystem
func LoadTemplateContent(filePath string) (string, error) {
	content, err := templateFS.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}
	return string(content), nil
}

// GetDefaultTemplateForKind returns the bundled template for a document kind
func GetDefaultTemplateForKind(kind document.Kind) *DefaultTemplate {
	templates := GetDefaultTemplates()
	for i := range templates {
		if templates[i].Kind == kind {
			return &templates[i]
		}
	}
	return nil
}
