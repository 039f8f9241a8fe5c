package canvas

// Labels translates the fixed captions printed on documents.
type Labels interface {
	Label(key string) string
}

// LabelsFunc resolves the Labels for a language tag.
type LabelsFunc func(lang string) Labels

// Caption keys shared with the HTML templates' locale bundles.
const (
	LabelReportTitle  = "report.title"
	LabelContinued    = "report.continued"
	LabelPage         = "report.page"
	LabelOf           = "report.of"
	LabelNoResults    = "report.noResults"
	LabelSlipTitle    = "slip.title"
	LabelSlipAll      = "slip.allDepartments"
	LabelSlipTests    = "slip.tests"
	LabelSlipNoTests  = "slip.noTests"
	LabelName         = "field.name"
	LabelPatientID    = "field.patientId"
	LabelAge          = "field.age"
	LabelGender       = "field.gender"
	LabelVisitID      = "field.visitId"
	LabelCollected    = "field.collected"
	LabelReported     = "field.reported"
	LabelColumnTest   = "column.test"
	LabelColumnResult = "column.result"
	LabelColumnUnits  = "column.units"
	LabelColumnRange  = "column.range"
	LabelColumnFlag   = "column.flag"
)

// DefaultLabels are the English captions.
var DefaultLabels = MapLabels{
	LabelReportTitle:  "Laboratory Results Report",
	LabelContinued:    "continued",
	LabelPage:         "Page",
	LabelOf:           "of",
	LabelNoResults:    "No results",
	LabelSlipTitle:    "Work Slip",
	LabelSlipAll:      "All departments",
	LabelSlipTests:    "Tests",
	LabelSlipNoTests:  "No tests for this department",
	LabelName:         "Name",
	LabelPatientID:    "Patient ID",
	LabelAge:          "Age",
	LabelGender:       "Sex",
	LabelVisitID:      "Visit",
	LabelCollected:    "Collected",
	LabelReported:     "Reported",
	LabelColumnTest:   "Test",
	LabelColumnResult: "Result",
	LabelColumnUnits:  "Units",
	LabelColumnRange:  "Reference Range",
	LabelColumnFlag:   "Flag",
}

// MapLabels is a Labels backed by a map. Missing keys return the key.
type MapLabels map[string]string

// Label implements Labels
func (m MapLabels) Label(key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return key
}

func columnLabels(l Labels) [5]string {
	return [5]string{
		l.Label(LabelColumnTest),
		l.Label(LabelColumnResult),
		l.Label(LabelColumnUnits),
		l.Label(LabelColumnRange),
		l.Label(LabelColumnFlag),
	}
}
