package document

import "time"

// Job is everything a rendering backend needs for one request.
type Job struct {
	RequestID   string
	Type        DocumentType
	Request     *ReportRequest
	Lang        string
	RequestedAt time.Time
}

// Rows returns the rows the document prints: every test, or only the
// department's tests for a department slip.
func (j *Job) Rows() []TestResultRow {
	if j.Request == nil {
		return nil
	}
	if j.Type.Kind == KindDepartmentSlip {
		return FilterByDepartment(j.Request.Tests, j.Type.Department)
	}
	return j.Request.Tests
}
