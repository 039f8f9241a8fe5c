package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Flag is the qualitative marker of a result against its reference range.
type Flag string

const (
	FlagNormal       Flag = "normal"
	FlagHigh         Flag = "high"
	FlagLow          Flag = "low"
	FlagCriticalHigh Flag = "critical_high"
	FlagCriticalLow  Flag = "critical_low"
)

// Normalize maps the empty flag to normal and lower-cases the value.
func (f Flag) Normalize() Flag {
	n := Flag(strings.ToLower(strings.TrimSpace(string(f))))
	if n == "" {
		return FlagNormal
	}
	return n
}

// IsValid checks if the Flag is a known value
func (f Flag) IsValid() bool {
	switch f.Normalize() {
	case FlagNormal, FlagHigh, FlagLow, FlagCriticalHigh, FlagCriticalLow:
		return true
	}
	return false
}

// IsAbnormal returns true for every flag other than normal. Abnormal rows
// must always be rendered with the emphasized style.
func (f Flag) IsAbnormal() bool {
	n := f.Normalize()
	return n.IsValid() && n != FlagNormal
}

// IsCritical returns true for critical_high and critical_low
func (f Flag) IsCritical() bool {
	n := f.Normalize()
	return n == FlagCriticalHigh || n == FlagCriticalLow
}

// Direction returns 1 for high flags, -1 for low flags and 0 otherwise.
func (f Flag) Direction() int {
	switch f.Normalize() {
	case FlagHigh, FlagCriticalHigh:
		return 1
	case FlagLow, FlagCriticalLow:
		return -1
	}
	return 0
}

// Glyph returns the up/down arrow shown next to abnormal results.
func (f Flag) Glyph() string {
	switch f.Direction() {
	case 1:
		return "▲"
	case -1:
		return "▼"
	}
	return ""
}

// Code returns the short printed code: H, L, HH, LL or empty.
func (f Flag) Code() string {
	switch f.Normalize() {
	case FlagHigh:
		return "H"
	case FlagLow:
		return "L"
	case FlagCriticalHigh:
		return "HH"
	case FlagCriticalLow:
		return "LL"
	}
	return ""
}

// String returns the string representation of Flag
func (f Flag) String() string {
	return string(f.Normalize())
}

// Text is a display string that also accepts JSON numbers, so upstream
// producers may send {"age": 42} or {"age": "42 y"}.
type Text string

// UnmarshalJSON implements json.Unmarshaler
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("text value must be a string or number: %w", err)
	}
	*t = Text(n.String())
	return nil
}

// String returns the plain string
func (t Text) String() string {
	return string(t)
}

// PatientInfo holds patient demographics printed on every document.
type PatientInfo struct {
	Name      string `json:"name"`
	PatientID string `json:"patientId" validate:"required"`
	Age       Text   `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
}

// VisitInfo identifies the visit the samples belong to.
type VisitInfo struct {
	VisitID        string `json:"visitId" validate:"required"`
	CollectionDate Text   `json:"collectionDate,omitempty"`
	ReportDate     Text   `json:"reportDate,omitempty"`
}

// HistoryPoint is one historical value of a test.
type HistoryPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

var historyDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON accepts RFC3339 timestamps as well as plain dates.
func (p *HistoryPoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date  string          `json:"date"`
		Value decimal.Decimal `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := parseHistoryDate(raw.Date)
	if err != nil {
		return err
	}
	p.Date = date
	p.Value = raw.Value
	return nil
}

func parseHistoryDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range historyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized history date %q", s)
}

// TestResultRow is one line of the results table.
type TestResultRow struct {
	TestName       string         `json:"testName"`
	Department     string         `json:"department"`
	Result         Text           `json:"result,omitempty"`
	Units          string         `json:"units,omitempty"`
	ReferenceRange string         `json:"referenceRange,omitempty"`
	Flag           Flag           `json:"flag,omitempty" validate:"omitempty,flag"`
	History        []HistoryPoint `json:"history,omitempty"`
}

// DocumentOptions toggles optional document content.
type DocumentOptions struct {
	IncludeHistoryGraph bool `json:"includeHistoryGraph"`
}

// ReportRequest is the document model assembled upstream for one print
// action.
type ReportRequest struct {
	DocumentType    string          `json:"documentType"`
	PatientInfo     PatientInfo     `json:"patientInfo"`
	VisitInfo       VisitInfo       `json:"visitInfo"`
	Tests           []TestResultRow `json:"tests" validate:"dive"`
	DocumentOptions DocumentOptions `json:"documentOptions"`
	Lang            string          `json:"lang,omitempty"`
}

// IncludeHistoryGraph reports whether trend graphs should be computed.
func (r *ReportRequest) IncludeHistoryGraph() bool {
	return r != nil && r.DocumentOptions.IncludeHistoryGraph
}
