package document

import "strings"

// Kind identifies the family of a printable laboratory document.
type Kind string

const (
	KindResultsReport  Kind = "resultsReport"  // unified multi-department results report
	KindAuditSheet     Kind = "auditSheet"     // QC / audit checklist sheet
	KindLabSlip        Kind = "labSlip"        // one 70x99mm work slip on its own page
	KindMasterSlip     Kind = "masterSlip"     // 9 tiled slips listing every test
	KindDepartmentSlip Kind = "departmentSlip" // 9 tiled slips filtered to one department
)

// BackendKind identifies which rendering backend produces a document.
type BackendKind string

const (
	BackendCanvas BackendKind = "canvas" // low-level PDF drawing
	BackendHTML   BackendKind = "html"   // HTML template + headless browser
)

const departmentSlipPrefix = string(KindDepartmentSlip) + "-"

var kindBackends = map[Kind]BackendKind{
	KindResultsReport:  BackendHTML,
	KindAuditSheet:     BackendHTML,
	KindLabSlip:        BackendCanvas,
	KindMasterSlip:     BackendCanvas,
	KindDepartmentSlip: BackendCanvas,
}

// IsValid checks if the Kind is a known value
func (k Kind) IsValid() bool {
	_, ok := kindBackends[k]
	return ok
}

// Backend returns the rendering backend that owns this kind.
func (k Kind) Backend() BackendKind {
	return kindBackends[k]
}

// IsSlip returns true for the work slip family
func (k Kind) IsSlip() bool {
	return k == KindLabSlip || k == KindMasterSlip || k == KindDepartmentSlip
}

// IsGrid returns true when the slip is tiled nine times on an A4 sheet
func (k Kind) IsGrid() bool {
	return k == KindMasterSlip || k == KindDepartmentSlip
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// AllKinds returns all valid Kind values
func AllKinds() []Kind {
	return []Kind{KindResultsReport, KindAuditSheet, KindLabSlip, KindMasterSlip, KindDepartmentSlip}
}

// DocumentType is the parsed form of the wire document type string. The
// department is only set for KindDepartmentSlip.
type DocumentType struct {
	Kind       Kind
	Department string
}

// ParseDocumentType parses values such as "resultsReport" or
// "departmentSlip-Hematology". Unknown values fail with an
// UNSUPPORTED_DOCUMENT_TYPE error.
func ParseDocumentType(value string) (DocumentType, error) {
	v := strings.TrimSpace(value)

	if dept, ok := strings.CutPrefix(v, departmentSlipPrefix); ok {
		dept = strings.TrimSpace(dept)
		if dept == "" {
			return DocumentType{}, NewUnsupportedDocumentTypeError(value)
		}
		return DocumentType{Kind: KindDepartmentSlip, Department: dept}, nil
	}

	kind := Kind(v)
	if !kind.IsValid() || kind == KindDepartmentSlip {
		return DocumentType{}, NewUnsupportedDocumentTypeError(value)
	}
	return DocumentType{Kind: kind}, nil
}

// MustParseDocumentType is like ParseDocumentType but panics on error.
func MustParseDocumentType(value string) DocumentType {
	t, err := ParseDocumentType(value)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the wire representation
func (t DocumentType) String() string {
	if t.Kind == KindDepartmentSlip {
		return departmentSlipPrefix + t.Department
	}
	return string(t.Kind)
}

// Backend returns the backend that renders this document type.
func (t DocumentType) Backend() BackendKind {
	return t.Kind.Backend()
}
