package document

import (
	"strings"

	"golang.org/x/text/cases"
)

// UnassignedDepartment labels rows that arrive without a department.
const UnassignedDepartment = "General"

// DepartmentGroup is a run of rows sharing one department.
type DepartmentGroup struct {
	Name string
	Rows []TestResultRow
}

// GroupByDepartment groups rows by department preserving the order in which
// each department first appears (not alphabetical). Department names are
// compared case-insensitively; the first spelling seen is kept.
func GroupByDepartment(rows []TestResultRow) []DepartmentGroup {
	fold := cases.Fold()
	index := make(map[string]int)
	var groups []DepartmentGroup

	for _, row := range rows {
		name := departmentName(row.Department)
		key := fold.String(name)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DepartmentGroup{Name: name})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups
}

// FilterByDepartment returns the rows whose department matches dept,
// using Unicode case folding.
func FilterByDepartment(rows []TestResultRow, dept string) []TestResultRow {
	fold := cases.Fold()
	want := fold.String(departmentName(dept))

	var out []TestResultRow
	for _, row := range rows {
		if fold.String(departmentName(row.Department)) == want {
			out = append(out, row)
		}
	}
	return out
}

// SameDepartment reports whether two department names refer to the same
// department.
func SameDepartment(a, b string) bool {
	fold := cases.Fold()
	return fold.String(departmentName(a)) == fold.String(departmentName(b))
}

func departmentName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnassignedDepartment
	}
	return s
}
