package canvas

import (
	"fmt"

	"github.com/labdocs/backend/internal/domain/document"
	"github.com/labdocs/backend/internal/infrastructure/trend"
)

// TableRow is one results table row with its optional trend graph.
type TableRow struct {
	document.TestResultRow
	Graph *trend.Graph
}

// Section is the rows of one department in print order.
type Section struct {
	Department string
	Rows       []TableRow
}

// SectionsFromGroups wraps department groups as sections without graphs.
func SectionsFromGroups(groups []document.DepartmentGroup) []Section {
	sections := make([]Section, len(groups))
	for i, g := range groups {
		rows := make([]TableRow, len(g.Rows))
		for j, r := range g.Rows {
			rows[j] = TableRow{TestResultRow: r}
		}
		sections[i] = Section{Department: g.Name, Rows: rows}
	}
	return sections
}

// BlockKind identifies what a block draws
type BlockKind int

const (
	BlockDepartmentHeader BlockKind = iota
	BlockColumnHeader
	BlockRow
)

// Block is one positioned element of a page. Y is measured from the top of
// the page.
type Block struct {
	Kind       BlockKind
	Y          float64
	Height     float64
	Department string
	// Continued marks a department header reprinted on a new page.
	Continued bool
	Row       *TableRow
}

// Page is one laid out page of the results table.
type Page struct {
	Number int
	Blocks []Block
}

// Paginator splits department sections into pages. It keeps every row
// whole, reprints the department and column headers at the top of each
// continuation page and never leaves a department header alone at the
// bottom of a page.
type Paginator struct {
	geometry ReportGeometry
	measurer Measurer
}

// NewPaginator creates a Paginator
func NewPaginator(geometry ReportGeometry, measurer Measurer) *Paginator {
	return &Paginator{geometry: geometry, measurer: measurer}
}

// RowHeight returns the height of a row: the tallest wrapped cell plus
// padding, with room for the trend graph when present.
func (p *Paginator) RowHeight(row *TableRow) float64 {
	g := p.geometry
	widths := g.ColumnWidths()
	cells := RowCells(row.TestResultRow)

	lines := 1
	for i, text := range cells {
		bold := i > 0 && row.Flag.IsAbnormal()
		lines = max(lines, p.measurer.Lines(text, widths[i]-2*g.CellPadding, bold))
	}
	h := float64(lines)*g.LineHeight + 2*g.CellPadding
	if row.Graph != nil {
		h += g.GraphHeight + g.CellPadding
	}
	return h
}

// Paginate lays out the sections. A report without rows still yields one
// page. A row taller than an empty continuation page fails with an
// OVERFLOW error.
func (p *Paginator) Paginate(sections []Section) ([]Page, error) {
	g := p.geometry
	bottom := g.BodyBottom()
	headers := g.DepartmentHeight + g.ColumnHeaderHeight
	maxRow := bottom - g.BodyTop(2) - headers
	if maxRow <= 0 {
		return nil, document.NewOverflowError("report geometry leaves no room for table rows")
	}

	pages := []Page{{Number: 1}}
	cursor := g.BodyTop(1)

	newPage := func() {
		pages = append(pages, Page{Number: len(pages) + 1})
		cursor = g.BodyTop(len(pages))
	}
	place := func(b Block) {
		b.Y = cursor
		cursor += b.Height
		last := &pages[len(pages)-1]
		last.Blocks = append(last.Blocks, b)
	}
	placeHeaders := func(dept string, continued bool) {
		place(Block{Kind: BlockDepartmentHeader, Height: g.DepartmentHeight, Department: dept, Continued: continued})
		place(Block{Kind: BlockColumnHeader, Height: g.ColumnHeaderHeight, Department: dept})
	}

	for _, s := range sections {
		if len(s.Rows) == 0 {
			continue
		}
		for i := range s.Rows {
			row := &s.Rows[i]
			h := p.RowHeight(row)
			if h > maxRow {
				return nil, document.NewOverflowError(fmt.Sprintf(
					"row %q needs %.1fpt but a page holds at most %.1fpt", row.TestName, h, maxRow))
			}

			if i == 0 {
				// headers move with the first row so they are never orphaned
				if cursor+headers+h > bottom {
					newPage()
				}
				placeHeaders(s.Department, false)
			} else if cursor+h > bottom {
				newPage()
				placeHeaders(s.Department, true)
			}
			place(Block{Kind: BlockRow, Height: h, Department: s.Department, Row: row})
		}
	}
	return pages, nil
}

// RowCells returns the five printed cells of a row. Missing units and
// reference ranges print as a dash.
func RowCells(row document.TestResultRow) [5]string {
	return [5]string{
		row.TestName,
		placeholder(row.Result.String()),
		placeholder(row.Units),
		placeholder(row.ReferenceRange),
		row.Flag.Code(),
	}
}

func placeholder(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
