package document

import "fmt"

const (
	pointsPerInch      = 72.0
	millimetersPerInch = 25.4
)

// MMToPoints converts millimeters to PDF points.
func MMToPoints(mm float64) float64 {
	return mm * pointsPerInch / millimetersPerInch
}

// PointsToMM converts PDF points to millimeters.
func PointsToMM(pt float64) float64 {
	return pt * millimetersPerInch / pointsPerInch
}

// Point is a position in PDF points.
type Point struct {
	X float64
	Y float64
}

// Size is a width/height pair in PDF points.
type Size struct {
	Width  float64
	Height float64
}

// Rect is an axis-aligned rectangle; Origin is the bottom-left corner in
// PDF user space.
type Rect struct {
	Origin Point
	Size   Size
}

// MaxX returns the right edge
func (r Rect) MaxX() float64 { return r.Origin.X + r.Size.Width }

// MaxY returns the top edge
func (r Rect) MaxY() float64 { return r.Origin.Y + r.Size.Height }

// Overlaps reports whether the interiors of two rectangles intersect.
// Shared edges do not count as overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.Origin.X < o.MaxX() && o.Origin.X < r.MaxX() &&
		r.Origin.Y < o.MaxY() && o.Origin.Y < r.MaxY()
}

// Within reports whether the rectangle lies inside a page of the given size.
func (r Rect) Within(page Size) bool {
	return r.Origin.X >= 0 && r.Origin.Y >= 0 && r.MaxX() <= page.Width && r.MaxY() <= page.Height
}

var (
	// A4 is the ISO A4 page in points.
	A4 = Size{Width: 595.28, Height: 841.89}
	// SlipCard is the 70mm x 99mm work slip card.
	SlipCard = Size{Width: MMToPoints(70), Height: MMToPoints(99)}
)

const (
	defaultGridColumns = 3
	defaultGridRows    = 3
)

// SlipLayout is the immutable geometry used to tile slips on a sheet.
// It is a value type; components receive their own copy.
type SlipLayout struct {
	page    Size
	slip    Size
	columns int
	rows    int
}

// DefaultSlipLayout returns the 3x3 grid of 70x99mm slips on A4.
func DefaultSlipLayout() SlipLayout {
	l, err := NewSlipLayout(A4, SlipCard)
	if err != nil {
		panic(err)
	}
	return l
}

// NewSlipLayout builds a 3x3 layout for the given page and slip sizes. It
// fails when the slips do not fit on the page.
func NewSlipLayout(page, slip Size) (SlipLayout, error) {
	return NewGridLayout(page, slip, defaultGridColumns, defaultGridRows)
}

// NewGridLayout builds a layout with an arbitrary grid.
func NewGridLayout(page, slip Size, columns, rows int) (SlipLayout, error) {
	if columns < 1 || rows < 1 {
		return SlipLayout{}, fmt.Errorf("grid must have at least one row and column, got %dx%d", columns, rows)
	}
	if slip.Width <= 0 || slip.Height <= 0 || page.Width <= 0 || page.Height <= 0 {
		return SlipLayout{}, fmt.Errorf("page and slip sizes must be positive")
	}
	l := SlipLayout{page: page, slip: slip, columns: columns, rows: rows}
	if l.MarginX() < 0 || l.MarginY() < 0 {
		return SlipLayout{}, fmt.Errorf("%dx%d slips of %.2fx%.2fpt do not fit on a %.2fx%.2fpt page",
			columns, rows, slip.Width, slip.Height, page.Width, page.Height)
	}
	return l, nil
}

// Page returns the sheet size
func (l SlipLayout) Page() Size { return l.page }

// Slip returns the slip size
func (l SlipLayout) Slip() Size { return l.slip }

// Columns returns the number of tile columns
func (l SlipLayout) Columns() int { return l.columns }

// Rows returns the number of tile rows
func (l SlipLayout) Rows() int { return l.rows }

// TileCount returns the number of tiles per sheet
func (l SlipLayout) TileCount() int { return l.columns * l.rows }

// MarginX is the horizontal gap, identical at both edges and between
// columns: (pageWidth - n*slipWidth) / (n+1).
func (l SlipLayout) MarginX() float64 {
	return (l.page.Width - float64(l.columns)*l.slip.Width) / float64(l.columns+1)
}

// MarginY is the vertical gap, computed like MarginX.
func (l SlipLayout) MarginY() float64 {
	return (l.page.Height - float64(l.rows)*l.slip.Height) / float64(l.rows+1)
}

// TileOrigins returns the bottom-left corner of every tile in PDF user space
// (origin at the bottom-left of the page), row-major from the top-left tile.
func (l SlipLayout) TileOrigins() []Point {
	mx, my := l.MarginX(), l.MarginY()
	origins := make([]Point, 0, l.TileCount())
	for row := 0; row < l.rows; row++ {
		y := l.page.Height - my - float64(row)*(l.slip.Height+my) - l.slip.Height
		for col := 0; col < l.columns; col++ {
			x := mx + float64(col)*(l.slip.Width+mx)
			origins = append(origins, Point{X: x, Y: y})
		}
	}
	return origins
}

// TileRects returns the tile rectangles in the order of TileOrigins.
func (l SlipLayout) TileRects() []Rect {
	origins := l.TileOrigins()
	rects := make([]Rect, len(origins))
	for i, o := range origins {
		rects[i] = Rect{Origin: o, Size: l.slip}
	}
	return rects
}

// TopLeft converts a tile origin to the top-left corner measured from the
// top of the page, as drawing libraries with a top-left origin expect.
func (l SlipLayout) TopLeft(origin Point) Point {
	return Point{X: origin.X, Y: l.page.Height - origin.Y - l.slip.Height}
}
