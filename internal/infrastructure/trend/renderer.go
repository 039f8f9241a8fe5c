// Package trend draws the small history sparklines printed next to results.
package trend

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"slices"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/labdocs/backend/internal/domain/document"
)

// MinPoints is the fewest history points that produce a graph.
const MinPoints = 2

// Graph is a rendered sparkline.
type Graph struct {
	PNG []byte
	// Width and Height are the intended print size in points.
	Width  float64
	Height float64
	Points int
}

// DataURI returns the PNG as a data URI for inline HTML embedding.
func (g *Graph) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(g.PNG)
}

// Config controls sparkline geometry and colors.
type Config struct {
	Width       float64 // print width in points
	Height      float64 // print height in points
	Scale       int     // raster pixels per point
	Padding     int
	StrokeWidth float64
	StrokeColor drawing.Color
	FillColor   drawing.Color
}

// DefaultConfig returns the 180x60 sparkline style.
func DefaultConfig() Config {
	return Config{
		Width:       180,
		Height:      60,
		Scale:       2,
		Padding:     4,
		StrokeWidth: 2,
		StrokeColor: drawing.Color{R: 37, G: 99, B: 235, A: 255},
		FillColor:   drawing.Color{R: 37, G: 99, B: 235, A: 48},
	}
}

// Renderer renders history points as a filled line with no axes or legend.
// It is stateless and safe for concurrent use.
type Renderer struct {
	config Config
}

// NewRenderer creates a Renderer. Zero config fields fall back to defaults.
func NewRenderer(cfg Config) *Renderer {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Scale <= 0 {
		cfg.Scale = def.Scale
	}
	if cfg.StrokeWidth <= 0 {
		cfg.StrokeWidth = def.StrokeWidth
	}
	if cfg.StrokeColor.IsZero() {
		cfg.StrokeColor = def.StrokeColor
	}
	if cfg.FillColor.IsZero() {
		cfg.FillColor = def.FillColor
	}
	return &Renderer{config: cfg}
}

// Render draws history. Fewer than MinPoints points yields (nil, nil): the
// row is printed without a graph.
func (r *Renderer) Render(ctx context.Context, history []document.HistoryPoint) (*Graph, error) {
	if len(history) < MinPoints {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	xs, ys := series(history)
	minY, maxY := padRange(ys)

	graph := chart.Chart{
		Width:  int(math.Round(r.config.Width)) * r.config.Scale,
		Height: int(math.Round(r.config.Height)) * r.config.Scale,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    r.config.Padding,
				Left:   r.config.Padding,
				Right:  r.config.Padding,
				Bottom: r.config.Padding,
			},
			FillColor: drawing.ColorWhite,
		},
		Canvas: chart.Style{FillColor: drawing.ColorWhite},
		XAxis:  chart.XAxis{Style: chart.Style{Hidden: true}},
		YAxis: chart.YAxis{
			Style: chart.Style{Hidden: true},
			Range: &chart.ContinuousRange{Min: minY, Max: maxY},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: r.config.StrokeColor,
					StrokeWidth: r.config.StrokeWidth * float64(r.config.Scale),
					FillColor:   r.config.FillColor,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render trend graph: %w", err)
	}

	return &Graph{
		PNG:    buf.Bytes(),
		Width:  r.config.Width,
		Height: r.config.Height,
		Points: len(history),
	}, nil
}

// series sorts points chronologically and returns x as days since the
// first point. When every point shares one timestamp the x values fall
// back to the point index.
func series(history []document.HistoryPoint) ([]float64, []float64) {
	points := slices.Clone(history)
	slices.SortStableFunc(points, func(a, b document.HistoryPoint) int {
		return a.Date.Compare(b.Date)
	})

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	first := points[0].Date
	for i, p := range points {
		xs[i] = p.Date.Sub(first).Hours() / 24
		ys[i] = p.Value.InexactFloat64()
	}
	if xs[len(xs)-1] == xs[0] {
		for i := range xs {
			xs[i] = float64(i)
		}
	}
	return xs, ys
}

// padRange returns a y range with headroom so the line never touches the
// edge and a constant series still has a non-zero range.
func padRange(ys []float64) (float64, float64) {
	lo, hi := slices.Min(ys), slices.Max(ys)
	span := hi - lo
	if span == 0 {
		span = math.Max(math.Abs(hi), 1)
	}
	pad := span * 0.1
	return lo - pad, hi + pad
}
