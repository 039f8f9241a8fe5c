package trend

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labdocs/backend/internal/domain/document"
)

func history(values ...float64) []document.HistoryPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]document.HistoryPoint, len(values))
	for i, v := range values {
		out[i] = document.HistoryPoint{Date: start.AddDate(0, 0, 7*i), Value: decimal.NewFromFloat(v)}
	}
	return out
}

func TestRender_TooFewPoints(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	for _, h := range [][]document.HistoryPoint{nil, history(5.2)} {
		g, err := r.Render(context.Background(), h)
		assert.NoError(t, err)
		assert.Nil(t, g)
	}
}

func TestRender_ProducesPNG(t *testing.T) {
	r := NewRenderer(DefaultConfig())

	g, err := r.Render(context.Background(), history(5.1, 5.8, 6.4, 5.9))
	require.NoError(t, err)
	require.NotNil(t, g)

	img, err := png.Decode(bytes.NewReader(g.PNG))
	require.NoError(t, err)
	assert.Equal(t, 360, img.Bounds().Dx())
	assert.Equal(t, 120, img.Bounds().Dy())
	assert.Equal(t, 180.0, g.Width)
	assert.Equal(t, 60.0, g.Height)
	assert.Equal(t, 4, g.Points)
	assert.True(t, strings.HasPrefix(g.DataURI(), "data:image/png;base64,"))
}

func TestRender_FlatSeries(t *testing.T) {
	g, err := NewRenderer(DefaultConfig()).Render(context.Background(), history(4, 4, 4))
	require.NoError(t, err)
	require.NotNil(t, g)
}

func TestRender_SameTimestamp(t *testing.T) {
	h := history(1, 2)
	h[1].Date = h[0].Date
	g, err := NewRenderer(DefaultConfig()).Render(context.Background(), h)
	require.NoError(t, err)
	require.NotNil(t, g)
}

func TestRender_UnsortedInputIsDeterministic(t *testing.T) {
	r := NewRenderer(DefaultConfig())
	ordered := history(1, 3, 2)
	shuffled := []document.HistoryPoint{ordered[2], ordered[0], ordered[1]}

	a, err := r.Render(context.Background(), ordered)
	require.NoError(t, err)
	b, err := r.Render(context.Background(), shuffled)
	require.NoError(t, err)
	assert.Equal(t, a.PNG, b.PNG)
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRenderer(DefaultConfig()).Render(ctx, history(1, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeries(t *testing.T) {
	h := history(10, 20)
	xs, ys := series([]document.HistoryPoint{h[1], h[0]})
	assert.Equal(t, []float64{0, 7}, xs)
	assert.Equal(t, []float64{10, 20}, ys)
}

func TestPadRange(t *testing.T) {
	lo, hi := padRange([]float64{4, 4})
	assert.Less(t, lo, 4.0)
	assert.Greater(t, hi, 4.0)

	lo, hi = padRange([]float64{0, 0})
	assert.Equal(t, -0.1, lo)
	assert.Equal(t, 0.1, hi)
}
