// Package render draws dashboard views as PNG or SVG charts.
package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/lox/stravaexplorer/internal/explore"
	"github.com/lox/stravaexplorer/internal/models"
	"github.com/lox/stravaexplorer/internal/stats"
)

type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case PNG:
		return PNG, true
	case SVG:
		return SVG, true
	}
	return "", false
}

func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == SVG {
		return chart.SVG
	}
	return chart.PNG
}

const (
	DefaultWidth  = 800
	DefaultHeight = 420
)

// Renderer turns views into encoded images of a fixed size.
type Renderer struct {
	Width  int
	Height int
	Format Format
}

func New(format Format) *Renderer {
	return &Renderer{Width: DefaultWidth, Height: DefaultHeight, Format: format}
}

var (
	palette = map[models.TimeOfDay]drawing.Color{
		models.Night:     drawing.ColorFromHex("4C72B0"),
		models.Morning:   drawing.ColorFromHex("DD8452"),
		models.Afternoon: drawing.ColorFromHex("55A868"),
		models.Evening:   drawing.ColorFromHex("C44E52"),
	}
	barColor        = drawing.ColorFromHex("4C72B0")
	curveColor      = drawing.ColorFromHex("1F3A68")
	regressionColor = drawing.ColorFromHex("808080")
)

func groupColor(tod models.TimeOfDay) drawing.Color {
	if c, ok := palette[tod]; ok {
		return c
	}
	return drawing.ColorFromHex("999999")
}

// pointStyle renders dots without connecting lines.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    3,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color, width float64) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: width,
	}
}

// padded spans the finite values of xs, widened by frac of that span on
// both sides.
func padded(frac float64, xs ...[]float64) *chart.ContinuousRange {
	lo, hi, ok := stats.Range(xs...)
	if !ok {
		lo, hi = 0, 1
	}
	p := (hi - lo) * frac
	return &chart.ContinuousRange{Min: lo - p, Max: hi + p}
}

func (r *Renderer) encode(ch chart.Chart) ([]byte, error) {
	ch.Width = r.Width
	ch.Height = r.Height
	ch.Background = chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 16, Bottom: 12}}

	var buf bytes.Buffer
	if err := ch.Render(r.Format.provider(), &buf); err != nil {
		return nil, fmt.Errorf("render %q: %w", ch.Title, err)
	}
	return buf.Bytes(), nil
}

// Density draws one filled kernel density curve per time-of-day group.
func (r *Renderer) Density(v *explore.DensityView) ([]byte, error) {
	if v.Warning != "" {
		return r.Placeholder(v.Warning)
	}
	if len(v.Curves) == 0 {
		return r.Placeholder(explore.WarnNoDensityCurve)
	}

	var series []chart.Series
	var xs [][]float64
	maxY := 0.0
	for _, gc := range v.Curves {
		col := groupColor(gc.Group)
		st := lineStyle(col, 2)
		st.FillColor = col.WithAlpha(60)
		series = append(series, chart.ContinuousSeries{
			Name:    string(gc.Group),
			XValues: gc.Curve.X,
			YValues: gc.Curve.Y,
			Style:   st,
		})
		xs = append(xs, gc.Curve.X)
		maxY = math.Max(maxY, gc.Curve.Max())
	}
	lo, hi, _ := stats.Extent(xs...)

	ch := chart.Chart{
		Title:  fmt.Sprintf("Density Plot of %s", v.Metric),
		XAxis:  chart.XAxis{Name: string(v.Metric), Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		YAxis:  chart.YAxis{Name: "Density", Range: &chart.ContinuousRange{Min: 0, Max: nonZero(maxY) * 1.05}},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return r.encode(ch)
}

// Box draws a Tukey box plot per time-of-day group, placed at x = 1..n.
func (r *Renderer) Box(v *explore.BoxView) ([]byte, error) {
	if v.Warning != "" {
		return r.Placeholder(v.Warning)
	}
	if len(v.Boxes) == 0 {
		return r.Placeholder(explore.WarnBoxplot)
	}

	const half = 0.3
	var series []chart.Series
	var ticks []chart.Tick
	var ys [][]float64
	for i, b := range v.Boxes {
		x := float64(i + 1)
		col := groupColor(models.TimeOfDay(b.Label))
		ticks = append(ticks, chart.Tick{Value: x, Label: b.Label})

		body := lineStyle(col, 1.5)
		body.FillColor = col.WithAlpha(110)
		series = append(series,
			chart.ContinuousSeries{
				XValues: []float64{x - half, x + half, x + half, x - half, x - half},
				YValues: []float64{b.Q1, b.Q1, b.Q3, b.Q3, b.Q1},
				Style:   body,
			},
			chart.ContinuousSeries{
				XValues: []float64{x - half, x + half},
				YValues: []float64{b.Median, b.Median},
				Style:   lineStyle(drawing.ColorBlack, 2),
			},
			chart.ContinuousSeries{
				XValues: []float64{x, x},
				YValues: []float64{b.WhiskerLow, b.Q1},
				Style:   lineStyle(col, 1),
			},
			chart.ContinuousSeries{
				XValues: []float64{x, x},
				YValues: []float64{b.Q3, b.WhiskerHigh},
				Style:   lineStyle(col, 1),
			},
			chart.ContinuousSeries{
				XValues: []float64{x - half/2, x + half/2},
				YValues: []float64{b.WhiskerLow, b.WhiskerLow},
				Style:   lineStyle(col, 1),
			},
			chart.ContinuousSeries{
				XValues: []float64{x - half/2, x + half/2},
				YValues: []float64{b.WhiskerHigh, b.WhiskerHigh},
				Style:   lineStyle(col, 1),
			},
		)
		if len(b.Outliers) > 0 {
			ox := make([]float64, len(b.Outliers))
			for j := range ox {
				ox[j] = x
			}
			series = append(series, chart.ContinuousSeries{XValues: ox, YValues: b.Outliers, Style: pointStyle(col)})
		}
		ys = append(ys, []float64{b.WhiskerLow, b.WhiskerHigh}, b.Outliers)
	}
	ch := chart.Chart{
		Title: fmt.Sprintf("Boxplot of %s by Time of Day", v.Metric),
		XAxis: chart.XAxis{
			Name:  "Time of Day",
			Range: &chart.ContinuousRange{Min: 1 - 2*half, Max: float64(len(v.Boxes)) + 2*half},
			Ticks: ticks,
		},
		YAxis:  chart.YAxis{Name: string(v.Metric), Range: padded(0.05, ys...)},
		Series: series,
	}
	return r.encode(ch)
}

// Scatter draws the points of each time-of-day group, with the fitted line
// dashed across the x range when present.
func (r *Renderer) Scatter(v *explore.ScatterView) ([]byte, error) {
	if v.Warning != "" {
		return r.Placeholder(v.Warning)
	}
	if len(v.Groups) == 0 {
		return r.Placeholder(explore.WarnScatter)
	}

	var series []chart.Series
	var ys [][]float64
	for _, g := range v.Groups {
		series = append(series, chart.ContinuousSeries{
			Name:    string(g.Group),
			XValues: g.X,
			YValues: g.Y,
			Style:   pointStyle(groupColor(g.Group)),
		})
		ys = append(ys, g.Y)
	}
	if v.Regression != nil {
		st := lineStyle(regressionColor, 2)
		st.StrokeDashArray = []float64{6, 4}
		line := []float64{v.Regression.At(v.XMin), v.Regression.At(v.XMax)}
		series = append(series, chart.ContinuousSeries{
			Name:    "Regression",
			XValues: []float64{v.XMin, v.XMax},
			YValues: line,
			Style:   st,
		})
		ys = append(ys, line)
	}

	ch := chart.Chart{
		Title:  v.Title,
		XAxis:  chart.XAxis{Name: string(v.X), Range: padded(0.05, []float64{v.XMin, v.XMax})},
		YAxis:  chart.YAxis{Name: string(v.Y), Range: padded(0.05, ys...)},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return r.encode(ch)
}

// Histogram draws the bins as a filled step outline with the scaled density
// curve on top.
func (r *Renderer) Histogram(v explore.HistogramView, title string) ([]byte, error) {
	if len(v.Bins) == 0 {
		return r.Placeholder(explore.WarnNoData)
	}

	xs := []float64{v.Bins[0].Lo}
	ys := []float64{0}
	maxY := 0.0
	for _, b := range v.Bins {
		c := float64(b.Count)
		xs = append(xs, b.Lo, b.Hi)
		ys = append(ys, c, c)
		maxY = math.Max(maxY, c)
	}
	last := v.Bins[len(v.Bins)-1]
	xs = append(xs, last.Hi)
	ys = append(ys, 0)

	bars := lineStyle(barColor, 1)
	bars.FillColor = barColor.WithAlpha(120)
	series := []chart.Series{
		chart.ContinuousSeries{Name: "Count", XValues: xs, YValues: ys, Style: bars},
	}
	lo, hi := v.Bins[0].Lo, last.Hi
	if v.Density != nil {
		series = append(series, chart.ContinuousSeries{
			Name:    "KDE",
			XValues: v.Density.X,
			YValues: v.Density.Y,
			Style:   lineStyle(curveColor, 2),
		})
		maxY = math.Max(maxY, v.Density.Max())
		lo, hi, _ = stats.Extent([]float64{lo, hi}, v.Density.X)
	}

	ch := chart.Chart{
		Title:  title,
		XAxis:  chart.XAxis{Name: string(v.Metric), Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		YAxis:  chart.YAxis{Name: "Count", Range: &chart.ContinuousRange{Min: 0, Max: nonZero(maxY) * 1.05}},
		Series: series,
	}
	return r.encode(ch)
}

func nonZero(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
