// Package stats holds the numeric routines behind the dashboard's filters
// and charts: quartile fences, kernel density, histograms, box summaries
// and least-squares lines.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FenceCoef is the IQR multiplier for the outlier fence and box whiskers.
const FenceCoef = 1.5

// IsValid reports whether x is a usable reading: neither NaN nor infinite.
func IsValid(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Valid returns the finite values of xs in their original order.
func Valid(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if IsValid(x) {
			out = append(out, x)
		}
	}
	return out
}

func sortedCopy(xs []float64) []float64 {
	s := make([]float64, len(xs))
	copy(s, xs)
	sort.Float64s(s)
	return s
}

// Quantile returns the p-quantile of sorted data, interpolating linearly
// between order statistics at rank (n-1)*p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Fence is the inter-quartile outlier band [Lower, Upper].
type Fence struct {
	Q1    float64 `json:"q1"`
	Q3    float64 `json:"q3"`
	IQR   float64 `json:"iqr"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// NewFence computes the fence over the valid values of xs. It reports false
// when there are none.
func NewFence(xs []float64) (Fence, bool) {
	v := Valid(xs)
	if len(v) == 0 {
		return Fence{}, false
	}
	s := sortedCopy(v)
	q1 := Quantile(s, 0.25)
	q3 := Quantile(s, 0.75)
	iqr := q3 - q1
	return Fence{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: q1 - FenceCoef*iqr,
		Upper: q3 + FenceCoef*iqr,
	}, true
}

// Contains reports whether v lies inside the closed band. NaN never does.
func (f Fence) Contains(v float64) bool {
	return v >= f.Lower && v <= f.Upper
}

// Curve is a sampled function, used for density overlays.
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Max returns the largest Y value of the curve.
func (c Curve) Max() float64 {
	if len(c.Y) == 0 {
		return 0
	}
	return floats.Max(c.Y)
}

// Scale returns a copy of c with every Y multiplied by k.
func (c Curve) Scale(k float64) Curve {
	y := make([]float64, len(c.Y))
	copy(y, c.Y)
	floats.Scale(k, y)
	return Curve{X: c.X, Y: y}
}

const (
	// DensityGridSize is the number of points each density curve is sampled at.
	DensityGridSize = 200
	// DensityCut extends the grid this many bandwidths past the data.
	DensityCut = 3.0
)

// ScottBandwidth returns the Gaussian kernel bandwidth for xs by Scott's rule.
func ScottBandwidth(xs []float64) float64 {
	n := float64(len(xs))
	return stat.StdDev(xs, nil) * math.Pow(n, -1.0/5.0)
}

// Density estimates the probability density of the valid values of xs with
// a Gaussian kernel. The curve integrates to one. It reports false when
// fewer than two values remain or they have no spread.
func Density(xs []float64) (Curve, bool) {
	v := Valid(xs)
	if len(v) < 2 {
		return Curve{}, false
	}
	bw := ScottBandwidth(v)
	if bw <= 0 || math.IsNaN(bw) {
		return Curve{}, false
	}

	lo := floats.Min(v) - DensityCut*bw
	hi := floats.Max(v) + DensityCut*bw
	grid := floats.Span(make([]float64, DensityGridSize), lo, hi)

	norm := 1 / (float64(len(v)) * bw * math.Sqrt(2*math.Pi))
	ys := make([]float64, len(grid))
	for i, g := range grid {
		var sum float64
		for _, x := range v {
			z := (g - x) / bw
			sum += math.Exp(-0.5 * z * z)
		}
		ys[i] = sum * norm
	}
	return Curve{X: grid, Y: ys}, true
}

// Bin is one histogram bucket [Lo, Hi).
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Width returns Hi-Lo.
func (b Bin) Width() float64 { return b.Hi - b.Lo }

// Histogram counts the valid values of xs into n equal-width bins spanning
// their range. The last bin is closed on the right. A degenerate range is
// widened to [v-0.5, v+0.5].
func Histogram(xs []float64, n int) []Bin {
	v := Valid(xs)
	if len(v) == 0 || n <= 0 {
		return nil
	}
	lo, hi := floats.Min(v), floats.Max(v)
	if !IsValid(hi - lo) {
		return nil
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	edges := floats.Span(make([]float64, n+1), lo, hi)

	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Lo: edges[i], Hi: edges[i+1]}
	}
	for _, x := range v {
		idx := int((x - lo) / (hi - lo) * float64(n))
		if idx >= n {
			idx = n - 1
		}
		if idx > 0 && x < edges[idx] {
			idx--
		}
		if idx < n-1 && x >= edges[idx+1] {
			idx++
		}
		bins[idx].Count++
	}
	return bins
}

// BoxSummary describes one box of a box-and-whisker plot.
type BoxSummary struct {
	Label       string    `json:"label"`
	N           int       `json:"n"`
	Q1          float64   `json:"q1"`
	Median      float64   `json:"median"`
	Q3          float64   `json:"q3"`
	WhiskerLow  float64   `json:"whisker_low"`
	WhiskerHigh float64   `json:"whisker_high"`
	Outliers    []float64 `json:"outliers,omitempty"`
}

// Box summarises the valid values of xs. Whiskers reach the most extreme
// values inside the 1.5 IQR fence; anything beyond is an outlier.
func Box(label string, xs []float64) (BoxSummary, bool) {
	v := Valid(xs)
	if len(v) == 0 {
		return BoxSummary{}, false
	}
	s := sortedCopy(v)
	b := BoxSummary{
		Label:  label,
		N:      len(s),
		Q1:     Quantile(s, 0.25),
		Median: Quantile(s, 0.5),
		Q3:     Quantile(s, 0.75),
	}
	iqr := b.Q3 - b.Q1
	lower := b.Q1 - FenceCoef*iqr
	upper := b.Q3 + FenceCoef*iqr

	b.WhiskerLow = b.Q1
	b.WhiskerHigh = b.Q3
	for _, x := range s {
		if x >= lower {
			b.WhiskerLow = math.Min(x, b.Q1)
			break
		}
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] <= upper {
			b.WhiskerHigh = math.Max(s[i], b.Q3)
			break
		}
	}
	for _, x := range s {
		if x < lower || x > upper {
			b.Outliers = append(b.Outliers, x)
		}
	}
	return b, true
}

// Line is y = Intercept + Slope*x.
type Line struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

func (l Line) At(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// FitLine fits an ordinary least-squares line to the pairs where both x and
// y are valid. It needs at least two points with distinct x.
func FitLine(xs, ys []float64) (Line, bool) {
	px, py := Pairs(xs, ys)
	if len(px) < 2 {
		return Line{}, false
	}
	if stat.Variance(px, nil) == 0 {
		return Line{}, false
	}
	alpha, beta := stat.LinearRegression(px, py, nil, false)
	return Line{Slope: beta, Intercept: alpha}, true
}

// Pairs returns the elements of xs and ys at indices where both are valid.
func Pairs(xs, ys []float64) ([]float64, []float64) {
	n := min(len(xs), len(ys))
	px := make([]float64, 0, n)
	py := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if !IsValid(xs[i]) || !IsValid(ys[i]) {
			continue
		}
		px = append(px, xs[i])
		py = append(py, ys[i])
	}
	return px, py
}

// Extent returns the min and max of the finite values across all slices.
func Extent(xs ...[]float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range xs {
		for _, x := range s {
			if !IsValid(x) {
				continue
			}
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0, false
	}
	return lo, hi, true
}

// Range is Extent padded so that the result always has a positive width.
func Range(xs ...[]float64) (lo, hi float64, ok bool) {
	lo, hi, ok = Extent(xs...)
	if !ok {
		return 0, 0, false
	}
	if lo == hi {
		return lo - 0.5, hi + 0.5, true
	}
	return lo, hi, true
}
