package explore

import (
	"fmt"

	"github.com/lox/stravaexplorer/internal/dataset"
	"github.com/lox/stravaexplorer/internal/metrics"
	"github.com/lox/stravaexplorer/internal/models"
	"github.com/lox/stravaexplorer/internal/stats"
)

const (
	Title       = "Strava Wearable Metrics Explorer"
	Description = "Explore cadence, power, vertical oscillation, and more by time of day and month."
	Footer      = "Built by Alexis Parker · Powered by Go"

	// HistogramBins is the bin count of the histogram and fallback views.
	HistogramBins = 30
)

// User-facing notices.
const (
	NoticeFallback     = "No data matched your filters. Showing fallback histogram for full dataset."
	WarnDensity        = "No valid data for KDE plot."
	WarnBoxplot        = "Not enough data for a boxplot."
	WarnScatter        = "Insufficient data for selected x/y metrics."
	WarnNoDensityCurve = "Not enough spread in the data to estimate a density."
	WarnNoData         = "No data to display."
)

// Dashboard is one full render pass.
type Dashboard struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Footer       string             `json:"footer"`
	State        State              `json:"state"`
	TimeOptions  []models.TimeOfDay `json:"time_options"`
	MonthOptions []string           `json:"month_options"`
	Metrics      []models.Metric    `json:"metrics"`
	TotalRows    int                `json:"total_rows"`
	FilteredRows int                `json:"filtered_rows"`
	Fence        *stats.Fence       `json:"fence,omitempty"`

	// Fallback is set when the filters leave no rows. The other views are
	// then left nil.
	Fallback *FallbackView `json:"fallback,omitempty"`

	Density   *DensityView   `json:"density,omitempty"`
	Box       *BoxView       `json:"box,omitempty"`
	Scatter   *ScatterView   `json:"scatter,omitempty"`
	Histogram *HistogramView `json:"histogram,omitempty"`
}

type FallbackView struct {
	Notice    string        `json:"notice"`
	Histogram HistogramView `json:"histogram"`
}

type GroupCurve struct {
	Group models.TimeOfDay `json:"group"`
	Curve stats.Curve      `json:"curve"`
}

type DensityView struct {
	Metric  models.Metric `json:"metric"`
	Curves  []GroupCurve  `json:"curves,omitempty"`
	Warning string        `json:"warning,omitempty"`
}

type BoxView struct {
	Metric  models.Metric      `json:"metric"`
	Boxes   []stats.BoxSummary `json:"boxes,omitempty"`
	Warning string             `json:"warning,omitempty"`
}

type ScatterGroup struct {
	Group models.TimeOfDay `json:"group"`
	X     []float64        `json:"x"`
	Y     []float64        `json:"y"`
}

type ScatterView struct {
	X          models.Metric  `json:"x"`
	Y          models.Metric  `json:"y"`
	Title      string         `json:"title"`
	Caption    string         `json:"caption"`
	Rows       int            `json:"rows"`
	Groups     []ScatterGroup `json:"groups,omitempty"`
	Regression *stats.Line    `json:"regression,omitempty"`
	XMin       float64        `json:"x_min"`
	XMax       float64        `json:"x_max"`
	Warning    string         `json:"warning,omitempty"`
}

type HistogramView struct {
	Metric  models.Metric `json:"metric"`
	Bins    []stats.Bin   `json:"bins,omitempty"`
	Density *stats.Curve  `json:"density,omitempty"`
	N       int           `json:"n"`
}

// Run executes the full pipeline for one state: derive the time features,
// filter, and compute every view. raw is never modified.
func Run(raw *dataset.Table, st State) (*Dashboard, error) {
	base, err := dataset.Derive(raw)
	if err != nil {
		return nil, err
	}
	times, months := Options(base)

	d := &Dashboard{
		Title:        Title,
		Description:  Description,
		Footer:       Footer,
		State:        st,
		TimeOptions:  times,
		MonthOptions: months,
		Metrics:      models.Metrics,
		TotalRows:    base.Len(),
	}
	metric := st.Sidebar.Metric

	filtered, err := ApplyCategoricalFilter(base, st.Sidebar.Times, st.Sidebar.Months)
	if err != nil {
		return nil, err
	}
	if st.Sidebar.RemoveOutliers && filtered.Len() > 0 {
		filtered, d.Fence, err = ApplyOutlierFilter(filtered, metric)
		if err != nil {
			return nil, err
		}
	}
	d.FilteredRows = filtered.Len()

	if filtered.Len() == 0 {
		metrics.DashboardPasses.WithLabelValues("fallback").Inc()
		d.Fallback = &FallbackView{
			Notice:    NoticeFallback,
			Histogram: histogramView(base, metric),
		}
		return d, nil
	}

	d.Density = densityView(filtered, metric)
	d.Box = boxView(filtered, metric)
	d.Scatter, err = scatterView(base, st.Scatter)
	if err != nil {
		return nil, err
	}
	h := histogramView(filtered, metric)
	d.Histogram = &h

	metrics.DashboardPasses.WithLabelValues("ok").Inc()
	return d, nil
}

func densityView(t *dataset.Table, m models.Metric) *DensityView {
	v := &DensityView{Metric: m}
	if len(stats.Valid(t.Floats(m))) == 0 {
		v.Warning = WarnDensity
		return v
	}
	order, groups := groupValues(t, m)
	for _, tod := range order {
		if c, ok := stats.Density(groups[tod]); ok {
			v.Curves = append(v.Curves, GroupCurve{Group: tod, Curve: c})
		}
	}
	return v
}

func boxView(t *dataset.Table, m models.Metric) *BoxView {
	v := &BoxView{Metric: m}
	if len(stats.Valid(t.Floats(m))) == 0 || distinctTimesOfDay(t) < 2 {
		v.Warning = WarnBoxplot
		return v
	}
	order, groups := groupValues(t, m)
	for _, tod := range order {
		if b, ok := stats.Box(string(tod), groups[tod]); ok {
			v.Boxes = append(v.Boxes, b)
		}
	}
	return v
}

func scatterView(base *dataset.Table, sc Scatter) (*ScatterView, error) {
	v := &ScatterView{
		X:       sc.X,
		Y:       sc.Y,
		Title:   fmt.Sprintf("%s vs %s", sc.Y, sc.X),
		Caption: fmt.Sprintf("Plotting: %s vs %s", sc.X, sc.Y),
	}

	t, err := ApplyCategoricalFilter(base, sc.Times, sc.Months)
	if err != nil {
		return nil, err
	}
	v.Rows = t.Len()

	xs, ys := t.Floats(sc.X), t.Floats(sc.Y)
	if len(stats.Valid(xs)) == 0 || len(stats.Valid(ys)) == 0 {
		v.Warning = WarnScatter
		return v, nil
	}

	tods := t.Strings(models.ColTimeOfDay)
	byGroup := make(map[models.TimeOfDay]*ScatterGroup)
	for i := range xs {
		if !stats.IsValid(xs[i]) || !stats.IsValid(ys[i]) || tods[i] == "" {
			continue
		}
		tod := models.TimeOfDay(tods[i])
		g, ok := byGroup[tod]
		if !ok {
			g = &ScatterGroup{Group: tod}
			byGroup[tod] = g
		}
		g.X = append(g.X, xs[i])
		g.Y = append(g.Y, ys[i])
	}
	for _, tod := range models.TimesOfDay {
		if g, ok := byGroup[tod]; ok {
			v.Groups = append(v.Groups, *g)
		}
	}

	px, _ := stats.Pairs(xs, ys)
	if lo, hi, ok := stats.Extent(px); ok {
		v.XMin, v.XMax = lo, hi
	}
	if sc.Regression {
		if line, ok := stats.FitLine(xs, ys); ok {
			v.Regression = &line
		}
	}
	return v, nil
}

func histogramView(t *dataset.Table, m models.Metric) HistogramView {
	values := stats.Valid(t.Floats(m))
	v := HistogramView{
		Metric: m,
		Bins:   stats.Histogram(values, HistogramBins),
		N:      len(values),
	}
	if len(v.Bins) == 0 {
		return v
	}
	if c, ok := stats.Density(values); ok {
		scaled := c.Scale(float64(len(values)) * v.Bins[0].Width())
		v.Density = &scaled
	}
	return v
}
