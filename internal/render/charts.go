package render

import (
	"fmt"

	"github.com/lox/stravaexplorer/internal/explore"
	"github.com/lox/stravaexplorer/internal/log"
	"github.com/lox/stravaexplorer/internal/metrics"
)

// Chart names, as used in /charts/{name}.{ext}.
const (
	ChartFallback  = "fallback"
	ChartDensity   = "density"
	ChartBox       = "box"
	ChartScatter   = "scatter"
	ChartHistogram = "histogram"
)

var Charts = []string{ChartFallback, ChartDensity, ChartBox, ChartScatter, ChartHistogram}

func ValidChart(name string) bool {
	for _, c := range Charts {
		if c == name {
			return true
		}
	}
	return false
}

const noticeNoFallback = "Filters matched data. No fallback needed."

// Chart renders the named view of d. Views that are guarded or not part of
// this pass come back as placeholders carrying the reason.
func (r *Renderer) Chart(d *explore.Dashboard, name string) ([]byte, error) {
	img, warning, err := r.chart(d, name)
	switch {
	case err != nil:
		metrics.ChartsRendered.WithLabelValues(name, "error").Inc()
		log.Errorw("render: chart failed", "chart", name, "format", r.Format, "error", err)
	case warning != "":
		metrics.ChartsRendered.WithLabelValues(name, "warning").Inc()
		log.Debugw("render: placeholder", "chart", name, "warning", warning)
	default:
		metrics.ChartsRendered.WithLabelValues(name, "rendered").Inc()
	}
	return img, err
}

func (r *Renderer) chart(d *explore.Dashboard, name string) ([]byte, string, error) {
	if name == ChartFallback {
		if d.Fallback == nil {
			img, err := r.Placeholder(noticeNoFallback)
			return img, noticeNoFallback, err
		}
		h := d.Fallback.Histogram
		img, err := r.Histogram(h, fmt.Sprintf("Histogram of %s (all data)", h.Metric))
		return img, "", err
	}
	if d.Fallback != nil {
		img, err := r.Placeholder(d.Fallback.Notice)
		return img, d.Fallback.Notice, err
	}

	var (
		img     []byte
		warning string
		err     error
	)
	switch name {
	case ChartDensity:
		warning = d.Density.Warning
		img, err = r.Density(d.Density)
	case ChartBox:
		warning = d.Box.Warning
		img, err = r.Box(d.Box)
	case ChartScatter:
		warning = d.Scatter.Warning
		img, err = r.Scatter(d.Scatter)
	case ChartHistogram:
		if len(d.Histogram.Bins) == 0 {
			warning = explore.WarnNoData
		}
		img, err = r.Histogram(*d.Histogram, fmt.Sprintf("Histogram of %s", d.Histogram.Metric))
	default:
		return nil, "", fmt.Errorf("unknown chart %q", name)
	}
	return img, warning, err
}
