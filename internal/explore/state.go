package explore

import (
	"slices"

	"github.com/lox/stravaexplorer/internal/models"
)

// Sidebar is the selection driving the density, box and histogram views.
type Sidebar struct {
	Times          []models.TimeOfDay `json:"times"`
	Months         []string           `json:"months"`
	Metric         models.Metric      `json:"metric"`
	RemoveOutliers bool               `json:"remove_outliers"`
}

// Scatter is the scatter view's own selection. It is applied to the
// unfiltered table and ignores the sidebar's outlier flag.
type Scatter struct {
	X          models.Metric      `json:"x"`
	Y          models.Metric      `json:"y"`
	Times      []models.TimeOfDay `json:"times"`
	Months     []string           `json:"months"`
	Regression bool               `json:"regression"`
}

// State is everything a user can select. It lives only as long as a request.
type State struct {
	Sidebar Sidebar `json:"sidebar"`
	Scatter Scatter `json:"scatter"`
}

// DefaultState selects every option, the first metric with outlier removal
// on, and speed against heart rate for the scatter view.
func DefaultState(times []models.TimeOfDay, months []string) State {
	return State{
		Sidebar: Sidebar{
			Times:          slices.Clone(times),
			Months:         slices.Clone(months),
			Metric:         models.Metrics[0],
			RemoveOutliers: true,
		},
		Scatter: Scatter{
			X:      models.MetricSpeed,
			Y:      models.MetricHeartRate,
			Times:  slices.Clone(times),
			Months: slices.Clone(months),
		},
	}
}
