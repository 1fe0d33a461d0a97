package api

import (
	"fmt"
	"net/url"

	"github.com/lox/stravaexplorer/internal/explore"
	"github.com/lox/stravaexplorer/internal/models"
)

// Query parameter names shared by the page form and the chart URLs.
const (
	paramSubmitted    = "submitted"
	paramTime         = "time"
	paramMonth        = "month"
	paramMetric       = "metric"
	paramOutliers     = "outliers"
	paramX            = "x"
	paramY            = "y"
	paramScatterTime  = "stime"
	paramScatterMonth = "smonth"
	paramRegression   = "reg"
)

// ParseState reads a selection from q. Without the submitted marker the
// multi-selects and checkboxes keep their defaults; once the form has been
// submitted an absent multi-select is an empty selection and an absent
// checkbox is off. Metric choices are read whenever present.
func ParseState(q url.Values, times []models.TimeOfDay, months []string) (explore.State, error) {
	st := explore.DefaultState(times, months)

	var err error
	if st.Sidebar.Metric, err = metricParam(q, paramMetric, st.Sidebar.Metric); err != nil {
		return st, err
	}
	if st.Scatter.X, err = metricParam(q, paramX, st.Scatter.X); err != nil {
		return st, err
	}
	if st.Scatter.Y, err = metricParam(q, paramY, st.Scatter.Y); err != nil {
		return st, err
	}

	if q.Get(paramSubmitted) != "1" {
		return st, nil
	}

	st.Sidebar.Times = timesParam(q[paramTime])
	st.Sidebar.Months = q[paramMonth]
	st.Sidebar.RemoveOutliers = q.Get(paramOutliers) == "1"
	st.Scatter.Times = timesParam(q[paramScatterTime])
	st.Scatter.Months = q[paramScatterMonth]
	st.Scatter.Regression = q.Get(paramRegression) == "1"
	return st, nil
}

func metricParam(q url.Values, key string, def models.Metric) (models.Metric, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	m, ok := models.ParseMetric(v)
	if !ok {
		return def, fmt.Errorf("unknown metric %q for %s", v, key)
	}
	return m, nil
}

// timesParam keeps the recognised labels; anything else would match no row.
func timesParam(values []string) []models.TimeOfDay {
	out := make([]models.TimeOfDay, 0, len(values))
	for _, v := range values {
		if tod, ok := models.ParseTimeOfDay(v); ok {
			out = append(out, tod)
		}
	}
	return out
}

// EncodeState is the inverse of ParseState for a submitted form.
func EncodeState(st explore.State) url.Values {
	q := url.Values{}
	q.Set(paramSubmitted, "1")
	for _, t := range st.Sidebar.Times {
		q.Add(paramTime, string(t))
	}
	for _, m := range st.Sidebar.Months {
		q.Add(paramMonth, m)
	}
	q.Set(paramMetric, string(st.Sidebar.Metric))
	if st.Sidebar.RemoveOutliers {
		q.Set(paramOutliers, "1")
	}
	q.Set(paramX, string(st.Scatter.X))
	q.Set(paramY, string(st.Scatter.Y))
	for _, t := range st.Scatter.Times {
		q.Add(paramScatterTime, string(t))
	}
	for _, m := range st.Scatter.Months {
		q.Add(paramScatterMonth, m)
	}
	if st.Scatter.Regression {
		q.Set(paramRegression, "1")
	}
	return q
}
