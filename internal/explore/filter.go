// Package explore turns a selection state into dashboard views: it filters
// the observation table and computes the statistics each chart needs.
package explore

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/stravaexplorer/internal/dataset"
	"github.com/lox/stravaexplorer/internal/models"
	"github.com/lox/stravaexplorer/internal/stats"
)

func memberOf(values []string) func(series.Element) bool {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return func(el series.Element) bool {
		if el.IsNA() {
			return false
		}
		_, ok := set[el.String()]
		return ok
	}
}

// ApplyCategoricalFilter keeps the rows whose time_of_day is in times and
// whose month_name is in months. An empty set matches nothing, and rows
// with missing labels never match.
func ApplyCategoricalFilter(t *dataset.Table, times []models.TimeOfDay, months []string) (*dataset.Table, error) {
	if t.Len() == 0 {
		return t, nil
	}
	todNames := make([]string, len(times))
	for i, tod := range times {
		todNames[i] = string(tod)
	}

	df := t.Frame().FilterAggregation(dataframe.And,
		dataframe.F{Colname: models.ColTimeOfDay, Comparator: series.CompFunc, Comparando: memberOf(todNames)},
		dataframe.F{Colname: models.ColMonthName, Comparator: series.CompFunc, Comparando: memberOf(months)},
	)
	out, err := dataset.NewTable(df)
	if err != nil {
		return nil, fmt.Errorf("categorical filter: %w", err)
	}
	return out, nil
}

// ApplyOutlierFilter keeps the rows whose metric value lies inside the
// 1.5 IQR fence computed over t. Rows with a missing value are dropped.
// When the metric has no valid values the table is returned unchanged with
// a nil fence.
func ApplyOutlierFilter(t *dataset.Table, m models.Metric) (*dataset.Table, *stats.Fence, error) {
	fence, ok := stats.NewFence(t.Floats(m))
	if !ok {
		return t, nil, nil
	}

	df := t.Frame().FilterAggregation(dataframe.And,
		dataframe.F{Colname: string(m), Comparator: series.GreaterEq, Comparando: fence.Lower},
		dataframe.F{Colname: string(m), Comparator: series.LessEq, Comparando: fence.Upper},
	)
	out, err := dataset.NewTable(df)
	if err != nil {
		return nil, nil, fmt.Errorf("outlier filter on %s: %w", m, err)
	}
	return out, &fence, nil
}

// Options lists the distinct time-of-day and month labels of a derived
// table in order of first appearance, skipping missing values.
func Options(t *dataset.Table) ([]models.TimeOfDay, []string) {
	var times []models.TimeOfDay
	seenTod := make(map[string]bool)
	for _, s := range t.Strings(models.ColTimeOfDay) {
		if s == "" || seenTod[s] {
			continue
		}
		seenTod[s] = true
		if tod, ok := models.ParseTimeOfDay(s); ok {
			times = append(times, tod)
		}
	}

	var months []string
	seenMonth := make(map[string]bool)
	for _, s := range t.Strings(models.ColMonthName) {
		if s == "" || seenMonth[s] {
			continue
		}
		seenMonth[s] = true
		months = append(months, s)
	}
	return times, months
}

// groupValues splits the metric column by time_of_day, in chronological
// bucket order. Buckets without rows are omitted.
func groupValues(t *dataset.Table, m models.Metric) ([]models.TimeOfDay, map[models.TimeOfDay][]float64) {
	values := t.Floats(m)
	tods := t.Strings(models.ColTimeOfDay)
	groups := make(map[models.TimeOfDay][]float64)
	for i, s := range tods {
		if s == "" {
			continue
		}
		tod := models.TimeOfDay(s)
		groups[tod] = append(groups[tod], values[i])
	}

	var order []models.TimeOfDay
	for _, tod := range models.TimesOfDay {
		if _, ok := groups[tod]; ok {
			order = append(order, tod)
		}
	}
	return order, groups
}

// distinctTimesOfDay counts the non-missing time_of_day labels in t.
func distinctTimesOfDay(t *dataset.Table) int {
	seen := make(map[string]bool)
	for _, s := range t.Strings(models.ColTimeOfDay) {
		if s != "" {
			seen[s] = true
		}
	}
	return len(seen)
}
