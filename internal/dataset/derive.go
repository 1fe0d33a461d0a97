package dataset

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/series"

	"github.com/lox/stravaexplorer/internal/models"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses s with the first matching layout. Offsets are kept,
// so the hour is the wall clock as written in the source.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognised format", s)
}

// TimeOfDayForHour buckets an hour of day into [0,6) Night, [6,12) Morning,
// [12,18) Afternoon and [18,24) Evening. Hours outside [0,24) report false.
func TimeOfDayForHour(hour int) (models.TimeOfDay, bool) {
	switch {
	case hour >= 0 && hour < 6:
		return models.Night, true
	case hour >= 6 && hour < 12:
		return models.Morning, true
	case hour >= 12 && hour < 18:
		return models.Afternoon, true
	case hour >= 18 && hour < 24:
		return models.Evening, true
	default:
		return "", false
	}
}

// MonthName returns the English calendar month name of t.
func MonthName(t time.Time) string {
	return t.Month().String()
}

// Derive returns a copy of t with month_name and time_of_day computed from
// the timestamp column. Rows without a timestamp get missing labels. The
// receiver is left untouched.
func Derive(t *Table) (*Table, error) {
	stamps := t.Strings(models.ColTimestamp)
	months := make([]string, len(stamps))
	tods := make([]string, len(stamps))

	for i, s := range stamps {
		months[i], tods[i] = "NaN", "NaN"
		if s == "" {
			continue
		}
		when, err := ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("derive row %d: %w", i+1, err)
		}
		months[i] = MonthName(when)
		if tod, ok := TimeOfDayForHour(when.Hour()); ok {
			tods[i] = string(tod)
		}
	}

	df := t.df.
		Mutate(series.New(months, series.String, models.ColMonthName)).
		Mutate(series.New(tods, series.String, models.ColTimeOfDay))
	if df.Err != nil {
		return nil, fmt.Errorf("derive columns: %w", df.Err)
	}
	return &Table{df: df}, nil
}
