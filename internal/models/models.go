package models

import (
	"database/sql"
	"time"
)

// Metric is the column name of a numeric sensor reading.
type Metric string

const (
	MetricVerticalOscillation Metric = "Vertical Oscillation"
	MetricCadence             Metric = "Cadence"
	MetricPower               Metric = "Power"
	MetricAirPower            Metric = "Air Power"
	MetricGroundTime          Metric = "Ground Time"
	MetricFormPower           Metric = "Form Power"
	MetricLegSpringStiffness  Metric = "Leg Spring Stiffness"
	MetricHeartRate           Metric = "heart_rate"
	MetricSpeed               Metric = "speed"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{
	MetricVerticalOscillation,
	MetricCadence,
	MetricPower,
	MetricAirPower,
	MetricGroundTime,
	MetricFormPower,
	MetricLegSpringStiffness,
	MetricHeartRate,
	MetricSpeed,
}

// ParseMetric returns the metric with the given column name.
func ParseMetric(s string) (Metric, bool) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// TimeOfDay is a coarse hour-of-day bucket.
type TimeOfDay string

const (
	Night     TimeOfDay = "Night"
	Morning   TimeOfDay = "Morning"
	Afternoon TimeOfDay = "Afternoon"
	Evening   TimeOfDay = "Evening"
)

// TimesOfDay lists the buckets in chronological order.
var TimesOfDay = []TimeOfDay{Night, Morning, Afternoon, Evening}

func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	for _, t := range TimesOfDay {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Column names of the observation table.
const (
	ColTimestamp = "timestamp"
	ColMonthName = "month_name"
	ColTimeOfDay = "time_of_day"
)

// Dataset is a named table imported into the store.
type Dataset struct {
	ID         int64
	Name       string
	Source     string
	RowCount   int
	FlagCount  int
	ImportedAt time.Time
}

// Observation is one stored sensor reading. Timestamp keeps the text as it
// appeared in the source so its offset survives a round trip.
type Observation struct {
	ID                  int64
	DatasetID           int64
	Timestamp           sql.NullString
	VerticalOscillation sql.NullFloat64
	Cadence             sql.NullFloat64
	Power               sql.NullFloat64
	AirPower            sql.NullFloat64
	GroundTime          sql.NullFloat64
	FormPower           sql.NullFloat64
	LegSpringStiffness  sql.NullFloat64
	HeartRate           sql.NullFloat64
	Speed               sql.NullFloat64
	QCFlags             string
}

func (o *Observation) field(m Metric) *sql.NullFloat64 {
	switch m {
	case MetricVerticalOscillation:
		return &o.VerticalOscillation
	case MetricCadence:
		return &o.Cadence
	case MetricPower:
		return &o.Power
	case MetricAirPower:
		return &o.AirPower
	case MetricGroundTime:
		return &o.GroundTime
	case MetricFormPower:
		return &o.FormPower
	case MetricLegSpringStiffness:
		return &o.LegSpringStiffness
	case MetricHeartRate:
		return &o.HeartRate
	case MetricSpeed:
		return &o.Speed
	}
	return nil
}

// Value returns the reading for m. Unknown metrics are reported as missing.
func (o Observation) Value(m Metric) sql.NullFloat64 {
	if f := o.field(m); f != nil {
		return *f
	}
	return sql.NullFloat64{}
}

func (o *Observation) SetValue(m Metric, v sql.NullFloat64) {
	if f := o.field(m); f != nil {
		*f = v
	}
}
