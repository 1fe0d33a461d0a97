package ingest

import (
	"encoding/json"

	"github.com/lox/stravaexplorer/internal/models"
)

const (
	FlagHeartRateOutOfRange = "heart_rate_out_of_range"
	FlagSpeedUnlikely       = "speed_unlikely"
	FlagCadenceUnlikely     = "cadence_unlikely"
	FlagPowerNegative       = "power_negative"
	FlagGroundTimeInvalid   = "ground_time_invalid"
	FlagOscillationInvalid  = "oscillation_invalid"
	FlagStiffnessNegative   = "stiffness_negative"
	FlagTimestampMissing    = "timestamp_missing"
)

// ValidateObservation flags readings outside what a running wearable can
// plausibly report. Flagged rows are still imported.
func ValidateObservation(obs *models.Observation) []string {
	var flags []string

	if !obs.Timestamp.Valid || obs.Timestamp.String == "" {
		flags = append(flags, FlagTimestampMissing)
	}

	if obs.HeartRate.Valid {
		if obs.HeartRate.Float64 < 25 || obs.HeartRate.Float64 > 250 {
			flags = append(flags, FlagHeartRateOutOfRange)
		}
	}

	// m/s; 15 is faster than any sprinter.
	if obs.Speed.Valid {
		if obs.Speed.Float64 < 0 || obs.Speed.Float64 > 15 {
			flags = append(flags, FlagSpeedUnlikely)
		}
	}

	if obs.Cadence.Valid {
		if obs.Cadence.Float64 < 0 || obs.Cadence.Float64 > 300 {
			flags = append(flags, FlagCadenceUnlikely)
		}
	}

	for _, p := range []models.Metric{models.MetricPower, models.MetricAirPower, models.MetricFormPower} {
		if v := obs.Value(p); v.Valid && v.Float64 < 0 {
			flags = append(flags, FlagPowerNegative)
			break
		}
	}

	if obs.GroundTime.Valid {
		if obs.GroundTime.Float64 < 0 || obs.GroundTime.Float64 > 2000 {
			flags = append(flags, FlagGroundTimeInvalid)
		}
	}

	if obs.VerticalOscillation.Valid {
		if obs.VerticalOscillation.Float64 < 0 || obs.VerticalOscillation.Float64 > 50 {
			flags = append(flags, FlagOscillationInvalid)
		}
	}

	if obs.LegSpringStiffness.Valid && obs.LegSpringStiffness.Float64 < 0 {
		flags = append(flags, FlagStiffnessNegative)
	}

	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
