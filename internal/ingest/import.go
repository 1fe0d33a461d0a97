package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/lox/stravaexplorer/internal/dataset"
	"github.com/lox/stravaexplorer/internal/log"
	"github.com/lox/stravaexplorer/internal/metrics"
	"github.com/lox/stravaexplorer/internal/models"
	"github.com/lox/stravaexplorer/internal/store"
)

// Importer copies observation tables into the store.
type Importer struct {
	store   *store.Store
	timeout time.Duration
}

func NewImporter(st *store.Store, fetchTimeout time.Duration) *Importer {
	return &Importer{store: st, timeout: fetchTimeout}
}

// Import loads source and saves it as the named dataset. Every row is
// validated and its flags stored alongside it.
func (im *Importer) Import(ctx context.Context, source, name string, replace bool) (*models.Dataset, error) {
	start := time.Now()
	t, err := LoadTable(ctx, source, im.store, im.timeout)
	if err != nil {
		return nil, err
	}

	obs := Observations(t)
	ds, err := im.store.SaveDataset(models.Dataset{Name: name, Source: source}, obs, replace)
	if err != nil {
		return nil, fmt.Errorf("save dataset %q: %w", name, err)
	}

	metrics.RowsImported.WithLabelValues(name).Add(float64(ds.RowCount))
	log.Infow("ingest: imported dataset",
		"dataset", name,
		"source", source,
		"rows", ds.RowCount,
		"flagged", ds.FlagCount,
		"elapsed", time.Since(start),
	)
	return ds, nil
}

// Observations converts every row of t into a validated observation.
func Observations(t *dataset.Table) []models.Observation {
	obs := make([]models.Observation, t.Len())

	timestamps := t.Strings(models.ColTimestamp)
	for i, ts := range timestamps {
		if ts != "" {
			obs[i].Timestamp = sql.NullString{String: ts, Valid: true}
		}
	}
	for _, m := range models.Metrics {
		for i, v := range t.Floats(m) {
			if !math.IsNaN(v) {
				obs[i].SetValue(m, sql.NullFloat64{Float64: v, Valid: true})
			}
		}
	}
	for i := range obs {
		obs[i].QCFlags = QualityFlagsToJSON(ValidateObservation(&obs[i]))
	}
	return obs
}
