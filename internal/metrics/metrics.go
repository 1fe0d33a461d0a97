package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stravaexplorer_dataset_rows",
			Help: "Rows in the loaded observation table",
		},
	)

	DatasetLoadSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stravaexplorer_dataset_load_seconds",
			Help: "Time taken to load the observation table",
		},
	)

	DashboardPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravaexplorer_dashboard_passes_total",
			Help: "Dashboard pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	ChartsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravaexplorer_charts_total",
			Help: "Chart requests by chart and outcome",
		},
		[]string{"chart", "outcome"},
	)

	RowsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stravaexplorer_rows_imported_total",
			Help: "Observations written to the store",
		},
		[]string{"dataset"},
	)
)
