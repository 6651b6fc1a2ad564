// Package metrics holds the Prometheus collectors for ingestion and
// backtesting. They register with the default registry at init and are
// served on /metrics by the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "npt_ingest_rows_upserted_total",
		Help: "Price rows written to spot_prices, by zone.",
	}, []string{"zone"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "npt_ingest_fetch_failures_total",
		Help: "Failed day/zone fetches, by zone and error kind.",
	}, []string{"zone", "kind"})

	BatchesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "npt_ingest_batches_total",
		Help: "Upsert batches committed.",
	})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "npt_ingest_run_duration_seconds",
		Help:    "Duration of a full ingestion run.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	BacktestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "npt_backtest_runs_total",
		Help: "Walk-forward evaluations, by zone and status.",
	}, []string{"zone", "status"})

	BacktestMAE = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "npt_backtest_mae_nok_per_kwh",
		Help: "MAE of the latest seasonal-naive backtest, by zone.",
	}, []string{"zone"})
)

// RecordBacktest records one evaluation. status is one of "ok", "gap",
// "insufficient_data" and "error".
func RecordBacktest(zone, status string, mae float64) {
	BacktestRuns.WithLabelValues(zone, status).Inc()
	if status == "ok" {
		BacktestMAE.WithLabelValues(zone).Set(mae)
	}
}
