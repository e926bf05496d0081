// Package telemetry exposes Prometheus metrics for the sync engine.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsync_runs_total",
			Help: "Total number of sync runs by terminal status.",
		},
		[]string{"status"},
	)

	syncRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirsync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s .. ~3.4min
		},
	)

	syncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsync_records_total",
			Help: "Total number of reconciled records by action.",
		},
		[]string{"action"},
	)

	rejectedRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dirsync_rejected_runs_total",
			Help: "Sync attempts rejected because a run was already in flight.",
		},
	)
)

// Init registers the engine metrics with the default registry.
func Init() {
	prometheus.MustRegister(syncRunsTotal, syncRunDuration, syncRecordsTotal, rejectedRunsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records the outcome and duration of one sync run.
func ObserveRun(status string, duration time.Duration) {
	syncRunsTotal.WithLabelValues(status).Inc()
	syncRunDuration.Observe(duration.Seconds())
}

// CountRecords records per-action record outcomes from one run.
func CountRecords(created, updated, unchanged, deactivated, errored int) {
	syncRecordsTotal.WithLabelValues("created").Add(float64(created))
	syncRecordsTotal.WithLabelValues("updated").Add(float64(updated))
	syncRecordsTotal.WithLabelValues("unchanged").Add(float64(unchanged))
	syncRecordsTotal.WithLabelValues("deactivated").Add(float64(deactivated))
	syncRecordsTotal.WithLabelValues("error").Add(float64(errored))
}

// CountRejectedRun records a sync attempt rejected by the per-tenant lock.
func CountRejectedRun() {
	rejectedRunsTotal.Inc()
}
