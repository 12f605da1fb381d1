// Package metrics exposes prometheus collectors for the collection
// pipeline and the dashboard API.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/j-veylop/claude-meter/internal/archive"
	"github.com/j-veylop/claude-meter/internal/collector"
	"github.com/j-veylop/claude-meter/internal/db"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmeter",
			Name:      "collection_cycles_total",
			Help:      "Collection cycles by outcome",
		},
		[]string{"outcome"},
	)

	cycleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmeter",
			Name:      "cycle_failures_total",
			Help:      "Failed collection cycles by stage and reason",
		},
		[]string{"stage", "reason"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cmeter",
			Name:      "cycle_duration_seconds",
			Help:      "End-to-end collection cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	windowsCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cmeter",
			Name:      "windows_collected_total",
			Help:      "Quota window readings successfully persisted",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(cycleFailures)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(windowsCollected)
}

// RecordCycleSuccess records a completed collection cycle.
func RecordCycleSuccess(windowCount int, elapsed time.Duration) {
	cyclesTotal.WithLabelValues("success").Inc()
	cycleDuration.Observe(elapsed.Seconds())
	windowsCollected.Add(float64(windowCount))
}

// RecordCycleFailure records a failed cycle, labeled by the pipeline stage
// that failed and, for fetch failures, the enumerated reason.
func RecordCycleFailure(err error) {
	cyclesTotal.WithLabelValues("failure").Inc()

	var fetchErr *collector.FetchError
	var archiveErr *archive.ArchiveError
	var storeErr *db.StoreError

	switch {
	case errors.As(err, &fetchErr):
		cycleFailures.WithLabelValues("fetch", string(fetchErr.Reason)).Inc()
	case errors.As(err, &archiveErr):
		cycleFailures.WithLabelValues("archive", "write").Inc()
	case errors.As(err, &storeErr):
		cycleFailures.WithLabelValues("store", storeErr.Op).Inc()
	default:
		cycleFailures.WithLabelValues("unknown", "unknown").Inc()
	}
}
