// Package metrics provides Prometheus metrics for the tracker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Poll cycle metrics
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetracker_cycles_total",
			Help: "Total poll cycles by result",
		},
		[]string{"result"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drivetracker_cycle_duration_seconds",
			Help:    "Time from fetch start to notification dispatch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Listing metrics
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drivetracker_fetch_duration_seconds",
			Help:    "Listing fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	fetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetracker_fetch_failures_total",
			Help: "Total failed listing fetch attempts",
		},
		[]string{"source"},
	)

	treeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drivetracker_tree_size",
			Help: "Number of nodes in the latest index",
		},
	)

	badRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetracker_bad_records_total",
			Help: "Listing records not placed as declared",
		},
		[]string{"reason"},
	)

	// Diff metrics
	changesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetracker_changes_total",
			Help: "Total change records by kind",
		},
		[]string{"kind"},
	)

	// Sink metrics
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetracker_notifications_total",
			Help: "Notification dispatches by mode and status",
		},
		[]string{"mode", "status"},
	)

	journalWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivetracker_journal_writes_total",
			Help: "Journal writes by status",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordCycle records a finished poll cycle.
func RecordCycle(result string, duration time.Duration) {
	cyclesTotal.WithLabelValues(result).Inc()
	cycleDuration.Observe(duration.Seconds())
}

// RecordFetch records a listing fetch attempt.
func RecordFetch(source string, duration time.Duration, success bool) {
	fetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if !success {
		fetchFailuresTotal.WithLabelValues(source).Inc()
	}
}

// SetTreeSize sets the number of indexed nodes.
func SetTreeSize(size int) {
	treeSize.Set(float64(size))
}

// RecordBadRecords adds n records for reason. Zero is ignored.
func RecordBadRecords(reason string, n int) {
	if n > 0 {
		badRecordsTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordChanges adds n change records of kind. Zero is ignored.
func RecordChanges(kind string, n int) {
	if n > 0 {
		changesTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordNotification records a dispatch attempt.
func RecordNotification(mode string, success bool) {
	notificationsTotal.WithLabelValues(mode, status(success)).Inc()
}

// RecordJournalWrite records a journal append.
func RecordJournalWrite(success bool) {
	journalWritesTotal.WithLabelValues(status(success)).Inc()
}
