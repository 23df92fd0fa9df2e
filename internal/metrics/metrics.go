// Package metrics provides Prometheus metrics for ledger analysis.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerReadsTotal tracks ledger file reads by status
	LedgerReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gst",
			Subsystem: "ledger",
			Name:      "reads_total",
			Help:      "Total number of ledger file reads by status",
		},
		[]string{"status"},
	)

	// InvalidRowsTotal tracks malformed ledger rows that were skipped
	InvalidRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gst",
			Subsystem: "ledger",
			Name:      "invalid_rows_total",
			Help:      "Total number of malformed ledger rows skipped",
		},
	)

	// NodeCacheLookupsTotal tracks graph memo lookups by result
	NodeCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gst",
			Subsystem: "graph",
			Name:      "cache_lookups_total",
			Help:      "Total number of node cache lookups by result",
		},
		[]string{"result"},
	)

	// CyclesDetectedTotal tracks purchase cycles broken during traversal
	CyclesDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gst",
			Subsystem: "graph",
			Name:      "cycles_detected_total",
			Help:      "Total number of purchase cycles detected during traversal",
		},
	)

	// PassDuration tracks classifier pass duration in seconds
	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gst",
			Subsystem: "classify",
			Name:      "pass_duration_seconds",
			Help:      "Duration of classifier passes in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"pass"},
	)

	// AnalysisDuration tracks end-to-end analysis duration in seconds
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gst",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Duration of hierarchy analyses in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)

	// Nodes tracks node counts of the latest analysis by state
	Nodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gst",
			Subsystem: "analysis",
			Name:      "nodes",
			Help:      "Node counts of the latest analysis by state",
		},
		[]string{"state"},
	)

	// APIRequestsTotal tracks HTTP API requests
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gst",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"route", "status_code"},
	)
)

// Status labels
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// RecordNodes publishes node counts for the latest analysis.
func RecordNodes(total, bogus, contaminated int) {
	Nodes.WithLabelValues("total").Set(float64(total))
	Nodes.WithLabelValues("bogus").Set(float64(bogus))
	Nodes.WithLabelValues("contaminated").Set(float64(contaminated))
}
