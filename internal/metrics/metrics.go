// Package metrics exposes Prometheus counters for report intake.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Intake metrics
	ReportsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bugreport_reports_accepted_total",
			Help: "Total number of bug reports accepted and handled",
		},
	)

	ReportsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugreport_reports_rejected_total",
			Help: "Total number of bug reports rejected by error code",
		},
		[]string{"code"},
	)

	ReportFiles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bugreport_report_files",
			Help:    "Number of files attached to accepted bug reports",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	HandlerFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bugreport_handler_failures_total",
			Help: "Total number of reports whose downstream handling failed",
		},
	)

	// Rate limiter metrics
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bugreport_rate_limited_total",
			Help: "Total number of submissions denied by the rate limiter by scope",
		},
		[]string{"scope"},
	)

	RateLimitStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bugreport_rate_limit_store_errors_total",
			Help: "Total number of failed rate limit store calls",
		},
	)

	// Retention metrics
	ReportsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bugreport_reports_pruned_total",
			Help: "Total number of stored reports removed by retention",
		},
	)
)
