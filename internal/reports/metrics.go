package reports

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reportsTotal counts finished report requests by outcome
	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jfrlite_reports_total",
		Help: "Report generations by outcome",
	}, []string{"outcome"})

	// reportDuration tracks wall time of a report subprocess
	reportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jfrlite_report_duration_seconds",
		Help:    "Report subprocess duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	reportsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jfrlite_reports_in_flight",
		Help: "Report subprocesses currently running",
	})

	// reportJoins counts callers that joined an already running generation
	reportJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jfrlite_report_joins_total",
		Help: "Report requests served by an in-flight generation for the same key",
	})
)
