package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "receivables_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	snapshotTotal   *prometheus.CounterVec
	snapshotLatency *prometheus.HistogramVec

	summaryTotal   *prometheus.CounterVec
	summaryLatency *prometheus.HistogramVec

	correctionsTotal *prometheus.CounterVec

	bulkRunsTotal   *prometheus.CounterVec
	bulkRunLatency  *prometheus.HistogramVec
	bulkRunAccounts *prometheus.HistogramVec

	cacheRequests      *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		snapshotTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_total",
				Help: "Total account snapshot computations by result",
			},
			[]string{"result"},
		)
		snapshotLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "snapshot_latency_seconds",
				Help:    "Account snapshot latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		summaryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "summary_total",
				Help: "Total global summary computations by result",
			},
			[]string{"result"},
		)
		summaryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "summary_latency_seconds",
				Help:    "Global summary latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		correctionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "corrections_total",
				Help: "Total drift corrections by status",
			},
			[]string{"status"},
		)

		bulkRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliation_runs_total",
				Help: "Total bulk reconciliation runs by result",
			},
			[]string{"result"},
		)
		bulkRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconciliation_run_latency_seconds",
				Help:    "Bulk reconciliation run latency in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"result"},
		)
		bulkRunAccounts = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconciliation_run_accounts",
				Help:    "Accounts processed per bulk reconciliation run",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
			[]string{"result"},
		)

		cacheRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stats_cache_requests_total",
				Help: "Statistics cache requests by scope kind and source",
			},
			[]string{"scope", "source"},
		)
		cacheInvalidations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stats_cache_invalidations_total",
				Help: "Statistics cache invalidations by scope kind",
			},
			[]string{"scope"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total reconciliation report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Reconciliation report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			snapshotTotal,
			snapshotLatency,
			summaryTotal,
			summaryLatency,
			correctionsTotal,
			bulkRunsTotal,
			bulkRunLatency,
			bulkRunAccounts,
			cacheRequests,
			cacheInvalidations,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSnapshot records a per-account snapshot computation.
func ObserveSnapshot(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if snapshotTotal != nil {
		snapshotTotal.WithLabelValues(result).Inc()
	}
	if snapshotLatency != nil {
		snapshotLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveSummary records a global summary computation.
func ObserveSummary(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if summaryTotal != nil {
		summaryTotal.WithLabelValues(result).Inc()
	}
	if summaryLatency != nil {
		summaryLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncCorrection increments the correction counter for a status.
func IncCorrection(status string) {
	if status == "" {
		status = "unknown"
	}
	if correctionsTotal != nil {
		correctionsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveBulkRun records one bulk reconciliation run.
func ObserveBulkRun(result string, accounts int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if bulkRunsTotal != nil {
		bulkRunsTotal.WithLabelValues(result).Inc()
	}
	if bulkRunLatency != nil {
		bulkRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if bulkRunAccounts != nil && accounts >= 0 {
		bulkRunAccounts.WithLabelValues(result).Observe(float64(accounts))
	}
}

// IncCacheRequest counts a statistics cache read by scope kind and source.
func IncCacheRequest(scope, source string) {
	if scope == "" {
		scope = "unknown"
	}
	if source == "" {
		source = "unknown"
	}
	if cacheRequests != nil {
		cacheRequests.WithLabelValues(scope, source).Inc()
	}
}

// IncCacheInvalidation counts an explicit cache invalidation.
func IncCacheInvalidation(scope string) {
	if scope == "" {
		scope = "unknown"
	}
	if cacheInvalidations != nil {
		cacheInvalidations.WithLabelValues(scope).Inc()
	}
}

// ObserveReportExport records report export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
