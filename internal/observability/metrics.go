package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpRequestsTotal       *prometheus.CounterVec
	httpLatencySeconds      *prometheus.HistogramVec
	httpErrorsTotal         *prometheus.CounterVec
	ledgerAdmissionsTotal   *prometheus.CounterVec
	ledgerConflictsTotal    prometheus.Counter
	ledgerIntegrityFailures prometheus.Counter
	projectionCacheTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the ledger API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeledger_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradeledger_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeledger_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		ledgerAdmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeledger_admissions_total",
			Help: "Grade event admissions by event type and outcome.",
		}, []string{"event_type", "outcome"})

		ledgerConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeledger_conflicts_total",
			Help: "Admissions rejected because the lane head advanced concurrently.",
		})

		ledgerIntegrityFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeledger_integrity_failures_total",
			Help: "Chain verifications that detected a broken hash link.",
		})

		projectionCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeledger_projection_cache_requests_total",
			Help: "Current-grade projection cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			ledgerAdmissionsTotal,
			ledgerConflictsTotal,
			ledgerIntegrityFailures,
			projectionCacheTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// LedgerAdmissions exposes the admission outcome counter.
func LedgerAdmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerAdmissionsTotal
}

// LedgerConflicts exposes the concurrent-admission conflict counter.
func LedgerConflicts() prometheus.Counter {
	RegisterMetrics()
	return ledgerConflictsTotal
}

// LedgerIntegrityFailures exposes the integrity violation counter.
func LedgerIntegrityFailures() prometheus.Counter {
	RegisterMetrics()
	return ledgerIntegrityFailures
}

// ProjectionCacheRequests exposes the projection cache lookup counter.
func ProjectionCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return projectionCacheTotal
}
