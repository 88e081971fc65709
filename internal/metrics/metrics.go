// Package metrics holds the Prometheus collectors of the retirement calculator.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

const namespace = "retirement"

var (
	// CalculationsTotal counts plan calculations by outcome.
	CalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Total number of retirement plan calculations",
		},
		[]string{"outcome"},
	)

	// CalculationDuration observes plan calculation latency.
	CalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_seconds",
			Help:      "Retirement plan calculation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// CacheOperationsTotal counts cache maintenance operations.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache maintenance operations",
		},
		[]string{"operation", "outcome"},
	)

	// CacheLookupsTotal counts deposit and rate lookups made by calculations.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Total number of cache lookups during calculations",
		},
		[]string{"namespace", "result"},
	)

	// HTTPRequestsTotal counts HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// HTTPRequestsInFlight tracks requests being served.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// AuditRecordsTotal counts calculation events handled by the audit worker.
	AuditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Total number of calculation events stored as history",
		},
		[]string{"outcome"},
	)
)

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrLifestyleNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrCacheUnavailable):
		return "cache_unavailable"
	default:
		return "error"
	}
}
