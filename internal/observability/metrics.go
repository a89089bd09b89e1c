// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Curve metrics
	CurvesLaunched   prometheus.Counter
	TradesApplied    *prometheus.CounterVec // by side
	TradeFailures    *prometheus.CounterVec // by reason
	QuoteRequests    *prometheus.CounterVec // by side
	GraduationsTotal prometheus.Counter

	// Order engine metrics
	MonitorCycles          prometheus.Counter
	MonitorCycleDuration   prometheus.Histogram
	OrdersCreated          prometheus.Counter
	OrdersTriggered        prometheus.Counter
	OrdersExecuted         prometheus.Counter
	OrderExecutionFailures prometheus.Counter
	OrdersExpired          prometheus.Counter

	// Oracle metrics
	OracleFetchErrors prometheus.Counter
	OracleCacheHits   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "agent_launchpad"
	}

	return &Metrics{
		CurvesLaunched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "launched_total",
			Help:      "Total number of curves launched",
		}),
		TradesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "trades_applied_total",
			Help:      "Total number of curve trades settled",
		}, []string{"side"}),
		TradeFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "trade_failures_total",
			Help:      "Total number of rejected curve trades",
		}, []string{"reason"}),
		QuoteRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "quote_requests_total",
			Help:      "Total number of quote requests served",
		}, []string{"side"}),
		GraduationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "graduations_total",
			Help:      "Total number of curves graduated to external pools",
		}),
		MonitorCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "monitor_cycles_total",
			Help:      "Total number of completed monitor cycles",
		}),
		MonitorCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "monitor_cycle_duration_seconds",
			Help:      "Duration of monitor cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		OrdersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Total number of orders created",
		}),
		OrdersTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "triggered_total",
			Help:      "Total number of orders claimed for execution",
		}),
		OrdersExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "executed_total",
			Help:      "Total number of orders settled successfully",
		}),
		OrderExecutionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "execution_failures_total",
			Help:      "Total number of failed execution attempts",
		}),
		OrdersExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "expired_total",
			Help:      "Total number of orders expired",
		}),
		OracleFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed oracle price fetches",
		}),
		OracleCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "cache_hits_total",
			Help:      "Total number of quote cache hits",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
