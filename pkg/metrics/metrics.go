// Package metrics provides Prometheus metrics for the supply chain core:
// HTTP request counters and latency histograms plus domain counters for
// stock movements, workflow transitions, and serialization conflicts.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	StockMovementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Stock movements recorded, by movement type",
		},
		[]string{"type"},
	)

	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order workflow transitions applied, by action",
		},
		[]string{"action"},
	)

	TransitionRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_transition_rejections_total",
			Help: "Workflow transitions rejected as invalid (stale state or role)",
		},
	)

	SerializationConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_serialization_conflicts_total",
			Help: "Stock transactions retried after a serialization conflict",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(StockMovementsTotal)
	prometheus.MustRegister(OrderTransitionsTotal)
	prometheus.MustRegister(TransitionRejectionsTotal)
	prometheus.MustRegister(SerializationConflictsTotal)
}

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestTotals.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
