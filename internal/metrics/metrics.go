// Package metrics exposes Prometheus instrumentation for the HTTP and store
// layers.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nodegraph/internal/apperr"
)

// Breaker states as reported by the breaker_state gauge
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// Collector holds all Prometheus metrics for the application. Each collector
// owns its registry. All methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	BreakerState    prometheus.Gauge

	// Business metrics
	NodesSaved   prometheus.Counter
	NodesDeleted prometheus.Counter
}

// NewCollector creates a collector with the given namespace
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of store operations by outcome",
			},
			[]string{"operation", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		BreakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Store circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),
		NodesSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_saved_total",
				Help:      "Total number of successful node saves",
			},
		),
		NodesDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_deleted_total",
				Help:      "Total number of nodes deleted",
			},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.StoreOperations,
		c.StoreDuration,
		c.BreakerState,
		c.NodesSaved,
		c.NodesDeleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveStore records one store operation. The status label is "ok" or the
// lower-cased error type.
func (c *Collector) ObserveStore(operation string, err error, d time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = strings.ToLower(string(apperr.TypeOf(err)))
	}
	c.StoreOperations.WithLabelValues(operation, status).Inc()
	c.StoreDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SetBreakerState records the breaker state
func (c *Collector) SetBreakerState(state int) {
	if c == nil {
		return
	}
	c.BreakerState.Set(float64(state))
}

// NodeSaved increments the saved node counter
func (c *Collector) NodeSaved() {
	if c == nil {
		return
	}
	c.NodesSaved.Inc()
}

// NodeDeleted increments the deleted node counter
func (c *Collector) NodeDeleted() {
	if c == nil {
		return
	}
	c.NodesDeleted.Inc()
}
