package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Assertion kinds counted by AssertionsTotal.
const (
	AssertionMissingEntity   = "missing_entity"
	AssertionDanglingParent  = "dangling_parent"
	AssertionPushSubMismatch = "push_subscription_mismatch"
)

type Collector struct {
	registry *prometheus.Registry

	MutationsTotal    *prometheus.CounterVec
	ConflictsResolved *prometheus.CounterVec
	AssertionsTotal   *prometheus.CounterVec
	FixtureFallbacks  *prometheus.CounterVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewCollector registers every metric on a fresh registry, so independent
// collectors never collide.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Store writes by resource and outcome.",
		}, []string{"resource", "outcome"}),

		ConflictsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "conflicts_resolved_total",
			Help:      "Writes rejected with a conflict whose server snapshot replaced local state.",
		}, []string{"resource"}),

		AssertionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "assertions_total",
			Help:      "Data-integrity assertions that failed, by kind and resource.",
		}, []string{"kind", "resource"}),

		FixtureFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "fixture_fallbacks_total",
			Help:      "Requests answered with generated fixture data instead of the backend.",
		}, []string{"endpoint"}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),
	}
}

// Registry exposes the underlying registry for gathering in tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Mutation records one store write.
func (c *Collector) Mutation(resource string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.MutationsTotal.WithLabelValues(resource, outcome).Inc()
}

func (c *Collector) Conflict(resource string) {
	if c == nil {
		return
	}
	c.ConflictsResolved.WithLabelValues(resource).Inc()
}

func (c *Collector) Assertion(kind, resource string) {
	if c == nil {
		return
	}
	c.AssertionsTotal.WithLabelValues(kind, resource).Inc()
}

func (c *Collector) Fallback(endpoint string) {
	if c == nil {
		return
	}
	c.FixtureFallbacks.WithLabelValues(endpoint).Inc()
}
