// Package metrics exposes Prometheus collectors for session operations and RPCs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auth"

// Metrics owns a private registry so tests and multiple servers do not collide.
// It implements the session manager's Recorder and the RPC interceptor's observer.
type Metrics struct {
	registry   *prometheus.Registry
	sessionOps *prometheus.CounterVec
	sessionDur *prometheus.HistogramVec
	rpcDur     *prometheus.HistogramVec
}

// New returns Metrics with Go runtime and process collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session lifecycle operations by outcome.",
		}, []string{"operation", "outcome"}),
		sessionDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_operation_duration_seconds",
			Help:      "Latency of session lifecycle operations.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		rpcDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Latency of unary RPCs by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionOps,
		m.sessionDur,
		m.rpcDur,
	)
	return m
}

// ObserveSessionOperation counts op with its outcome ("ok" or a lower-cased error kind).
func (m *Metrics) ObserveSessionOperation(op, outcome string, d time.Duration) {
	m.sessionOps.WithLabelValues(op, outcome).Inc()
	m.sessionDur.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveRPC records the duration of one unary RPC.
func (m *Metrics) ObserveRPC(method, code string, d time.Duration) {
	m.rpcDur.WithLabelValues(method, code).Observe(d.Seconds())
}

// Registry returns the underlying registry, e.g. for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
