package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics holds the Prometheus instrumentation for an Engine.
// Modeled on the teacher's HealthLogger: one private registry per
// instance rather than the global default, so multiple engines in one
// process (tests, multi-tenant hosts) never collide on metric names.
type EngineMetrics struct {
	registry *prometheus.Registry

	resolvesTotal                  *prometheus.CounterVec
	missingMaterializationsTotal    prometheus.Counter
	staleMaterializationFallthrough prometheus.Counter
	stateSwapsTotal                 prometheus.Counter
	flushBytesTotal                 prometheus.Counter
	flushCallsTotal                 prometheus.Counter
	pendingFlagAssignedGauge        prometheus.Gauge
}

// NewEngineMetrics builds and registers the engine's metric set.
func NewEngineMetrics() *EngineMetrics {
	reg := prometheus.NewRegistry()

	m := &EngineMetrics{registry: reg}

	m.resolvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_resolves_total",
		Help: "Total resolve_with_sticky calls, partitioned by outcome.",
	}, []string{"outcome"})

	m.missingMaterializationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_missing_materializations_total",
		Help: "Total MissingMaterialization signals raised during rule evaluation.",
	})

	m.staleMaterializationFallthrough = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_stale_materialization_fallthrough_total",
		Help: "Sticky reads whose stored variant no longer exists on the flag, falling through to segment evaluation.",
	})

	m.stateSwapsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_state_swaps_total",
		Help: "Total successful set_state installations.",
	})

	m.flushBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_flush_bytes_total",
		Help: "Total bytes returned by flush_logs.",
	})

	m.flushCallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_flush_calls_total",
		Help: "Total flush_logs calls that returned a non-empty payload.",
	})

	m.pendingFlagAssignedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "resolver_pending_flag_assigned",
		Help: "flag_assigned entries currently buffered in the active accumulator.",
	})

	reg.MustRegister(
		m.resolvesTotal,
		m.missingMaterializationsTotal,
		m.staleMaterializationFallthrough,
		m.stateSwapsTotal,
		m.flushBytesTotal,
		m.flushCallsTotal,
		m.pendingFlagAssignedGauge,
	)

	return m
}

// Handler exposes the engine's private registry over HTTP.
func (m *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *EngineMetrics) observeResolve(outcome string) {
	m.resolvesTotal.WithLabelValues(outcome).Inc()
}
