package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for workflow execution:
//
//   - workflow_runs_total{status}: completed runs by final status
//   - workflow_inflight_runs: runs currently executing
//   - workflow_node_executions_total{type,status}: node outcomes
//   - workflow_node_duration_seconds{type}: node execution latency
//   - workflow_foreach_iterations_total{mode,status}: loop iterations
//
// All methods are nil-safe so the engine can run without metrics configured.
type Metrics struct {
	enabled bool

	runsTotal         *prometheus.CounterVec
	inflightRuns      prometheus.Gauge
	nodeExecutions    *prometheus.CounterVec
	nodeDuration      *prometheus.HistogramVec
	foreachIterations *prometheus.CounterVec
}

// NewMetrics creates and registers the workflow collectors with reg. Passing
// nil creates unregistered collectors, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		enabled: true,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "runs_total",
			Help:      "Completed workflow runs by final status.",
		}, []string{"status"}),
		inflightRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "workflow",
			Name:      "inflight_runs",
			Help:      "Workflow runs currently executing.",
		}),
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "node_executions_total",
			Help:      "Node executions by node type and outcome status.",
		}, []string{"type", "status"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "workflow",
			Name:      "node_duration_seconds",
			Help:      "Node execution duration in seconds.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60, 120},
		}, []string{"type"}),
		foreachIterations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workflow",
			Name:      "foreach_iterations_total",
			Help:      "ForEach iterations by execution mode and status.",
		}, []string{"mode", "status"}),
	}
}

// Enable turns collection on. Metrics are enabled by default.
func (m *Metrics) Enable() {
	if m != nil {
		m.enabled = true
	}
}

// Disable turns collection off without unregistering collectors. Useful in
// tests that exercise the engine many times.
func (m *Metrics) Disable() {
	if m != nil {
		m.enabled = false
	}
}

// RunStarted increments the inflight gauge.
func (m *Metrics) RunStarted() {
	if m == nil || !m.enabled {
		return
	}
	m.inflightRuns.Inc()
}

// RunFinished decrements the inflight gauge and counts the run's status.
func (m *Metrics) RunFinished(status string) {
	if m == nil || !m.enabled {
		return
	}
	m.inflightRuns.Dec()
	m.runsTotal.WithLabelValues(status).Inc()
}

// RecordNode counts one node execution and observes its duration.
func (m *Metrics) RecordNode(nodeType, status string, seconds float64) {
	if m == nil || !m.enabled {
		return
	}
	m.nodeExecutions.WithLabelValues(nodeType, status).Inc()
	m.nodeDuration.WithLabelValues(nodeType).Observe(seconds)
}

// RecordForEachIteration counts one loop iteration.
func (m *Metrics) RecordForEachIteration(mode, status string) {
	if m == nil || !m.enabled {
		return
	}
	m.foreachIterations.WithLabelValues(mode, status).Inc()
}
