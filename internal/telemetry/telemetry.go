// Package telemetry implements runtime.TelemetryCapability with
// github.com/prometheus/client_golang metrics, grounded on the teacher's
// own use of client_golang for its gateway/service metrics (go.mod carries
// prometheus/client_golang as a direct dependency).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements runtime.TelemetryCapability, plus a few extra
// counters/gauges the core doesn't route through that narrow interface
// (worker concurrency, context prunes). cmd/agentcore does not call the
// extra methods.
type Recorder struct {
	decisions     *prometheus.CounterVec
	results       *prometheus.CounterVec
	contextPrunes prometheus.Counter
	workersActive prometheus.Gauge
}

// NewRecorder registers its collectors against reg and returns the
// Recorder. Passing prometheus.NewRegistry() isolates metrics per test;
// passing prometheus.DefaultRegisterer wires into the process-wide
// registry cmd/agentcore exposes on /metrics.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "runtime",
			Name:      "decisions_total",
			Help:      "Decisions interpreted by the dispatcher, by kind.",
		}, []string{"kind"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "runtime",
			Name:      "results_total",
			Help:      "Capability call outcomes, by capability kind and success.",
		}, []string{"kind", "ok"}),
		contextPrunes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "context",
			Name:      "prunes_total",
			Help:      "Number of times the context manager pruned history.",
		}),
		workersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentcore",
			Subsystem: "worker",
			Name:      "active",
			Help:      "Currently running spawned workers.",
		}),
	}
	reg.MustRegister(r.decisions, r.results, r.contextPrunes, r.workersActive)
	return r
}

// RecordDecision implements runtime.TelemetryCapability.
func (r *Recorder) RecordDecision(kind string) {
	r.decisions.WithLabelValues(kind).Inc()
}

// RecordResult implements runtime.TelemetryCapability.
func (r *Recorder) RecordResult(kind string, ok bool) {
	r.results.WithLabelValues(kind, boolLabel(ok)).Inc()
}

// IncContextPrune records one context-manager prune.
func (r *Recorder) IncContextPrune() {
	r.contextPrunes.Inc()
}

// SetWorkersActive reports the current count of running spawned workers.
func (r *Recorder) SetWorkersActive(n int) {
	r.workersActive.Set(float64(n))
}

func boolLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}
