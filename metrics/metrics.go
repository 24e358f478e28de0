package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tollgate"

// Metrics holds the Prometheus collectors for the session lifecycle.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	decisions     *prometheus.CounterVec
	issued        prometheus.Counter
	revoked       prometheus.Counter
	swept         prometheus.Counter
	sweepFailures prometheus.Counter
	sweepDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Authorization gate decisions by outcome.",
		}, []string{"decision"}),
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Sessions issued.",
		}),
		revoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Sessions removed by revoke, sweeps included.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_total",
			Help:      "Expired sessions removed by the sweeper.",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Expired sessions the sweeper failed to remove.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of sweep cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.decisions, m.issued, m.revoked, m.swept, m.sweepFailures, m.sweepDuration)
	return m
}

func (m *Metrics) GateDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.issued.Inc()
}

func (m *Metrics) SessionRevoked() {
	if m == nil {
		return
	}
	m.revoked.Inc()
}

// SweepCompleted records one sweep cycle
func (m *Metrics) SweepCompleted(removed, failed int, took time.Duration) {
	if m == nil {
		return
	}
	m.swept.Add(float64(removed))
	m.sweepFailures.Add(float64(failed))
	m.sweepDuration.Observe(took.Seconds())
}
