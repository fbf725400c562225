package transfer

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts transfer outcomes.
type Metrics struct {
	transitions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewMetrics builds the transfer counters and registers them on reg when it
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_transfer_transitions_total",
				Help: "Transfer request state transitions",
			},
			[]string{"transition"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_transfer_conflicts_total",
				Help: "Appointment conflicts reported by conflict detection",
			},
			[]string{"reason"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_transfer_failures_total",
				Help: "Failed accept attempts by the step that failed",
			},
			[]string{"step"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.conflicts, m.failures)
	}
	return m
}

func (m *Metrics) transition(name string) {
	m.transitions.WithLabelValues(name).Inc()
}

func (m *Metrics) conflictsFound(cs []Conflict) {
	for _, c := range cs {
		m.conflicts.WithLabelValues(c.Reason).Inc()
	}
}

func (m *Metrics) failure(step string) {
	m.failures.WithLabelValues(step).Inc()
}
