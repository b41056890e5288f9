package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ops audit tracking.
type Metrics struct {
	Tracked         prometheus.Counter
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance with ops audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Tracked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warish_audit_ops_tracked_total",
			Help: "Total number of operational audit events accepted for persistence",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warish_audit_ops_dropped_total",
			Help: "Total number of operational audit events dropped because the queue was full",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warish_audit_ops_persist_failures_total",
			Help: "Total number of operational audit event persistence failures",
		}),
	}
}

func (m *Metrics) IncTracked() {
	m.Tracked.Inc()
}

func (m *Metrics) IncDropped() {
	m.Dropped.Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}
