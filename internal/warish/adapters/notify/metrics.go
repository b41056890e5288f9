package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts dispatcher outcomes.
type Metrics struct {
	Dispatched *prometheus.CounterVec
	Dropped    prometheus.Counter
}

// NewMetrics registers the notification metrics. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Dispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warish_notifications_dispatched_total",
			Help: "Notifications handed to the notifier, by event and outcome",
		}, []string{"event", "outcome"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warish_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}),
	}
}

func (m *Metrics) observe(event, outcome string) {
	m.Dispatched.WithLabelValues(event, outcome).Inc()
}
