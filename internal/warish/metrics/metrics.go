// Package metrics holds the Prometheus instruments of the warish workflow.
// All methods are safe on a nil *Metrics so services can run without them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Transitions        *prometheus.CounterVec
	Verifications      *prometheus.CounterVec
	CertificatesIssued prometheus.Counter
	IssuanceConflicts  prometheus.Counter
	IssuanceDuration   prometheus.Histogram
	StorageDuration    *prometheus.HistogramVec
	Compensations      *prometheus.CounterVec
}

// New registers the workflow metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warish_transitions_total",
			Help: "State machine commands by action and outcome",
		}, []string{"action", "outcome"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warish_document_verifications_total",
			Help: "Document verification calls by result and whether the row changed",
		}, []string{"result", "changed"}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warish_certificates_issued_total",
			Help: "Certificates issued",
		}),
		IssuanceConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warish_certificate_issuance_conflicts_total",
			Help: "Issuance attempts that lost to an existing or concurrent issuance",
		}),
		IssuanceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warish_certificate_issuance_duration_seconds",
			Help:    "End-to-end certificate issuance latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		StorageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warish_storage_duration_seconds",
			Help:    "Object storage call latency by operation and outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		Compensations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warish_storage_compensations_total",
			Help: "Compensating deletes of uploaded objects by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveVerification(verified, changed bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if verified {
		result = "verified"
	}
	ch := "false"
	if changed {
		ch = "true"
	}
	m.Verifications.WithLabelValues(result, ch).Inc()
}

func (m *Metrics) ObserveIssuance(d time.Duration) {
	if m == nil {
		return
	}
	m.CertificatesIssued.Inc()
	m.IssuanceDuration.Observe(d.Seconds())
}

func (m *Metrics) IncIssuanceConflict() {
	if m == nil {
		return
	}
	m.IssuanceConflicts.Inc()
}

func (m *Metrics) ObserveStorage(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StorageDuration.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (m *Metrics) IncCompensation(outcome string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(outcome).Inc()
}
