// Package metrics records device flow activity for Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records device flow events
type Recorder interface {
	// RecordDeviceCodeIssued counts issuance attempts by OAuth result code
	RecordDeviceCodeIssued(result string)

	// RecordDecision counts rendered decisions by outcome
	RecordDecision(outcome string)

	// RecordDecisionError counts decisions that ended in an error by code
	RecordDecisionError(code string)
}

var _ Recorder = (*Metrics)(nil)

// Metrics holds the Prometheus collectors
type Metrics struct {
	DeviceCodesTotal    *prometheus.CounterVec
	DecisionsTotal      *prometheus.CounterVec
	DecisionErrorsTotal *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DeviceCodesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_device_codes_total",
				Help: "Total number of device authorization requests",
			},
			[]string{"result"}, // success or an OAuth error code
		),
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_device_decisions_total",
				Help: "Total number of rendered device decisions",
			},
			[]string{"outcome"}, // allowed, denied, error
		),
		DecisionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_device_decision_errors_total",
				Help: "Total number of device decisions that failed",
			},
			[]string{"error"},
		),
	}
}

// Init returns a Prometheus recorder registered with the default registry,
// or a noop recorder when disabled
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	return New(prometheus.DefaultRegisterer)
}

func (m *Metrics) RecordDeviceCodeIssued(result string) {
	m.DeviceCodesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDecision(outcome string) {
	m.DecisionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordDecisionError(code string) {
	m.DecisionErrorsTotal.WithLabelValues(code).Inc()
}
