// Package metrics exposes the client's operation counters in Prometheus
// form. The gateway serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client counters. A nil *Metrics is a valid no-op
// receiver so the engine can run without a registry attached.
type Metrics struct {
	requests         *prometheus.CounterVec
	failures         *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
}

// New registers the client counters on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "messageu",
			Name:      "requests_total",
			Help:      "Client operations attempted, by operation.",
		}, []string{"op"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "messageu",
			Name:      "failures_total",
			Help:      "Client operations failed, by operation.",
		}, []string{"op"}),
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "messageu",
			Name:      "messages_sent_total",
			Help:      "Messages accepted by the server, by message type.",
		}, []string{"type"}),
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "messageu",
			Name:      "messages_received_total",
			Help:      "Pending messages successfully processed, by message type.",
		}, []string{"type"}),
	}
}

// IncRequest counts an attempted operation
func (m *Metrics) IncRequest(op string) {
	if m != nil {
		m.requests.WithLabelValues(op).Inc()
	}
}

// IncFailure counts a failed operation
func (m *Metrics) IncFailure(op string) {
	if m != nil {
		m.failures.WithLabelValues(op).Inc()
	}
}

// IncSent counts a delivered outgoing message
func (m *Metrics) IncSent(msgType string) {
	if m != nil {
		m.messagesSent.WithLabelValues(msgType).Inc()
	}
}

// IncReceived counts a processed incoming message
func (m *Metrics) IncReceived(msgType string) {
	if m != nil {
		m.messagesReceived.WithLabelValues(msgType).Inc()
	}
}
