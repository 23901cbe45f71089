package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncRequest("register")
	m.IncRequest("register")
	m.IncFailure("register")
	m.IncSent("text")
	m.IncReceived("file")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("register")); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("register")); got != 1 {
		t.Errorf("failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.messagesSent.WithLabelValues("text")); got != 1 {
		t.Errorf("messages_sent_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.messagesReceived.WithLabelValues("file")); got != 1 {
		t.Errorf("messages_received_total = %v, want 1", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	// The engine runs without a registry attached; every increment must
	// be a no-op rather than a panic.
	m.IncRequest("register")
	m.IncFailure("register")
	m.IncSent("text")
	m.IncReceived("text")
}
