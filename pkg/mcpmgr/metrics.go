package mcpmgr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records supervisor activity. A nil *Metrics records nothing.
type Metrics struct {
	connectAttempts *prometheus.CounterVec
	connectLatency  *prometheus.HistogramVec
	serverState     *prometheus.GaugeVec
	toolCalls       *prometheus.CounterVec
}

var statusKinds = []StatusKind{StatusDisabled, StatusConnecting, StatusConnected, StatusFailed}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpsup",
				Name:      "connect_attempts_total",
				Help:      "Connect attempts by server and resulting status.",
			},
			[]string{"server", "outcome"},
		),
		connectLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mcpsup",
				Name:      "connect_duration_seconds",
				Help:      "Time from Connecting to a settled status.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"server"},
		),
		serverState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mcpsup",
				Name:      "server_state",
				Help:      "1 for the current status of each server, 0 otherwise.",
			},
			[]string{"server", "status"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mcpsup",
				Name:      "tool_calls_total",
				Help:      "Tool calls by server and outcome (ok, tool_error, error, not_connected).",
			},
			[]string{"server", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.connectAttempts, m.connectLatency, m.serverState, m.toolCalls)
	}
	return m
}

func (m *Metrics) observeConnect(server string, status Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(server, string(status.Kind())).Inc()
	m.connectLatency.WithLabelValues(server).Observe(elapsed.Seconds())
}

func (m *Metrics) setState(server string, status Status) {
	if m == nil {
		return
	}
	for _, kind := range statusKinds {
		v := 0.0
		if status != nil && status.Kind() == kind {
			v = 1
		}
		m.serverState.WithLabelValues(server, string(kind)).Set(v)
	}
}

func (m *Metrics) forget(server string) {
	if m == nil {
		return
	}
	for _, kind := range statusKinds {
		m.serverState.DeleteLabelValues(server, string(kind))
	}
}

func (m *Metrics) observeCall(server, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(server, outcome).Inc()
}
