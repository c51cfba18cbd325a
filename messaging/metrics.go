// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentcloud/agentsync/lib/promutil"
)

// Metrics exposes Prometheus collectors for the subscription client.
// A nil *Metrics records nothing.
type Metrics struct {
	connectAttempts   prometheus.Counter
	reconnects        prometheus.Counter
	keepAliveWarnings prometheus.Counter
	protocolErrors    prometheus.Counter
	messages          *prometheus.CounterVec
	connected         prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg (the default
// registerer when nil).
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return promutil.Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentsync",
			Subsystem: "subscription",
			Name:      name,
			Help:      help,
		}))
	}
	return &Metrics{
		connectAttempts:   counter("connect_attempts_total", "WebSocket sessions started."),
		reconnects:        counter("reconnects_total", "Reconnects scheduled after a session ended."),
		keepAliveWarnings: counter("keepalive_warnings_total", "Keep-alive gaps above the warning threshold."),
		protocolErrors:    counter("protocol_errors_total", "Error frames and handshake violations."),
		messages: promutil.Register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentsync",
				Subsystem: "subscription",
				Name:      "messages_total",
				Help:      "Messages routed to consumer queues by queue and outcome.",
			},
			[]string{"queue", "outcome"},
		)),
		connected: promutil.Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentsync",
			Subsystem: "subscription",
			Name:      "connected",
			Help:      "1 while a session is subscribed.",
		})),
	}
}

func (m *Metrics) observeConnectAttempt() {
	if m != nil {
		m.connectAttempts.Inc()
	}
}

func (m *Metrics) observeReconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) observeKeepAliveWarning() {
	if m != nil {
		m.keepAliveWarnings.Inc()
	}
}

func (m *Metrics) observeProtocolError() {
	if m != nil {
		m.protocolErrors.Inc()
	}
}

func (m *Metrics) observeMessage(route Route, outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(route.String(), outcome).Inc()
}

func (m *Metrics) setConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
