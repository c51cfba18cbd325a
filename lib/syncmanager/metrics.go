// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncmanager

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/promutil"
)

// Metrics exposes Prometheus collectors for sync activity. A nil
// *Metrics records nothing.
type Metrics struct {
	results      *prometheus.CounterVec
	drainTasks   *prometheus.CounterVec
	asyncSubmits *prometheus.CounterVec
	queuePending prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg (the default
// registerer when nil). Collectors already registered under the same
// names are reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		results: promutil.Register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentsync",
				Subsystem: "sync",
				Name:      "results_total",
				Help:      "Sync calls by entity kind and outcome (synced, cached, failed).",
			},
			[]string{"kind", "outcome"},
		)),
		drainTasks: promutil.Register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentsync",
				Subsystem: "sync",
				Name:      "drain_tasks_total",
				Help:      "Queued tasks replayed by drains, by outcome.",
			},
			[]string{"outcome"},
		)),
		asyncSubmits: promutil.Register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentsync",
				Subsystem: "sync",
				Name:      "async_submissions_total",
				Help:      "Async sync submissions, by outcome (completed, abandoned).",
			},
			[]string{"outcome"},
		)),
		queuePending: promutil.Register(reg, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "agentsync",
				Subsystem: "sync",
				Name:      "queue_pending",
				Help:      "Pending offline tasks after the most recent drain.",
			},
		)),
	}
}

func (m *Metrics) observeResult(kind entity.Kind, outcome string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) observeDrainTask(outcome string) {
	if m == nil {
		return
	}
	m.drainTasks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeAsync(outcome string) {
	if m == nil {
		return
	}
	m.asyncSubmits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.queuePending.Set(float64(n))
}
