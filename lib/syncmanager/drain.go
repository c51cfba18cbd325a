// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncmanager

import (
	"context"
	"errors"
	"time"

	"github.com/agentcloud/agentsync/cloud"
	"github.com/agentcloud/agentsync/lib/offlinequeue"
)

// DrainOptions bounds one Drain.
type DrainOptions struct {
	// Max limits how many tasks are attempted. Zero means all.
	Max int

	// PerTaskTimeout bounds each attempt. Zero means the manager's
	// DrainTaskTimeout.
	PerTaskTimeout time.Duration

	// ExcludeFailed skips promoting failed tasks to pending first.
	ExcludeFailed bool
}

// DrainReport counts the outcome of a Drain. Synced+Failed never
// exceeds Total. Tasks held by a concurrent drain, or settled by one
// after they were listed, are Skipped.
type DrainReport struct {
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped,omitempty"`
}

// Drain replays pending tasks, oldest first, one attempt each.
func (m *Manager) Drain(ctx context.Context, opts DrainOptions) (DrainReport, error) {
	var report DrainReport
	if m.queue == nil {
		return report, ErrNoQueue
	}
	timeout := opts.PerTaskTimeout
	if timeout <= 0 {
		timeout = m.drainTimeout
	}

	if !opts.ExcludeFailed {
		if _, err := m.queue.RetryAllFailed(ctx); err != nil {
			return report, err
		}
	}
	tasks, err := m.queue.Pending(ctx)
	if err != nil {
		return report, err
	}
	if opts.Max > 0 && len(tasks) > opts.Max {
		tasks = tasks[:opts.Max]
	}
	report.Total = len(tasks)

	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		if !m.queue.Acquire(task.ID) {
			report.Skipped++
			continue
		}
		// The snapshot may be stale: a concurrent drain can have synced
		// or failed the task since it was listed.
		current, err := m.queue.Get(ctx, task.ID)
		if err != nil || current.State != offlinequeue.StatePending {
			m.queue.Release(task.ID)
			if err != nil && !errors.Is(err, offlinequeue.ErrNotFound) {
				m.logger.Warn("reloading queued task failed", "task_id", task.ID, "error", err)
			}
			report.Skipped++
			continue
		}
		if m.attempt(ctx, *current, timeout) {
			report.Synced++
		} else {
			report.Failed++
		}
		m.queue.Release(task.ID)
	}

	m.recordDrain(ctx, report)
	if report.Total > 0 {
		m.logger.Info("offline queue drained",
			"total", report.Total,
			"synced", report.Synced,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}
	return report, ctx.Err()
}

// attempt replays one task and records the outcome in the queue.
func (m *Manager) attempt(ctx context.Context, task offlinequeue.Task, timeout time.Duration) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	items := make([]any, len(task.Items))
	for i, item := range task.Items {
		items[i] = item
	}
	result := m.syncer.Sync(attemptCtx, task.Kind, task.Operation, items, cloud.WithTimeout(timeout))

	// Bookkeeping uses the parent context so an expired attempt can
	// still be recorded.
	bookkeeping := context.WithoutCancel(ctx)
	if result.Success {
		if err := m.queue.MarkSuccess(bookkeeping, task.ID); err != nil {
			m.logger.Warn("removing synced task failed", "task_id", task.ID, "error", err)
		}
		m.metrics.observeDrainTask("synced")
		return true
	}

	message := result.Error()
	if message == "" {
		message = string(result.Reason)
	}
	if err := m.queue.MarkFailed(bookkeeping, task.ID, message); err != nil {
		m.logger.Warn("recording task failure failed", "task_id", task.ID, "error", err)
	}
	m.logger.Debug("queued task failed",
		"task_id", task.ID,
		"kind", task.Kind,
		"op", task.Operation,
		"attempts", task.AttemptCount+1,
		"error", message,
	)
	m.metrics.observeDrainTask("failed")
	return false
}

func (m *Manager) recordDrain(ctx context.Context, report DrainReport) {
	m.mu.Lock()
	m.lastDrain = &report
	m.lastDrainAt = m.clock.Now()
	m.mu.Unlock()

	if stats, err := m.queue.Stats(context.WithoutCancel(ctx)); err == nil {
		m.metrics.setPending(stats.Pending)
	}
}
