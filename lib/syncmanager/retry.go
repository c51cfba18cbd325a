// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncmanager

import (
	"context"
	"time"

	"github.com/agentcloud/agentsync/lib/clock"
)

// retryTick is how often the retry loop checks for shutdown.
const retryTick = time.Second

// StartRetryLoop drains the queue every interval (the configured
// RetryInterval when interval is zero) while it holds tasks. It also
// reopens an async pool shut by StopRetryLoop. Calling it while the
// loop runs does nothing.
func (m *Manager) StartRetryLoop(interval time.Duration) {
	if interval <= 0 {
		interval = m.retryInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poolCtx.Err() != nil {
		m.poolCtx, m.closePool = context.WithCancel(context.Background())
	}
	if m.loopCancel != nil || m.queue == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.loopCancel = cancel
	m.loopDone = done
	// The ticker and first deadline are fixed before returning so a
	// caller driving a fake clock can advance it right away.
	ticker := m.clock.NewTicker(retryTick)
	first := m.clock.Now().Add(interval)
	go m.retryLoop(ctx, ticker, first, interval, done)
	m.logger.Info("retry loop started", "interval", interval)
}

func (m *Manager) retryLoop(ctx context.Context, ticker *clock.Ticker, next time.Time, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := m.clock.Now()
		if now.Before(next) {
			continue
		}
		next = now.Add(interval)

		stats, err := m.queue.Stats(ctx)
		if err != nil {
			m.logger.Warn("retry loop could not read queue stats", "error", err)
			continue
		}
		if stats.Total == 0 {
			continue
		}
		if _, err := m.Drain(ctx, DrainOptions{}); err != nil && ctx.Err() == nil {
			m.logger.Warn("retry loop drain failed", "error", err)
		}
	}
}

// StopRetryLoop stops the retry loop and shuts the async pool.
// Submissions waiting for a worker are abandoned; running ones finish
// on their own. It returns once the loop goroutine has exited.
func (m *Manager) StopRetryLoop() {
	m.mu.Lock()
	m.closePool()
	cancel, done := m.loopCancel, m.loopDone
	m.loopCancel, m.loopDone = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("retry loop stopped")
}

// Close is StopRetryLoop.
func (m *Manager) Close() error {
	m.StopRetryLoop()
	return nil
}
