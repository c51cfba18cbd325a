// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package syncmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/agentcloud/agentsync/cloud"
	"github.com/agentcloud/agentsync/lib/clock"
	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/offlinequeue"
)

// Defaults applied by New.
const (
	DefaultRetryInterval    = 300 * time.Second
	DefaultDrainTaskTimeout = 10 * time.Second
	DefaultMaxWorkers       = 5
)

// ReasonStopped marks an async submission abandoned by StopRetryLoop.
const ReasonStopped cloud.Reason = "stopped"

// ErrNoQueue is returned by queue operations on a Manager without a
// queue.
var ErrNoQueue = errors.New("syncmanager: no offline queue configured")

// Syncer performs one direct sync. *cloud.Services satisfies it.
type Syncer interface {
	Sync(ctx context.Context, kind entity.Kind, op entity.Operation, items []any, opts ...cloud.SyncOption) cloud.SyncResult
}

// IDAssigner is implemented by syncers that can give new items their
// ids before the first attempt. *cloud.Services satisfies it. With it,
// a queued add replays with the id of the original attempt.
type IDAssigner interface {
	AssignIDs(kind entity.Kind, items []any) ([]any, error)
}

// Config configures a Manager.
type Config struct {
	// Syncer reaches the cloud. Required.
	Syncer Syncer

	// Queue stores writes for later. Required when OfflineSyncEnabled
	// is set; Drain and the retry loop need it too.
	Queue *offlinequeue.Queue

	// OfflineSyncEnabled turns retryable failures into cached
	// successes.
	OfflineSyncEnabled bool

	RetryInterval    time.Duration
	DrainTaskTimeout time.Duration
	MaxWorkers       int

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *Metrics
}

// Manager is safe for concurrent use.
type Manager struct {
	syncer        Syncer
	queue         *offlinequeue.Queue
	enabled       bool
	retryInterval time.Duration
	drainTimeout  time.Duration
	clock         clock.Clock
	logger        *slog.Logger
	metrics       *Metrics

	workers    *semaphore.Weighted
	asyncCount atomic.Int64

	mu sync.Mutex

	// poolCtx ends when StopRetryLoop shuts the async pool;
	// StartRetryLoop opens a new one.
	poolCtx     context.Context
	closePool   context.CancelFunc
	loopCancel  context.CancelFunc
	loopDone    chan struct{}
	lastDrain   *DrainReport
	lastDrainAt time.Time
}

// New returns a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Syncer == nil {
		return nil, errors.New("syncmanager: Config.Syncer is required")
	}
	if cfg.OfflineSyncEnabled && cfg.Queue == nil {
		return nil, errors.New("syncmanager: offline sync needs a queue")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	drainTimeout := cfg.DrainTaskTimeout
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTaskTimeout
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = DefaultMaxWorkers
	}

	poolCtx, closePool := context.WithCancel(context.Background())
	return &Manager{
		syncer:        cfg.Syncer,
		queue:         cfg.Queue,
		enabled:       cfg.OfflineSyncEnabled,
		retryInterval: retryInterval,
		drainTimeout:  drainTimeout,
		clock:         clk,
		logger:        logger,
		metrics:       cfg.Metrics,
		workers:       semaphore.NewWeighted(int64(workers)),
		poolCtx:       poolCtx,
		closePool:     closePool,
	}, nil
}

// Sync writes items directly, falling back to the offline queue for
// retryable failures when offline sync is enabled.
func (m *Manager) Sync(ctx context.Context, kind entity.Kind, op entity.Operation, items []any, opts ...cloud.SyncOption) cloud.SyncResult {
	if assigner, ok := m.syncer.(IDAssigner); ok && m.enabled && op == entity.OpAdd {
		assigned, err := assigner.AssignIDs(kind, items)
		if err != nil {
			m.logger.Debug("id assignment skipped", "kind", kind, "error", err)
		} else {
			items = assigned
		}
	}
	result := m.syncer.Sync(ctx, kind, op, items, opts...)
	if result.Success {
		result.Cached = false
		m.metrics.observeResult(kind, "synced")
		return result
	}
	if !m.enabled || !result.Retryable() {
		m.metrics.observeResult(kind, "failed")
		return result
	}

	cached, err := m.enqueue(context.WithoutCancel(ctx), kind, op, items)
	if err != nil {
		m.logger.Error("offline queue write failed",
			"kind", kind,
			"op", op,
			"sync_error", result.Error(),
			"error", err,
		)
		m.metrics.observeResult(kind, "failed")
		return cloud.SyncResult{
			Reason:   cloud.ReasonQueue,
			Errors:   append(result.Errors, err.Error()),
			Warnings: result.Warnings,
		}
	}
	cached.Warnings = append(result.Warnings, result.Errors...)
	m.logger.Info("write cached for offline sync",
		"kind", kind,
		"op", op,
		"task_id", cached.TaskID,
		"reason", result.Reason,
		"error", result.Error(),
	)
	m.metrics.observeResult(kind, "cached")
	return cached
}

func (m *Manager) enqueue(ctx context.Context, kind entity.Kind, op entity.Operation, items []any) (cloud.SyncResult, error) {
	records, err := entity.AsRecords(items)
	if err != nil {
		return cloud.SyncResult{}, fmt.Errorf("syncmanager: %w", err)
	}
	taskID, err := m.queue.Enqueue(ctx, kind, op, records)
	if err != nil {
		return cloud.SyncResult{}, err
	}
	return cloud.SyncResult{Success: true, Cached: true, TaskID: taskID}, nil
}

// SyncAsync runs Sync on the worker pool and delivers its result on
// the returned channel, which receives exactly one value.
func (m *Manager) SyncAsync(ctx context.Context, kind entity.Kind, op entity.Operation, items []any, opts ...cloud.SyncOption) <-chan cloud.SyncResult {
	out := make(chan cloud.SyncResult, 1)
	m.asyncCount.Add(1)
	go func() {
		defer m.asyncCount.Add(-1)
		if err := m.workers.Acquire(m.pool(), 1); err != nil {
			m.metrics.observeAsync("abandoned")
			out <- cloud.SyncResult{Reason: ReasonStopped, Errors: []string{"sync manager stopped"}}
			return
		}
		defer m.workers.Release(1)
		out <- m.Sync(ctx, kind, op, items, opts...)
		m.metrics.observeAsync("completed")
	}()
	return out
}

func (m *Manager) pool() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poolCtx
}

// Stats describes the manager and its queue.
type Stats struct {
	Queue              offlinequeue.Stats `json:"queue"`
	OfflineSyncEnabled bool               `json:"offline_sync_enabled"`
	AsyncInFlight      int                `json:"async_in_flight"`
	DrainInFlight      int                `json:"drain_in_flight"`
	RetryLoopRunning   bool               `json:"retry_loop_running"`
	LastDrain          *DrainReport       `json:"last_drain,omitempty"`
	LastDrainAt        time.Time          `json:"last_drain_at,omitzero"`
}

// Stats returns a snapshot. Queue counts are zero without a queue.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		OfflineSyncEnabled: m.enabled,
		AsyncInFlight:      int(m.asyncCount.Load()),
	}
	m.mu.Lock()
	stats.RetryLoopRunning = m.loopCancel != nil
	if m.lastDrain != nil {
		report := *m.lastDrain
		stats.LastDrain = &report
		stats.LastDrainAt = m.lastDrainAt
	}
	m.mu.Unlock()

	if m.queue == nil {
		return stats, nil
	}
	queueStats, err := m.queue.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.Queue = queueStats
	stats.DrainInFlight = m.queue.InFlight()
	return stats, nil
}
