// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package offlinequeue

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/agentcloud/agentsync/lib/clock"
	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/sqlitepool"
)

var (
	// ErrNotFound is returned for a task id with no matching row in
	// the expected state.
	ErrNotFound = errors.New("offlinequeue: task not found")

	// ErrQueueFull is returned by Enqueue when MaxPending tasks are
	// already stored.
	ErrQueueFull = errors.New("offlinequeue: queue full")
)

// State is the durable state of a task.
type State string

const (
	StatePending State = "pending"
	StateFailed  State = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_queue (
	task_id          TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	operation        TEXT NOT NULL,
	payload          BLOB NOT NULL,
	payload_encoding TEXT NOT NULL,
	state            TEXT NOT NULL,
	created_at       INTEGER NOT NULL,
	last_attempt_at  INTEGER,
	attempt_count    INTEGER NOT NULL DEFAULT 0,
	last_error       TEXT
);
CREATE INDEX IF NOT EXISTS sync_queue_state_created
	ON sync_queue (state, created_at);
`

// Task is one queued write.
type Task struct {
	ID            string           `json:"task_id"`
	Kind          entity.Kind      `json:"kind"`
	Operation     entity.Operation `json:"operation"`
	Items         []entity.Record  `json:"items"`
	State         State            `json:"state"`
	CreatedAt     time.Time        `json:"created_at"`
	LastAttemptAt time.Time        `json:"last_attempt_at,omitzero"`
	AttemptCount  int              `json:"attempt_count"`
	LastError     string           `json:"last_error,omitempty"`
}

// Stats counts stored tasks.
type Stats struct {
	Pending int `json:"pending_count"`
	Failed  int `json:"failed_count"`
	Total   int `json:"total_count"`
}

// Config configures a Queue.
type Config struct {
	// Path is the SQLite file. ":memory:" gives a queue that lasts as
	// long as the Queue.
	Path string

	// MaxPending bounds stored tasks (pending plus failed). Zero means
	// unbounded.
	MaxPending int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Queue is the durable offline queue.
type Queue struct {
	pool       *sqlitepool.Pool
	clock      clock.Clock
	logger     *slog.Logger
	maxPending int

	mu       sync.Mutex
	entropy  io.Reader
	inflight map[string]struct{}
}

// Open opens or creates the queue at cfg.Path.
func Open(cfg Config) (*Queue, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path: cfg.Path,
		// Operations are serialized by the queue lock, so one
		// connection is enough and keeps ":memory:" coherent.
		PoolSize: 1,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("offlinequeue: %w", err)
	}
	q := &Queue{
		pool:       pool,
		clock:      clk,
		logger:     logger,
		maxPending: cfg.MaxPending,
		entropy:    ulid.Monotonic(rand.Reader, 0),
		inflight:   make(map[string]struct{}),
	}

	stats, err := q.Stats(context.Background())
	if err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("offline queue opened",
		"path", cfg.Path,
		"pending", stats.Pending,
		"failed", stats.Failed,
	)
	return q, nil
}

// Close closes the database.
func (q *Queue) Close() error {
	return q.pool.Close()
}

// withConn runs fn on a pooled connection under the queue lock.
func (q *Queue) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	conn, err := q.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer q.pool.Put(conn)
	return fn(conn)
}

// Enqueue stores a write and returns its task id.
func (q *Queue) Enqueue(ctx context.Context, kind entity.Kind, op entity.Operation, items []entity.Record) (string, error) {
	payload, encoding, err := encodePayload(items)
	if err != nil {
		return "", fmt.Errorf("offlinequeue: enqueue %s: %w", kind, err)
	}

	var id string
	err = q.withConn(ctx, func(conn *sqlite.Conn) error {
		if q.maxPending > 0 {
			total, err := countRows(conn)
			if err != nil {
				return err
			}
			if total >= q.maxPending {
				return fmt.Errorf("%w (%d tasks)", ErrQueueFull, total)
			}
		}
		now := q.clock.Now()
		id = ulid.MustNew(ulid.Timestamp(now), q.entropy).String()
		return sqlitex.Execute(conn, `INSERT INTO sync_queue
			(task_id, kind, operation, payload, payload_encoding, state, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{
				Args: []any{id, string(kind), string(op), payload, encoding, string(StatePending), now.UnixMilli()},
			})
	})
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			return "", err
		}
		return "", fmt.Errorf("offlinequeue: enqueue %s: %w", kind, err)
	}
	q.logger.Debug("task enqueued", "task_id", id, "kind", kind, "op", op, "items", len(items), "encoding", encoding)
	return id, nil
}

const selectTask = `SELECT task_id, kind, operation, payload, payload_encoding, state,
	created_at, last_attempt_at, attempt_count, last_error FROM sync_queue`

// Pending returns pending tasks, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]Task, error) {
	return q.list(ctx, StatePending)
}

// Failed returns failed tasks, oldest first.
func (q *Queue) Failed(ctx context.Context) ([]Task, error) {
	return q.list(ctx, StateFailed)
}

func (q *Queue) list(ctx context.Context, state State) ([]Task, error) {
	var tasks []Task
	err := q.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, selectTask+` WHERE state = ? ORDER BY created_at, task_id`,
			&sqlitex.ExecOptions{
				Args: []any{string(state)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					task, err := scanTask(stmt)
					if err != nil {
						return err
					}
					tasks = append(tasks, task)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("offlinequeue: listing %s tasks: %w", state, err)
	}
	return tasks, nil
}

// Get returns one task.
func (q *Queue) Get(ctx context.Context, id string) (*Task, error) {
	var found *Task
	err := q.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, selectTask+` WHERE task_id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{id},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					task, err := scanTask(stmt)
					if err != nil {
						return err
					}
					found = &task
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("offlinequeue: get %s: %w", id, err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found, nil
}

func scanTask(stmt *sqlite.Stmt) (Task, error) {
	task := Task{
		ID:           stmt.ColumnText(0),
		Kind:         entity.Kind(stmt.ColumnText(1)),
		Operation:    entity.Operation(stmt.ColumnText(2)),
		State:        State(stmt.ColumnText(5)),
		CreatedAt:    time.UnixMilli(stmt.ColumnInt64(6)),
		AttemptCount: stmt.ColumnInt(8),
		LastError:    stmt.ColumnText(9),
	}
	if !stmt.ColumnIsNull(7) {
		task.LastAttemptAt = time.UnixMilli(stmt.ColumnInt64(7))
	}
	payload := make([]byte, stmt.ColumnLen(3))
	stmt.ColumnBytes(3, payload)
	items, err := decodePayload(payload, stmt.ColumnText(4))
	if err != nil {
		return Task{}, fmt.Errorf("task %s: %w", task.ID, err)
	}
	task.Items = items
	return task, nil
}

// MarkSuccess removes a task.
func (q *Queue) MarkSuccess(ctx context.Context, id string) error {
	var changed int
	err := q.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `DELETE FROM sync_queue WHERE task_id = ?`,
			&sqlitex.ExecOptions{Args: []any{id}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("offlinequeue: mark success %s: %w", id, err)
	}
	if changed == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.logger.Debug("task synced", "task_id", id)
	return nil
}

// MarkFailed moves a task to failed, counting the attempt and keeping
// message as its last error.
func (q *Queue) MarkFailed(ctx context.Context, id, message string) error {
	var changed int
	err := q.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `UPDATE sync_queue
			SET state = ?, attempt_count = attempt_count + 1, last_error = ?, last_attempt_at = ?
			WHERE task_id = ?`,
			&sqlitex.ExecOptions{Args: []any{string(StateFailed), message, q.clock.Now().UnixMilli(), id}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("offlinequeue: mark failed %s: %w", id, err)
	}
	if changed == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.logger.Debug("task failed", "task_id", id, "error", message)
	return nil
}

// RetryFailed moves a failed task back to pending. The attempt count
// is kept.
func (q *Queue) RetryFailed(ctx context.Context, id string) error {
	var changed int
	err := q.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `UPDATE sync_queue SET state = ? WHERE task_id = ? AND state = ?`,
			&sqlitex.ExecOptions{Args: []any{string(StatePending), id, string(StateFailed)}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return fmt.Errorf("offlinequeue: retry %s: %w", id, err)
	}
	if changed == 0 {
		return fmt.Errorf("%w: no failed task %s", ErrNotFound, id)
	}
	return nil
}

// RetryAllFailed moves every failed task back to pending and returns
// how many moved.
func (q *Queue) RetryAllFailed(ctx context.Context) (int, error) {
	var changed int
	err := q.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `UPDATE sync_queue SET state = ? WHERE state = ?`,
			&sqlitex.ExecOptions{Args: []any{string(StatePending), string(StateFailed)}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("offlinequeue: retry all: %w", err)
	}
	if changed > 0 {
		q.logger.Info("failed tasks promoted to pending", "count", changed)
	}
	return changed, nil
}

// Stats counts tasks by state.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := q.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT state, COUNT(*) FROM sync_queue GROUP BY state`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					count := stmt.ColumnInt(1)
					switch State(stmt.ColumnText(0)) {
					case StatePending:
						stats.Pending = count
					case StateFailed:
						stats.Failed = count
					}
					stats.Total += count
					return nil
				},
			})
	})
	if err != nil {
		return Stats{}, fmt.Errorf("offlinequeue: stats: %w", err)
	}
	return stats, nil
}

func countRows(conn *sqlite.Conn) (int, error) {
	var total int
	err := sqlitex.Execute(conn, `SELECT COUNT(*) FROM sync_queue`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			total = stmt.ColumnInt(0)
			return nil
		},
	})
	return total, err
}

// Acquire claims a task for one attempt. It returns false when another
// caller holds the claim.
func (q *Queue) Acquire(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, held := q.inflight[id]; held {
		return false
	}
	q.inflight[id] = struct{}{}
	return true
}

// Release drops a claim taken by Acquire.
func (q *Queue) Release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, id)
}

// InFlight returns the number of claimed tasks.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}
