// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package offlinequeue is the durable FIFO of writes that did not
// reach the cloud on their first attempt.
//
// Tasks live in one SQLite table (sync_queue) keyed by a ULID task id
// and ordered by creation time. A task is pending until an attempt
// succeeds (the row is deleted) or fails (the row moves to failed with
// its attempt count and last error). RetryFailed moves a failed task
// back to pending without clearing its attempt count.
//
// Payloads are the task's local records encoded with lib/codec; large
// payloads are zstd-compressed. The queue has no in-memory mirror of
// the table: Pending and Failed return point-in-time snapshots read
// from the database, so a restarted process finds its pending work
// without help.
//
// Every operation takes the queue-wide lock, so operations are
// serialized. Acquire and Release track which tasks are being
// attempted right now; at most one caller can hold a task at a time.
package offlinequeue
