// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package syncmanager decides what happens to a local write that
// could not reach the cloud.
//
// Manager.Sync tries the cloud once. A success is returned as synced.
// A retryable failure (rejection, null result, transport error) is
// stored in the offline queue when offline sync is enabled, and the
// caller gets a cached success: the local store already has the write
// and the cloud will catch up. With offline sync disabled, or for
// failures that no retry can fix (no token, unsupported operation),
// the failure is returned unchanged.
//
// SyncAsync runs Sync on a bounded pool (five workers by default) and
// delivers the result on a channel. Drain replays queued tasks one at
// a time. The retry loop drains the queue on a fixed interval until
// StopRetryLoop, which also shuts the async pool: submissions still
// waiting for a worker are abandoned with a failure result, running
// ones finish.
package syncmanager
