// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the local SQLite database that holds
// agentsync's durable state (the offline sync queue).
//
// Every connection gets the same pragmas: WAL journaling so readers
// never block the writer, NORMAL synchronous mode, and a busy timeout
// so a second process opening the same file waits instead of failing
// with SQLITE_BUSY. Callers add their schema through Config.OnConnect,
// which runs once per pooled connection.
package sqlitepool
