// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/agentcloud/agentsync/lib/sqlitepool"
)

func openPool(t *testing.T, onConnect func(*sqlite.Conn) error) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      filepath.Join(t.TempDir(), "state.db"),
		OnConnect: onConnect,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := sqlitepool.Open(sqlitepool.Config{}); err == nil {
		t.Fatal("Open with empty path succeeded")
	}
}

func TestConnectionsUseWAL(t *testing.T) {
	pool := openPool(t, nil)
	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var mode string
	err = sqlitex.Execute(conn, "PRAGMA journal_mode", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			mode = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestOnConnectCreatesSchema(t *testing.T) {
	pool := openPool(t, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, `CREATE TABLE IF NOT EXISTS items (id TEXT PRIMARY KEY);`, nil)
	})
	conn, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	if err := sqlitex.Execute(conn, "INSERT INTO items (id) VALUES (?)", &sqlitex.ExecOptions{
		Args: []any{"a-1"},
	}); err != nil {
		t.Fatalf("INSERT: %v", err)
	}
}

func TestOnConnectErrorSurfacesFromTake(t *testing.T) {
	pool := openPool(t, func(*sqlite.Conn) error { return errors.New("schema broken") })
	conn, err := pool.Take(context.Background())
	if err == nil {
		pool.Put(conn)
		t.Fatal("Take succeeded despite failing OnConnect")
	}
}

func TestTakeHonorsCancelledContext(t *testing.T) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "one.db"),
		PoolSize: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	held, err := pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(held)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if conn, err := pool.Take(ctx); err == nil {
		pool.Put(conn)
		t.Fatal("Take on exhausted pool with cancelled context succeeded")
	}
}
