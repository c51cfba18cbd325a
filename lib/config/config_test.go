// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	cfg.Expand()

	if cfg.Cloud.Timeout != 30*time.Second {
		t.Errorf("cloud.timeout = %v, want 30s", cfg.Cloud.Timeout)
	}
	if cfg.OfflineSync.Enabled {
		t.Error("offline_sync.enabled = true, want false")
	}
	if cfg.OfflineSync.MaxWorkers != 5 {
		t.Errorf("offline_sync.max_workers = %d, want 5", cfg.OfflineSync.MaxWorkers)
	}
	if cfg.Subscription.MaxRetries != 50 {
		t.Errorf("subscription.max_retries = %d, want 50", cfg.Subscription.MaxRetries)
	}
	if want := filepath.Join(cfg.Root, "queue.db"); cfg.OfflineSync.QueuePath != want {
		t.Errorf("offline_sync.queue_path = %q, want %q", cfg.OfflineSync.QueuePath, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}

func TestLoadRequiresEnvironment(t *testing.T) {
	t.Setenv(EnvConfig, "")
	if _, err := Load(); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("Load() error = %v, want ErrNoConfig", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	path := writeConfig(t, `
cloud:
  endpoint: https://api.example.com/graphql
`)
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Cloud.Endpoint != "https://api.example.com/graphql" {
		t.Errorf("cloud.endpoint = %q", cfg.Cloud.Endpoint)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
root: /srv/agentsync
cloud:
  endpoint: https://api.example.com/graphql
  timeout: 5s
offline_sync:
  enabled: true
  retry_interval: 2m
  max_workers: 3
subscription:
  max_backoff: 30s
logging:
  level: debug
  format: text
metrics:
  listen: 127.0.0.1:9464
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Cloud.Timeout != 5*time.Second {
		t.Errorf("cloud.timeout = %v, want 5s", cfg.Cloud.Timeout)
	}
	if !cfg.OfflineSync.Enabled {
		t.Error("offline_sync.enabled = false, want true")
	}
	if cfg.OfflineSync.RetryInterval != 2*time.Minute {
		t.Errorf("offline_sync.retry_interval = %v, want 2m", cfg.OfflineSync.RetryInterval)
	}
	if cfg.OfflineSync.MaxWorkers != 3 {
		t.Errorf("offline_sync.max_workers = %d, want 3", cfg.OfflineSync.MaxWorkers)
	}
	// Unset keys keep their defaults.
	if cfg.OfflineSync.DrainTaskTimeout != 10*time.Second {
		t.Errorf("offline_sync.drain_task_timeout = %v, want 10s", cfg.OfflineSync.DrainTaskTimeout)
	}
	if cfg.OfflineSync.QueuePath != "/srv/agentsync/queue.db" {
		t.Errorf("offline_sync.queue_path = %q, want it under the root", cfg.OfflineSync.QueuePath)
	}
	if cfg.Cloud.TokenFile != "/srv/agentsync/token" {
		t.Errorf("cloud.token_file = %q, want it under the root", cfg.Cloud.TokenFile)
	}
	level, err := cfg.Logging.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v; want debug", level, err)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("metrics.listen = %q", cfg.Metrics.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile accepted a missing file")
	}
	if _, err := LoadFile(writeConfig(t, "cloud: [unterminated")); err == nil {
		t.Error("LoadFile accepted malformed YAML")
	}
	if _, err := LoadFile(writeConfig(t, "cloud:\n  timeout: soon\n")); err == nil {
		t.Error("LoadFile accepted a malformed duration")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("AGENTSYNC_TEST_DIR", "/from/env")
	vars := map[string]string{"AGENTSYNC_ROOT": "/root/dir"}

	tests := []struct {
		input string
		want  string
	}{
		{"${AGENTSYNC_ROOT}/queue.db", "/root/dir/queue.db"},
		{"${AGENTSYNC_TEST_DIR}/x", "/from/env/x"},
		{"${AGENTSYNC_TEST_UNSET:-/fallback}/x", "/fallback/x"},
		{"${AGENTSYNC_TEST_UNSET}/x", "/x"},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Cloud.Endpoint = "api.example.com"
	cfg.Cloud.Timeout = 0
	cfg.OfflineSync.Enabled = true
	cfg.OfflineSync.QueuePath = ""
	cfg.OfflineSync.MaxWorkers = 0
	cfg.Subscription.Endpoint = "https://realtime.example.com"
	cfg.Subscription.MaxBackoff = time.Millisecond
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, key := range []string{
		"cloud.endpoint",
		"cloud.timeout",
		"offline_sync.queue_path",
		"offline_sync.max_workers",
		"subscription.endpoint",
		"subscription.max_backoff",
		"logging.level",
		"logging.format",
	} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Validate error does not mention %s: %v", key, err)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "state")
	cfg := Default()
	cfg.Root = root
	cfg.OfflineSync.QueuePath = filepath.Join(root, "db", "queue.db")
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	if info, err := os.Stat(filepath.Join(root, "db")); err != nil || !info.IsDir() {
		t.Errorf("queue directory not created: %v", err)
	}
}
