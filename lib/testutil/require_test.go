// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

type recorder struct {
	failed  bool
	message string
}

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) {
	r.failed = true
	r.message = fmt.Sprintf(format, args...)
}

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "value"); got != 7 {
		t.Errorf("RequireReceive = %d, want 7", got)
	}
}

func TestRequireEmptyFlagsValue(t *testing.T) {
	ch := make(chan string, 1)
	ch <- "stray"
	var r recorder
	RequireEmpty(&r, ch, "queue %s", "monitor")
	if !r.failed {
		t.Fatal("RequireEmpty did not fail on a buffered value")
	}
	if r.message != "unexpected value stray: queue monitor" {
		t.Errorf("message = %q", r.message)
	}
}

func TestUniqueIDIncreases(t *testing.T) {
	first := UniqueID("agent")
	second := UniqueID("agent")
	if first == second {
		t.Fatalf("UniqueID repeated %q", first)
	}
}
