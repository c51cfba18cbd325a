// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoIncludesVersionAndCommit(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, Version+" (") {
		t.Errorf("Info() = %q, want prefix %q", info, Version+" (")
	}
	if !strings.Contains(info, GitCommit) {
		t.Errorf("Info() = %q missing commit %q", info, GitCommit)
	}
}

func TestUserAgent(t *testing.T) {
	if got, want := UserAgent(), "agentsync/"+Version; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}
