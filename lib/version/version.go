// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the agentsync build version. The variables
// are set at link time:
//
//	go build -ldflags "-X github.com/agentcloud/agentsync/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/agentsync
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitCommit is the short commit hash of the build.
	GitCommit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"

	// Version is the release version.
	Version = "0.3.0-dev"
)

// Info returns "VERSION (COMMIT, BUILDTIME)".
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Full adds the Go toolchain and platform to Info.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s", Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on every HTTP request to the cloud endpoint.
func UserAgent() string {
	return "agentsync/" + Version
}
