// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Int64

// UniqueID returns prefix and a number no other call in the test
// binary returns, for record ids that must not collide across tests
// sharing a queue or server.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
