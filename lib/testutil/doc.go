// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil collects helpers shared by agentsync tests: bounded
// channel waits for consumer queues and async results, and unique
// identifiers for records created in a test.
package testutil
