// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets the sync engine and the subscription client run
// against either wall-clock time or a test-controlled clock.
//
// Components that wait (the offline retry loop, reconnect backoff,
// keep-alive gap tracking, queue timestamps) hold a Clock instead of
// calling the time package. Production wiring passes Real(). Tests
// pass Fake(start) and move time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := syncmanager.New(syncmanager.Config{Clock: fake, ...})
//	manager.StartRetryLoop(time.Minute)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
