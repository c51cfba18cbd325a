// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds HTTP and connection helpers shared by the
// GraphQL transport and the subscription client.
//
// Response bodies from the remote service are read through
// ReadResponse, which caps the read at MaxResponseSize so a
// misbehaving endpoint cannot exhaust memory. Upload bodies and file
// downloads are streamed and never pass through these helpers.
//
// IsExpectedCloseError separates ordinary WebSocket teardown from
// failures worth logging at warn level.
package netutil
