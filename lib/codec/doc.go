// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the binary encoding used for durable payloads.
//
// Offline queue tasks store the original local record as CBOR
// (RFC 8949) rather than JSON: byte strings survive untouched, integer
// widths are preserved, and Core Deterministic Encoding gives the same
// bytes for the same record so payloads can be compared and hashed.
// Maps decode as map[string]any so a decoded payload is directly usable
// as an entity.Record.
package codec
