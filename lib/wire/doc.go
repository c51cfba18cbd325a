// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire converts records between their local form (as the
// desktop catalog stores them) and their wire form (as the cloud
// GraphQL service accepts and returns them).
//
// A SchemaVersion binds one entity kind at one version. It holds the
// rename map from the kind's mapping document, the required wire
// fields with their defaults, and an ordered list of Transformers.
// ToWire copies fields across, renames, fills required defaults, then
// runs the transformers in order. FromWire runs the transformers'
// inverses in reverse order, renames back, and drops the wire-only
// required fields.
//
// Transformers are values, not types: one Transformer struct whose
// Action selects Rename, Add, Remove, Transform, Merge, or Split
// behavior. Build derives the standard list from a mapping document:
// excluded-field removal, fresh UUIDs for empty ids, date and
// date-time normalization, and JSON serialization of structured
// fields.
//
// Bad input never aborts a conversion. A value that cannot be
// normalized is replaced with a safe substitute (omitted for dates,
// "{}" or an empty object for JSON) and reported as a Warning next to
// the converted record.
//
// The Registry builds each kind's current SchemaVersion lazily on
// first use and never mutates it afterwards, so a *SchemaVersion can be
// shared freely across goroutines.
package wire
