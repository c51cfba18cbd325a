// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package graphql renders the GraphQL documents agentsync sends to the
// cloud catalog service.
//
// Every request has the same shape: one root field, one argument
// holding the items, and an optional settings argument. What varies by
// (kind, operation) lives in a Table of Roots: the root field name,
// whether the document is a mutation or a query, the argument name,
// how the body is shaped (wire objects, bare ids, removal objects, or
// one query-parameter object), and whether the root returns a
// structured mutation result that needs a { id success error }
// selection. A (kind, operation) pair with no Root is unsupported.
//
// The Builder is a pure function of its inputs: the same kind,
// operation, items and settings always produce byte-identical text.
// Object fields are emitted in sorted order, null fields are dropped,
// and strings are escaped for GraphQL string literals.
package graphql
