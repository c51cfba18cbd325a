// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package entity names the records agentsync moves between the local
// catalog and the cloud.
//
// A Kind tags a category of record: one of eight entities (agent,
// skill, task, tool, knowledge, organization, avatar resource, vehicle)
// or one of six relationships between them (agent-skill, agent-task,
// agent-tool, skill-tool, skill-knowledge, task-skill). The sync core
// treats every kind the same way; only the mapping document and the
// GraphQL root table differ per kind.
//
// Records are untyped field maps (Record). Host code that keeps its
// own structs can pass them through the Accessor interface, or as
// plain structs that AsRecord flattens through their JSON encoding.
//
// ResolveID finds a record's identifier the way delete requests need
// it: the generic "id" field first, then "oid", then the legacy
// per-kind name ("agid", "skid", ...).
package entity
