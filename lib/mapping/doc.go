// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package mapping loads the per-kind documents that describe how a
// local record differs from its cloud (wire) form.
//
// Each document is a JSONC file named after its kind (agent.jsonc,
// agent_skill.jsonc, ...). Comments and trailing commas are allowed;
// the file is normalized to JSON with tidwall/jsonc before decoding.
// A document lists:
//
//   - field_mapping: local name to wire name, only where they differ
//   - required_fields and default_values: wire fields every outbound
//     record must carry, with the value used when absent
//   - excluded_fields: wire fields stripped on send
//   - json_serialize_fields: local fields sent as JSON strings
//   - aws_date_fields / aws_datetime_fields: local fields normalized
//     to YYYY-MM-DD or ISO-8601 with a zone
//   - id_field: the canonical wire id; local fields renamed onto it get
//     a fresh UUID when empty
//
// Defaults for every kind are embedded in the binary. A Loader can be
// pointed at an override directory; a file there replaces the embedded
// document of the same kind wholesale.
package mapping
