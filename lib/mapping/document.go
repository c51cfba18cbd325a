// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/jsonc"

	"github.com/agentcloud/agentsync/lib/entity"
)

// Document is one parsed mapping file.
type Document struct {
	Kind                entity.Kind       `json:"kind"`
	Version             int               `json:"version"`
	IDField             string            `json:"id_field"`
	FieldMapping        map[string]string `json:"field_mapping"`
	RequiredFields      map[string]any    `json:"required_fields"`
	DefaultValues       map[string]any    `json:"default_values"`
	ExcludedFields      []string          `json:"excluded_fields"`
	JSONSerializeFields []string          `json:"json_serialize_fields"`
	AWSDateFields       []string          `json:"aws_date_fields"`
	AWSDateTimeFields   []string          `json:"aws_datetime_fields"`
}

// Empty returns the document used when a kind has no mapping file:
// no renames, no defaults, no transforms.
func Empty(kind entity.Kind) *Document {
	return &Document{Kind: kind, Version: 1}
}

// Parse decodes a JSONC mapping document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, fmt.Errorf("mapping: decoding document: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	return &doc, nil
}

// Validate checks that the rename map is a bijection and that the
// field lists refer to sensible names.
func (d *Document) Validate() error {
	var errs []error
	if !d.Kind.Valid() {
		errs = append(errs, fmt.Errorf("unknown kind %q", d.Kind))
	}
	if d.Version < 1 {
		errs = append(errs, fmt.Errorf("version %d is not positive", d.Version))
	}

	seen := make(map[string]string, len(d.FieldMapping))
	for _, local := range sortedKeys(d.FieldMapping) {
		wire := d.FieldMapping[local]
		if wire == "" {
			errs = append(errs, fmt.Errorf("field_mapping[%q] is empty", local))
			continue
		}
		if wire == local {
			errs = append(errs, fmt.Errorf("field_mapping[%q] maps a field to itself", local))
		}
		if other, dup := seen[wire]; dup {
			errs = append(errs, fmt.Errorf("field_mapping: %q and %q both map to %q", other, local, wire))
		}
		seen[wire] = local
	}
	for _, local := range sortedKeys(d.FieldMapping) {
		if other, isWire := seen[local]; isWire {
			errs = append(errs, fmt.Errorf("field_mapping: %q is renamed and is also the wire name of %q", local, other))
		}
	}

	for field := range d.RequiredDefaults() {
		if _, localToo := d.FieldMapping[field]; localToo {
			errs = append(errs, fmt.Errorf("required field %q is also a local field that gets renamed", field))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("mapping: %s: %w", d.Kind, errors.Join(errs...))
	}
	return nil
}

// RequiredDefaults returns required_fields with default_values merged
// over it.
func (d *Document) RequiredDefaults() map[string]any {
	out := make(map[string]any, len(d.RequiredFields)+len(d.DefaultValues))
	for k, v := range d.RequiredFields {
		out[k] = v
	}
	for k, v := range d.DefaultValues {
		out[k] = v
	}
	return out
}

// WireName returns the wire name of a local field.
func (d *Document) WireName(local string) string {
	if wire, ok := d.FieldMapping[local]; ok {
		return wire
	}
	return local
}

// IDSourceFields returns the local fields renamed onto IDField, in
// sorted order.
func (d *Document) IDSourceFields() []string {
	if d.IDField == "" {
		return nil
	}
	var out []string
	for _, local := range sortedKeys(d.FieldMapping) {
		if d.FieldMapping[local] == d.IDField {
			out = append(out, local)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
