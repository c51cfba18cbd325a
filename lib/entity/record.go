// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one entity or relationship as a field map. The same type
// carries both the local and the wire form.
type Record map[string]any

// Accessor is implemented by host domain objects that expose their
// fields without being a Record.
type Accessor interface {
	Fields() map[string]any
}

// Clone returns a shallow copy of r. Nested maps and slices are
// shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the field as a string. Numbers are formatted in
// decimal; other types and absent fields yield "".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return ""
}

// AsRecord converts a host item into a Record. It accepts Record,
// map[string]any, Accessor, and any value whose JSON encoding is an
// object. The result never aliases a caller's map.
func AsRecord(item any) (Record, error) {
	switch v := item.(type) {
	case nil:
		return nil, fmt.Errorf("entity: nil item")
	case Record:
		return v.Clone(), nil
	case map[string]any:
		return Record(v).Clone(), nil
	case Accessor:
		return Record(v.Fields()).Clone(), nil
	}

	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("entity: encoding %T: %w", item, err)
	}
	var out Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("entity: %T does not encode as an object: %w", item, err)
	}
	return out, nil
}

// AsRecords converts every item with AsRecord.
func AsRecords(items []any) ([]Record, error) {
	out := make([]Record, 0, len(items))
	for i, item := range items {
		r, err := AsRecord(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ResolveID returns the record's identifier and the field it came
// from, trying "id", "oid", then the kind's legacy names. Empty
// values are skipped.
func ResolveID(kind Kind, r Record) (id, field string, ok bool) {
	candidates := append([]string{"id", "oid"}, kind.LegacyIDFields()...)
	for _, name := range candidates {
		if s := r.String(name); s != "" {
			return s, name, true
		}
	}
	return "", "", false
}

// NormalizeNumbers returns a copy of r with every json.Number, at any
// depth, replaced by int64 when it is integral and float64 otherwise.
// Nested maps and slices are copied, so r is never modified.
func NormalizeNumbers(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case Record:
		return NormalizeNumbers(v)
	case map[string]any:
		return map[string]any(NormalizeNumbers(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	}
	return v
}
