// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentcloud/agentsync/lib/entity"
)

// SchemaVersion is the conversion between local and wire form for one
// kind at one version. It is immutable once returned by Build or the
// Registry.
type SchemaVersion struct {
	kind    entity.Kind
	version int

	toWire  map[string]string // local name -> wire name
	toLocal map[string]string // wire name -> local name
	// renamedLocals is toWire's keys in sorted order.
	renamedLocals []string

	required     map[string]any
	transformers []Transformer

	// idField and newID are set by Build when the kind's id is
	// generated on send.
	idField string
	newID   func() string
}

// NewSchemaVersion returns a SchemaVersion with the given rename map
// and required-field defaults. fieldMap must be bijective.
func NewSchemaVersion(kind entity.Kind, version int, fieldMap map[string]string, required map[string]any, transformers ...Transformer) (*SchemaVersion, error) {
	s := &SchemaVersion{
		kind:     kind,
		version:  version,
		toWire:   make(map[string]string, len(fieldMap)),
		toLocal:  make(map[string]string, len(fieldMap)),
		required: make(map[string]any, len(required)),
	}
	for local, wireName := range fieldMap {
		if other, dup := s.toLocal[wireName]; dup {
			return nil, fmt.Errorf("wire: %s v%d: %q and %q both map to %q", kind, version, other, local, wireName)
		}
		s.toWire[local] = wireName
		s.toLocal[wireName] = local
		s.renamedLocals = append(s.renamedLocals, local)
	}
	sort.Strings(s.renamedLocals)
	for k, v := range required {
		s.required[k] = v
	}
	for _, t := range transformers {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("wire: %s v%d: %w", kind, version, err)
		}
	}
	s.transformers = append([]Transformer(nil), transformers...)
	return s, nil
}

// With returns a copy of s with extra transformers appended. Hosts use
// it to add Merge or Split steps before registering a version.
func (s *SchemaVersion) With(extra ...Transformer) (*SchemaVersion, error) {
	fieldMap := make(map[string]string, len(s.toWire))
	for k, v := range s.toWire {
		fieldMap[k] = v
	}
	all := append(append([]Transformer(nil), s.transformers...), extra...)
	out, err := NewSchemaVersion(s.kind, s.version, fieldMap, s.required, all...)
	if err != nil {
		return nil, err
	}
	out.idField, out.newID = s.idField, s.newID
	return out, nil
}

func (s *SchemaVersion) Kind() entity.Kind { return s.kind }
func (s *SchemaVersion) Version() int      { return s.version }

// WireName returns the wire name of a local field.
func (s *SchemaVersion) WireName(local string) string {
	if w, ok := s.toWire[local]; ok {
		return w
	}
	return local
}

// LocalName returns the local name of a wire field.
func (s *SchemaVersion) LocalName(wireName string) string {
	if l, ok := s.toLocal[wireName]; ok {
		return l
	}
	return wireName
}

// AssignID returns local with a generated id in the local id field
// when neither that field nor the wire id field holds one. The second
// result reports whether an id was generated. The input is not
// modified.
func (s *SchemaVersion) AssignID(local entity.Record) (entity.Record, bool) {
	if s.idField == "" || s.newID == nil {
		return local, false
	}
	localField := s.LocalName(s.idField)
	for _, field := range []string{localField, s.idField} {
		switch v := local[field].(type) {
		case nil:
		case string:
			if strings.TrimSpace(v) != "" {
				return local, false
			}
		default:
			return local, false
		}
	}
	out := local.Clone()
	out[localField] = s.newID()
	return out, true
}

// Transformers returns a copy of the transformer list.
func (s *SchemaVersion) Transformers() []Transformer {
	return append([]Transformer(nil), s.transformers...)
}

// ToWire converts a local record. The input is not modified.
func (s *SchemaVersion) ToWire(local entity.Record) (entity.Record, []Warning) {
	out := make(entity.Record, len(local)+len(s.required))
	for k, v := range local {
		if _, renamed := s.toWire[k]; !renamed {
			out[k] = v
		}
	}
	for _, localName := range s.renamedLocals {
		if v, ok := local[localName]; ok {
			out[s.toWire[localName]] = v
		}
	}
	for k, v := range s.required {
		if current, ok := out[k]; !ok || current == nil {
			out[k] = v
		}
	}

	var warnings []Warning
	for _, t := range s.transformers {
		t.send(out, &warnings)
	}
	return out, warnings
}

// FromWire converts a wire record. The input is not modified.
func (s *SchemaVersion) FromWire(wireRecord entity.Record) (entity.Record, []Warning) {
	rec := wireRecord.Clone()
	var warnings []Warning
	for i := len(s.transformers) - 1; i >= 0; i-- {
		s.transformers[i].receive(rec, &warnings)
	}

	out := make(entity.Record, len(rec))
	for wireName, localName := range s.toLocal {
		if v, ok := rec[wireName]; ok {
			out[localName] = v
		}
	}
	for k, v := range rec {
		if _, isWireName := s.toLocal[k]; isWireName {
			continue
		}
		if _, isLocalName := s.toWire[k]; isLocalName {
			if _, filled := out[k]; filled {
				continue
			}
		}
		if _, isRequired := s.required[k]; isRequired {
			continue
		}
		out[k] = v
	}
	return out, warnings
}
