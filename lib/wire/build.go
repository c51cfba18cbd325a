// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"github.com/google/uuid"

	"github.com/agentcloud/agentsync/lib/mapping"
)

// BuildOptions tunes Build.
type BuildOptions struct {
	// NewID generates ids for empty id fields. Defaults to random
	// (version 4) UUIDs.
	NewID func() string
}

// Build derives a SchemaVersion from a mapping document. Transformers
// are appended in a fixed order: excluded-field removal, id fill, date
// fields, date-time fields, JSON fields.
func Build(doc *mapping.Document, opts BuildOptions) (*SchemaVersion, error) {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	var transformers []Transformer
	for _, field := range doc.ExcludedFields {
		transformers = append(transformers, NewRemove(field))
	}
	if len(doc.IDSourceFields()) > 0 {
		transformers = append(transformers, IDTransform(doc.IDField, newID))
	}
	for _, field := range doc.AWSDateFields {
		transformers = append(transformers, DateTransform(doc.WireName(field)))
	}
	for _, field := range doc.AWSDateTimeFields {
		transformers = append(transformers, DateTimeTransform(doc.WireName(field)))
	}
	for _, field := range doc.JSONSerializeFields {
		transformers = append(transformers, JSONTransform(doc.WireName(field)))
	}

	s, err := NewSchemaVersion(doc.Kind, doc.Version, doc.FieldMapping, doc.RequiredDefaults(), transformers...)
	if err != nil {
		return nil, err
	}
	if len(doc.IDSourceFields()) > 0 {
		s.idField, s.newID = doc.IDField, newID
	}
	return s, nil
}
