// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package graphql

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/wire"
)

// SchemaSource provides the conversion used for add and update items.
// *wire.Registry satisfies it.
type SchemaSource interface {
	SchemaFor(kind entity.Kind) (*wire.SchemaVersion, error)
}

// Builder renders requests from a root table.
type Builder struct {
	schemas SchemaSource
	table   Table
	logger  *slog.Logger
}

// NewBuilder returns a Builder. A nil table means DefaultTable; a nil
// logger discards output.
func NewBuilder(schemas SchemaSource, table Table, logger *slog.Logger) *Builder {
	if table == nil {
		table = DefaultTable()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{schemas: schemas, table: table, logger: logger}
}

// Root returns the table entry for (kind, op).
func (b *Builder) Root(kind entity.Kind, op entity.Operation) (Root, error) {
	return b.table.Lookup(kind, op)
}

// Build renders a request from local items. Add and update items go
// through the kind's SchemaVersion first; delete items are reduced to
// their ids; a query takes its parameters from the first item. Items
// may be entity.Record, map[string]any, entity.Accessor, or structs.
func (b *Builder) Build(kind entity.Kind, op entity.Operation, items []any, settings map[string]any) (string, error) {
	root, err := b.table.Lookup(kind, op)
	if err != nil {
		return "", err
	}
	records, err := entity.AsRecords(items)
	if err != nil {
		return "", fmt.Errorf("graphql: %s %s: %w", op, kind, err)
	}

	if root.Shape == Objects {
		schema, err := b.schemas.SchemaFor(kind)
		if err != nil {
			return "", fmt.Errorf("graphql: %s %s: %w", op, kind, err)
		}
		for i, record := range records {
			converted, warnings := schema.ToWire(record)
			for _, w := range warnings {
				b.logger.Warn("mapping anomaly", "kind", kind, "op", op, "field", w.Field, "error", w.Err)
			}
			records[i] = converted
		}
	}
	return b.Render(kind, root, records, settings)
}

// BuildWire renders a request from items already in wire form.
func (b *Builder) BuildWire(kind entity.Kind, op entity.Operation, items []entity.Record, settings map[string]any) (string, error) {
	root, err := b.table.Lookup(kind, op)
	if err != nil {
		return "", err
	}
	return b.Render(kind, root, items, settings)
}

// Render writes the request for an explicit root.
func (b *Builder) Render(kind entity.Kind, root Root, items []entity.Record, settings map[string]any) (string, error) {
	r := &renderer{}
	if root.Query {
		r.b.WriteString("query MyQuery {\n  ")
	} else {
		r.b.WriteString("mutation MyMutation {\n  ")
	}
	r.b.WriteString(root.Field)
	r.b.WriteByte('(')
	r.b.WriteString(root.Arg)
	r.b.WriteString(": ")

	switch root.Shape {
	case Objects:
		r.list(len(items), func(i int) any { return map[string]any(items[i]) })
	case IDs:
		ids := b.resolveIDs(kind, items)
		r.list(len(ids), func(i int) any { return ids[i] })
	case RemoveObjects:
		removals := b.removals(kind, items)
		r.list(len(removals), func(i int) any { return removals[i] })
	case QueryParams:
		params := map[string]any{}
		if len(items) > 0 {
			params = items[0]
		}
		if len(items) > 1 {
			b.logger.Warn("query takes one parameter object; extra items ignored",
				"kind", kind, "items", len(items))
		}
		r.object(params)
	default:
		return "", fmt.Errorf("graphql: root %s has unknown body shape %v", root.Field, root.Shape)
	}

	if len(settings) > 0 {
		encoded, err := json.Marshal(settings)
		if err != nil {
			return "", fmt.Errorf("graphql: encoding settings for %s: %w", root.Field, err)
		}
		r.b.WriteString(", settings: ")
		r.b.WriteString(Quote(string(encoded)))
	}
	r.b.WriteByte(')')
	if root.Structured {
		r.b.WriteString(" { id success error }")
	}
	r.b.WriteString("\n}")

	if len(r.dropped) > 0 {
		b.logger.Warn("dropped fields without a GraphQL name", "kind", kind, "root", root.Field, "fields", r.dropped)
	}
	return r.b.String(), nil
}

func (b *Builder) resolveIDs(kind entity.Kind, items []entity.Record) []string {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id, _, ok := entity.ResolveID(kind, item)
		if !ok {
			b.logger.Warn("delete item has no id; skipping", "kind", kind, "index", i)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (b *Builder) removals(kind entity.Kind, items []entity.Record) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		id, _, ok := entity.ResolveID(kind, item)
		if !ok {
			b.logger.Warn("delete item has no id; skipping", "kind", kind, "index", i)
			continue
		}
		removal := map[string]any{"oid": id}
		if owner := item.String("owner"); owner != "" {
			removal["owner"] = owner
		}
		if reason := item.String("reason"); reason != "" {
			removal["reason"] = reason
		}
		out = append(out, removal)
	}
	return out
}
