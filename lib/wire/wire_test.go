// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/mapping"
)

func fixedID() string { return "00000000-0000-4000-8000-000000000001" }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(RegistryConfig{
		Source: mapping.NewLoader("", nil),
		NewID:  fixedID,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

// localRecordFor builds a record the local store could produce for
// doc: every renamed field present, dates with a time component,
// date-times already zoned, JSON fields structured.
func localRecordFor(doc *mapping.Document) entity.Record {
	r := entity.Record{"name": "fixture", "owner": "u@example.com"}
	for local := range doc.FieldMapping {
		r[local] = "value-of-" + local
	}
	for _, f := range doc.AWSDateFields {
		r[f] = "2026-04-05T10:11:12"
	}
	for _, f := range doc.AWSDateTimeFields {
		r[f] = "2026-04-05T10:11:12Z"
	}
	for _, f := range doc.JSONSerializeFields {
		r[f] = map[string]any{"mode": "fast", "limits": []any{1.0, 2.0}}
	}
	return r
}

func TestRoundTripEveryKind(t *testing.T) {
	registry := newTestRegistry(t)
	docs, err := mapping.NewLoader("", nil).LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	for _, kind := range entity.AllKinds() {
		t.Run(string(kind), func(t *testing.T) {
			doc := docs[kind]
			schema, err := registry.SchemaFor(kind)
			if err != nil {
				t.Fatalf("SchemaFor: %v", err)
			}

			local := localRecordFor(doc)
			wireRecord, warnings := schema.ToWire(local)
			if len(warnings) != 0 {
				t.Fatalf("ToWire warnings: %v", Strings(warnings))
			}
			back, warnings := schema.FromWire(wireRecord)
			if len(warnings) != 0 {
				t.Fatalf("FromWire warnings: %v", Strings(warnings))
			}

			want := local.Clone()
			for _, f := range doc.AWSDateFields {
				want[f] = "2026-04-05"
			}
			if !reflect.DeepEqual(back, want) {
				t.Errorf("FromWire(ToWire(r)) mismatch\n got: %v\nwant: %v", back, want)
			}
		})
	}
}

func TestToWireAgent(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindAgent)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}

	got, warnings := schema.ToWire(entity.Record{
		"id":          "",
		"name":        "a1",
		"owner":       "u@example",
		"description": "plans trips",
		"local_path":  "/home/u/agents/a1",
		"extra_data":  nil,
		"created_at":  float64(1767225600000),
		"birthday":    "2001/02/03",
	})
	if len(warnings) != 0 {
		t.Fatalf("warnings: %v", Strings(warnings))
	}

	want := entity.Record{
		"agid":       fixedID(),
		"name":       "a1",
		"owner":      "u@example",
		"desc":       "plans trips",
		"extra_data": "{}",
		"created_at": "2026-01-01T00:00:00Z",
		"birthday":   "2001-02-03",
		"client":     "desktop",
		"schema_rev": float64(2),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToWire mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestToWireKeepsExistingID(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindSkill)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	got, _ := schema.ToWire(entity.Record{"skid": "S-1", "owner": "u"})
	if got["skid"] != "S-1" {
		t.Errorf("skid = %v, want S-1", got["skid"])
	}
}

func TestToWireDoesNotModifyInput(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindTool)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	local := entity.Record{"id": "t-1", "parameters": map[string]any{"a": 1.0}}
	schema.ToWire(local)
	if _, ok := local["parameters"].(map[string]any); !ok {
		t.Errorf("ToWire replaced the caller's parameters with %T", local["parameters"])
	}
	if _, ok := local["toolid"]; ok {
		t.Error("ToWire added toolid to the caller's record")
	}
}

func TestBadValuesProduceWarnings(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindTask)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}

	got, warnings := schema.ToWire(entity.Record{
		"id":         "t-1",
		"due_date":   "next tuesday",
		"created_at": true,
		"steps":      "plain text",
	})
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings (%v), want 2", len(warnings), Strings(warnings))
	}
	var dateErr *BadDateError
	if !errors.As(warnings[0].Err, &dateErr) || dateErr.Field != "due_date" {
		t.Errorf("warnings[0] = %v, want BadDateError on due_date", warnings[0].Err)
	}
	if _, ok := got["due_date"]; ok {
		t.Error("unparseable due_date was sent")
	}
	if _, ok := got["created_at"]; ok {
		t.Error("non-date created_at was sent")
	}
	if got["steps"] != `"plain text"` {
		t.Errorf("steps = %v, want JSON string literal", got["steps"])
	}

	back, warnings := schema.FromWire(entity.Record{"taskid": "t-1", "steps": "{not json"})
	if len(warnings) != 1 {
		t.Fatalf("FromWire warnings = %v, want one", Strings(warnings))
	}
	var jsonErr *BadJSONError
	if !errors.As(warnings[0].Err, &jsonErr) {
		t.Errorf("warning = %v, want BadJSONError", warnings[0].Err)
	}
	if !reflect.DeepEqual(back["steps"], map[string]any{}) {
		t.Errorf("steps = %#v, want empty object", back["steps"])
	}
}

func TestFromWireDropsWireOnlyRequiredFields(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindAgent)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	got, _ := schema.FromWire(entity.Record{
		"agid": "A-1", "name": "a1", "client": "desktop", "schema_rev": 2.0, "extra_data": `{"k":"v"}`,
	})
	want := entity.Record{"id": "A-1", "name": "a1", "extra_data": map[string]any{"k": "v"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FromWire\n got: %v\nwant: %v", got, want)
	}
}

func TestFromWireKeepsServerIDWhenCanonicalMissing(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindAgent)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	got, _ := schema.FromWire(entity.Record{"id": "A-7", "name": "x"})
	if got["id"] != "A-7" {
		t.Errorf("id = %v, want A-7", got["id"])
	}
}

func TestWireToLocalToWire(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindKnowledge)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	w := entity.Record{
		"knid":         "K-1",
		"content":      "the body",
		"tags":         `["a","b"]`,
		"published_on": "2025-12-31",
		"created_at":   "2025-12-31T23:59:59Z",
		"client":       "desktop",
	}
	local, _ := schema.FromWire(w)
	again, _ := schema.ToWire(local)
	if !reflect.DeepEqual(again, w) {
		t.Errorf("ToWire(FromWire(w))\n got: %v\nwant: %v", again, w)
	}
}

func TestMissingDocumentGivesIdentitySchema(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{Source: mapping.NewFSLoader(nil, fstest.MapFS{})})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	schema, err := registry.SchemaFor(entity.KindVehicle)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	r := entity.Record{"id": "", "specs": map[string]any{"gpu": "none"}}
	got, _ := schema.ToWire(r)
	if !reflect.DeepEqual(got, r) {
		t.Errorf("ToWire = %v, want identity %v", got, r)
	}
	back, _ := schema.FromWire(got)
	if !reflect.DeepEqual(back, r) {
		t.Errorf("FromWire = %v, want identity %v", back, r)
	}
}

func TestSchemaForUnknownKind(t *testing.T) {
	_, err := newTestRegistry(t).SchemaFor("spaceship")
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("SchemaFor(spaceship) error = %v, want ErrUnknownKind", err)
	}
}

func TestSchemaIsBuiltOnce(t *testing.T) {
	registry := newTestRegistry(t)
	first, err := registry.SchemaFor(entity.KindOrganization)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	second, err := registry.SchemaFor(entity.KindOrganization)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	if first != second {
		t.Error("SchemaFor built the schema twice")
	}
}

func TestRegisterNewerVersion(t *testing.T) {
	registry := newTestRegistry(t)
	v1, err := registry.SchemaFor(entity.KindAgent)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}

	fullName := NewMerge("full_name", []string{"first", "last"}, func(values map[string]any) any {
		return strings.TrimSpace(entity.Record(values).String("first") + " " + entity.Record(values).String("last"))
	})
	splitName := NewSplit("full_name", func(v any) map[string]any {
		first, last, _ := strings.Cut(v.(string), " ")
		return map[string]any{"first": first, "last": last}
	})
	extended, err := v1.With(fullName, splitName)
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	v2, err := NewSchemaVersion(entity.KindAgent, 2, map[string]string{"id": "agid"}, nil, extended.Transformers()...)
	if err != nil {
		t.Fatalf("NewSchemaVersion: %v", err)
	}
	if err := registry.Register(v2); err != nil {
		t.Fatalf("Register: %v", err)
	}

	current, err := registry.SchemaFor(entity.KindAgent)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	if current.Version() != 2 {
		t.Fatalf("current version = %d, want 2", current.Version())
	}
	old, err := registry.SchemaForVersion(entity.KindAgent, 1)
	if err != nil || old != v1 {
		t.Fatalf("SchemaForVersion(1) = %v, %v; want the original schema", old, err)
	}

	wireRecord, _ := current.ToWire(entity.Record{"id": "A", "first": "Ada", "last": "Lovelace"})
	if wireRecord["full_name"] != "Ada Lovelace" {
		t.Errorf("full_name = %v, want merged name", wireRecord["full_name"])
	}
	if _, ok := wireRecord["first"]; ok {
		t.Error("merge left its source fields behind")
	}
	local, _ := current.FromWire(wireRecord)
	if local["first"] != "Ada" || local["last"] != "Lovelace" {
		t.Errorf("split produced %v", local)
	}
}

func TestTransformerPipelineOrder(t *testing.T) {
	schema, err := NewSchemaVersion(entity.KindTool, 1, nil, nil,
		NewRename("a", "b"),
		NewTransform("b", func(v any) (any, error) { return v.(string) + "!", nil },
			func(v any) (any, error) { return strings.TrimSuffix(v.(string), "!"), nil }),
		NewAdd("c", "default"),
		NewAddFunc("d", func(r entity.Record) any { return r.String("b") + "?" }),
		NewRemove("secret"),
	)
	if err != nil {
		t.Fatalf("NewSchemaVersion: %v", err)
	}
	got, _ := schema.ToWire(entity.Record{"a": "x", "secret": "s"})
	want := entity.Record{"b": "x!", "c": "default", "d": "x!?"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToWire = %v, want %v", got, want)
	}
	back, _ := schema.FromWire(got)
	wantBack := entity.Record{"a": "x", "c": "default", "d": "x!?"}
	if !reflect.DeepEqual(back, wantBack) {
		t.Errorf("FromWire = %v, want %v", back, wantBack)
	}
}

func TestTransformerValidate(t *testing.T) {
	bad := []Transformer{
		{Action: Rename, Field: "a"},
		{Action: Transform, Field: "a"},
		{Action: Merge, Field: "a"},
		{Action: Split, Field: "a"},
		{Action: Add},
		{Action: Action(42), Field: "a"},
	}
	for _, tr := range bad {
		if err := tr.Validate(); err == nil {
			t.Errorf("Validate(%s %q) accepted an incomplete transformer", tr.Action, tr.Field)
		}
	}
}

func TestDateTimeNormalization(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"2026-02-03T04:05:06", "2026-02-03T04:05:06Z"},
		{"2026-02-03 04:05:06.5", "2026-02-03T04:05:06.5Z"},
		{"2026-02-03T04:05:06+02:00", "2026-02-03T04:05:06+02:00"},
		{"2026-02-03", "2026-02-03T00:00:00Z"},
		{int64(1700000000123), "2023-11-14T22:13:20.123Z"},
		{json.Number("1700000000000"), "2023-11-14T22:13:20Z"},
		{time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("X", 3600)), "2026-02-03T03:05:06Z"},
		{"", nil},
	}
	for _, test := range tests {
		got, err := normalizeDateTime("when", test.in)
		if err != nil {
			t.Errorf("normalizeDateTime(%v): %v", test.in, err)
			continue
		}
		if got != test.want {
			t.Errorf("normalizeDateTime(%v) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestDateNormalization(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"2026-02-03T23:59:59Z", "2026-02-03"},
		{"2026/02/03", "2026-02-03"},
		{"2026-02-03 10:00", "2026-02-03"},
		{float64(1767225600000), "2026-01-01"},
		{time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), "2026-02-03"},
	}
	for _, test := range tests {
		got, err := normalizeDate("day", test.in)
		if err != nil {
			t.Errorf("normalizeDate(%v): %v", test.in, err)
			continue
		}
		if got != test.want {
			t.Errorf("normalizeDate(%v) = %v, want %v", test.in, got, test.want)
		}
	}
}

func TestJSONFieldKeepsScalarLookingStrings(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindTask)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}
	tests := []struct {
		local    any
		wantWire string
	}{
		{"123", `"123"`},
		{"true", `"true"`},
		{"null", `"null"`},
		{`"quoted"`, `"\"quoted\""`},
		{`{"a":1}`, `{"a":1}`},
		{`[1,2]`, `[1,2]`},
	}
	for _, tt := range tests {
		got, warnings := schema.ToWire(entity.Record{"id": "t-1", "steps": tt.local})
		if len(warnings) != 0 {
			t.Errorf("%v: warnings %v", tt.local, Strings(warnings))
		}
		if got["steps"] != tt.wantWire {
			t.Errorf("%v: wire steps = %v, want %s", tt.local, got["steps"], tt.wantWire)
			continue
		}
		back, _ := schema.FromWire(got)
		if s, ok := tt.local.(string); ok && (s[0] == '{' || s[0] == '[') {
			continue
		}
		if back["steps"] != tt.local {
			t.Errorf("%v: round trip gave %#v", tt.local, back["steps"])
		}
	}
}

func TestAssignID(t *testing.T) {
	schema, err := newTestRegistry(t).SchemaFor(entity.KindAgent)
	if err != nil {
		t.Fatalf("SchemaFor: %v", err)
	}

	local := entity.Record{"id": "", "name": "a1"}
	got, assigned := schema.AssignID(local)
	if !assigned || got["id"] != fixedID() {
		t.Fatalf("AssignID = %v, %v; want id %s", got, assigned, fixedID())
	}
	if local["id"] != "" {
		t.Error("AssignID modified the caller's record")
	}
	wireRecord, _ := schema.ToWire(got)
	if wireRecord["agid"] != fixedID() {
		t.Errorf("agid = %v, want the assigned id", wireRecord["agid"])
	}

	for _, existing := range []entity.Record{
		{"id": "A-1"},
		{"agid": "A-2"},
	} {
		if out, assigned := schema.AssignID(existing); assigned || !reflect.DeepEqual(out, existing) {
			t.Errorf("AssignID(%v) = %v, %v; want unchanged", existing, out, assigned)
		}
	}

	identity, err := Build(mapping.Empty(entity.KindAgent), BuildOptions{NewID: fixedID})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, assigned := identity.AssignID(entity.Record{"name": "x"}); assigned {
		t.Error("AssignID generated an id for a kind without an id field")
	}
}
