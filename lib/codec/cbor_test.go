// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

func TestRecordPayloadDecodesAsStringMap(t *testing.T) {
	record := map[string]any{
		"id":       "a-1",
		"name":     "planner",
		"priority": int64(3),
		"enabled":  true,
		"config":   map[string]any{"model": "small", "tags": []any{"x", "y"}},
	}

	data, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["name"] != "planner" {
		t.Errorf("name = %v, want planner", decoded["name"])
	}
	if decoded["priority"] != int64(3) {
		t.Errorf("priority = %#v, want int64(3)", decoded["priority"])
	}
	nested, ok := decoded["config"].(map[string]any)
	if !ok {
		t.Fatalf("config decoded as %T, want map[string]any", decoded["config"])
	}
	if nested["model"] != "small" {
		t.Errorf("config.model = %v, want small", nested["model"])
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}}
	b := map[string]any{"c": map[string]any{"y": 2, "z": 1}, "a": 2, "b": 1}

	first, err := Marshal(a)
	if err != nil {
		t.Fatalf("Marshal(a): %v", err)
	}
	second, err := Marshal(b)
	if err != nil {
		t.Fatalf("Marshal(b): %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("equal maps encoded differently:\n  %x\n  %x", first, second)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]any{"id": "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if got != `{"id": "x"}` {
		t.Errorf("Diagnose = %q, want %q", got, `{"id": "x"}`)
	}
}

func TestTimeEncodesAsText(t *testing.T) {
	stamp := time.Date(2026, 3, 4, 5, 6, 7, 8000, time.UTC)
	data, err := Marshal(map[string]any{"updated_at": stamp})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["updated_at"] != "2026-03-04T05:06:07.000008Z" {
		t.Errorf("updated_at = %#v, want RFC 3339 text", decoded["updated_at"])
	}
}
