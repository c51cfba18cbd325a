// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"sort"

	"github.com/agentcloud/agentsync/lib/entity"
)

// Action selects what a Transformer does.
type Action int

const (
	// Rename moves Field to Target on send and back on receive.
	Rename Action = iota + 1
	// Add inserts Field on send when absent. Receive is a no-op.
	Add
	// Remove deletes Field on send. Receive is a no-op.
	Remove
	// Transform applies Forward to Field on send and Inverse (when
	// set) on receive.
	Transform
	// Merge computes Field from Sources on send and deletes the
	// sources. Receive is a no-op.
	Merge
	// Split expands Field into several fields on receive. Send is a
	// no-op.
	Split
)

var actionNames = map[Action]string{
	Rename: "rename", Add: "add", Remove: "remove",
	Transform: "transform", Merge: "merge", Split: "split",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ValueFunc maps one field value to another. A non-nil error is
// reported as a Warning; the returned value is used regardless, and a
// nil value removes the field.
type ValueFunc func(v any) (any, error)

// Transformer is one step of the local/wire pipeline. Construct it
// with NewRename, NewAdd, NewAddFunc, NewRemove, NewTransform,
// NewMerge, or NewSplit.
type Transformer struct {
	Action Action

	// Field is the source for Rename, Remove, Transform, and Split,
	// and the destination for Add and Merge.
	Field string
	// Target is the Rename destination.
	Target string
	// Sources are the Merge inputs.
	Sources []string

	Default     any
	DefaultFunc func(entity.Record) any

	Forward ValueFunc
	Inverse ValueFunc
	// ApplyWhenAbsent runs Forward with a nil value when Field is
	// missing from the record.
	ApplyWhenAbsent bool

	Combine func(values map[string]any) any
	Expand  func(v any) map[string]any
}

func NewRename(src, dst string) Transformer {
	return Transformer{Action: Rename, Field: src, Target: dst}
}

func NewAdd(dst string, value any) Transformer {
	return Transformer{Action: Add, Field: dst, Default: value}
}

func NewAddFunc(dst string, fn func(entity.Record) any) Transformer {
	return Transformer{Action: Add, Field: dst, DefaultFunc: fn}
}

func NewRemove(src string) Transformer {
	return Transformer{Action: Remove, Field: src}
}

// NewTransform applies forward on send and inverse (which may be nil)
// on receive.
func NewTransform(field string, forward, inverse ValueFunc) Transformer {
	return Transformer{Action: Transform, Field: field, Forward: forward, Inverse: inverse}
}

func NewMerge(dst string, sources []string, combine func(map[string]any) any) Transformer {
	return Transformer{Action: Merge, Field: dst, Sources: sources, Combine: combine}
}

func NewSplit(src string, expand func(any) map[string]any) Transformer {
	return Transformer{Action: Split, Field: src, Expand: expand}
}

// Validate reports a Transformer missing the parts its Action needs.
func (t Transformer) Validate() error {
	if t.Field == "" {
		return fmt.Errorf("wire: %s transformer has no field", t.Action)
	}
	switch t.Action {
	case Rename:
		if t.Target == "" {
			return fmt.Errorf("wire: rename %q has no target", t.Field)
		}
	case Add, Remove:
	case Transform:
		if t.Forward == nil {
			return fmt.Errorf("wire: transform %q has no forward function", t.Field)
		}
	case Merge:
		if len(t.Sources) == 0 || t.Combine == nil {
			return fmt.Errorf("wire: merge %q needs sources and a combine function", t.Field)
		}
	case Split:
		if t.Expand == nil {
			return fmt.Errorf("wire: split %q has no expand function", t.Field)
		}
	default:
		return fmt.Errorf("wire: unknown action %d", int(t.Action))
	}
	return nil
}

// send applies the transformer in the local-to-wire direction.
func (t Transformer) send(rec entity.Record, warnings *[]Warning) {
	switch t.Action {
	case Rename:
		if v, ok := rec[t.Field]; ok {
			delete(rec, t.Field)
			rec[t.Target] = v
		}
	case Add:
		if _, ok := rec[t.Field]; ok {
			return
		}
		if t.DefaultFunc != nil {
			rec[t.Field] = t.DefaultFunc(rec)
		} else {
			rec[t.Field] = t.Default
		}
	case Remove:
		delete(rec, t.Field)
	case Transform:
		v, ok := rec[t.Field]
		if !ok && !t.ApplyWhenAbsent {
			return
		}
		apply(rec, t.Field, t.Forward, v, warnings)
	case Merge:
		values := make(map[string]any, len(t.Sources))
		for _, source := range t.Sources {
			if v, ok := rec[source]; ok {
				values[source] = v
			}
		}
		if len(values) == 0 {
			return
		}
		for _, source := range t.Sources {
			delete(rec, source)
		}
		rec[t.Field] = t.Combine(values)
	}
}

// receive applies the transformer in the wire-to-local direction.
func (t Transformer) receive(rec entity.Record, warnings *[]Warning) {
	switch t.Action {
	case Rename:
		if v, ok := rec[t.Target]; ok {
			delete(rec, t.Target)
			rec[t.Field] = v
		}
	case Transform:
		if t.Inverse == nil {
			return
		}
		if v, ok := rec[t.Field]; ok {
			apply(rec, t.Field, t.Inverse, v, warnings)
		}
	case Split:
		v, ok := rec[t.Field]
		if !ok {
			return
		}
		expanded := t.Expand(v)
		delete(rec, t.Field)
		keys := make([]string, 0, len(expanded))
		for k := range expanded {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rec[k] = expanded[k]
		}
	}
}

func apply(rec entity.Record, field string, fn ValueFunc, v any, warnings *[]Warning) {
	out, err := fn(v)
	if err != nil {
		*warnings = append(*warnings, Warning{Field: field, Err: err})
	}
	if out == nil {
		delete(rec, field)
		return
	}
	rec[field] = out
}
