// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned by the Registry for a kind it does not
// know.
var ErrUnknownKind = errors.New("wire: unknown entity kind")

// BadDateError reports a date or date-time value that could not be
// normalized. The field is omitted from the outbound record.
type BadDateError struct {
	Field string
	Value any
}

func (e *BadDateError) Error() string {
	return fmt.Sprintf("wire: %s: unrecognized date value %v", e.Field, e.Value)
}

// BadJSONError reports a JSON-serialized field whose value could not
// be encoded or decoded.
type BadJSONError struct {
	Field string
	Value any
	Err   error
}

func (e *BadJSONError) Error() string {
	return fmt.Sprintf("wire: %s: bad JSON value %.80v: %v", e.Field, e.Value, e.Err)
}

func (e *BadJSONError) Unwrap() error { return e.Err }

// Warning is a non-fatal conversion problem.
type Warning struct {
	Field string
	Err   error
}

func (w Warning) String() string {
	return w.Err.Error()
}

// Strings renders warnings for logs and sync results.
func Strings(warnings []Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}
