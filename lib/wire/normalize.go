// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Layouts tried, in order, for date-time strings that carry no zone.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	dateLayout,
}

// DateTransform normalizes field to YYYY-MM-DD. It accepts ISO-8601
// strings (truncated at "T" or a space), slash-separated dates,
// time.Time, and millisecond epochs.
func DateTransform(field string) Transformer {
	return NewTransform(field, func(v any) (any, error) {
		return normalizeDate(field, v)
	}, nil)
}

// DateTimeTransform normalizes field to ISO-8601. Strings without a
// zone are taken as UTC and get a trailing "Z"; millisecond epochs
// are converted from seconds after dividing by 1000.
func DateTimeTransform(field string) Transformer {
	return NewTransform(field, func(v any) (any, error) {
		return normalizeDateTime(field, v)
	}, nil)
}

// JSONTransform serializes structured values of field to a JSON string
// on send and parses them back on receive.
func JSONTransform(field string) Transformer {
	return NewTransform(field,
		func(v any) (any, error) { return encodeJSONField(field, v) },
		func(v any) (any, error) { return decodeJSONField(field, v) },
	)
}

// IDTransform fills field with newID() when it is missing or empty.
func IDTransform(field string, newID func() string) Transformer {
	t := NewTransform(field, func(v any) (any, error) {
		switch id := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(id) != "" {
				return id, nil
			}
		default:
			return v, nil
		}
		return newID(), nil
	}, nil)
	t.ApplyWhenAbsent = true
	return t
}

func normalizeDate(field string, v any) (any, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(value)
		if s == "" {
			return nil, nil
		}
		if i := strings.IndexAny(s, "T "); i >= 0 {
			s = s[:i]
		}
		s = strings.ReplaceAll(s, "/", "-")
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, &BadDateError{Field: field, Value: v}
		}
		return t.Format(dateLayout), nil
	case time.Time:
		if value.IsZero() {
			return nil, nil
		}
		return value.Format(dateLayout), nil
	}
	if ms, ok := epochMillis(v); ok {
		return time.UnixMilli(ms).UTC().Format(dateLayout), nil
	}
	return nil, &BadDateError{Field: field, Value: v}
}

func normalizeDateTime(field string, v any) (any, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(value)
		if s == "" {
			return nil, nil
		}
		if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return s, nil
		}
		for _, layout := range zonelessLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t.Format(time.RFC3339Nano), nil
			}
		}
		return nil, &BadDateError{Field: field, Value: v}
	case time.Time:
		if value.IsZero() {
			return nil, nil
		}
		return value.UTC().Format(time.RFC3339Nano), nil
	}
	if ms, ok := epochMillis(v); ok {
		seconds := ms / 1000
		nanos := (ms % 1000) * int64(time.Millisecond)
		return time.Unix(seconds, nanos).UTC().Format(time.RFC3339Nano), nil
	}
	return nil, &BadDateError{Field: field, Value: v}
}

// epochMillis extracts an integral millisecond timestamp.
func epochMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	}
	return 0, false
}

func encodeJSONField(field string, v any) (any, error) {
	switch value := v.(type) {
	case nil:
		return "{}", nil
	case string:
		s := strings.TrimSpace(value)
		if s == "" {
			return "{}", nil
		}
		if (s[0] == '{' || s[0] == '[') && json.Valid([]byte(s)) {
			return value, nil
		}
		// Any other string, including one that parses as a JSON
		// scalar, is sent as a JSON string literal so the receive side
		// recovers the same text.
		encoded, _ := json.Marshal(value)
		return string(encoded), nil
	case json.RawMessage:
		if len(value) == 0 {
			return "{}", nil
		}
		if !json.Valid(value) {
			return "{}", &BadJSONError{Field: field, Value: string(value), Err: errors.New("invalid raw JSON")}
		}
		return string(value), nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return "{}", &BadJSONError{Field: field, Value: v, Err: err}
	}
	return string(encoded), nil
}

func decodeJSONField(field string, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	if strings.TrimSpace(s) == "" {
		return map[string]any{}, nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return map[string]any{}, &BadJSONError{Field: field, Value: s, Err: err}
	}
	if out == nil {
		return map[string]any{}, nil
	}
	return out, nil
}
