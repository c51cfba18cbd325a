// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package graphql

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agentcloud/agentsync/lib/entity"
)

// Quote renders s as a GraphQL string literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte("0123456789abcdef"[r>>4])
				b.WriteByte("0123456789abcdef"[r&0xf])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// validName reports whether s is a GraphQL name.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}

// renderer writes values and collects the names of fields it had to
// drop.
type renderer struct {
	b       strings.Builder
	dropped []string
}

// value writes v and reports false if v has no GraphQL rendering (nil
// or a non-finite number).
func (r *renderer) value(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		r.b.WriteString(Quote(x))
	case bool:
		r.b.WriteString(strconv.FormatBool(x))
	case int:
		r.b.WriteString(strconv.Itoa(x))
	case int32:
		r.b.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		r.b.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		r.b.WriteString(strconv.FormatUint(x, 10))
	case float32:
		return r.float(float64(x))
	case float64:
		return r.float(x)
	case json.Number:
		r.b.WriteString(x.String())
	case time.Time:
		r.b.WriteString(Quote(x.UTC().Format(time.RFC3339Nano)))
	case entity.Record:
		r.object(x)
	case map[string]any:
		r.object(x)
	case []any:
		r.list(len(x), func(i int) any { return x[i] })
	case []string:
		r.list(len(x), func(i int) any { return x[i] })
	default:
		return r.reflected(v)
	}
	return true
}

func (r *renderer) float(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	r.b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	return true
}

func (r *renderer) object(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.b.WriteByte('{')
	first := true
	for _, k := range keys {
		if m[k] == nil {
			continue
		}
		if !validName(k) {
			r.dropped = append(r.dropped, k)
			continue
		}
		mark := r.b.Len()
		if !first {
			r.b.WriteString(", ")
		}
		r.b.WriteString(k)
		r.b.WriteString(": ")
		if !r.value(m[k]) {
			truncate(&r.b, mark)
			continue
		}
		first = false
	}
	r.b.WriteByte('}')
}

func (r *renderer) list(n int, at func(int) any) {
	r.b.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			r.b.WriteString(", ")
		}
		if !r.value(at(i)) {
			r.b.WriteString("null")
		}
	}
	r.b.WriteByte(']')
}

// reflected handles other slices, maps with string keys, and structs
// through their JSON encoding.
func (r *renderer) reflected(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		r.list(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
		return true
	case reflect.Pointer:
		if rv.IsNil() {
			return false
		}
		return r.value(rv.Elem().Interface())
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.dropped = append(r.dropped, reflect.TypeOf(v).String())
		return false
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return false
	}
	return r.value(decoded)
}

// truncate rewinds b to length n.
func truncate(b *strings.Builder, n int) {
	s := b.String()[:n]
	b.Reset()
	b.WriteString(s)
}
