// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package dbadmin

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Kind enumerates the value types accepted across the JSON boundary.
type Kind int

// Supported value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
)

// Value is a tagged union of the JSON value types the engine binds into SQL.
// Nested objects and arrays are rejected at decode time, which keeps the
// serialization boundary precise: every accepted value maps to exactly one
// bind parameter.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
}

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

// Arg returns the Go value to pass as a bind parameter.
func (v Value) Arg() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// UnmarshalJSON decodes a scalar JSON value. Strings in strict RFC 3339 form
// decode to the timestamp variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}

	switch data[0] {
	case 'n':
		*v = Value{kind: KindNull}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Value{kind: KindBool, b: b}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			*v = Value{kind: KindTime, t: ts}
			return nil
		}
		*v = Value{kind: KindString, s: s}
		return nil
	case '{', '[':
		return fmt.Errorf("nested objects and arrays are not supported as column values")
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if i, err := n.Int64(); err == nil {
			*v = Value{kind: KindInt, i: i}
			return nil
		}
		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("invalid number %q", n.String())
		}
		*v = Value{kind: KindFloat, f: f}
		return nil
	}
}

// MarshalJSON renders the value back to its JSON form; used in tests and
// error payloads.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Arg())
}

// ValueMap maps column names to typed values, as received in request bodies.
type ValueMap map[string]Value

// sortedColumns returns the map's column names in a deterministic order so
// generated SQL is stable.
func (m ValueMap) sortedColumns() []string {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
