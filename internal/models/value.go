package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is one engine configuration value: an integer, a float, a string or
// a numeric array. The zero Value is the integer 0.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	a    []float64
}

// Int returns an integer Value
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a float Value
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String returns a string Value
func String(v string) Value { return Value{kind: KindString, s: v} }

// Array returns a numeric array Value. The slice is copied.
func Array(v []float64) Value {
	a := make([]float64, len(v))
	copy(a, v)
	return Value{kind: KindArray, a: a}
}

// Kind returns the variant held by v
func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer held by v
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float held by v
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string held by v
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsArray returns a copy of the array held by v
func (v Value) AsArray() ([]float64, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	a := make([]float64, len(v.a))
	copy(a, v.a)
	return a, true
}

// Equal reports whether v and o hold the same variant and value.
// An empty array equals a nil array.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	default:
		return floats.Equal(v.a, o.a)
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return fmt.Sprint(v.a)
	}
}

func (v Value) native() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		if v.a == nil {
			return []float64{}
		}
		return v.a
	}
}

// MarshalJSON encodes v as a plain JSON number, string or array
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.native())
}

// MarshalYAML encodes v as a plain YAML scalar or sequence
func (v Value) MarshalYAML() (interface{}, error) {
	return v.native(), nil
}

// EngineConfig is the flat keyword configuration passed to the engine
type EngineConfig map[string]Value

// Keys returns the configuration keys in sorted order
func (c EngineConfig) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both configurations hold the same keys and values
func (c EngineConfig) Equal(o EngineConfig) bool {
	if len(c) != len(o) {
		return false
	}
	for k, v := range c {
		w, ok := o[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}
