// Package frontmatter parses the YAML metadata fence at the top of content
// files and models its values as a tagged union instead of bare interface{}.
package frontmatter

import (
	"fmt"
	"sort"
)

// Kind tags a Value variant.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is a frontmatter value: scalar, list, or nested map.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

func Null() Value            { return Value{kind: KindNull} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func List(vs []Value) Value  { return Value{kind: KindList, list: vs} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

func (v Value) Kind() Kind { return v.kind }

// AsStringOr returns the string form of v, or def for non-scalars/null.
func (v Value) AsStringOr(def string) string {
	switch v.kind {
	case KindString:
		return v.s
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%v", v.f)
	default:
		return def
	}
}

// AsBoolOr returns the bool value or def.
func (v Value) AsBoolOr(def bool) bool {
	if v.kind == KindBool {
		return v.b
	}
	return def
}

// AsIntOr returns the integer value or def. Integral floats convert.
func (v Value) AsIntOr(def int64) int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		if v.f == float64(int64(v.f)) {
			return int64(v.f)
		}
	}
	return def
}

// AsStringsOr returns a list of strings. A scalar string becomes a
// one-element list; anything else yields def.
func (v Value) AsStringsOr(def []string) []string {
	switch v.kind {
	case KindString:
		return []string{v.s}
	case KindList:
		out := make([]string, 0, len(v.list))
		for _, e := range v.list {
			out = append(out, e.AsStringOr(""))
		}
		return out
	}
	return def
}

// AsMapOr returns the nested map or def.
func (v Value) AsMapOr(def map[string]Value) map[string]Value {
	if v.kind == KindMap {
		return v.m
	}
	return def
}

// Get looks up a key in a map value; Null for misses and non-maps.
func (v Value) Get(key string) Value {
	if v.kind == KindMap {
		if e, ok := v.m[key]; ok {
			return e
		}
	}
	return Null()
}

// FromAny converts a decoded YAML/TOML/JSON value into a Value.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint64:
		return Int(int64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []interface{}:
		list := make([]Value, 0, len(t))
		for _, e := range t {
			list = append(list, FromAny(e))
		}
		return List(list)
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return Map(m)
	case map[interface{}]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[fmt.Sprintf("%v", k)] = FromAny(e)
		}
		return Map(m)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ToAny converts a Value back into plain Go types for hashing,
// serialization, and template contexts.
func (v Value) ToAny() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, 0, len(v.list))
		for _, e := range v.list {
			out = append(out, e.ToAny())
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			out[k] = e.ToAny()
		}
		return out
	}
	return nil
}

// NormalizeMap converts a decoded metadata map (possibly with
// interface{} keys from yaml.v2) into a map[string]interface{} tree.
func NormalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeAny(v)
	}
	return out
}

func normalizeAny(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[fmt.Sprintf("%v", k)] = normalizeAny(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalizeAny(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalizeAny(e)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns the keys of a map value in sorted order.
func (v Value) SortedKeys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
