// Package schema declares event attribute shapes and validates raw input
// against them.
//
// A Schema is an ordered list of Fields. Validate turns a raw
// map[string]any into an immutable Attributes value, coercing each value
// through the named converter of its field, applying defaults and rejecting
// missing or undeclared keys:
//
//	payload, err := schema.New(
//	    schema.Attr("user_id", schema.TypeInt),
//	    schema.Attr("comment", schema.TypeString, schema.Default("")),
//	)
//	attrs, err := payload.Validate(map[string]any{"user_id": "42"})
//	attrs.Value("user_id") // 42 (int)
//
// Converters live in a Types table. DefaultTypes carries the built-in
// converters; applications add their own with Types.Define.
package schema

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Attributes is an immutable, validated key/value set.
// The zero value is an empty set. Values are shared, not deep-copied:
// callers must not mutate slices or maps stored inside.
type Attributes struct {
	values map[string]any
}

// Raw wraps m without validation. The map is copied.
// Codecs and tests use it; everything else should go through Schema.Validate.
func Raw(m map[string]any) Attributes {
	if len(m) == 0 {
		return Attributes{}
	}
	return Attributes{values: maps.Clone(m)}
}

// Get returns the value stored under key.
func (a Attributes) Get(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Value returns the value stored under key, or nil.
func (a Attributes) Value(key string) any {
	return a.values[key]
}

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of attributes.
func (a Attributes) Len() int {
	return len(a.values)
}

// Map returns a copy of the attributes as a plain map.
func (a Attributes) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Equal reports whether both sets hold deeply equal values for the same keys.
func (a Attributes) Equal(other Attributes) bool {
	if len(a.values) != len(other.values) {
		return false
	}
	return reflect.DeepEqual(a.Map(), other.Map())
}

// String renders the set as "{k=v, ...}" in key order.
func (a Attributes) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range a.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, a.values[k])
	}
	b.WriteByte('}')
	return b.String()
}
