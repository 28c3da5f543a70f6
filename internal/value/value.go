// Package value implements the dynamically-typed JSON-like tree that flows
// between functions, and the array-order adaptation rules used to route a
// value from a source of one nesting depth to a destination of another.
package value

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Value is the dynamically-typed tree passed between functions: null, bool,
// number, string, array or object. It is just decoded JSON - any value a
// json.Unmarshal into `any` can produce.
type Value = any

// Conversion names the adaptation applied when routing a value from a
// source array_order to a destination array_order. The spec insists on this
// explicit, strict variant over the "faith based" permissive branches found
// in earlier sources (see SPEC_FULL.md Open Questions).
type Conversion int

const (
	// ConvertNone passes the value through unchanged (equal orders, or a
	// generic destination that accepts anything as-is).
	ConvertNone Conversion = iota
	// ConvertWrapOnce wraps the value in a single-element array.
	ConvertWrapOnce
	// ConvertWrapTwice wraps the value in two nested single-element arrays.
	ConvertWrapTwice
	// ConvertSerializeOnce serializes an array's elements as independent
	// pushes, one per element, in order.
	ConvertSerializeOnce
	// ConvertSerializeTwice serializes an array-of-arrays: each inner
	// array's elements are pushed individually, in order.
	ConvertSerializeTwice
	// ConvertIncompatible means the adaptation cannot be performed and the
	// value must be dropped (spec §4.4.1.c "otherwise: drop value").
	ConvertIncompatible
)

// ArrayOrder returns the nominal array nesting depth of v: 0 for a scalar,
// null, string or object, 1 for an array of such, 2 for an array of arrays,
// and so on. Mixed-depth arrays report the depth of their first element,
// matching the "nominal" wording of the spec - this is advisory only, used
// to pick an adaptation, never to validate shape.
func ArrayOrder(v Value) int {
	arr, ok := v.([]any)
	if !ok {
		return 0
	}
	if len(arr) == 0 {
		return 1
	}
	return 1 + ArrayOrder(arr[0])
}

// Adaptation computes which Conversion to apply given the source value's
// array order, the destination's declared array_order, and whether the
// destination is generic. Generic destinations always take the value
// unmodified (spec §4.5 "Generic inputs receive values unmodified").
func Adaptation(v Value, destArrayOrder int, destGeneric bool) Conversion {
	if destGeneric {
		return ConvertNone
	}
	delta := ArrayOrder(v) - destArrayOrder
	switch delta {
	case 0:
		return ConvertNone
	case -1:
		return ConvertWrapOnce
	case -2:
		return ConvertWrapTwice
	case 1:
		if _, ok := v.([]any); ok {
			return ConvertSerializeOnce
		}
		return ConvertIncompatible
	case 2:
		if arr, ok := v.([]any); ok {
			for _, inner := range arr {
				if _, ok := inner.([]any); !ok {
					return ConvertIncompatible
				}
			}
			return ConvertSerializeTwice
		}
		return ConvertIncompatible
	default:
		return ConvertIncompatible
	}
}

// Apply performs a Conversion, returning the sequence of values that should
// each be pushed (in order) at the destination. ConvertIncompatible yields
// no values - the caller drops the value.
func Apply(v Value, c Conversion) []Value {
	switch c {
	case ConvertNone:
		return []Value{v}
	case ConvertWrapOnce:
		return []Value{[]any{v}}
	case ConvertWrapTwice:
		return []Value{[]any{[]any{v}}}
	case ConvertSerializeOnce:
		arr, _ := v.([]any)
		out := make([]Value, len(arr))
		copy(out, arr)
		return out
	case ConvertSerializeTwice:
		arr, _ := v.([]any)
		var out []Value
		for _, inner := range arr {
			innerArr, _ := inner.([]any)
			out = append(out, innerArr...)
		}
		return out
	default:
		return nil
	}
}

// Pointer resolves a JSON-pointer-like sub-path ("" or "/a/b/0") against v,
// returning the sub-value and true, or (nil, false) if the path does not
// resolve - per spec §4.4.1.b "missing path -> skip this connection; no
// error". Only the subset of RFC 6901 needed here is implemented: "~1" and
// "~0" escapes, object-key and array-index segments.
func Pointer(v Value, path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	if !strings.HasPrefix(path, "/") {
		return nil, false
	}
	segments := strings.Split(path[1:], "/")
	cur := v
	for _, raw := range segments {
		seg := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of v via a JSON round-trip. Function
// implementations receive and return immutable values (spec §5); initializers
// push a clone of their configured value, so an implementation mutating a
// slice/map it was handed cannot corrupt the value a later refill pushes.
// The router does not clone the values it delivers.
func Clone(v Value) Value {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case bool, string, float64, int, int64:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out Value
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
