// Package docval implements the tagged-value document tree the branch index
// store uses to represent untyped JSON documents, per the design note in
// SPEC_FULL.md section 9 ("dynamically typed document model").
package docval

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNum
	KindStr
	KindArray
	KindObject
)

// Value is a single node of a document tree: exactly one of its typed
// fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	Arr  []Value
	Obj  map[string]Value
}

func Null() Value                { return Value{Kind: KindNull} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Num(n float64) Value        { return Value{Kind: KindNum, Num: n} }
func Str(s string) Value         { return Value{Kind: KindStr, Str: s} }
func Array(vs []Value) Value     { return Value{Kind: KindArray, Arr: vs} }
func Object(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindObject, Obj: m}
}

// FromAny converts a generic Go value (as produced by encoding/json or a Lua
// table bridge) into a Value tree.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Num(t)
	case int:
		return Num(float64(t))
	case int64:
		return Num(float64(t))
	case string:
		return Str(t)
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = FromAny(e)
		}
		return Array(arr)
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = FromAny(e)
		}
		return Object(obj)
	default:
		// Best-effort: round-trip through JSON for types json.Unmarshal
		// wouldn't have produced directly (e.g. structs passed by hand).
		b, err := json.Marshal(t)
		if err != nil {
			return Null()
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			return Null()
		}
		return FromAny(generic)
	}
}

// ToAny converts back to plain Go values suitable for json.Marshal.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNum:
		return v.Num
	case KindStr:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			out[i] = e.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Obj))
		for k, e := range v.Obj {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return err
	}
	*v = FromAny(generic)
	return nil
}

// Equal reports structural equality, the comparison field-equality queries
// are built on (spec.md 4.4, "query is a field-equality mapping").
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// Treat numerically-equal Num/Str mismatches as unequal; no
		// implicit coercion, per the minimal-query-language invariant.
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNum:
		return a.Num == b.Num
	case KindStr:
		return a.Str == b.Str
	case KindArray:
		if len(a.Arr) != len(b.Arr) {
			return false
		}
		for i := range a.Arr {
			if !Equal(a.Arr[i], b.Arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.Obj) != len(b.Obj) {
			return false
		}
		for k, av := range a.Obj {
			bv, ok := b.Obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Field looks up a dotted path ("a.b.c") inside an Object value.
func (v Value) Field(path string) (Value, bool) {
	cur := v
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			seg := path[start:i]
			if cur.Kind != KindObject {
				return Null(), false
			}
			next, ok := cur.Obj[seg]
			if !ok {
				return Null(), false
			}
			cur = next
			start = i + 1
		}
	}
	return cur, true
}

// WithField returns a copy of v (an Object) with field set to val.
func (v Value) WithField(field string, val Value) Value {
	obj := make(map[string]Value, len(v.Obj)+1)
	for k, e := range v.Obj {
		obj[k] = e
	}
	obj[field] = val
	return Object(obj)
}

// SortedKeys returns an Object's keys in a stable order, used by the
// sandbox's Lua bridge to build tables deterministically.
func (v Value) SortedKeys() []string {
	keys := make([]string, 0, len(v.Obj))
	for k := range v.Obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) String() string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<docval error: %v>", err)
	}
	return string(b)
}
