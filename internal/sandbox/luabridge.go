package sandbox

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/relayhq/relay/internal/docval"
)

// toLua converts a docval.Value into an lua.LValue tree.
func toLua(L *lua.LState, v docval.Value) lua.LValue {
	switch v.Kind {
	case docval.KindNull:
		return lua.LNil
	case docval.KindBool:
		return lua.LBool(v.Bool)
	case docval.KindNum:
		return lua.LNumber(v.Num)
	case docval.KindStr:
		return lua.LString(v.Str)
	case docval.KindArray:
		t := L.NewTable()
		for i, e := range v.Arr {
			t.RawSetInt(i+1, toLua(L, e))
		}
		return t
	case docval.KindObject:
		t := L.NewTable()
		for _, k := range v.SortedKeys() {
			t.RawSetString(k, toLua(L, v.Obj[k]))
		}
		return t
	default:
		return lua.LNil
	}
}

// fromLua converts an lua.LValue tree back into a docval.Value.
func fromLua(lv lua.LValue) docval.Value {
	switch t := lv.(type) {
	case *lua.LNilType:
		return docval.Null()
	case lua.LBool:
		return docval.Bool(bool(t))
	case lua.LNumber:
		return docval.Num(float64(t))
	case lua.LString:
		return docval.Str(string(t))
	case *lua.LTable:
		if isArrayTable(t) {
			var arr []docval.Value
			t.ForEach(func(_, val lua.LValue) {
				arr = append(arr, fromLua(val))
			})
			return docval.Array(arr)
		}
		obj := map[string]docval.Value{}
		t.ForEach(func(key, val lua.LValue) {
			obj[key.String()] = fromLua(val)
		})
		return docval.Object(obj)
	default:
		return docval.Null()
	}
}

// isArrayTable reports whether t looks like a sequential array (keys
// 1..n with no string keys) rather than a map.
func isArrayTable(t *lua.LTable) bool {
	n := t.Len()
	count := 0
	allNumericKeys := true
	t.ForEach(func(key, _ lua.LValue) {
		count++
		if _, isNum := key.(lua.LNumber); !isNum {
			allNumericKeys = false
		}
	})
	if count == 0 {
		return true // an empty table has no string keys to distinguish it; treat as array
	}
	return allNumericKeys && count == n
}

// filterFromLua reads a Lua table of field->scalar equality clauses into a
// query.Filter-shaped map (spec.md section 4.4: "query is a field-equality
// mapping").
func filterFromLua(t *lua.LTable) map[string]docval.Value {
	out := map[string]docval.Value{}
	if t == nil {
		return out
	}
	t.ForEach(func(key, val lua.LValue) {
		out[key.String()] = fromLua(val)
	})
	return out
}
