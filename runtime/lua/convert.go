package lua

import (
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"quercus/value"
)

// ToLua converts a PHP value to Lua. Lists become 1-based sequences, other
// arrays and objects become tables keyed like the PHP value.
func ToLua(L *lua.LState, v value.Value) lua.LValue {
	return toLua(L, v, 0)
}

func toLua(L *lua.LState, v value.Value, depth int) lua.LValue {
	if depth > 64 {
		return lua.LNil
	}
	switch x := v.(type) {
	case value.Bool:
		return lua.LBool(x)
	case value.Long:
		return lua.LNumber(x)
	case value.Double:
		return lua.LNumber(x)
	case value.String, *value.StringBuilder:
		s, _ := value.ToString(x)
		return lua.LString(s)
	case *value.Array:
		t := L.NewTable()
		list := isList(x)
		x.Each(func(k value.Key, v value.Value, ref *value.Var) bool {
			lv := toLua(L, slot(v, ref), depth+1)
			switch {
			case list:
				t.RawSetInt(int(k.Int())+1, lv)
			case k.IsString():
				t.RawSetString(k.String(), lv)
			default:
				t.RawSet(lua.LNumber(k.Int()), lv)
			}
			return true
		})
		return t
	case *value.Object:
		t := L.NewTable()
		for _, name := range x.FieldNames() {
			f, _ := x.Field(name)
			t.RawSetString(name, toLua(L, slot(nil, f), depth+1))
		}
		return t
	}
	return lua.LNil
}

// FromLua converts a Lua value to PHP. Integral numbers become integers;
// sequences become lists with 0-based keys.
func FromLua(lv lua.LValue) value.Value {
	return fromLua(lv, 0)
}

func fromLua(lv lua.LValue, depth int) value.Value {
	switch x := lv.(type) {
	case lua.LBool:
		return value.Bool(x)
	case lua.LNumber:
		return number(float64(x))
	case lua.LString:
		return value.Str(string(x))
	case *lua.LTable:
		if depth > 64 {
			return value.NULL
		}
		return tableToArray(x, depth)
	}
	return value.NULL
}

func number(f float64) value.Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return value.Long(int64(f))
	}
	return value.Double(f)
}

func tableToArray(t *lua.LTable, depth int) *value.Array {
	out := value.NewArray()
	if n := t.Len(); n > 0 && countKeys(t) == n {
		for i := 1; i <= n; i++ {
			out.Append(fromLua(t.RawGetInt(i), depth+1))
		}
		return out
	}

	type entry struct {
		key value.Key
		val value.Value
	}
	var entries []entry
	t.ForEach(func(k, v lua.LValue) {
		var key value.Key
		switch kk := k.(type) {
		case lua.LString:
			key = value.StrKey(string(kk))
		case lua.LNumber:
			key = value.IntKey(int64(kk))
		default:
			return
		}
		entries = append(entries, entry{key, fromLua(v, depth+1)})
	})
	// Lua tables are unordered; sort for deterministic output
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].key, entries[j].key
		if a.IsString() != b.IsString() {
			return !a.IsString()
		}
		if a.IsString() {
			return a.String() < b.String()
		}
		return a.Int() < b.Int()
	})
	for _, e := range entries {
		out.Set(e.key, e.val)
	}
	return out
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}

func isList(a *value.Array) bool {
	i := int64(0)
	list := true
	a.Each(func(k value.Key, _ value.Value, _ *value.Var) bool {
		list = !k.IsString() && k.Int() == i
		i++
		return list
	})
	return list
}

func slot(v value.Value, ref *value.Var) value.Value {
	if ref == nil {
		return v
	}
	all := ref.All()
	if all.IsEmpty() {
		return value.UNSET
	}
	return all.GetOne()
}
