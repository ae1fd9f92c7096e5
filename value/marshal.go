package value

import (
	"strconv"

	"quercus/featureexpr"
)

// Marshaling costs used to rank host function overloads; lower is better
const (
	CostEqual        = 0
	CostLossless     = 10
	CostNumericLossy = 20
	CostToString     = 30
	CostFromString   = 40
	CostIncompatible = 1000
)

// KindMixed is the parameter kind that accepts any value
const KindMixed Kind = -1

// MarshalCost returns the cost of passing v to a parameter of kind to
func MarshalCost(v Value, to Kind) int {
	if to == KindMixed {
		return CostEqual
	}
	from := normalize(v).Kind()
	if from == to {
		return CostEqual
	}
	switch from {
	case KindNull:
		switch to {
		case KindArray, KindObject, KindCallable, KindResource:
			return CostLossless
		}
		return CostNumericLossy
	case KindBool:
		switch to {
		case KindLong, KindDouble:
			return CostLossless
		case KindString:
			return CostToString
		}
	case KindLong:
		switch to {
		case KindDouble:
			return CostLossless
		case KindBool:
			return CostNumericLossy
		case KindString:
			return CostToString
		}
	case KindDouble:
		switch to {
		case KindLong, KindBool:
			return CostNumericLossy
		case KindString:
			return CostToString
		}
	case KindString:
		s, _ := stringOf(v)
		switch to {
		case KindLong, KindDouble:
			if IsNumericString(s) {
				return CostFromString
			}
		case KindBool:
			return CostFromString
		case KindCallable:
			return CostFromString
		}
	case KindObject:
		if to == KindCallable {
			return CostNumericLossy
		}
	}
	return CostIncompatible
}

// Export projects v onto configuration cfg as plain Go data for reports:
// nil, bool, int64, float64, string, []interface{} for lists,
// map[string]interface{} for other arrays and objects.
func Export(v Value, cfg featureexpr.Configuration) interface{} {
	return export(v, cfg, make(map[int64]bool), 0)
}

func export(v Value, cfg featureexpr.Configuration, seen map[int64]bool, depth int) interface{} {
	if depth > maxCompareDepth {
		return "*RECURSION*"
	}
	switch x := v.(type) {
	case nil, Null, Unset:
		return nil
	case Bool:
		return bool(x)
	case Long:
		return int64(x)
	case Double:
		return float64(x)
	case String:
		return x.s
	case *StringBuilder:
		return string(x.buf)
	case *Array:
		if isList(x) {
			out := make([]interface{}, 0, x.Len())
			x.Each(func(_ Key, ev Value, ref *Var) bool {
				out = append(out, export(cellAt(ev, ref, cfg), cfg, seen, depth+1))
				return true
			})
			return out
		}
		out := make(map[string]interface{}, x.Len())
		x.Each(func(k Key, ev Value, ref *Var) bool {
			out[k.String()] = export(cellAt(ev, ref, cfg), cfg, seen, depth+1)
			return true
		})
		return out
	case *Object:
		if seen[x.ID] {
			return "*RECURSION*"
		}
		seen[x.ID] = true
		defer delete(seen, x.ID)
		out := map[string]interface{}{"__class": x.ClassName()}
		for _, name := range x.names {
			fv := x.fields[name].Snapshot(cfg)
			if _, unset := fv.(Unset); unset {
				continue
			}
			out[name] = export(fv, cfg, seen, depth+1)
		}
		return out
	case *Resource:
		return x.String()
	case *Closure:
		return x.String()
	case *ErrorValue:
		return map[string]interface{}{"__error": x.Err.Message}
	}
	return v.(interface{ String() string }).String()
}

func cellAt(v Value, ref *Var, cfg featureexpr.Configuration) Value {
	if ref != nil {
		return ref.Snapshot(cfg)
	}
	return v
}

// isList reports whether the keys are 0..n-1 in order
func isList(a *Array) bool {
	for i, s := range a.d.order {
		if s.key.isStr || s.key.i != int64(i) {
			return false
		}
	}
	return true
}

// Describe renders a value briefly for messages
func Describe(v Value) string {
	switch x := v.(type) {
	case String:
		return strconv.Quote(x.s)
	case *StringBuilder:
		return strconv.Quote(string(x.buf))
	case *Array:
		return "array(" + strconv.Itoa(x.Len()) + ")"
	case nil:
		return "NULL"
	}
	return v.(interface{ String() string }).String()
}
