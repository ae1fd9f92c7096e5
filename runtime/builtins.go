package runtime

import (
	"math"
	"strings"

	"quercus/errors"
	"quercus/shared"
	"quercus/value"
)

// CoreProvider is the small set of builtins the evaluator needs to be
// observable; it is not a PHP standard library
type CoreProvider struct{}

// NewCoreProvider creates the builtin provider
func NewCoreProvider() *CoreProvider {
	return &CoreProvider{}
}

func (p *CoreProvider) GetName() string   { return "core" }
func (p *CoreProvider) Initialize() error { return nil }
func (p *CoreProvider) Cleanup() error    { return nil }

var (
	mixed  = value.KindMixed
	long   = value.KindLong
	double = value.KindDouble
	str    = value.KindString
	array  = value.KindArray
)

func toStr(call *Call, v value.Value) string {
	s, warn := value.ToString(v)
	if warn != nil {
		call.Warn(warn.Code, warn.Message)
	}
	return s
}

// Functions implements FunctionProvider
func (p *CoreProvider) Functions() []*HostFunction {
	return []*HostFunction{
		{Name: "count", Params: []value.Kind{mixed}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			switch x := args[0].(type) {
			case *value.Array:
				return value.Long(x.Len()), nil
			case value.Null, value.Unset:
				return value.Long(0), nil
			}
			return value.Long(1), nil
		}},
		{Name: "strlen", Params: []value.Kind{str}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			return value.Long(len(toStr(call, args[0]))), nil
		}},
		{Name: "strtoupper", Params: []value.Kind{str}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			return value.Str(strings.ToUpper(toStr(call, args[0]))), nil
		}},
		{Name: "strtolower", Params: []value.Kind{str}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			return value.Str(strings.ToLower(toStr(call, args[0]))), nil
		}},
		{Name: "str_repeat", Params: []value.Kind{str, long}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			n := value.ToLong(args[1])
			if n < 0 {
				call.Warn(errors.CodeConversion, "Second argument has to be greater than or equal to 0")
				return value.NULL, nil
			}
			return value.Str(strings.Repeat(toStr(call, args[0]), int(n))), nil
		}},
		{Name: "implode", Params: []value.Kind{str, array}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			arr, ok := args[1].(*value.Array)
			if !ok {
				call.Warn(errors.CodeConversion, "Invalid arguments passed")
				return value.NULL, nil
			}
			parts := make([]string, 0, arr.Len())
			arr.Each(func(_ value.Key, v value.Value, ref *value.Var) bool {
				parts = append(parts, toStr(call, slot(v, ref)))
				return true
			})
			return value.Str(strings.Join(parts, toStr(call, args[0]))), nil
		}},
		{Name: "array_keys", Params: []value.Kind{array}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			arr, ok := args[0].(*value.Array)
			if !ok {
				call.Warn(errors.CodeConversion, "The first argument should be an array")
				return value.NULL, nil
			}
			out := value.NewArray()
			for _, k := range arr.Keys() {
				out.Append(k.Value())
			}
			return out, nil
		}},
		{Name: "in_array", Params: []value.Kind{mixed, array}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			arr, ok := args[1].(*value.Array)
			if !ok {
				return value.FALSE, nil
			}
			found := false
			arr.Each(func(_ value.Key, v value.Value, ref *value.Var) bool {
				found = value.Eq(slot(v, ref), args[0])
				return !found
			})
			return value.Bool(found), nil
		}},
		{Name: "gettype", Params: []value.Kind{mixed}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			return value.Str(typeName(args[0])), nil
		}},
		{Name: "is_array", Params: []value.Kind{mixed}, Impl: kindIs(value.KindArray)},
		{Name: "is_null", Params: []value.Kind{mixed}, Impl: kindIs(value.KindNull)},
		{Name: "is_int", Params: []value.Kind{mixed}, Impl: kindIs(value.KindLong)},
		{Name: "is_string", Params: []value.Kind{mixed}, Impl: kindIs(value.KindString)},
		{Name: "is_numeric", Params: []value.Kind{mixed}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			switch x := args[0].(type) {
			case value.Long, value.Double:
				return value.TRUE, nil
			case value.String, *value.StringBuilder:
				s, _ := value.ToString(x)
				return value.Bool(value.IsNumericString(s)), nil
			}
			return value.FALSE, nil
		}},
		{Name: "intval", Params: []value.Kind{mixed}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			return value.Long(value.ToLong(args[0])), nil
		}},
		{Name: "floatval", Params: []value.Kind{mixed}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			return value.Double(value.ToDouble(args[0])), nil
		}},
		{Name: "strval", Params: []value.Kind{mixed}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			return value.Str(toStr(call, args[0])), nil
		}},
		{Name: "abs", Params: []value.Kind{long}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			n := value.ToLong(args[0])
			if n == math.MinInt64 {
				return value.Double(-float64(n)), nil
			}
			if n < 0 {
				n = -n
			}
			return value.Long(n), nil
		}},
		{Name: "abs", Params: []value.Kind{double}, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			return value.Double(math.Abs(value.ToDouble(args[0]))), nil
		}},
		{Name: "max", Params: []value.Kind{mixed}, Variadic: true, Impl: extremum(value.Greater)},
		{Name: "min", Params: []value.Kind{mixed}, Variadic: true, Impl: extremum(value.Less)},
		{Name: "print_r", Params: []value.Kind{mixed, value.KindBool}, Optional: 1, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			out := shared.PrintR(args[0])
			if len(args) > 1 && value.ToBool(args[1]) {
				return value.Str(out), nil
			}
			call.Echo(out)
			return value.TRUE, nil
		}},
		{Name: "var_dump", Params: []value.Kind{mixed}, Variadic: true, Impl: func(call *Call, args []value.Value) (value.Value, error) {
			for _, a := range args {
				call.Echo(shared.VarDump(a))
			}
			return value.NULL, nil
		}},
	}
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

func kindIs(k value.Kind) func(*Call, []value.Value) (value.Value, error) {
	return func(call *Call, args []value.Value) (value.Value, error) {
		v := args[0]
		if _, ok := v.(value.Unset); ok {
			v = value.NULL
		}
		return value.Bool(v.Kind() == k), nil
	}
}

func extremum(want value.Ordering) func(*Call, []value.Value) (value.Value, error) {
	return func(call *Call, args []value.Value) (value.Value, error) {
		candidates := args
		if len(args) == 1 {
			arr, ok := args[0].(*value.Array)
			if !ok || arr.Len() == 0 {
				call.Warn(errors.CodeConversion, "Array must contain at least one element")
				return value.FALSE, nil
			}
			candidates = nil
			arr.Each(func(_ value.Key, v value.Value, ref *value.Var) bool {
				candidates = append(candidates, slot(v, ref))
				return true
			})
		}
		best := candidates[0]
		for _, c := range candidates[1:] {
			o, err := value.Cmp(c, best)
			if err != nil {
				return nil, err
			}
			if o == want {
				best = c
			}
		}
		return best, nil
	}
}

func typeName(v value.Value) string {
	switch v.(type) {
	case value.Null, value.Unset, *value.ErrorValue:
		return "NULL"
	case value.Bool:
		return "boolean"
	case value.Long:
		return "integer"
	case value.Double:
		return "double"
	case value.String, *value.StringBuilder:
		return "string"
	case *value.Array:
		return "array"
	case *value.Object, *value.Closure:
		return "object"
	case *value.Resource:
		return "resource"
	}
	return "unknown type"
}
