package lua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/runtime"
	"quercus/value"
)

const script = `
function double(x) return x * 2 end
function greet(name) echo("hello ", name) return #name end
function pair(a, b) return {a, b} end
function named() return {name = "x", size = 3} end
function fail() error("boom") end
function sum(t) local s = 0 for _, v in ipairs(t) do s = s + v end return s end
local function hidden() return 1 end
`

func newProvider(t *testing.T) *LuaProvider {
	t.Helper()
	p := NewLuaProvider("")
	p.AddSource("test", script)
	require.NoError(t, p.Initialize())
	t.Cleanup(func() { _ = p.Cleanup() })
	return p
}

func TestLuaProvider_ExportsGlobalFunctions(t *testing.T) {
	p := newProvider(t)
	assert.Equal(t, "lua", p.GetName())
	assert.Equal(t, []string{"double", "fail", "greet", "named", "pair", "sum"}, p.FunctionNames())
	for _, fn := range p.Functions() {
		assert.True(t, fn.Accepts(0))
		assert.True(t, fn.Accepts(5))
	}
}

func TestLuaProvider_Call(t *testing.T) {
	p := newProvider(t)
	call := runtime.NewCall(featureexpr.True(), ast.Position{}, "double", nil, nil)

	v, err := p.Call(call, "double", []value.Value{value.Long(21)})
	require.NoError(t, err)
	assert.Equal(t, value.Long(42), v)

	v, err = p.Call(call, "double", []value.Value{value.Double(1.25)})
	require.NoError(t, err)
	assert.Equal(t, value.Double(2.5), v)

	v, err = p.Call(call, "sum", []value.Value{value.NewList(value.Long(1), value.Long(2), value.Long(3))})
	require.NoError(t, err)
	assert.Equal(t, value.Long(6), v)
}

func TestLuaProvider_EchoGoesToCall(t *testing.T) {
	p := newProvider(t)
	var out string
	call := runtime.NewCall(featureexpr.True(), ast.Position{}, "greet", func(s string) { out += s }, nil)

	v, err := p.Call(call, "greet", []value.Value{value.Str("bob")})
	require.NoError(t, err)
	assert.Equal(t, "hello bob", out)
	assert.Equal(t, value.Long(3), v)
}

func TestLuaProvider_Tables(t *testing.T) {
	p := newProvider(t)
	call := runtime.NewCall(featureexpr.True(), ast.Position{}, "pair", nil, nil)

	v, err := p.Call(call, "pair", []value.Value{value.Str("a"), value.TRUE})
	require.NoError(t, err)
	arr, ok := v.(*value.Array)
	require.True(t, ok)
	assert.Equal(t, []value.Key{value.IntKey(0), value.IntKey(1)}, arr.Keys())

	v, err = p.Call(call, "named", nil)
	require.NoError(t, err)
	arr, ok = v.(*value.Array)
	require.True(t, ok)
	assert.Equal(t, []value.Key{value.StrKey("name"), value.StrKey("size")}, arr.Keys())
	size, _, _ := arr.Get(value.StrKey("size"))
	assert.Equal(t, value.Long(3), size)
}

func TestLuaProvider_ErrorsAreHostCallErrors(t *testing.T) {
	p := newProvider(t)
	call := runtime.NewCall(featureexpr.True(), ast.Position{}, "fail", nil, nil)

	_, err := p.Call(call, "fail", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeHostCall))
	assert.Contains(t, err.Error(), "boom")

	_, err = p.Call(call, "missing", nil)
	assert.True(t, errors.HasCode(err, errors.CodeHostCall))
}

func TestLuaProvider_BadScript(t *testing.T) {
	p := NewLuaProvider("broken")
	p.AddSource("bad", "function (")
	assert.Error(t, p.Initialize())
}

func TestLuaProvider_RegistersWithRuntime(t *testing.T) {
	p := NewLuaProvider("scripts")
	p.AddSource("test", script)
	rt := runtime.NewRuntime()
	require.NoError(t, rt.RegisterProvider(p))
	defer rt.Close()

	fns := rt.Host("DOUBLE")
	require.Len(t, fns, 1)
	assert.Equal(t, "scripts", fns[0].Provider)
	v, err := fns[0].Impl(runtime.NewCall(featureexpr.True(), ast.Position{}, "double", nil, nil), []value.Value{value.Long(4)})
	require.NoError(t, err)
	assert.Equal(t, value.Long(8), v)
}

func TestConvert(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	arr := value.NewArray()
	arr.Set(value.StrKey("k"), value.Str("v"))
	arr.Set(value.IntKey(7), value.Long(1))
	tbl, ok := ToLua(L, arr).(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, lua.LString("v"), tbl.RawGetString("k"))
	assert.Equal(t, lua.LNumber(1), tbl.RawGet(lua.LNumber(7)))

	assert.Equal(t, lua.LNil, ToLua(L, value.NULL))
	assert.Equal(t, value.NULL, FromLua(lua.LNil))
	assert.Equal(t, value.FALSE, FromLua(lua.LFalse))
	assert.Equal(t, value.Str("s"), FromLua(lua.LString("s")))
}
