// Package lua exposes functions written in Lua to PHP code as host functions.
package lua

import (
	"fmt"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"quercus/errors"
	"quercus/runtime"
	"quercus/value"
)

// Script is a Lua chunk loaded by the provider, either from a file or inline
type Script struct {
	Name   string
	Path   string
	Source string
}

// LuaProvider runs Lua scripts in one interpreter state. Every global
// function a script defines becomes a host function of the same name.
// Calls are serialized: a Lua state is single threaded.
type LuaProvider struct {
	name    string
	scripts []Script

	mu        sync.Mutex
	state     *lua.LState
	functions []string
	current   *runtime.Call
}

// NewLuaProvider creates a provider; add scripts before registering it
func NewLuaProvider(name string) *LuaProvider {
	if name == "" {
		name = "lua"
	}
	return &LuaProvider{name: name}
}

// AddFile queues a script file
func (p *LuaProvider) AddFile(path string) {
	p.scripts = append(p.scripts, Script{Name: path, Path: path})
}

// AddSource queues an inline script
func (p *LuaProvider) AddSource(name, source string) {
	p.scripts = append(p.scripts, Script{Name: name, Source: source})
}

func (p *LuaProvider) GetName() string { return p.name }

// Initialize creates the Lua state and runs the scripts
func (p *LuaProvider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	L := lua.NewState()
	L.OpenLibs()
	L.SetGlobal("echo", L.NewFunction(p.luaEcho))
	L.SetGlobal("warn", L.NewFunction(p.luaWarn))

	before := globalFunctions(L)
	for _, s := range p.scripts {
		var err error
		if s.Path != "" {
			err = L.DoFile(s.Path)
		} else {
			err = L.DoString(s.Source)
		}
		if err != nil {
			L.Close()
			return fmt.Errorf("lua script %s: %w", s.Name, err)
		}
	}

	p.functions = p.functions[:0]
	for name := range globalFunctions(L) {
		if !before[name] {
			p.functions = append(p.functions, name)
		}
	}
	sort.Strings(p.functions)
	p.state = L
	return nil
}

func globalFunctions(L *lua.LState) map[string]bool {
	names := make(map[string]bool)
	L.G.Global.ForEach(func(k, v lua.LValue) {
		if k.Type() == lua.LTString && v.Type() == lua.LTFunction {
			names[k.String()] = true
		}
	})
	return names
}

// FunctionNames returns the Lua functions exported by the scripts
func (p *LuaProvider) FunctionNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.functions...)
}

// Functions implements runtime.FunctionProvider. Lua functions take any
// number of arguments of any kind.
func (p *LuaProvider) Functions() []*runtime.HostFunction {
	var out []*runtime.HostFunction
	for _, name := range p.FunctionNames() {
		name := name
		out = append(out, &runtime.HostFunction{
			Name:     name,
			Params:   []value.Kind{value.KindMixed},
			Optional: 1,
			Variadic: true,
			Impl: func(call *runtime.Call, args []value.Value) (value.Value, error) {
				return p.Call(call, name, args)
			},
		})
	}
	return out
}

// Call invokes the Lua function name with args and returns its first result
func (p *LuaProvider) Call(call *runtime.Call, name string, args []value.Value) (value.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == nil {
		return nil, errors.NewRuntimeError(errors.CodeHostCall, "lua provider "+p.name+" is not initialized")
	}
	L := p.state
	fn := L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil, errors.NewRuntimeError(errors.CodeHostCall, fmt.Sprintf("lua global '%s' is not a function", name))
	}

	p.current = call
	defer func() { p.current = nil }()

	top := L.GetTop()
	L.Push(fn)
	for _, a := range args {
		L.Push(ToLua(L, a))
	}
	if err := L.PCall(len(args), 1, nil); err != nil {
		L.SetTop(top)
		return nil, errors.WrapError(err, errors.CodeHostCall, fmt.Sprintf("lua function %s failed: %v", name, err))
	}
	ret := L.Get(-1)
	L.SetTop(top)
	return FromLua(ret), nil
}

// Cleanup closes the Lua state
func (p *LuaProvider) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != nil {
		p.state.Close()
		p.state = nil
	}
	return nil
}

func (p *LuaProvider) luaEcho(L *lua.LState) int {
	for i := 1; i <= L.GetTop(); i++ {
		if p.current != nil {
			p.current.Echo(L.ToStringMeta(L.Get(i)).String())
		}
	}
	return 0
}

func (p *LuaProvider) luaWarn(L *lua.LState) int {
	if p.current != nil {
		p.current.Warn(errors.CodeHostCall, L.CheckString(1))
	}
	return 0
}
