package factory

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"quercus/errors"
	"quercus/runtime"
	"quercus/runtime/lua"
)

// ProviderFactory creates host function providers
type ProviderFactory interface {
	// CreateProvider creates a new, uninitialized provider
	CreateProvider() (runtime.FunctionProvider, error)

	// ValidateEnvironment checks that the provider can be created
	ValidateEnvironment() error

	// GetName returns the name of the provider factory
	GetName() string
}

// ProviderRegistry manages provider factories and assembles runtimes from them
type ProviderRegistry struct {
	factories map[string]ProviderFactory
	order     []string
	mutex     sync.RWMutex
}

// NewProviderRegistry creates an empty registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		factories: make(map[string]ProviderFactory),
	}
}

// RegisterFactory registers a provider factory
func (pr *ProviderRegistry) RegisterFactory(factory ProviderFactory) error {
	if factory == nil {
		return errors.NewValidationError("NIL_FACTORY", "factory cannot be nil")
	}

	name := factory.GetName()
	if name == "" {
		return errors.NewValidationError("EMPTY_FACTORY_NAME", "factory name cannot be empty")
	}

	pr.mutex.Lock()
	defer pr.mutex.Unlock()

	if _, exists := pr.factories[name]; exists {
		return errors.NewSystemError("FACTORY_ALREADY_REGISTERED", fmt.Sprintf("factory '%s' is already registered", name))
	}
	pr.factories[name] = factory
	pr.order = append(pr.order, name)
	return nil
}

// GetFactory returns a registered factory by name
func (pr *ProviderRegistry) GetFactory(name string) (ProviderFactory, error) {
	pr.mutex.RLock()
	defer pr.mutex.RUnlock()

	factory, exists := pr.factories[name]
	if !exists {
		return nil, errors.NewSystemError("FACTORY_NOT_REGISTERED", fmt.Sprintf("factory '%s' is not registered", name))
	}
	return factory, nil
}

// CreateProvider creates a provider using the named factory
func (pr *ProviderRegistry) CreateProvider(name string) (runtime.FunctionProvider, error) {
	factory, err := pr.GetFactory(name)
	if err != nil {
		return nil, err
	}
	return factory.CreateProvider()
}

// ListFactories returns the registered factory names, sorted
func (pr *ProviderRegistry) ListFactories() []string {
	pr.mutex.RLock()
	defer pr.mutex.RUnlock()

	names := append([]string(nil), pr.order...)
	sort.Strings(names)
	return names
}

// ValidateAllEnvironments validates every factory and returns the failures
func (pr *ProviderRegistry) ValidateAllEnvironments() map[string]error {
	pr.mutex.RLock()
	defer pr.mutex.RUnlock()

	failures := make(map[string]error)
	for name, factory := range pr.factories {
		if err := factory.ValidateEnvironment(); err != nil {
			failures[name] = err
		}
	}
	return failures
}

// BuildRuntime creates a runtime and registers a provider from every
// factory, in registration order. A function several providers export
// becomes a set of overloads.
func (pr *ProviderRegistry) BuildRuntime() (*runtime.Runtime, error) {
	pr.mutex.RLock()
	order := append([]string(nil), pr.order...)
	pr.mutex.RUnlock()

	rt := runtime.NewRuntime()
	for _, name := range order {
		p, err := pr.CreateProvider(name)
		if err != nil {
			return nil, errors.WrapError(err, "PROVIDER_CREATION_FAILED", fmt.Sprintf("failed to create provider '%s'", name))
		}
		if err := rt.RegisterProvider(p); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

// CoreProviderFactory creates the builtin function library
type CoreProviderFactory struct{}

// NewCoreProviderFactory creates a new core provider factory
func NewCoreProviderFactory() *CoreProviderFactory {
	return &CoreProviderFactory{}
}

func (cf *CoreProviderFactory) CreateProvider() (runtime.FunctionProvider, error) {
	return runtime.NewCoreProvider(), nil
}

func (cf *CoreProviderFactory) ValidateEnvironment() error { return nil }

func (cf *CoreProviderFactory) GetName() string { return "core" }

// LuaProviderFactory creates providers exposing the global functions of Lua scripts
type LuaProviderFactory struct {
	name    string
	scripts []string
}

// NewLuaProviderFactory creates a factory over script files
func NewLuaProviderFactory(name string, scripts ...string) *LuaProviderFactory {
	if name == "" {
		name = "lua"
	}
	return &LuaProviderFactory{name: name, scripts: scripts}
}

func (lf *LuaProviderFactory) CreateProvider() (runtime.FunctionProvider, error) {
	p := lua.NewLuaProvider(lf.name)
	for _, path := range lf.scripts {
		p.AddFile(path)
	}
	return p, nil
}

// ValidateEnvironment checks that every script is a readable file
func (lf *LuaProviderFactory) ValidateEnvironment() error {
	for _, path := range lf.scripts {
		info, err := os.Stat(path)
		if err != nil {
			return errors.WrapError(err, "LUA_SCRIPT_MISSING", fmt.Sprintf("Lua script %s is not accessible", path))
		}
		if info.IsDir() {
			return errors.NewValidationError("LUA_SCRIPT_MISSING", fmt.Sprintf("Lua script %s is a directory", path))
		}
	}
	return nil
}

func (lf *LuaProviderFactory) GetName() string { return lf.name }

// DefaultProviderRegistry registers the core library and, when scripts are
// given, a Lua provider over them
func DefaultProviderRegistry(luaScripts ...string) *ProviderRegistry {
	registry := NewProviderRegistry()
	_ = registry.RegisterFactory(NewCoreProviderFactory())
	if len(luaScripts) > 0 {
		_ = registry.RegisterFactory(NewLuaProviderFactory("lua", luaScripts...))
	}
	return registry
}
