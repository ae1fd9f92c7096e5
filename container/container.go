package container

import (
	"fmt"
	"sort"
	"sync"

	"quercus/errors"
)

// DependencyLifetime defines the lifetime of a dependency
type DependencyLifetime int

const (
	// Transient means a new instance is created each time it's resolved
	Transient DependencyLifetime = iota
	// Singleton means the factory runs once, on first resolution
	Singleton
)

func (l DependencyLifetime) String() string {
	if l == Singleton {
		return "singleton"
	}
	return "transient"
}

// Container wires the collaborators of an engine: runtime, module loader,
// logger and diagnostics sink. Embedders and tests pre-register substitutes.
type Container interface {
	Register(name string, factory func() (interface{}, error), lifetime DependencyLifetime) error
	RegisterInstance(name string, instance interface{}) error
	Resolve(name string) (interface{}, error)
	MustResolve(name string) interface{}
	IsRegistered(name string) bool
	GetLifetime(name string) (DependencyLifetime, error)
}

type dependency struct {
	factory  func() (interface{}, error)
	lifetime DependencyLifetime

	once      sync.Once
	instance  interface{}
	err       error
	resolving bool
}

// DIContainer implements Container
type DIContainer struct {
	mu           sync.Mutex
	dependencies map[string]*dependency
}

// NewDIContainer creates an empty container
func NewDIContainer() *DIContainer {
	return &DIContainer{dependencies: make(map[string]*dependency)}
}

// Register registers a factory under name
func (c *DIContainer) Register(name string, factory func() (interface{}, error), lifetime DependencyLifetime) error {
	if name == "" {
		return errors.NewValidationError("EMPTY_DEPENDENCY_NAME", "dependency name cannot be empty")
	}
	if factory == nil {
		return errors.NewValidationError("NIL_FACTORY_FUNCTION", "factory function cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.dependencies[name]; exists {
		return errors.NewSystemError("DEPENDENCY_ALREADY_REGISTERED", fmt.Sprintf("dependency '%s' is already registered", name))
	}
	c.dependencies[name] = &dependency{factory: factory, lifetime: lifetime}
	return nil
}

// RegisterInstance registers an already built singleton
func (c *DIContainer) RegisterInstance(name string, instance interface{}) error {
	return c.Register(name, func() (interface{}, error) { return instance, nil }, Singleton)
}

// Resolve returns the instance registered under name
func (c *DIContainer) Resolve(name string) (interface{}, error) {
	c.mu.Lock()
	dep, exists := c.dependencies[name]
	if !exists {
		c.mu.Unlock()
		return nil, errors.NewSystemError("DEPENDENCY_NOT_REGISTERED", fmt.Sprintf("dependency '%s' is not registered", name))
	}
	if dep.resolving {
		c.mu.Unlock()
		return nil, errors.NewSystemError("CIRCULAR_DEPENDENCY", fmt.Sprintf("circular dependency detected for '%s'", name))
	}
	dep.resolving = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		dep.resolving = false
		c.mu.Unlock()
	}()

	if dep.lifetime == Transient {
		instance, err := dep.factory()
		if err != nil {
			return nil, creationFailed(name, err)
		}
		return instance, nil
	}

	dep.once.Do(func() {
		dep.instance, dep.err = dep.factory()
	})
	if dep.err != nil {
		return nil, creationFailed(name, dep.err)
	}
	return dep.instance, nil
}

func creationFailed(name string, err error) error {
	return errors.WrapError(err, "INSTANCE_CREATION_FAILED", fmt.Sprintf("failed to create instance for '%s': %v", name, err))
}

// MustResolve resolves a dependency by name or panics if it fails
func (c *DIContainer) MustResolve(name string) interface{} {
	instance, err := c.Resolve(name)
	if err != nil {
		panic(err)
	}
	return instance
}

// IsRegistered checks if a dependency is registered
func (c *DIContainer) IsRegistered(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.dependencies[name]
	return exists
}

// GetLifetime returns the lifetime of a registered dependency
func (c *DIContainer) GetLifetime(name string) (DependencyLifetime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dep, exists := c.dependencies[name]
	if !exists {
		return Transient, errors.NewSystemError("DEPENDENCY_NOT_REGISTERED", fmt.Sprintf("dependency '%s' is not registered", name))
	}
	return dep.lifetime, nil
}

// ListDependencies returns the sorted names of all registered dependencies
func (c *DIContainer) ListDependencies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.dependencies))
	for name := range c.dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveAs resolves name and checks that the instance has type T
func ResolveAs[T any](c Container, name string) (T, error) {
	var zero T
	instance, err := c.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, errors.NewSystemError("INVALID_DEPENDENCY_TYPE",
			fmt.Sprintf("dependency '%s' is %T, not %T", name, instance, zero))
	}
	return typed, nil
}
