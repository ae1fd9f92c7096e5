// Package runtime holds the process-wide state shared by every request:
// function ids, interned method names and the host functions supplied by
// providers such as the builtin library and Lua scripts.
package runtime

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/value"
)

// FunctionProvider supplies host functions to a Runtime
type FunctionProvider interface {
	// GetName returns the provider name used in diagnostics
	GetName() string
	// Initialize prepares the provider; it runs once on registration
	Initialize() error
	// Functions lists the host functions of the provider
	Functions() []*HostFunction
	// Cleanup releases resources held by the provider
	Cleanup() error
}

// HostFunction is a function implemented in Go (or by a provider) and
// callable from PHP code. Several HostFunctions may share a name; the call
// picks the overload with the cheapest argument marshaling.
type HostFunction struct {
	Name string
	// Params are the parameter kinds; value.KindMixed accepts anything
	Params []value.Kind
	// Optional is the number of trailing parameters that may be omitted
	Optional int
	// Variadic repeats the last parameter kind for extra arguments
	Variadic bool
	Impl     func(call *Call, args []value.Value) (value.Value, error)
	Provider string
}

// Accepts reports whether n arguments fit the signature
func (f *HostFunction) Accepts(n int) bool {
	min := len(f.Params) - f.Optional
	if n < min {
		return false
	}
	return f.Variadic || n <= len(f.Params)
}

// Cost returns the total marshal cost of passing args
func (f *HostFunction) Cost(args []value.Value) int {
	if !f.Accepts(len(args)) {
		return value.CostIncompatible * (len(args) + 1)
	}
	total := 0
	for i, a := range args {
		kind := value.KindMixed
		switch {
		case i < len(f.Params):
			kind = f.Params[i]
		case len(f.Params) > 0:
			kind = f.Params[len(f.Params)-1]
		}
		total += value.MarshalCost(a, kind)
	}
	return total
}

// Call is the context of one host function invocation in one configuration
// branch
type Call struct {
	Ctx  featureexpr.Expr
	Pos  ast.Position
	Name string

	echo func(string)
	warn func(*errors.ExecutionError)
}

// NewCall creates an invocation context. echo receives output, warn receives
// diagnostics.
func NewCall(ctx featureexpr.Expr, pos ast.Position, name string, echo func(string), warn func(*errors.ExecutionError)) *Call {
	return &Call{Ctx: ctx, Pos: pos, Name: name, echo: echo, warn: warn}
}

// Echo appends s to the request output
func (c *Call) Echo(s string) {
	if c.echo != nil {
		c.echo(s)
	}
}

// Warn reports a recoverable condition at the call site
func (c *Call) Warn(code, message string) {
	if c.warn != nil {
		c.warn(errors.NewWarning(code, c.Name+"(): "+message).WithLocation(c.Pos))
	}
}

// Runtime is the process-wide function and method registry. Lookup tables
// are filled lazily with insert-if-absent semantics: concurrent writers may
// compute the same entry twice, the first stored value wins.
type Runtime struct {
	nextID      atomic.Int64
	functionIDs sync.Map // lower-case name -> int
	methodNames sync.Map // lower-case name -> string

	mu        sync.RWMutex
	hosts     map[string][]*HostFunction
	providers []FunctionProvider
}

// NewRuntime creates an empty runtime
func NewRuntime() *Runtime {
	return &Runtime{hosts: make(map[string][]*HostFunction)}
}

// FunctionID returns the id of a function name, assigning one on first use.
// Ids are positive; names are case-insensitive.
func (r *Runtime) FunctionID(name string) int {
	key := strings.ToLower(name)
	if id, ok := r.functionIDs.Load(key); ok {
		return id.(int)
	}
	id, _ := r.functionIDs.LoadOrStore(key, int(r.nextID.Add(1)))
	return id.(int)
}

// LookupFunctionID returns the id of a name that has been seen before, or 0
func (r *Runtime) LookupFunctionID(name string) int {
	if id, ok := r.functionIDs.Load(strings.ToLower(name)); ok {
		return id.(int)
	}
	return 0
}

// CallSites caches the function id of call nodes for the lifetime of one
// request. It is not safe for concurrent use.
type CallSites struct {
	rt  *Runtime
	ids map[ast.ProtoNode]int
}

// NewCallSites creates an empty call-site cache backed by r
func (r *Runtime) NewCallSites() *CallSites {
	return &CallSites{rt: r, ids: make(map[ast.ProtoNode]int)}
}

// ID returns the function id for a call node, caching it by node
func (c *CallSites) ID(site ast.ProtoNode, name string) int {
	if id, ok := c.ids[site]; ok {
		return id
	}
	id := c.rt.FunctionID(name)
	c.ids[site] = id
	return id
}

// Len returns the number of cached call nodes
func (c *CallSites) Len() int { return len(c.ids) }

// Intern returns the canonical (lower-case) spelling of a method name
func (r *Runtime) Intern(method string) string {
	if s, ok := r.methodNames.Load(method); ok {
		return s.(string)
	}
	s, _ := r.methodNames.LoadOrStore(method, strings.ToLower(method))
	return s.(string)
}

// RegisterHost adds a host function overload
func (r *Runtime) RegisterHost(fn *HostFunction) {
	key := strings.ToLower(fn.Name)
	r.FunctionID(key)
	r.mu.Lock()
	r.hosts[key] = append(r.hosts[key], fn)
	r.mu.Unlock()
}

// RegisterProvider initializes p and registers its functions
func (r *Runtime) RegisterProvider(p FunctionProvider) error {
	if err := p.Initialize(); err != nil {
		return errors.WrapError(err, "PROVIDER_INIT_FAILED",
			fmt.Sprintf("failed to initialize function provider '%s': %v", p.GetName(), err))
	}
	for _, fn := range p.Functions() {
		if fn.Provider == "" {
			fn.Provider = p.GetName()
		}
		r.RegisterHost(fn)
	}
	r.mu.Lock()
	r.providers = append(r.providers, p)
	r.mu.Unlock()
	return nil
}

// Host returns the overloads registered under name
func (r *Runtime) Host(name string) []*HostFunction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hosts[strings.ToLower(name)]
}

// HostNames returns the sorted names of all host functions
func (r *Runtime) HostNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hosts))
	for name := range r.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Providers returns the registered providers in registration order
func (r *Runtime) Providers() []FunctionProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]FunctionProvider(nil), r.providers...)
}

// Close cleans up every provider
func (r *Runtime) Close() error {
	var first error
	for _, p := range r.Providers() {
		if err := p.Cleanup(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SelectOverload returns the overload of fns with the lowest marshal cost
// for args. Ties go to the overload registered first.
func SelectOverload(fns []*HostFunction, args []value.Value) (*HostFunction, bool) {
	var best *HostFunction
	bestCost := 0
	for _, fn := range fns {
		if !fn.Accepts(len(args)) {
			continue
		}
		c := fn.Cost(args)
		if best == nil || c < bestCost {
			best, bestCost = fn, c
		}
	}
	return best, best != nil
}
