package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/logging"
	"quercus/runtime"
	"quercus/value"
	"quercus/varex"
)

// Scope is the local variable table of a function activation, or the global
// table of a request
type Scope struct {
	vars  map[string]*value.EnvVar
	this  *value.Object
	class *Class
	fn    *Function
}

func newScope(fn *Function, this *value.Object, class *Class) *Scope {
	return &Scope{vars: make(map[string]*value.EnvVar), this: this, class: class, fn: fn}
}

// lookup returns the slot of a variable, creating an unset one when missing
func (s *Scope) lookup(name string) *value.EnvVar {
	if ev, ok := s.vars[name]; ok {
		return ev
	}
	ev := value.NewEnvVar(value.NewVar(value.UNSET))
	s.vars[name] = ev
	return ev
}

// Names returns the variable names of the scope
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	return names
}

// Get returns the value of a variable in every configuration
func (s *Scope) Get(name string) varex.V[value.Value] {
	ev, ok := s.vars[name]
	if !ok {
		return varex.One(value.UNSET)
	}
	return ev.Get(featureexpr.True())
}

// Frame is a call stack entry
type Frame struct {
	Name string
	Pos  ast.Position
	Ctx  featureexpr.Expr
}

func (f Frame) String() string {
	return f.Name + " at " + f.Pos.String()
}

// Env is the state of one request: scopes, the variational function and
// class tables, the call stack and the output and diagnostics sinks. An Env is
// used by a single goroutine.
type Env struct {
	engine    *ExecutionEngine
	goctx     context.Context
	root      featureexpr.Expr
	deadline  time.Time
	logger    logging.Logger
	globals   *Scope
	scope     *Scope
	functions map[int]varex.V[*Function]
	classes   map[string]varex.V[*Class]
	hoisted   map[ast.Statement]bool
	closures  map[*ast.Closure]*Function
	callSites *runtime.CallSites
	included  map[string]featureexpr.Expr
	features  map[string]featureexpr.Expr
	stack     []Frame
	output    *Output
	diags     *Diagnostics
	file      string
	quiet     int
	loops     int
}

func (e *ExecutionEngine) newEnv(goctx context.Context, file string, diags *Diagnostics) *Env {
	logger := e.logger
	if goctx != nil {
		logger = logger.WithContext(goctx)
	}
	globals := newScope(nil, nil, nil)
	return &Env{
		engine:    e,
		goctx:     goctx,
		root:      featureexpr.True(),
		deadline:  time.Now().Add(e.maxTime),
		logger:    logger,
		globals:   globals,
		scope:     globals,
		functions: make(map[int]varex.V[*Function]),
		classes:   make(map[string]varex.V[*Class]),
		hoisted:   make(map[ast.Statement]bool),
		closures:  make(map[*ast.Closure]*Function),
		callSites: e.runtime.NewCallSites(),
		included:  make(map[string]featureexpr.Expr),
		features:  make(map[string]featureexpr.Expr),
		output:    &Output{},
		diags:     diags,
		file:      file,
	}
}

// checkTimeout is the cooperative cancellation point of calls and loop
// iterations
func (env *Env) checkTimeout(pos ast.Position) error {
	if env.goctx != nil {
		if err := env.goctx.Err(); err != nil {
			code := errors.CodeCancelled
			if err == context.DeadlineExceeded {
				code = errors.CodeTimeout
			}
			return env.fatal(errors.NewFatalError(code, "request cancelled: "+err.Error()).WithLocation(pos))
		}
	}
	if time.Now().After(env.deadline) {
		return env.fatal(errors.NewFatalError(errors.CodeTimeout,
			fmt.Sprintf("Maximum execution time of %s exceeded", env.engine.maxTime)).WithLocation(pos))
	}
	return nil
}

// tick counts a loop iteration against the iteration limit
func (env *Env) tick(pos ast.Position) error {
	env.loops++
	if env.loops > env.engine.maxLoops {
		return env.fatal(errors.NewFatalError(errors.CodeTimeout,
			fmt.Sprintf("Maximum of %d loop iterations exceeded", env.engine.maxLoops)).WithLocation(pos))
	}
	return env.checkTimeout(pos)
}

// pushFrame enters a call. The returned function pops the frame and must be
// deferred.
func (env *Env) pushFrame(name string, pos ast.Position, ctx featureexpr.Expr) (func(), error) {
	if len(env.stack) >= env.engine.maxDepth {
		return func() {}, env.fatal(errors.NewFatalError(errors.CodeStackDepth,
			fmt.Sprintf("Maximum function nesting level of %d reached", env.engine.maxDepth)).WithLocation(pos))
	}
	env.stack = append(env.stack, Frame{Name: name, Pos: pos, Ctx: ctx})
	depth := len(env.stack)
	return func() { env.stack = env.stack[:depth-1] }, nil
}

// Backtrace returns the call stack, innermost frame first
func (env *Env) Backtrace() []Frame {
	out := make([]Frame, len(env.stack))
	for i, f := range env.stack {
		out[len(env.stack)-1-i] = f
	}
	return out
}

// fatal attaches the backtrace to a request-fatal error
func (env *Env) fatal(err *errors.ExecutionError) *errors.ExecutionError {
	if len(env.stack) > 0 {
		trace := make([]string, 0, len(env.stack))
		for _, f := range env.Backtrace() {
			trace = append(trace, f.String())
		}
		err = err.WithContext("backtrace", trace)
	}
	return err
}

// warn reports a recoverable condition under ctx
func (env *Env) warn(ctx featureexpr.Expr, pos ast.Position, err *errors.ExecutionError) {
	if err == nil {
		return
	}
	if env.quiet > 0 && (err.Code == errors.CodeUndefinedVar || err.Code == errors.CodeUndefinedIndex ||
		err.Code == errors.CodeScalarAsArray || err.Code == errors.CodeNotAnObject) {
		return
	}
	env.diags.Report(ctx, err.WithLocation(pos))
}

func (env *Env) warnAll(ctx featureexpr.Expr, pos ast.Position, ws value.Warnings) {
	for _, w := range ws {
		env.warn(ctx, pos, w)
	}
}

// sentinel reports a resolution failure and returns the error value that
// stands for the result in ctx
func (env *Env) sentinel(ctx featureexpr.Expr, pos ast.Position, err *errors.ExecutionError) varex.V[value.Value] {
	err = err.WithLocation(pos)
	env.diags.Report(ctx, err)
	return varex.OneIn(ctx, value.Value(value.NewError(err)))
}

// fault aborts the configurations of ctx
func (env *Env) fault(ctx featureexpr.Expr, pos ast.Position, err *errors.ExecutionError) varex.V[value.Value] {
	err = err.WithLocation(pos)
	if err.Severity.Rank() < errors.SeverityError.Rank() {
		err.Severity = errors.SeverityError
	}
	env.diags.Report(ctx, err)
	return varex.OneIn(ctx, value.Value(&value.Abort{Err: err}))
}

// handleError routes an error raised while evaluating ctx by its tier:
// recoverable errors become a diagnostic and a sentinel, branch faults abort
// ctx, everything else ends the request
func (env *Env) handleError(ctx featureexpr.Expr, pos ast.Position, err error) (varex.V[value.Value], error) {
	strategy, _ := env.engine.handler.Recover(env.goctx, err)
	execErr, ok := errors.AsExecutionError(err)
	if !ok {
		execErr, _ = errors.AsExecutionError(env.engine.handler.Handle(env.goctx, err))
	}
	switch strategy.Action {
	case errors.RecoveryActionLog:
		return env.sentinel(ctx, pos, execErr), nil
	case errors.RecoveryActionAbortBranch:
		return env.fault(ctx, pos, execErr), nil
	}
	return varex.V[value.Value]{}, env.fatal(execErr.WithLocation(pos))
}

func (env *Env) debug(msg string, fields ...logging.LogField) {
	if env.engine.verbose {
		env.logger.Debug(msg, fields...)
	}
}

// feature returns the parsed form of a feature expression of the program
func (env *Env) feature(text string, pos ast.Position) (featureexpr.Expr, error) {
	if e, ok := env.features[text]; ok {
		return e, nil
	}
	e, err := env.engine.space.Parse(text)
	if err != nil {
		return featureexpr.False(), env.fatal(errors.NewFatalError(errors.CodeBadFeature,
			fmt.Sprintf("invalid feature expression %q: %v", text, err)).WithLocation(pos))
	}
	env.features[text] = e
	return e, nil
}

// dir is the directory includes are resolved against
func (env *Env) dir() string {
	if env.file == "" {
		return ""
	}
	return filepath.Dir(env.file)
}

// isAbort reports whether v aborted its configurations
func isAbort(v value.Value) bool {
	_, ok := v.(*value.Abort)
	return ok
}

// live returns the part of ctx in which v did not abort
func live(ctx featureexpr.Expr, v varex.V[value.Value]) featureexpr.Expr {
	return ctx.AndNot(v.When(isAbort))
}

// aborted returns the aborted branches of v
func aborted(v varex.V[value.Value]) varex.V[value.Value] {
	return v.Select(v.When(isAbort))
}

// storable turns a read result into the value an assignment stores
func storable(v value.Value) value.Value {
	switch v.(type) {
	case value.Unset, nil:
		return value.NULL
	}
	return value.Copy(v)
}

func typeName(v value.Value) string {
	switch x := v.(type) {
	case value.Null, value.Unset, *value.ErrorValue:
		return "null"
	case value.Bool:
		return "bool"
	case value.Long:
		return "int"
	case value.Double:
		return "float"
	case value.String, *value.StringBuilder:
		return "string"
	case *value.Array:
		return "array"
	case *value.Object:
		return x.ClassName()
	case *value.Closure:
		return "Closure"
	}
	return strings.ToLower(v.Kind().String())
}
