package engine

import (
	"fmt"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/logging"
	"quercus/value"
	"quercus/varex"
)

// Function is a user function, method or closure body
type Function struct {
	decl  *ast.FunctionDecl
	name  string
	class *Class
	file  string
}

// Name returns the declared name; methods are qualified with their class
func (f *Function) Name() string {
	if f.class != nil {
		return f.class.name + "::" + f.name
	}
	return f.name
}

// Decl returns the declaration of the function
func (f *Function) Decl() *ast.FunctionDecl { return f.decl }

// argument is an evaluated call argument: a value, or the Vars of a
// by-reference argument
type argument struct {
	val  varex.V[value.Value]
	refs varex.V[*value.Var]
	ref  bool
}

// declareFunction adds fn to the function table within ctx. Configurations in
// which the name is already declared fault.
func (env *Env) declareFunction(ctx featureexpr.Expr, fn *Function, pos ast.Position) varex.V[value.Value] {
	if len(env.engine.runtime.Host(fn.name)) > 0 {
		return env.fault(ctx, pos, errors.NewRuntimeError(errors.CodeRedeclared,
			fmt.Sprintf("Cannot redeclare %s()", fn.name)))
	}
	id := env.engine.runtime.FunctionID(fn.name)
	cur, ok := env.functions[id]
	if !ok {
		cur = varex.One[*Function](nil)
	}
	taken := ctx.And(cur.When(func(f *Function) bool { return f != nil }))
	free := ctx.AndNot(taken)
	env.functions[id] = varex.CompactComparable(varex.Choice(free, varex.OneIn(free, fn), cur))
	env.debug("function declared", logging.StringField("function", fn.name), logging.StringField("cond", free.String()))

	var out []varex.Branch[value.Value]
	if free.IsSatisfiable() {
		out = append(out, varex.Branch[value.Value]{Cond: free, Value: nil})
	}
	if taken.IsSatisfiable() {
		out = append(out, env.fault(taken, pos, errors.NewRuntimeError(errors.CodeRedeclared,
			fmt.Sprintf("Cannot redeclare %s()", fn.name))).Branches()...)
	}
	return varex.FromBranches(out...)
}

// lookupFunction returns the user function bound to name within ctx; nil
// marks configurations where it is undeclared
func (env *Env) lookupFunction(ctx featureexpr.Expr, site ast.ProtoNode, name string) varex.V[*Function] {
	var id int
	if site != nil {
		id = env.callSites.ID(site, name)
	} else {
		id = env.engine.runtime.LookupFunctionID(name)
	}
	if id <= 0 {
		return varex.OneIn[*Function](ctx, nil)
	}
	fns, ok := env.functions[id]
	if !ok {
		return varex.OneIn[*Function](ctx, nil)
	}
	return fns.Select(ctx)
}

// evaluateArguments evaluates call arguments left to right for fn. Arguments
// of by-reference parameters are evaluated as references. The returned
// context excludes configurations where an argument aborted.
func (env *Env) evaluateArguments(ctx featureexpr.Expr, fn *Function, args []ast.Expression) ([]argument, featureexpr.Expr, varex.V[value.Value], error) {
	out := make([]argument, len(args))
	var faults []varex.Branch[value.Value]
	for i, a := range args {
		if fn != nil && i < len(fn.decl.Params) && fn.decl.Params[i].ByRef {
			refs, aborts, err := env.evaluateRef(ctx, a)
			if err != nil {
				return nil, ctx, varex.V[value.Value]{}, err
			}
			faults = append(faults, aborts.Branches()...)
			ctx = ctx.AndNot(aborts.Cond())
			out[i] = argument{refs: refs, ref: true}
			continue
		}
		v, err := env.evaluateExpression(ctx, a)
		if err != nil {
			return nil, ctx, varex.V[value.Value]{}, err
		}
		faults = append(faults, aborted(v).Branches()...)
		ctx = live(ctx, v)
		out[i] = argument{val: v}
	}
	return out, ctx, varex.FromBranches(faults...), nil
}

// invokeFunction runs fn within ctx with evaluated arguments. The frame is
// popped on every exit path.
func (env *Env) invokeFunction(ctx featureexpr.Expr, fn *Function, args []argument, this *value.Object, class *Class, pos ast.Position) (varex.V[value.Value], error) {
	if !ctx.IsSatisfiable() {
		return varex.V[value.Value]{}, nil
	}
	if err := env.checkTimeout(pos); err != nil {
		return varex.V[value.Value]{}, err
	}
	pop, err := env.pushFrame(fn.Name(), pos, ctx)
	defer pop()
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	env.debug("call", logging.StringField("function", fn.Name()), logging.StringField("cond", ctx.String()))

	if class == nil {
		class = fn.class
	}
	scope := newScope(fn, this, class)
	saved, savedFile := env.scope, env.file
	env.scope, env.file = scope, fn.file
	defer func() { env.scope, env.file = saved, savedFile }()

	var faults []varex.Branch[value.Value]
	for i, p := range fn.decl.Params {
		ev := value.NewEnvVar(value.NewVar(value.UNSET))
		scope.vars[p.Name] = ev
		switch {
		case i < len(args) && args[i].ref:
			ev.BindRef(ctx, args[i].refs)
		case i < len(args):
			ev.Set(ctx, varex.Map(args[i].val.Select(ctx), storable))
		case p.Default != nil:
			def, err := env.evaluateExpression(ctx, p.Default)
			if err != nil {
				return varex.V[value.Value]{}, err
			}
			faults = append(faults, aborted(def).Branches()...)
			ctx = live(ctx, def)
			ev.Set(ctx, varex.Map(def.Select(ctx), storable))
		default:
			// the missing argument reads as null
			env.diags.Report(ctx, errors.NewRuntimeError(errors.CodeMissingArgument,
				fmt.Sprintf("Too few arguments to function %s(), %d passed and at least %d expected",
					fn.Name(), len(args), requiredParams(fn.decl))).WithLocation(pos))
			ev.Set(ctx, varex.OneIn(ctx, value.NULL))
		}
	}

	var body []ast.Statement
	if fn.decl.Body != nil {
		body = fn.decl.Body.Statements
	}
	res, err := env.executeBlock(ctx, body)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	out := varex.Map(env.escapedJumps(res, fn.decl.Pos), returnValue)
	return varex.FromBranches(append(out.Branches(), faults...)...), nil
}

// returnValue converts the completion of a function body into its result
func returnValue(v value.Value) value.Value {
	switch v.(type) {
	case nil:
		return value.NULL
	case *value.Abort:
		return v
	}
	return value.Copy(v)
}

func requiredParams(decl *ast.FunctionDecl) int {
	n := 0
	for i, p := range decl.Params {
		if p.Default == nil {
			n = i + 1
		}
	}
	return n
}

// callFunction calls the function named by n
func (env *Env) callFunction(ctx featureexpr.Expr, n *ast.Call) (varex.V[value.Value], error) {
	return env.callNamed(ctx, n, n.Name, n.Args, n.Pos)
}

// callNamed calls a function by name. Host functions take precedence; user
// functions are resolved per configuration and unresolved configurations get
// an error value. site keys the call-site cache and may be nil.
func (env *Env) callNamed(ctx featureexpr.Expr, site ast.ProtoNode, name string, args []ast.Expression, pos ast.Position) (varex.V[value.Value], error) {
	if hosts := env.engine.runtime.Host(name); len(hosts) > 0 {
		return env.callHost(ctx, name, hosts, args, pos)
	}
	fns := env.lookupFunction(ctx, site, name)
	return varex.SFlatMapE(fns, ctx, func(c featureexpr.Expr, fn *Function) (varex.V[value.Value], error) {
		if fn == nil {
			return env.sentinel(c, pos, errors.NewRuntimeError(errors.CodeUndefinedFunction,
				fmt.Sprintf("Call to undefined function %s()", name))), nil
		}
		return env.callUser(c, fn, args, nil, nil, pos)
	})
}

// callUser evaluates arguments for fn and invokes it
func (env *Env) callUser(ctx featureexpr.Expr, fn *Function, args []ast.Expression, this *value.Object, class *Class, pos ast.Position) (varex.V[value.Value], error) {
	evaluated, c, faults, err := env.evaluateArguments(ctx, fn, args)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := env.invokeFunction(c, fn, evaluated, this, class, pos)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return varex.FromBranches(append(res.Branches(), faults.Branches()...)...), nil
}
