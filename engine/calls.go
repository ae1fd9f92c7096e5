package engine

import (
	"fmt"
	"strings"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/runtime"
	"quercus/value"
	"quercus/varex"
)

// collect concatenates the branches of results over disjoint contexts
func collect(parts ...varex.V[value.Value]) varex.V[value.Value] {
	var out []varex.Branch[value.Value]
	for _, p := range parts {
		out = append(out, p.Branches()...)
	}
	return varex.FromBranches(out...)
}

// hostArguments evaluates the arguments of a host call by value and resolves
// them into one plain argument vector per configuration combination
func (env *Env) hostArguments(ctx featureexpr.Expr, args []ast.Expression) (varex.V[[]value.Value], featureexpr.Expr, varex.V[value.Value], error) {
	vals := make([]varex.V[value.Value], len(args))
	var faults []varex.Branch[value.Value]
	for i, a := range args {
		v, err := env.evaluateExpression(ctx, a)
		if err != nil {
			return varex.V[[]value.Value]{}, ctx, varex.V[value.Value]{}, err
		}
		faults = append(faults, aborted(v).Branches()...)
		ctx = live(ctx, v)
		vals[i] = varex.SFlatMap(v, ctx, value.Resolve)
	}
	return varex.Sequence(vals, ctx), ctx, varex.FromBranches(faults...), nil
}

// callHost calls a host function. The overload is chosen per argument
// combination.
func (env *Env) callHost(ctx featureexpr.Expr, name string, hosts []*runtime.HostFunction, args []ast.Expression, pos ast.Position) (varex.V[value.Value], error) {
	argv, c, faults, err := env.hostArguments(ctx, args)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.SFlatMapE(argv, c, func(c featureexpr.Expr, argv []value.Value) (varex.V[value.Value], error) {
		return env.invokeHost(c, name, hosts, argv, pos)
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, faults), nil
}

func (env *Env) invokeHost(ctx featureexpr.Expr, name string, hosts []*runtime.HostFunction, argv []value.Value, pos ast.Position) (varex.V[value.Value], error) {
	if err := env.checkTimeout(pos); err != nil {
		return varex.V[value.Value]{}, err
	}
	fn, ok := runtime.SelectOverload(hosts, argv)
	if !ok {
		return env.sentinel(ctx, pos, errors.NewWarning(errors.CodeMissingArgument,
			fmt.Sprintf("%s() expects %d arguments, %d given", name, len(hosts[0].Params)-hosts[0].Optional, len(argv)))), nil
	}
	pop, err := env.pushFrame(fn.Name, pos, ctx)
	defer pop()
	if err != nil {
		return varex.V[value.Value]{}, err
	}

	call := runtime.NewCall(ctx, pos, fn.Name,
		func(s string) { env.output.Write(ctx, s) },
		func(w *errors.ExecutionError) { env.diags.Report(ctx, w) })
	r, err := fn.Impl(call, argv)
	if err != nil {
		return env.handleError(ctx, pos, err)
	}
	if r == nil {
		r = value.NULL
	}
	return varex.OneIn(ctx, r), nil
}

// memberName evaluates the name of a method, either static or computed
func (env *Env) memberName(ctx featureexpr.Expr, name string, expr ast.Expression) (varex.V[value.Value], error) {
	if expr == nil {
		return varex.OneIn(ctx, value.Value(value.Str(name))), nil
	}
	return env.evaluateExpression(ctx, expr)
}

// callMethod evaluates $obj->m(...)
func (env *Env) callMethod(ctx featureexpr.Expr, n *ast.MethodCall) (varex.V[value.Value], error) {
	objs, err := env.evaluateExpression(ctx, n.Object)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, objs)
	names, err := env.memberName(c, n.Method, n.MethodExpr)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.ZipE(objs, names, live(c, names), func(c featureexpr.Expr, recv, name value.Value) (varex.V[value.Value], error) {
		s, _ := value.ToString(name)
		return env.invokeMethod(c, recv, s, n.Args, n.Pos)
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, aborted(objs), aborted(names)), nil
}

// invokeMethod calls method name on recv within ctx
func (env *Env) invokeMethod(ctx featureexpr.Expr, recv value.Value, name string, args []ast.Expression, pos ast.Position) (varex.V[value.Value], error) {
	switch o := recv.(type) {
	case *value.Object:
		cls, ok := o.Class.(*Class)
		var fn *Function
		if ok {
			fn = cls.findMethod(env.engine.runtime.Intern(name))
		}
		if fn == nil {
			return env.sentinel(ctx, pos, errors.NewRuntimeError(errors.CodeUndefinedMethod,
				fmt.Sprintf("Call to undefined method %s::%s()", o.ClassName(), name))), nil
		}
		this := o
		if fn.decl.Static {
			this = nil
		}
		return env.callUser(ctx, fn, args, this, fn.class, pos)
	case *value.Closure:
		if strings.EqualFold(name, "__invoke") {
			return env.callValue(ctx, o, args, pos)
		}
	}
	return env.fault(ctx, pos, errors.NewRuntimeError(errors.CodeNotAnObject,
		fmt.Sprintf("Call to a member function %s() on %s", name, typeName(recv)))), nil
}

// classesOf resolves the class operand of new and static calls
func (env *Env) classesOf(ctx featureexpr.Expr, name string, expr ast.Expression) (varex.V[*Class], varex.V[value.Value], error) {
	if expr == nil {
		return env.lookupClass(ctx, name), varex.V[value.Value]{}, nil
	}
	v, err := env.evaluateExpression(ctx, expr)
	if err != nil {
		return varex.V[*Class]{}, varex.V[value.Value]{}, err
	}
	classes := varex.SFlatMap(v, live(ctx, v), func(c featureexpr.Expr, x value.Value) varex.V[*Class] {
		if o, ok := x.(*value.Object); ok {
			cls, _ := o.Class.(*Class)
			return varex.OneIn(c, cls)
		}
		s, _ := value.ToString(x)
		return env.lookupClass(c, s)
	})
	return classes, aborted(v), nil
}

// callStatic evaluates C::m(...), including parent:: and self:: calls
func (env *Env) callStatic(ctx featureexpr.Expr, n *ast.StaticCall) (varex.V[value.Value], error) {
	classes, faults, err := env.classesOf(ctx, n.Class, n.ClassExpr)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.SFlatMapE(classes, ctx, func(c featureexpr.Expr, cls *Class) (varex.V[value.Value], error) {
		return env.invokeStatic(c, cls, n.Class, n.Method, n.Args, n.Pos)
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, faults), nil
}

func (env *Env) invokeStatic(ctx featureexpr.Expr, cls *Class, className, method string, args []ast.Expression, pos ast.Position) (varex.V[value.Value], error) {
	if cls == nil {
		return env.sentinel(ctx, pos, errors.NewRuntimeError(errors.CodeUndefinedClass,
			fmt.Sprintf("Class \"%s\" not found", className))), nil
	}
	fn := cls.findMethod(env.engine.runtime.Intern(method))
	if fn == nil {
		return env.sentinel(ctx, pos, errors.NewRuntimeError(errors.CodeUndefinedMethod,
			fmt.Sprintf("Call to undefined method %s::%s()", cls.name, method))), nil
	}
	// instance methods called from a compatible context keep $this
	var this *value.Object
	if !fn.decl.Static && env.scope.this != nil && env.scope.this.IsA(fn.class.name) {
		this = env.scope.this
	}
	return env.callUser(ctx, fn, args, this, fn.class, pos)
}

// newObject evaluates new C(...)
func (env *Env) newObject(ctx featureexpr.Expr, n *ast.New) (varex.V[value.Value], error) {
	classes, faults, err := env.classesOf(ctx, n.Class, n.ClassExpr)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.SFlatMapE(classes, ctx, func(c featureexpr.Expr, cls *Class) (varex.V[value.Value], error) {
		if cls == nil {
			return env.sentinel(c, n.Pos, errors.NewRuntimeError(errors.CodeUndefinedClass,
				fmt.Sprintf("Class \"%s\" not found", n.Class))), nil
		}
		return env.instantiate(c, cls, n.Args, n.Pos)
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, faults), nil
}

// callVariable evaluates $f(...) where $f holds a closure, a function name,
// a "Class::method" string or an [object, method] pair
func (env *Env) callVariable(ctx featureexpr.Expr, n *ast.CallVar) (varex.V[value.Value], error) {
	callees, err := env.evaluateExpression(ctx, n.Callee)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.SFlatMapE(callees, live(ctx, callees), func(c featureexpr.Expr, callee value.Value) (varex.V[value.Value], error) {
		return env.callValue(c, callee, n.Args, n.Pos)
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, aborted(callees)), nil
}

func (env *Env) callValue(ctx featureexpr.Expr, callee value.Value, args []ast.Expression, pos ast.Position) (varex.V[value.Value], error) {
	switch f := callee.(type) {
	case *value.Closure:
		if fn, ok := f.Fn.(*Function); ok {
			return env.callUser(ctx, fn, args, f.This, fn.class, pos)
		}
	case value.String, *value.StringBuilder:
		name, _ := value.ToString(f)
		if cls, method, ok := strings.Cut(name, "::"); ok {
			classes := env.lookupClass(ctx, cls)
			return varex.SFlatMapE(classes, ctx, func(c featureexpr.Expr, k *Class) (varex.V[value.Value], error) {
				return env.invokeStatic(c, k, cls, method, args, pos)
			})
		}
		return env.callNamed(ctx, nil, name, args, pos)
	case *value.Array:
		if f.Len() == 2 {
			recv, rref, _ := f.Get(value.IntKey(0))
			name, nref, _ := f.Get(value.IntKey(1))
			recvs := cellIn(ctx, recv, rref)
			names := cellIn(ctx, name, nref)
			return varex.ZipE(recvs, names, ctx, func(c featureexpr.Expr, r, m value.Value) (varex.V[value.Value], error) {
				method, _ := value.ToString(m)
				if _, ok := r.(*value.Object); ok {
					return env.invokeMethod(c, r, method, args, pos)
				}
				cls, _ := value.ToString(r)
				return varex.SFlatMapE(env.lookupClass(c, cls), c, func(c featureexpr.Expr, k *Class) (varex.V[value.Value], error) {
					return env.invokeStatic(c, k, cls, method, args, pos)
				})
			})
		}
	}
	return env.sentinel(ctx, pos, errors.NewRuntimeError(errors.CodeNotCallable,
		fmt.Sprintf("Value of type %s is not callable", typeName(callee)))), nil
}

// cellIn returns the content of an array slot within ctx
func cellIn(ctx featureexpr.Expr, v value.Value, ref *value.Var) varex.V[value.Value] {
	if ref != nil {
		return ref.Get(ctx)
	}
	return varex.OneIn(ctx, v)
}
