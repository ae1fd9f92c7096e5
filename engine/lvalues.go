package engine

import (
	"fmt"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/value"
	"quercus/varex"
)

// updater computes the new content of a storage location from its current
// content within c. The values it returns are stored as they are.
type updater func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error)

func notNil(v value.Value) bool { return v != nil }

// failed returns the branches of a status that did not complete
func failed(st varex.V[value.Value]) varex.V[value.Value] {
	return st.Select(st.When(notNil))
}

// succeeded returns the part of ctx in which a status completed
func succeeded(ctx featureexpr.Expr, st varex.V[value.Value]) featureexpr.Expr {
	return ctx.AndNot(st.When(notNil))
}

func completed(ctx featureexpr.Expr) varex.V[value.Value] {
	return varex.OneIn[value.Value](ctx, nil)
}

// perBranch applies f to cur for every branch of v within c. When v splits c,
// each branch works on its own copy of cur.
func perBranch[T any](v varex.V[T], c featureexpr.Expr, cur value.Value, f func(featureexpr.Expr, value.Value, T) (varex.V[value.Value], error)) (varex.V[value.Value], error) {
	sel := v.Select(c)
	shared := sel.Len() > 1
	return varex.SFlatMapE(sel, c, func(c featureexpr.Expr, x T) (varex.V[value.Value], error) {
		if shared {
			return f(c, value.Copy(cur), x)
		}
		return f(c, cur, x)
	})
}

// key converts an index to an array key. Arrays and objects are illegal offsets.
func (env *Env) key(c featureexpr.Expr, pos ast.Position, idx value.Value) (value.Key, bool) {
	switch idx.(type) {
	case *value.Array, *value.Object, *value.Closure:
		env.warn(c, pos, errors.NewWarning(errors.CodeConversion, "Illegal offset type "+typeName(idx)))
		return value.Key{}, false
	}
	k, w := value.ToKey(idx)
	env.warn(c, pos, w)
	return k, true
}

// arrayFor returns the array a write through cur goes to, creating one for
// null and unset bases. Other bases yield a nil array and the failure status.
func (env *Env) arrayFor(c featureexpr.Expr, cur value.Value, pos ast.Position) (*value.Array, varex.V[value.Value]) {
	switch b := cur.(type) {
	case *value.Array:
		b.Detach()
		return b, varex.V[value.Value]{}
	case nil, value.Null, value.Unset, *value.ErrorValue:
		return value.NewArray(), varex.V[value.Value]{}
	case value.Bool:
		if !b {
			return value.NewArray(), varex.V[value.Value]{}
		}
	case *value.Object:
		return nil, env.fault(c, pos, errors.NewRuntimeError(errors.CodeInvalidTarget,
			fmt.Sprintf("Cannot use object of type %s as array", b.ClassName())))
	case value.String, *value.StringBuilder:
		return nil, env.sentinel(c, pos, errors.NewWarning(errors.CodeScalarAsArray,
			"String offsets cannot be written by reference or appended to"))
	}
	return nil, env.sentinel(c, pos, errors.NewWarning(errors.CodeScalarAsArray, "Cannot use a scalar value as an array"))
}

// modifyLValue applies f to the location denoted by target within ctx. The
// returned status is nil where the update happened; elsewhere it holds the
// warning value or abort that took its place.
func (env *Env) modifyLValue(ctx featureexpr.Expr, target ast.Expression, f updater) (varex.V[value.Value], error) {
	if !ctx.IsSatisfiable() {
		return varex.V[value.Value]{}, nil
	}
	switch n := target.(type) {
	case *ast.Variable:
		if err := env.scope.lookup(n.Name).Update(ctx, f); err != nil {
			return varex.V[value.Value]{}, err
		}
		return completed(ctx), nil

	case *ast.ArrayGet:
		idx, err := env.evaluateExpression(ctx, n.Index)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		var status []varex.Branch[value.Value]
		st, err := env.modifyLValue(live(ctx, idx), n.Array, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
			return perBranch(idx, c, cur, func(c featureexpr.Expr, cur value.Value, k value.Value) (varex.V[value.Value], error) {
				nv, s, err := env.writeIndex(c, cur, k, f, n.Pos)
				status = append(status, s.Branches()...)
				return nv, err
			})
		})
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		return collect(failed(st), varex.FromBranches(status...), aborted(idx)), nil

	case *ast.ArrayTail:
		var status []varex.Branch[value.Value]
		st, err := env.modifyLValue(ctx, n.Array, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
			nv, s, err := env.writeTail(c, cur, f, n.Pos)
			status = append(status, s.Branches()...)
			return nv, err
		})
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		return collect(failed(st), varex.FromBranches(status...)), nil

	case *ast.FieldGet:
		objs, err := env.evaluateExpression(ctx, n.Object)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		st, err := varex.SFlatMapE(objs, live(ctx, objs), func(c featureexpr.Expr, o value.Value) (varex.V[value.Value], error) {
			obj, isObj := o.(*value.Object)
			if !isObj {
				return env.fault(c, n.Pos, errors.NewRuntimeError(errors.CodeNotAnObject,
					fmt.Sprintf("Attempt to assign property \"%s\" on %s", n.Field, typeName(o)))), nil
			}
			if err := obj.FieldVar(n.Field).Update(c, f); err != nil {
				return varex.V[value.Value]{}, err
			}
			return completed(c), nil
		})
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		return collect(st, aborted(objs)), nil
	}
	return env.fault(ctx, target.Position(), errors.NewRuntimeError(errors.CodeInvalidTarget,
		fmt.Sprintf("Cannot assign to %s", target.String()))), nil
}

// writeIndex applies f to the element k of the array in cur
func (env *Env) writeIndex(c featureexpr.Expr, cur, k value.Value, f updater, pos ast.Position) (varex.V[value.Value], varex.V[value.Value], error) {
	arr, st := env.arrayFor(c, cur, pos)
	if arr == nil {
		return varex.OneIn(c, cur), st, nil
	}
	key, valid := env.key(c, pos, k)
	if !valid {
		return varex.OneIn(c, cur), varex.OneIn(c, value.Value(value.NULL)), nil
	}
	old, ref, _ := arr.Get(key)
	if ref != nil {
		if err := ref.Update(c, f); err != nil {
			return varex.V[value.Value]{}, varex.V[value.Value]{}, err
		}
		return varex.OneIn(c, value.Value(arr)), completed(c), nil
	}
	nv, err := f(c, old)
	if err != nil {
		return varex.V[value.Value]{}, varex.V[value.Value]{}, err
	}
	if nv.Len() <= 1 {
		if nv.Len() == 1 {
			arr.Set(key, nv.GetOne())
		}
		return varex.OneIn(c, value.Value(arr)), completed(c), nil
	}
	return varex.SMap(nv, c, func(_ featureexpr.Expr, x value.Value) value.Value {
		a := arr.Copy()
		a.Set(key, x)
		return a
	}), completed(c), nil
}

// writeTail appends the result of f to the array in cur
func (env *Env) writeTail(c featureexpr.Expr, cur value.Value, f updater, pos ast.Position) (varex.V[value.Value], varex.V[value.Value], error) {
	arr, st := env.arrayFor(c, cur, pos)
	if arr == nil {
		return varex.OneIn(c, cur), st, nil
	}
	nv, err := f(c, value.UNSET)
	if err != nil {
		return varex.V[value.Value]{}, varex.V[value.Value]{}, err
	}
	var status []varex.Branch[value.Value]
	out := varex.SMap(nv, c, func(c featureexpr.Expr, x value.Value) value.Value {
		a := arr
		if nv.Len() > 1 {
			a = arr.Copy()
		}
		if _, appended := a.Append(x); !appended {
			status = append(status, env.sentinel(c, pos, errors.NewWarning(errors.CodeInvalidTarget,
				"Cannot add element to the array as the next element is already occupied")).Branches()...)
			return a
		}
		status = append(status, completed(c).Branches()...)
		return a
	})
	return out, varex.FromBranches(status...), nil
}

// evaluateRef evaluates expr as a reference, creating the variable, element or
// field when missing. Expressions that are not locations yield temporaries.
// The second result holds the configurations that aborted.
func (env *Env) evaluateRef(ctx featureexpr.Expr, expr ast.Expression) (varex.V[*value.Var], varex.V[value.Value], error) {
	if !ctx.IsSatisfiable() {
		return varex.V[*value.Var]{}, varex.V[value.Value]{}, nil
	}
	var refs []varex.Branch[*value.Var]
	var status []varex.Branch[value.Value]
	// bind records the reference produced in c
	bind := func(c featureexpr.Expr, r *value.Var) {
		refs = append(refs, varex.Branch[*value.Var]{Cond: c, Value: r})
	}
	// settle gives configurations that failed without aborting a temporary
	settle := func(st varex.V[value.Value]) varex.V[value.Value] {
		for _, b := range failed(st).Branches() {
			if !isAbort(b.Value) {
				bind(b.Cond, value.NewVar(value.NULL))
			}
		}
		return aborted(st)
	}

	switch n := expr.(type) {
	case *ast.Variable:
		return env.scope.lookup(n.Name).Refs(ctx), varex.V[value.Value]{}, nil

	case *ast.ArrayGet:
		idx, err := env.evaluateExpression(ctx, n.Index)
		if err != nil {
			return varex.V[*value.Var]{}, varex.V[value.Value]{}, err
		}
		st, err := env.modifyLValue(live(ctx, idx), n.Array, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
			return perBranch(idx, c, cur, func(c featureexpr.Expr, cur value.Value, k value.Value) (varex.V[value.Value], error) {
				arr, s := env.arrayFor(c, cur, n.Pos)
				if arr == nil {
					status = append(status, s.Branches()...)
					return varex.OneIn(c, cur), nil
				}
				key, valid := env.key(c, n.Pos, k)
				if !valid {
					bind(c, value.NewVar(value.NULL))
					return varex.OneIn(c, cur), nil
				}
				bind(c, arr.RefAt(key, value.NULL))
				return varex.OneIn(c, value.Value(arr)), nil
			})
		})
		if err != nil {
			return varex.V[*value.Var]{}, varex.V[value.Value]{}, err
		}
		faults := collect(settle(st), settle(varex.FromBranches(status...)), aborted(idx))
		return varex.FromBranches(refs...), faults, nil

	case *ast.ArrayTail:
		st, err := env.modifyLValue(ctx, n.Array, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
			arr, s := env.arrayFor(c, cur, n.Pos)
			if arr == nil {
				status = append(status, s.Branches()...)
				return varex.OneIn(c, cur), nil
			}
			r := value.NewVar(value.NULL)
			if _, appended := arr.AppendRef(r); !appended {
				env.warn(c, n.Pos, errors.NewWarning(errors.CodeInvalidTarget,
					"Cannot add element to the array as the next element is already occupied"))
			}
			bind(c, r)
			return varex.OneIn(c, value.Value(arr)), nil
		})
		if err != nil {
			return varex.V[*value.Var]{}, varex.V[value.Value]{}, err
		}
		faults := collect(settle(st), settle(varex.FromBranches(status...)))
		return varex.FromBranches(refs...), faults, nil

	case *ast.FieldGet:
		objs, err := env.evaluateExpression(ctx, n.Object)
		if err != nil {
			return varex.V[*value.Var]{}, varex.V[value.Value]{}, err
		}
		st := varex.SFlatMap(objs, live(ctx, objs), func(c featureexpr.Expr, o value.Value) varex.V[value.Value] {
			obj, isObj := o.(*value.Object)
			if !isObj {
				return env.fault(c, n.Pos, errors.NewRuntimeError(errors.CodeNotAnObject,
					fmt.Sprintf("Cannot reference property \"%s\" on %s", n.Field, typeName(o))))
			}
			bind(c, obj.FieldVar(n.Field))
			return completed(c)
		})
		return varex.FromBranches(refs...), collect(settle(st), aborted(objs)), nil
	}

	v, err := env.evaluateExpression(ctx, expr)
	if err != nil {
		return varex.V[*value.Var]{}, varex.V[value.Value]{}, err
	}
	temps := varex.SMap(v, live(ctx, v), func(_ featureexpr.Expr, x value.Value) *value.Var {
		return value.NewVar(storable(x))
	})
	return temps, aborted(v), nil
}

// binding pairs an array key with the reference bound to it
type binding struct {
	key value.Value
	ref *value.Var
}

// bindRef makes target an alias of refs within ctx and returns the status
func (env *Env) bindRef(ctx featureexpr.Expr, target ast.Expression, refs varex.V[*value.Var]) (varex.V[value.Value], error) {
	if !ctx.IsSatisfiable() {
		return varex.V[value.Value]{}, nil
	}
	var status []varex.Branch[value.Value]
	switch n := target.(type) {
	case *ast.Variable:
		env.scope.lookup(n.Name).BindRef(ctx, refs)
		return completed(ctx), nil

	case *ast.ArrayGet:
		idx, err := env.evaluateExpression(ctx, n.Index)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		c := live(ctx, idx)
		pairs := varex.Zip(idx, refs, c, func(_ featureexpr.Expr, k value.Value, r *value.Var) binding {
			return binding{key: k, ref: r}
		})
		st, err := env.modifyLValue(c, n.Array, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
			return perBranch(pairs, c, cur, func(c featureexpr.Expr, cur value.Value, b binding) (varex.V[value.Value], error) {
				arr, s := env.arrayFor(c, cur, n.Pos)
				if arr == nil {
					status = append(status, s.Branches()...)
					return varex.OneIn(c, cur), nil
				}
				key, valid := env.key(c, n.Pos, b.key)
				if !valid {
					status = append(status, varex.Branch[value.Value]{Cond: c, Value: value.NULL})
					return varex.OneIn(c, cur), nil
				}
				arr.BindRef(key, b.ref)
				status = append(status, completed(c).Branches()...)
				return varex.OneIn(c, value.Value(arr)), nil
			})
		})
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		return collect(failed(st), varex.FromBranches(status...), aborted(idx)), nil

	case *ast.ArrayTail:
		st, err := env.modifyLValue(ctx, n.Array, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
			return perBranch(refs, c, cur, func(c featureexpr.Expr, cur value.Value, r *value.Var) (varex.V[value.Value], error) {
				arr, s := env.arrayFor(c, cur, n.Pos)
				if arr == nil {
					status = append(status, s.Branches()...)
					return varex.OneIn(c, cur), nil
				}
				arr.AppendRef(r)
				status = append(status, completed(c).Branches()...)
				return varex.OneIn(c, value.Value(arr)), nil
			})
		})
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		return collect(failed(st), varex.FromBranches(status...)), nil

	case *ast.FieldGet:
		objs, err := env.evaluateExpression(ctx, n.Object)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		st := varex.SFlatMap(objs, live(ctx, objs), func(c featureexpr.Expr, o value.Value) varex.V[value.Value] {
			obj, isObj := o.(*value.Object)
			if !isObj {
				return env.fault(c, n.Pos, errors.NewRuntimeError(errors.CodeNotAnObject,
					fmt.Sprintf("Cannot assign by reference to property \"%s\" on %s", n.Field, typeName(o))))
			}
			// field cells are shared by every configuration
			r := refs.Select(c)
			if !c.Equivalent(env.root) || !r.IsOne() {
				return env.fault(c, n.Pos, errors.NewRuntimeError(errors.CodeInvalidTarget,
					fmt.Sprintf("Cannot bind property \"%s\" by reference in part of the configurations", n.Field)))
			}
			obj.BindField(n.Field, r.GetOne())
			return completed(c)
		})
		return collect(st, aborted(objs)), nil
	}
	return env.fault(ctx, target.Position(), errors.NewRuntimeError(errors.CodeInvalidTarget,
		fmt.Sprintf("Cannot assign reference to %s", target.String()))), nil
}

// assign evaluates =, compound assignments and ??=. The right side is
// evaluated before the target location.
func (env *Env) assign(ctx featureexpr.Expr, n *ast.Assign) (varex.V[value.Value], error) {
	switch n.Op {
	case "":
	case "??":
		return env.assignCoalesce(ctx, n)
	default:
		return env.compoundAssign(ctx, n)
	}
	rhs, err := env.evaluateExpression(ctx, n.Value)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, rhs)
	st, err := env.modifyLValue(c, n.Target, func(c featureexpr.Expr, _ value.Value) (varex.V[value.Value], error) {
		return varex.Map(rhs.Select(c), storable), nil
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(rhs.Select(succeeded(c, st)), failed(st), aborted(rhs)), nil
}

func (env *Env) compoundAssign(ctx featureexpr.Expr, n *ast.Assign) (varex.V[value.Value], error) {
	rhs, err := env.evaluateExpression(ctx, n.Value)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, rhs)
	var results []varex.Branch[value.Value]
	st, err := env.modifyLValue(c, n.Target, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
		r := rhs.Select(c)
		inPlace := r.IsOne()
		return varex.SFlatMapE(r, c, func(c featureexpr.Expr, x value.Value) (varex.V[value.Value], error) {
			nv, err := env.applyCompound(c, n.Op, cur, x, inPlace, n.Pos)
			if err != nil {
				return varex.V[value.Value]{}, err
			}
			results = append(results, nv.Branches()...)
			return nv, nil
		})
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(varex.FromBranches(results...), failed(st), aborted(rhs)), nil
}

// applyCompound computes cur op x. Concatenation grows a string builder in
// place when the target is not split by x.
func (env *Env) applyCompound(c featureexpr.Expr, op string, cur, x value.Value, inPlace bool, pos ast.Position) (varex.V[value.Value], error) {
	if _, unset := cur.(value.Unset); unset {
		cur = value.NULL
	}
	if op == "." {
		s, w := value.ToString(x)
		env.warn(c, pos, w)
		if b, isBuilder := cur.(*value.StringBuilder); isBuilder && inPlace {
			return varex.OneIn(c, value.Value(b.Append(s))), nil
		}
		prefix, w := value.ToString(cur)
		env.warn(c, pos, w)
		return varex.OneIn(c, value.Value(value.NewStringBuilder(prefix).Append(s))), nil
	}
	fn, found := arithmetic[op]
	if !found {
		return varex.V[value.Value]{}, env.fatal(errors.NewFatalError(errors.CodeUnsupported,
			fmt.Sprintf("unsupported assignment operator %s=", op)).WithLocation(pos))
	}
	r, ws := fn(cur, x)
	env.warnAll(c, pos, ws)
	return varex.OneIn(c, r), nil
}

// assignCoalesce evaluates $x ??= v: the assignment happens only where the
// target is null or unset
func (env *Env) assignCoalesce(ctx featureexpr.Expr, n *ast.Assign) (varex.V[value.Value], error) {
	env.quiet++
	cur, err := env.evaluateExpression(ctx, n.Target)
	env.quiet--
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, cur)
	set := c.And(cur.When(func(v value.Value) bool { return !value.IsNullish(v) }))
	res, err := env.assign(c.AndNot(set), &ast.Assign{Target: n.Target, Value: n.Value, Pos: n.Pos})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(cur.Select(set), res, aborted(cur)), nil
}

// increment evaluates ++ and --; the prefix forms yield the new value
func (env *Env) increment(ctx featureexpr.Expr, n *ast.Increment) (varex.V[value.Value], error) {
	var results []varex.Branch[value.Value]
	st, err := env.modifyLValue(ctx, n.Target, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
		if _, unset := cur.(value.Unset); unset {
			if v, isVar := n.Target.(*ast.Variable); isVar {
				env.warn(c, n.Pos, errors.NewWarning(errors.CodeUndefinedVar, "Undefined variable $"+v.Name))
			}
			cur = value.NULL
		}
		var nv value.Value
		var ws value.Warnings
		if n.Delta >= 0 {
			nv, ws = value.Increment(cur)
		} else {
			nv, ws = value.Decrement(cur)
		}
		env.warnAll(c, n.Pos, ws)
		res := nv
		if !n.Prefix {
			res = value.Copy(cur)
		}
		results = append(results, varex.Branch[value.Value]{Cond: c, Value: res})
		return varex.OneIn(c, nv), nil
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(varex.FromBranches(results...), failed(st)), nil
}

// assignRef evaluates $a = &$b
func (env *Env) assignRef(ctx featureexpr.Expr, n *ast.AssignRef) (varex.V[value.Value], error) {
	refs, faults, err := env.evaluateRef(ctx, n.Source)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := ctx.AndNot(faults.Cond())
	st, err := env.bindRef(c, n.Target, refs)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	vals := varex.SFlatMap(refs, succeeded(c, st), func(c featureexpr.Expr, r *value.Var) varex.V[value.Value] {
		return r.Get(c)
	})
	return collect(vals, failed(st), faults), nil
}
