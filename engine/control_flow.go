package engine

import (
	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/value"
	"quercus/varex"
)

// loopOutcome splits the result of one execution of a loop body into the
// part of ctx that iterates again and the branches that leave the loop.
// Multi-level break and continue signals lose one level on the way out.
func loopOutcome(ctx featureexpr.Expr, r varex.V[value.Value]) (featureexpr.Expr, []varex.Branch[value.Value]) {
	next := r.When(func(v value.Value) bool {
		switch s := v.(type) {
		case nil:
			return true
		case *value.Continue:
			return s.Target <= 1
		}
		return false
	})
	var exits []varex.Branch[value.Value]
	for _, b := range r.Select(ctx.AndNot(next)).Branches() {
		switch s := b.Value.(type) {
		case *value.Break:
			if s.Target <= 1 {
				exits = append(exits, varex.Branch[value.Value]{Cond: b.Cond})
			} else {
				exits = append(exits, varex.Branch[value.Value]{Cond: b.Cond, Value: &value.Break{Target: s.Target - 1}})
			}
		case *value.Continue:
			exits = append(exits, varex.Branch[value.Value]{Cond: b.Cond, Value: &value.Continue{Target: s.Target - 1}})
		default:
			exits = append(exits, b)
		}
	}
	return ctx.And(next), exits
}

// leave assembles the completion of a loop from its exits and the
// configurations still iterating when it ended
func leave(exits []varex.Branch[value.Value], rest featureexpr.Expr) varex.V[value.Value] {
	if rest.IsSatisfiable() {
		exits = append(exits, varex.Branch[value.Value]{Cond: rest})
	}
	return varex.Compact(varex.FromBranches(exits...), func(a, b value.Value) bool { return a == nil && b == nil })
}

// condition evaluates a loop condition within ctx and returns the part of ctx
// where it holds; configurations where it is false or aborted are appended
// to exits
func (env *Env) condition(ctx featureexpr.Expr, expr ast.Expression, exits *[]varex.Branch[value.Value]) (featureexpr.Expr, error) {
	if expr == nil {
		return ctx, nil
	}
	cond, err := env.evaluateExpression(ctx, expr)
	if err != nil {
		return featureexpr.False(), err
	}
	*exits = append(*exits, aborted(cond).Branches()...)
	c := live(ctx, cond)
	truthy := c.And(cond.When(value.ToBool))
	if falsy := c.AndNot(truthy); falsy.IsSatisfiable() {
		*exits = append(*exits, varex.Branch[value.Value]{Cond: falsy})
	}
	return truthy, nil
}

// effects evaluates expressions for their side effects, in order. The result
// excludes configurations that aborted.
func (env *Env) effects(ctx featureexpr.Expr, exprs []ast.Expression, exits *[]varex.Branch[value.Value]) (featureexpr.Expr, error) {
	for _, e := range exprs {
		v, err := env.evaluateExpression(ctx, e)
		if err != nil {
			return featureexpr.False(), err
		}
		*exits = append(*exits, aborted(v).Branches()...)
		ctx = live(ctx, v)
	}
	return ctx, nil
}

// executeWhileStatement runs a while loop until no configuration iterates
func (env *Env) executeWhileStatement(ctx featureexpr.Expr, n *ast.While) (varex.V[value.Value], error) {
	var exits []varex.Branch[value.Value]
	cur := ctx
	for cur.IsSatisfiable() {
		if err := env.tick(n.Pos); err != nil {
			return varex.V[value.Value]{}, err
		}
		truthy, err := env.condition(cur, n.Condition, &exits)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		r, err := env.executeStatement(truthy, n.Body)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		var out []varex.Branch[value.Value]
		cur, out = loopOutcome(truthy, r)
		exits = append(exits, out...)
	}
	return leave(exits, cur), nil
}

// executeDoStatement runs the body once before testing the condition
func (env *Env) executeDoStatement(ctx featureexpr.Expr, n *ast.Do) (varex.V[value.Value], error) {
	var exits []varex.Branch[value.Value]
	cur := ctx
	for cur.IsSatisfiable() {
		if err := env.tick(n.Pos); err != nil {
			return varex.V[value.Value]{}, err
		}
		r, err := env.executeStatement(cur, n.Body)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		next, out := loopOutcome(cur, r)
		exits = append(exits, out...)
		if cur, err = env.condition(next, n.Condition, &exits); err != nil {
			return varex.V[value.Value]{}, err
		}
	}
	return leave(exits, cur), nil
}

// executeForStatement runs a for loop; the step expressions run after the
// body, including for configurations that continued
func (env *Env) executeForStatement(ctx featureexpr.Expr, n *ast.For) (varex.V[value.Value], error) {
	var exits []varex.Branch[value.Value]
	cur, err := env.effects(ctx, n.Init, &exits)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	for cur.IsSatisfiable() {
		if err := env.tick(n.Pos); err != nil {
			return varex.V[value.Value]{}, err
		}
		truthy, err := env.condition(cur, n.Condition, &exits)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		r, err := env.executeStatement(truthy, n.Body)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		next, out := loopOutcome(truthy, r)
		exits = append(exits, out...)
		if cur, err = env.effects(next, n.Step, &exits); err != nil {
			return varex.V[value.Value]{}, err
		}
	}
	return leave(exits, cur), nil
}

// element is one entry of an iteration snapshot; ref is set for reference
// entries, whose value is read when the iteration reaches them
type element struct {
	key value.Value
	val value.Value
	ref *value.Var
}

func (e element) value(ctx featureexpr.Expr) varex.V[value.Value] {
	if e.ref != nil {
		return e.ref.Get(ctx)
	}
	return varex.OneIn(ctx, e.val)
}

// executeForeachStatement iterates an array or the fields of an object
func (env *Env) executeForeachStatement(ctx featureexpr.Expr, n *ast.Foreach) (varex.V[value.Value], error) {
	if n.ByRef {
		return env.foreachByRef(ctx, n)
	}
	subj, err := env.evaluateExpression(ctx, n.Subject)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.SFlatMapE(subj, live(ctx, subj), func(c featureexpr.Expr, s value.Value) (varex.V[value.Value], error) {
		elems, ok := env.snapshot(c, s, n.Pos)
		if !ok {
			return fallThrough(c), nil
		}
		return env.iterate(c, n, elems)
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, aborted(subj)), nil
}

// snapshot lists the entries a by-value foreach visits. The array is copied
// so writes in the body do not change the iteration.
func (env *Env) snapshot(c featureexpr.Expr, s value.Value, pos ast.Position) ([]element, bool) {
	var elems []element
	switch x := s.(type) {
	case *value.Array:
		x.Copy().Each(func(k value.Key, v value.Value, ref *value.Var) bool {
			elems = append(elems, element{key: k.Value(), val: v, ref: ref})
			return true
		})
	case *value.Object:
		for _, name := range x.FieldNames() {
			r, _ := x.Field(name)
			elems = append(elems, element{key: value.Str(name), ref: r})
		}
	default:
		env.warn(c, pos, errors.NewWarning(errors.CodeConversion,
			"foreach() argument must be of type array|object, "+typeName(s)+" given"))
		return nil, false
	}
	return elems, true
}

// iterate runs the body of a by-value foreach once per element
func (env *Env) iterate(ctx featureexpr.Expr, n *ast.Foreach, elems []element) (varex.V[value.Value], error) {
	var exits []varex.Branch[value.Value]
	cur := ctx
	for _, e := range elems {
		if !cur.IsSatisfiable() {
			break
		}
		if err := env.tick(n.Pos); err != nil {
			return varex.V[value.Value]{}, err
		}
		c, err := env.bindLoopVars(cur, n, e.key, e.value(cur), &exits)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		r, err := env.executeStatement(c, n.Body)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		var out []varex.Branch[value.Value]
		cur, out = loopOutcome(c, r)
		exits = append(exits, out...)
	}
	return leave(exits, cur), nil
}

// bindLoopVars assigns the key and value of an iteration. It returns the part
// of ctx that did not abort.
func (env *Env) bindLoopVars(ctx featureexpr.Expr, n *ast.Foreach, key value.Value, val varex.V[value.Value], exits *[]varex.Branch[value.Value]) (featureexpr.Expr, error) {
	if n.Key != nil {
		st, err := env.modifyLValue(ctx, n.Key, func(c featureexpr.Expr, _ value.Value) (varex.V[value.Value], error) {
			return varex.OneIn(c, key), nil
		})
		if err != nil {
			return featureexpr.False(), err
		}
		*exits = append(*exits, aborted(st).Branches()...)
		ctx = live(ctx, st)
	}
	if n.Value == nil || val.IsEmpty() {
		return ctx, nil
	}
	st, err := env.modifyLValue(ctx, n.Value, func(c featureexpr.Expr, _ value.Value) (varex.V[value.Value], error) {
		return varex.Map(val.Select(c), storable), nil
	})
	if err != nil {
		return featureexpr.False(), err
	}
	*exits = append(*exits, aborted(st).Branches()...)
	return live(ctx, st), nil
}

// foreachByRef iterates the subject in place, binding the value target to
// each element. Keys are taken from the subject when the loop starts; keys
// removed by the body are skipped.
func (env *Env) foreachByRef(ctx featureexpr.Expr, n *ast.Foreach) (varex.V[value.Value], error) {
	refs, faults, err := env.evaluateRef(ctx, n.Subject)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.SFlatMapE(refs, ctx.AndNot(faults.Cond()), func(c featureexpr.Expr, r *value.Var) (varex.V[value.Value], error) {
		return varex.SFlatMapE(r.Get(c), c, func(c featureexpr.Expr, s value.Value) (varex.V[value.Value], error) {
			switch x := s.(type) {
			case *value.Array:
				keys := make([]value.Value, 0, x.Len())
				for _, k := range x.Keys() {
					keys = append(keys, k.Value())
				}
				return env.iterateRef(c, n, keys, func(c featureexpr.Expr, k value.Value) (varex.V[*value.Var], error) {
					return env.elementRef(c, r, k)
				})
			case *value.Object:
				names := x.FieldNames()
				keys := make([]value.Value, len(names))
				for i, name := range names {
					keys[i] = value.Str(name)
				}
				return env.iterateRef(c, n, keys, func(c featureexpr.Expr, k value.Value) (varex.V[*value.Var], error) {
					name, _ := value.ToString(k)
					if f, ok := x.Field(name); ok {
						return varex.OneIn(c, f), nil
					}
					return varex.V[*value.Var]{}, nil
				})
			}
			env.warn(c, n.Pos, errors.NewWarning(errors.CodeConversion,
				"foreach() argument must be of type array|object, "+typeName(s)+" given"))
			return fallThrough(c), nil
		})
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, faults), nil
}

// elementRef turns the entry k of the array held by r into a reference slot
// and returns it for the configurations where the entry still exists
func (env *Env) elementRef(ctx featureexpr.Expr, r *value.Var, k value.Value) (varex.V[*value.Var], error) {
	key, _ := value.ToKey(k)
	var out []varex.Branch[*value.Var]
	err := r.Update(ctx, func(c featureexpr.Expr, cur value.Value) (varex.V[value.Value], error) {
		arr, ok := cur.(*value.Array)
		if !ok || !arr.Has(key) {
			return varex.OneIn(c, cur), nil
		}
		arr.Detach()
		out = append(out, varex.Branch[*value.Var]{Cond: c, Value: arr.RefAt(key, value.NULL)})
		return varex.OneIn(c, cur), nil
	})
	return varex.FromBranches(out...), err
}

// iterateRef runs the body of a by-reference foreach once per key
func (env *Env) iterateRef(ctx featureexpr.Expr, n *ast.Foreach, keys []value.Value, resolve func(featureexpr.Expr, value.Value) (varex.V[*value.Var], error)) (varex.V[value.Value], error) {
	var exits []varex.Branch[value.Value]
	cur := ctx
	for _, k := range keys {
		if !cur.IsSatisfiable() {
			break
		}
		if err := env.tick(n.Pos); err != nil {
			return varex.V[value.Value]{}, err
		}
		refs, err := resolve(cur, k)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		found := refs.Cond()
		if !found.IsSatisfiable() {
			continue
		}
		c, err := env.bindLoopVars(found, n, k, varex.V[value.Value]{}, &exits)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		st, err := env.bindRef(c, n.Value, refs)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		exits = append(exits, aborted(st).Branches()...)
		c = live(c, st)
		r, err := env.executeStatement(c, n.Body)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		next, out := loopOutcome(c, r)
		exits = append(exits, out...)
		cur = cur.AndNot(found).Or(next)
	}
	return leave(exits, cur), nil
}
