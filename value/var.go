package value

import (
	"quercus/featureexpr"
	"quercus/varex"
)

// Var is a reference cell: the storage of one PHP variable or reference.
// Its content may differ between configurations.
type Var struct {
	v varex.V[Value]
}

// NewVar creates a cell holding x in every configuration. x is stored as is.
func NewVar(x Value) *Var {
	return &Var{v: varex.One(x)}
}

// NewVarIn creates a cell holding x in ctx and unset elsewhere
func NewVarIn(ctx featureexpr.Expr, x Value) *Var {
	if ctx.IsTautology() {
		return NewVar(x)
	}
	return &Var{v: varex.FromBranches(
		varex.Branch[Value]{Cond: ctx, Value: x},
		varex.Branch[Value]{Cond: ctx.Not(), Value: UNSET},
	)}
}

// Get returns the content of the cell within ctx
func (x *Var) Get(ctx featureexpr.Expr) varex.V[Value] {
	return x.v.Select(ctx)
}

// All returns the content in every configuration
func (x *Var) All() varex.V[Value] { return x.v }

// Snapshot returns the value held in cfg
func (x *Var) Snapshot(cfg featureexpr.Configuration) Value {
	v, ok := x.v.Get(cfg)
	if !ok {
		return UNSET
	}
	return v
}

// Set stores nv within ctx, keeping the old content outside. Stored values are
// copied.
func (x *Var) Set(ctx featureexpr.Expr, nv varex.V[Value]) {
	x.v = varex.Compact(varex.Choice(ctx, varex.Map(nv, Copy), x.v), Identical)
}

// SetOne stores a single value within ctx
func (x *Var) SetOne(ctx featureexpr.Expr, nv Value) {
	x.Set(ctx, varex.OneIn(ctx, nv))
}

// Update replaces the content within ctx by f applied to each current branch.
// f receives a value it may mutate in place: arrays and builders that are
// also visible outside ctx are detached before f sees them. The values f
// returns are stored without copying.
func (x *Var) Update(ctx featureexpr.Expr, f func(c featureexpr.Expr, cur Value) (varex.V[Value], error)) error {
	var out []varex.Branch[Value]
	for _, b := range x.v.Branches() {
		c := b.Cond.And(ctx)
		if !c.IsSatisfiable() {
			continue
		}
		cur := b.Value
		if !b.Cond.Entails(ctx) {
			cur = detach(cur)
		}
		r, err := f(c, cur)
		if err != nil {
			return err
		}
		for _, rb := range r.Select(c).Branches() {
			out = append(out, rb)
		}
	}
	x.v = varex.Compact(varex.Choice(ctx, varex.FromBranches(out...), x.v), Identical)
	return nil
}

func detach(v Value) Value {
	switch x := v.(type) {
	case *Array:
		return x.Copy()
	case *StringBuilder:
		b := NewStringBuilder(string(x.buf))
		b.unicode = x.unicode
		return b
	}
	return v
}

// EnvVar is a variable slot of a scope. It is bound to a Var per
// configuration: plain assignment writes through the bound Var, reference
// assignment rebinds the slot.
type EnvVar struct {
	refs varex.V[*Var]
}

// NewEnvVar creates a slot bound to v everywhere
func NewEnvVar(v *Var) *EnvVar {
	return &EnvVar{refs: varex.One(v)}
}

// Refs returns the Vars bound within ctx
func (e *EnvVar) Refs(ctx featureexpr.Expr) varex.V[*Var] {
	return e.refs.Select(ctx)
}

// Get returns the value of the slot within ctx
func (e *EnvVar) Get(ctx featureexpr.Expr) varex.V[Value] {
	return varex.SFlatMap(e.refs, ctx, func(c featureexpr.Expr, r *Var) varex.V[Value] {
		return r.Get(c)
	})
}

// Set assigns nv through the bound Vars within ctx
func (e *EnvVar) Set(ctx featureexpr.Expr, nv varex.V[Value]) {
	varex.SForEach(e.refs, ctx, func(c featureexpr.Expr, r *Var) {
		r.Set(c, nv.Select(c))
	})
}

// Update applies Var.Update to every bound Var within ctx
func (e *EnvVar) Update(ctx featureexpr.Expr, f func(c featureexpr.Expr, cur Value) (varex.V[Value], error)) error {
	return varex.SForEachE(e.refs, ctx, func(c featureexpr.Expr, r *Var) error {
		return r.Update(c, f)
	})
}

// BindRef binds the slot to refs within ctx
func (e *EnvVar) BindRef(ctx featureexpr.Expr, refs varex.V[*Var]) {
	e.refs = varex.CompactComparable(varex.Choice(ctx, refs, e.refs))
}
