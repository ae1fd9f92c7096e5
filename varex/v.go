// Package varex provides V, a value that may differ between feature
// configurations, represented as disjoint (condition, value) branches.
package varex

import (
	"fmt"
	"strings"

	"quercus/featureexpr"
)

// Branch is one alternative of a V: Value holds in the configurations of Cond
type Branch[T any] struct {
	Cond  featureexpr.Expr
	Value T
}

// V is a variational value. Branch conditions are pairwise disjoint and, within
// the context the V was produced in, cover every configuration exactly once.
// A V is immutable; every combinator returns a new one.
type V[T any] struct {
	branches []Branch[T]
}

// One returns a V holding x in every configuration
func One[T any](x T) V[T] {
	return V[T]{branches: []Branch[T]{{Cond: featureexpr.True(), Value: x}}}
}

// OneIn returns a V holding x exactly in ctx
func OneIn[T any](ctx featureexpr.Expr, x T) V[T] {
	if !ctx.IsSatisfiable() {
		return V[T]{}
	}
	return V[T]{branches: []Branch[T]{{Cond: ctx, Value: x}}}
}

// FromBranches builds a V from raw branches, dropping unsatisfiable ones.
// Callers guarantee disjointness.
func FromBranches[T any](branches ...Branch[T]) V[T] {
	out := make([]Branch[T], 0, len(branches))
	for _, b := range branches {
		if b.Cond.IsSatisfiable() {
			out = append(out, b)
		}
	}
	return V[T]{branches: out}
}

// Branches returns the branches of v. The slice must not be modified.
func (v V[T]) Branches() []Branch[T] { return v.branches }

// Len returns the number of branches
func (v V[T]) Len() int { return len(v.branches) }

// IsEmpty reports whether v covers no configuration
func (v V[T]) IsEmpty() bool { return len(v.branches) == 0 }

// IsOne reports whether v has a single alternative
func (v V[T]) IsOne() bool { return len(v.branches) == 1 }

// GetOne returns the value of the first branch, or the zero value of an empty V.
// It is meant for values known to be invariant.
func (v V[T]) GetOne() T {
	if len(v.branches) == 0 {
		var zero T
		return zero
	}
	return v.branches[0].Value
}

// Get returns the value active in cfg
func (v V[T]) Get(cfg featureexpr.Configuration) (T, bool) {
	for _, b := range v.branches {
		if b.Cond.Eval(cfg) {
			return b.Value, true
		}
	}
	var zero T
	return zero, false
}

// Cond returns the set of configurations v covers
func (v V[T]) Cond() featureexpr.Expr {
	c := featureexpr.False()
	for _, b := range v.branches {
		c = c.Or(b.Cond)
	}
	return c
}

// When returns the configurations in which pred holds for the active value
func (v V[T]) When(pred func(T) bool) featureexpr.Expr {
	c := featureexpr.False()
	for _, b := range v.branches {
		if pred(b.Value) {
			c = c.Or(b.Cond)
		}
	}
	return c
}

// Select restricts v to ctx, pruning branches that become unsatisfiable
func (v V[T]) Select(ctx featureexpr.Expr) V[T] {
	if ctx.IsTautology() {
		return v
	}
	out := make([]Branch[T], 0, len(v.branches))
	for _, b := range v.branches {
		c := b.Cond.And(ctx)
		if c.IsSatisfiable() {
			out = append(out, Branch[T]{Cond: c, Value: b.Value})
		}
	}
	return V[T]{branches: out}
}

// String renders v as the single value or as CHOICE(cond: value, ...)
func (v V[T]) String() string {
	if len(v.branches) == 1 && v.branches[0].Cond.IsTautology() {
		return fmt.Sprint(v.branches[0].Value)
	}
	parts := make([]string, len(v.branches))
	for i, b := range v.branches {
		parts[i] = fmt.Sprintf("%s: %v", b.Cond, b.Value)
	}
	return "CHOICE(" + strings.Join(parts, "; ") + ")"
}
