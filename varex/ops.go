package varex

import (
	"quercus/featureexpr"
)

// Map applies f to every branch value; conditions are unchanged
func Map[T, U any](v V[T], f func(T) U) V[U] {
	out := make([]Branch[U], len(v.branches))
	for i, b := range v.branches {
		out[i] = Branch[U]{Cond: b.Cond, Value: f(b.Value)}
	}
	return V[U]{branches: out}
}

// SMap applies f to every branch satisfiable under ctx, passing the refined context
func SMap[T, U any](v V[T], ctx featureexpr.Expr, f func(featureexpr.Expr, T) U) V[U] {
	out := make([]Branch[U], 0, len(v.branches))
	for _, b := range v.branches {
		c := b.Cond.And(ctx)
		if !c.IsSatisfiable() {
			continue
		}
		out = append(out, Branch[U]{Cond: c, Value: f(c, b.Value)})
	}
	return V[U]{branches: out}
}

// SMapE is SMap with a callback that can fail; the first error aborts the mapping
func SMapE[T, U any](v V[T], ctx featureexpr.Expr, f func(featureexpr.Expr, T) (U, error)) (V[U], error) {
	out := make([]Branch[U], 0, len(v.branches))
	for _, b := range v.branches {
		c := b.Cond.And(ctx)
		if !c.IsSatisfiable() {
			continue
		}
		u, err := f(c, b.Value)
		if err != nil {
			return V[U]{}, err
		}
		out = append(out, Branch[U]{Cond: c, Value: u})
	}
	return V[U]{branches: out}, nil
}

// FlatMap applies f to every branch value and flattens the results, conjoining
// each inner condition with the branch condition
func FlatMap[T, U any](v V[T], f func(T) V[U]) V[U] {
	var out []Branch[U]
	for _, b := range v.branches {
		for _, inner := range f(b.Value).branches {
			c := b.Cond.And(inner.Cond)
			if c.IsSatisfiable() {
				out = append(out, Branch[U]{Cond: c, Value: inner.Value})
			}
		}
	}
	return V[U]{branches: out}
}

// SFlatMap is FlatMap restricted to ctx. f receives the refined context of the
// branch and must produce a V covering it.
func SFlatMap[T, U any](v V[T], ctx featureexpr.Expr, f func(featureexpr.Expr, T) V[U]) V[U] {
	var out []Branch[U]
	for _, b := range v.branches {
		c := b.Cond.And(ctx)
		if !c.IsSatisfiable() {
			continue
		}
		out = appendRestricted(out, c, f(c, b.Value))
	}
	return V[U]{branches: out}
}

// SFlatMapE is SFlatMap with a callback that can fail
func SFlatMapE[T, U any](v V[T], ctx featureexpr.Expr, f func(featureexpr.Expr, T) (V[U], error)) (V[U], error) {
	var out []Branch[U]
	for _, b := range v.branches {
		c := b.Cond.And(ctx)
		if !c.IsSatisfiable() {
			continue
		}
		r, err := f(c, b.Value)
		if err != nil {
			return V[U]{}, err
		}
		out = appendRestricted(out, c, r)
	}
	return V[U]{branches: out}, nil
}

func appendRestricted[U any](out []Branch[U], ctx featureexpr.Expr, r V[U]) []Branch[U] {
	for _, inner := range r.branches {
		c := inner.Cond.And(ctx)
		if c.IsSatisfiable() {
			out = append(out, Branch[U]{Cond: c, Value: inner.Value})
		}
	}
	return out
}

// ForEach calls f for every branch
func ForEach[T any](v V[T], f func(featureexpr.Expr, T)) {
	for _, b := range v.branches {
		f(b.Cond, b.Value)
	}
}

// SForEach calls f for every branch satisfiable under ctx with the refined context
func SForEach[T any](v V[T], ctx featureexpr.Expr, f func(featureexpr.Expr, T)) {
	for _, b := range v.branches {
		c := b.Cond.And(ctx)
		if c.IsSatisfiable() {
			f(c, b.Value)
		}
	}
}

// SForEachE is SForEach with a callback that can fail
func SForEachE[T any](v V[T], ctx featureexpr.Expr, f func(featureexpr.Expr, T) error) error {
	for _, b := range v.branches {
		c := b.Cond.And(ctx)
		if !c.IsSatisfiable() {
			continue
		}
		if err := f(c, b.Value); err != nil {
			return err
		}
	}
	return nil
}

// Choice selects a within ctx and b in the complement of ctx
func Choice[T any](ctx featureexpr.Expr, a, b V[T]) V[T] {
	switch {
	case ctx.IsTautology():
		return a
	case ctx.IsContradiction():
		return b
	}
	left := a.Select(ctx)
	right := b.Select(ctx.Not())
	out := make([]Branch[T], 0, len(left.branches)+len(right.branches))
	out = append(out, left.branches...)
	out = append(out, right.branches...)
	return V[T]{branches: out}
}

// Compact merges branches holding equal values into one branch with the
// disjunction of their conditions
func Compact[T any](v V[T], eq func(a, b T) bool) V[T] {
	if len(v.branches) < 2 {
		return v
	}
	out := make([]Branch[T], 0, len(v.branches))
	for _, b := range v.branches {
		merged := false
		for i := range out {
			if eq(out[i].Value, b.Value) {
				out[i].Cond = out[i].Cond.Or(b.Cond)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, b)
		}
	}
	return V[T]{branches: out}
}

// CompactComparable is Compact using ==
func CompactComparable[T comparable](v V[T]) V[T] {
	return Compact(v, func(a, b T) bool { return a == b })
}

// Sequence combines a list of V into a V of lists: one branch per satisfiable
// combination of the inputs within ctx
func Sequence[T any](vs []V[T], ctx featureexpr.Expr) V[[]T] {
	acc := OneIn(ctx, make([]T, 0, len(vs)))
	for _, v := range vs {
		v := v
		acc = SFlatMap(acc, ctx, func(c featureexpr.Expr, prefix []T) V[[]T] {
			return SMap(v, c, func(_ featureexpr.Expr, x T) []T {
				next := make([]T, len(prefix), len(prefix)+1)
				copy(next, prefix)
				return append(next, x)
			})
		})
	}
	return acc
}

// Zip combines two V values pairwise: f is called once per satisfiable
// combination of their branches within ctx
func Zip[A, B, C any](a V[A], b V[B], ctx featureexpr.Expr, f func(featureexpr.Expr, A, B) C) V[C] {
	return SFlatMap(a, ctx, func(c featureexpr.Expr, x A) V[C] {
		return SMap(b, c, func(c featureexpr.Expr, y B) C {
			return f(c, x, y)
		})
	})
}

// ZipE is Zip with a callback producing a V that can fail
func ZipE[A, B, C any](a V[A], b V[B], ctx featureexpr.Expr, f func(featureexpr.Expr, A, B) (V[C], error)) (V[C], error) {
	return SFlatMapE(a, ctx, func(c featureexpr.Expr, x A) (V[C], error) {
		return SFlatMapE(b, c, func(c featureexpr.Expr, y B) (V[C], error) {
			return f(c, x, y)
		})
	})
}
