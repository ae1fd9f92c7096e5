package varex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quercus/featureexpr"
)

func newSpace() (*featureexpr.Space, featureexpr.Expr, featureexpr.Expr) {
	s := featureexpr.NewSpace()
	s.Declare("A", "B")
	return s, s.Var("A"), s.Var("B")
}

// covers checks the disjointness and coverage invariant of v within ctx
func covers[T any](t *testing.T, v V[T], ctx featureexpr.Expr) {
	t.Helper()
	union := featureexpr.False()
	for i, b := range v.Branches() {
		for _, o := range v.Branches()[i+1:] {
			assert.True(t, b.Cond.And(o.Cond).IsContradiction(), "branches overlap: %s", v)
		}
		union = union.Or(b.Cond)
	}
	assert.True(t, union.Equivalent(ctx), "branches %s do not cover %s", v, ctx)
}

func TestOneAndChoice(t *testing.T) {
	_, a, _ := newSpace()

	t.Run("one covers everything", func(t *testing.T) {
		v := One(1)
		assert.True(t, v.IsOne())
		assert.Equal(t, 1, v.GetOne())
		covers(t, v, featureexpr.True())
	})

	t.Run("choice splits on ctx", func(t *testing.T) {
		v := Choice(a, One(1), One(2))
		covers(t, v, featureexpr.True())
		got, ok := v.Get(featureexpr.Configuration{"A": true})
		assert.True(t, ok)
		assert.Equal(t, 1, got)
		got, _ = v.Get(featureexpr.Configuration{})
		assert.Equal(t, 2, got)
	})

	t.Run("choice under tautology or contradiction", func(t *testing.T) {
		assert.Equal(t, 1, Choice(featureexpr.True(), One(1), One(2)).GetOne())
		assert.Equal(t, 2, Choice(featureexpr.False(), One(1), One(2)).GetOne())
	})

	t.Run("one in unsatisfiable ctx is empty", func(t *testing.T) {
		assert.True(t, OneIn(featureexpr.False(), 1).IsEmpty())
	})
}

func TestMapAndFlatMap(t *testing.T) {
	_, a, b := newSpace()
	v := Choice(a, One(1), One(2))

	t.Run("map keeps conditions", func(t *testing.T) {
		m := Map(v, func(x int) int { return x * 10 })
		got, _ := m.Get(featureexpr.Configuration{"A": true})
		assert.Equal(t, 10, got)
		covers(t, m, featureexpr.True())
	})

	t.Run("sflatmap refines by ctx", func(t *testing.T) {
		var seen []featureexpr.Expr
		m := SFlatMap(v, b, func(c featureexpr.Expr, x int) V[int] {
			seen = append(seen, c)
			return Choice(a.Not(), One(x+100), One(x))
		})
		covers(t, m, b)
		for _, c := range seen {
			assert.True(t, c.Entails(b))
		}
	})

	t.Run("unsatisfiable branches are never evaluated", func(t *testing.T) {
		calls := 0
		SMap(v, a, func(_ featureexpr.Expr, x int) int {
			calls++
			assert.Equal(t, 1, x)
			return x
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("when projects a predicate", func(t *testing.T) {
		assert.True(t, v.When(func(x int) bool { return x == 1 }).Equivalent(a))
		assert.True(t, v.When(func(x int) bool { return x == 3 }).IsContradiction())
	})
}

func TestCompact(t *testing.T) {
	_, a, b := newSpace()
	v := FromBranches(
		Branch[int]{Cond: a.And(b), Value: 1},
		Branch[int]{Cond: a.AndNot(b), Value: 2},
		Branch[int]{Cond: a.Not(), Value: 1},
	)
	c := CompactComparable(v)
	assert.Equal(t, 2, c.Len())
	covers(t, c, featureexpr.True())
	assert.True(t, c.When(func(x int) bool { return x == 2 }).Equivalent(a.AndNot(b)))
}

func TestSequence(t *testing.T) {
	_, a, b := newSpace()
	vs := []V[int]{Choice(a, One(1), One(2)), Choice(b, One(3), One(4)), One(5)}

	seq := Sequence(vs, featureexpr.True())
	assert.Equal(t, 4, seq.Len())
	covers(t, seq, featureexpr.True())
	got, _ := seq.Get(featureexpr.Configuration{"A": true, "B": false})
	assert.Equal(t, []int{1, 4, 5}, got)

	t.Run("restricted to ctx", func(t *testing.T) {
		seq := Sequence(vs, a)
		assert.Equal(t, 2, seq.Len())
		covers(t, seq, a)
	})
}

func TestString(t *testing.T) {
	_, a, _ := newSpace()
	assert.Equal(t, "7", One(7).String())
	assert.Equal(t, "CHOICE(A: 1; !A: 2)", Choice(a, One(1), One(2)).String())
}

func TestZip(t *testing.T) {
	_, a, b := newSpace()
	x := Choice(a, One(1), One(2))
	y := Choice(b, One(10), One(20))

	sum := Zip(x, y, featureexpr.True(), func(_ featureexpr.Expr, p, q int) int { return p + q })
	assert.Equal(t, 4, sum.Len())
	covers(t, sum, featureexpr.True())
	got, _ := sum.Get(featureexpr.Configuration{"A": false, "B": true})
	assert.Equal(t, 12, got)
}
