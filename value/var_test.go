package value

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/featureexpr"
	"quercus/varex"
)

type testClass string

func (c testClass) Name() string         { return string(c) }
func (c testClass) IsA(name string) bool { return strings.EqualFold(string(c), name) }

type testCallable string

func (c testCallable) Name() string { return string(c) }

func trueCtx() featureexpr.Expr { return featureexpr.True() }

func one(v Value) varex.V[Value] { return varex.One(v) }

func valueIn(t *testing.T, v varex.V[Value], cfg featureexpr.Configuration) Value {
	t.Helper()
	got, ok := v.Get(cfg)
	require.True(t, ok, "no branch for %s in %s", cfg, v)
	return got
}

var (
	withA    = featureexpr.Configuration{"A": true}
	withoutA = featureexpr.Configuration{"A": false}
)

func TestVar(t *testing.T) {
	s := featureexpr.NewSpace()
	a := s.Var("A")

	t.Run("set under ctx keeps the old value outside", func(t *testing.T) {
		x := NewVar(Long(1))
		x.SetOne(a, Long(2))
		assert.Equal(t, Long(2), x.Snapshot(withA))
		assert.Equal(t, Long(1), x.Snapshot(withoutA))
		assert.Equal(t, 2, x.All().Len())
	})

	t.Run("equal values merge back", func(t *testing.T) {
		x := NewVar(Long(1))
		x.SetOne(a, Long(2))
		x.SetOne(a, Long(1))
		assert.True(t, x.All().IsOne())
	})

	t.Run("set copies arrays", func(t *testing.T) {
		arr := NewList(Long(1))
		x := NewVar(NULL)
		x.SetOne(trueCtx(), arr)
		stored := x.Snapshot(withA).(*Array)
		assert.NotSame(t, arr, stored)
		stored.Set(IntKey(0), Long(5))
		v, _, _ := arr.Get(IntKey(0))
		assert.Equal(t, Long(1), v)
	})

	t.Run("partial update detaches the array", func(t *testing.T) {
		x := NewVar(NULL)
		x.SetOne(trueCtx(), NewList(Long(1)))
		err := x.Update(a, func(_ featureexpr.Expr, cur Value) (varex.V[Value], error) {
			arr := cur.(*Array)
			arr.Set(IntKey(0), Long(9))
			return varex.One[Value](arr), nil
		})
		require.NoError(t, err)

		inA, _, _ := x.Snapshot(withA).(*Array).Get(IntKey(0))
		outA, _, _ := x.Snapshot(withoutA).(*Array).Get(IntKey(0))
		assert.Equal(t, Long(9), inA)
		assert.Equal(t, Long(1), outA)
	})

	t.Run("full update mutates in place", func(t *testing.T) {
		x := NewVar(NULL)
		x.SetOne(trueCtx(), NewList(Long(1)))
		before := x.Snapshot(withA).(*Array)
		err := x.Update(trueCtx(), func(_ featureexpr.Expr, cur Value) (varex.V[Value], error) {
			assert.Same(t, before, cur)
			return varex.One(cur), nil
		})
		require.NoError(t, err)
	})

	t.Run("var created in ctx is unset elsewhere", func(t *testing.T) {
		x := NewVarIn(a, Long(3))
		assert.Equal(t, Long(3), x.Snapshot(withA))
		assert.Equal(t, UNSET, x.Snapshot(withoutA))
	})
}

func TestEnvVar(t *testing.T) {
	s := featureexpr.NewSpace()
	a := s.Var("A")

	t.Run("reference binding under ctx", func(t *testing.T) {
		target := NewVar(Long(1))
		slot := NewEnvVar(NewVar(Long(0)))
		slot.BindRef(a, varex.One(target))

		slot.Set(trueCtx(), one(Long(5)))
		assert.Equal(t, Long(5), target.Snapshot(withA), "write goes through the reference in A")
		assert.Equal(t, Long(1), target.Snapshot(withoutA), "target untouched outside A")
		assert.Equal(t, Long(5), valueIn(t, slot.Get(trueCtx()), withoutA))
		assert.Equal(t, 2, slot.Refs(trueCtx()).Len())
	})
}

func TestResolve(t *testing.T) {
	s := featureexpr.NewSpace()
	a := s.Var("A")

	t.Run("plain values resolve to themselves", func(t *testing.T) {
		r := Resolve(trueCtx(), NewList(Long(1)))
		assert.True(t, r.IsOne())
	})

	t.Run("reference entries split the array", func(t *testing.T) {
		arr := NewList(Long(1), Long(2))
		ref := arr.RefAt(IntKey(1), NULL)
		ref.SetOne(a, Long(20))

		r := Resolve(trueCtx(), arr)
		require.Equal(t, 2, r.Len())

		other := NewList(Long(1), Long(20))
		eqIn := r.When(func(v Value) bool { return Eql(v, other) })
		assert.True(t, eqIn.Equivalent(a))
	})

	t.Run("object snapshots keep identity", func(t *testing.T) {
		o := NewObject(testClass("P"))
		o.SetField(trueCtx(), "x", one(Long(1)))
		o.SetField(a, "x", one(Long(2)))

		r := Resolve(trueCtx(), o)
		require.Equal(t, 2, r.Len())
		for _, b := range r.Branches() {
			snap := b.Value.(*Object)
			assert.Equal(t, o.ID, snap.ID)
			assert.True(t, Eql(snap, o))
		}
		inA := valueIn(t, r, withA).(*Object)
		assert.Equal(t, Long(2), inA.fieldValue("x"))
	})

	t.Run("cycles terminate", func(t *testing.T) {
		o := NewObject(nil)
		o.SetField(trueCtx(), "self", one(o))
		r := Resolve(trueCtx(), o)
		assert.True(t, r.IsOne())
	})
}

func TestExport(t *testing.T) {
	s := featureexpr.NewSpace()
	a := s.Var("A")

	arr := NewArray()
	arr.Set(StrKey("n"), Long(1))
	ref := arr.RefAt(StrKey("r"), NULL)
	ref.SetOne(trueCtx(), Str("x"))
	ref.SetOne(a, Str("y"))

	assert.Equal(t, map[string]interface{}{"n": int64(1), "r": "y"}, Export(arr, withA))
	assert.Equal(t, map[string]interface{}{"n": int64(1), "r": "x"}, Export(arr, withoutA))
	assert.Equal(t, []interface{}{true, nil, 1.5}, Export(NewList(TRUE, NULL, Double(1.5)), withA))

	o := NewObject(testClass("P"))
	o.SetField(trueCtx(), "x", one(Long(3)))
	assert.Equal(t, map[string]interface{}{"__class": "P", "x": int64(3)}, Export(o, withA))
}
