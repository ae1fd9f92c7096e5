package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversions(t *testing.T) {
	t.Run("to bool", func(t *testing.T) {
		falsy := []Value{NULL, UNSET, FALSE, Long(0), Double(0), Str(""), Str("0"), NewArray()}
		for _, v := range falsy {
			assert.False(t, ToBool(v), "%v", v)
		}
		truthy := []Value{TRUE, Long(-1), Double(0.1), Str("0.0"), Str(" "), NewList(NULL)}
		for _, v := range truthy {
			assert.True(t, ToBool(v), "%v", v)
		}
	})

	t.Run("to long", func(t *testing.T) {
		assert.Equal(t, int64(12), ToLong(Str("12abc")))
		assert.Equal(t, int64(3), ToLong(Str("3.9")))
		assert.Equal(t, int64(1000), ToLong(Str("1e3")))
		assert.Equal(t, int64(0), ToLong(Str("abc")))
		assert.Equal(t, int64(-7), ToLong(Double(-7.5)))
		assert.Equal(t, int64(0), ToLong(Double(math.NaN())))
		assert.Equal(t, int64(1), ToLong(TRUE))
	})

	t.Run("to double", func(t *testing.T) {
		assert.Equal(t, 0.5, ToDouble(Str(".5")))
		assert.Equal(t, 3.0, ToDouble(Str(" 3 ")))
		assert.Equal(t, 0.0, ToDouble(NULL))
	})

	t.Run("to string", func(t *testing.T) {
		tests := []struct {
			in   Value
			want string
		}{
			{NULL, ""},
			{TRUE, "1"},
			{FALSE, ""},
			{Long(-42), "-42"},
			{Double(1.5), "1.5"},
			{Double(7), "7"},
			{Double(0.1 + 0.2), "0.3"},
			{Double(1e25), "1.0E+25"},
			{Double(math.Inf(1)), "INF"},
			{Double(math.NaN()), "NAN"},
		}
		for _, tt := range tests {
			got, warn := ToString(tt.in)
			assert.Nil(t, warn)
			assert.Equal(t, tt.want, got)
		}
	})

	t.Run("array to string warns", func(t *testing.T) {
		got, warn := ToString(NewArray())
		assert.Equal(t, "Array", got)
		require.NotNil(t, warn)
		assert.Equal(t, "Array to string conversion", warn.Message)
	})

	t.Run("numeric strings", func(t *testing.T) {
		assert.True(t, IsNumericString("42"))
		assert.True(t, IsNumericString(" 4.2e1 "))
		assert.True(t, IsNumericString("-.5"))
		assert.False(t, IsNumericString("42abc"))
		assert.False(t, IsNumericString("."))
		assert.False(t, IsNumericString(""))
	})
}

func TestArithmetic(t *testing.T) {
	t.Run("integer-like operands stay integers", func(t *testing.T) {
		got, w := Add(Str("3"), Str("4"))
		assert.Empty(t, w)
		assert.Equal(t, Long(7), got)
	})

	t.Run("a float string promotes to double", func(t *testing.T) {
		got, w := Add(Str("3.0"), Str("4"))
		assert.Empty(t, w)
		assert.Equal(t, Double(7), got)
	})

	t.Run("round trip through string", func(t *testing.T) {
		s, _ := ToString(Long(ToLong(Str("42"))))
		assert.Equal(t, 42.0, ToDouble(Str(s)))
	})

	t.Run("overflow promotes to double", func(t *testing.T) {
		got, _ := Add(Long(math.MaxInt64), Long(1))
		assert.Equal(t, Double(float64(math.MaxInt64)+1), got)
		got, _ = Sub(Long(math.MinInt64), Long(1))
		assert.IsType(t, Double(0), got)
		got, _ = Mul(Long(math.MaxInt64), Long(2))
		assert.IsType(t, Double(0), got)
		got, _ = Mul(Long(-3), Long(4))
		assert.Equal(t, Long(-12), got)
	})

	t.Run("division", func(t *testing.T) {
		got, _ := Div(Long(6), Long(3))
		assert.Equal(t, Long(2), got)
		got, _ = Div(Long(7), Long(2))
		assert.Equal(t, Double(3.5), got)
		got, w := Div(Long(1), Long(0))
		assert.Equal(t, FALSE, got)
		require.Len(t, w, 1)
		assert.Equal(t, "Division by zero", w[0].Message)
	})

	t.Run("modulo", func(t *testing.T) {
		got, _ := Mod(Long(-7), Long(3))
		assert.Equal(t, Long(-1), got)
		got, _ = Mod(Long(math.MinInt64), Long(-1))
		assert.Equal(t, Long(0), got)
		got, w := Mod(Long(1), Long(0))
		assert.Equal(t, FALSE, got)
		assert.Len(t, w, 1)
	})

	t.Run("non-numeric operands warn", func(t *testing.T) {
		got, w := Add(Str("abc"), Long(1))
		assert.Equal(t, Long(1), got)
		assert.Len(t, w, 1)
		got, w = Add(Str("5 apples"), Long(1))
		assert.Equal(t, Long(6), got)
		assert.Len(t, w, 1)
	})

	t.Run("array union", func(t *testing.T) {
		a := NewList(Long(1), Long(2))
		b := NewList(Long(10), Long(20), Long(30))
		got, w := Add(a, b)
		assert.Empty(t, w)
		u := got.(*Array)
		assert.Equal(t, 3, u.Len())
		v, _, _ := u.Get(IntKey(0))
		assert.Equal(t, Long(1), v)
		v, _, _ = u.Get(IntKey(2))
		assert.Equal(t, Long(30), v)
		assert.Equal(t, 2, a.Len(), "operands are not modified")
	})

	t.Run("array with scalar is unsupported", func(t *testing.T) {
		got, w := Add(NewArray(), Long(1))
		assert.Equal(t, NULL, got)
		require.Len(t, w, 1)
		assert.Contains(t, w[0].Message, "Unsupported operand types")
	})

	t.Run("bit operations", func(t *testing.T) {
		got, _ := BitAnd(Long(6), Long(3))
		assert.Equal(t, Long(2), got)
		got, _ = BitOr(Str("a"), Str("  "))
		assert.Equal(t, Str("a "), got)
		got, _ = BitNot(Long(0))
		assert.Equal(t, Long(-1), got)
		got, _ = Shl(Long(1), Long(3))
		assert.Equal(t, Long(8), got)
		got, _ = Shr(Long(-8), Long(70))
		assert.Equal(t, Long(-1), got)
		got, w := Shl(Long(1), Long(-1))
		assert.Equal(t, FALSE, got)
		assert.Len(t, w, 1)
	})

	t.Run("concat keeps unicode", func(t *testing.T) {
		got, _ := Concat(Str("a"), Unicode("b"))
		assert.True(t, got.(String).IsUnicode())
		assert.Equal(t, "ab", got.(String).String())
		got, _ = Concat(Long(1), Double(2.5))
		assert.Equal(t, Str("12.5"), got)
	})

	t.Run("increment", func(t *testing.T) {
		tests := []struct {
			in   Value
			want Value
		}{
			{NULL, Long(1)},
			{Long(1), Long(2)},
			{Long(math.MaxInt64), Double(float64(math.MaxInt64) + 1)},
			{Str("a"), Str("b")},
			{Str("Az"), Str("Ba")},
			{Str("zz"), Str("aaa")},
			{Str("a9"), Str("b0")},
			{Str("9"), Long(10)},
			{Str(""), Str("1")},
			{Str("1.5"), Double(2.5)},
		}
		for _, tt := range tests {
			got, _ := Increment(tt.in)
			assert.Equal(t, tt.want, got, "++%v", tt.in)
		}
		got, _ := Decrement(NULL)
		assert.Equal(t, NULL, got)
		got, _ = Decrement(Str("abc"))
		assert.Equal(t, Str("abc"), got)
	})
}

func TestKeys(t *testing.T) {
	tests := []struct {
		in     Value
		want   Key
		warned bool
	}{
		{Str("8"), IntKey(8), false},
		{Str("-3"), IntKey(-3), false},
		{Str("08"), StrKey("08"), false},
		{Str("-0"), StrKey("-0"), false},
		{Str("1.5"), StrKey("1.5"), false},
		{TRUE, IntKey(1), false},
		{NULL, StrKey(""), false},
		{Double(1.7), IntKey(1), true},
		{Double(2), IntKey(2), false},
	}
	for _, tt := range tests {
		got, warn := ToKey(tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
		assert.Equal(t, tt.warned, warn != nil, "%v", tt.in)
	}
	assert.True(t, StrKey("08").IsString())
	assert.False(t, StrKey("8").IsString())

	_, warn := ToKey(NewArray())
	assert.NotNil(t, warn, "arrays are illegal offsets")
}

func TestArrayIndexing(t *testing.T) {
	t.Run("explicit and implicit keys", func(t *testing.T) {
		a := NewArray()
		a.Set(StrKey("a"), Long(1))
		a.Append(Long(2))
		a.Set(StrKey("b"), Long(3))
		assert.Equal(t, []Key{StrKey("a"), IntKey(0), StrKey("b")}, a.Keys())
	})

	t.Run("next index follows the largest integer key", func(t *testing.T) {
		a := NewArray()
		a.Set(IntKey(5), Long(1))
		k, _ := a.Append(Long(2))
		assert.Equal(t, IntKey(6), k)
		a.Set(IntKey(2), Long(3))
		k, _ = a.Append(Long(4))
		assert.Equal(t, IntKey(7), k)
	})

	t.Run("negative keys do not move the next index", func(t *testing.T) {
		a := NewArray()
		a.Set(IntKey(-5), Long(1))
		k, _ := a.Append(Long(2))
		assert.Equal(t, IntKey(0), k)
	})

	t.Run("removal keeps the next index", func(t *testing.T) {
		a := NewList(Long(1), Long(2))
		a.Remove(IntKey(1))
		k, _ := a.Append(Long(3))
		assert.Equal(t, IntKey(2), k)
		assert.Equal(t, 2, a.Len())
	})

	t.Run("append at the end of the key space fails", func(t *testing.T) {
		a := NewArray()
		a.Set(IntKey(math.MaxInt64), Long(1))
		_, ok := a.Append(Long(2))
		assert.False(t, ok)
	})
}

func TestCopyOnWrite(t *testing.T) {
	t.Run("mutating a copy leaves the source", func(t *testing.T) {
		a := NewList(Long(1), Long(2))
		b := Copy(a).(*Array)
		assert.True(t, a.IsShared())

		b.Set(IntKey(0), Long(99))
		va, _, _ := a.Get(IntKey(0))
		vb, _, _ := b.Get(IntKey(0))
		assert.Equal(t, Long(1), va)
		assert.Equal(t, Long(99), vb)
		assert.False(t, b.IsShared())
	})

	t.Run("nested arrays are copied too", func(t *testing.T) {
		inner := NewList(Long(1))
		outer := NewArray()
		outer.Set(IntKey(0), inner)
		cp := outer.Copy()

		cp.Set(IntKey(1), Long(2))
		v, _, _ := cp.Get(IntKey(0))
		v.(*Array).Set(IntKey(0), Long(42))

		orig, _, _ := inner.Get(IntKey(0))
		assert.Equal(t, Long(1), orig)
	})

	t.Run("reference entries are shared between copies", func(t *testing.T) {
		a := NewList(Long(1))
		ref := a.RefAt(IntKey(0), NULL)
		b := a.Copy()
		b.Set(IntKey(1), Long(5))

		ref.SetOne(ref.v.Cond(), Long(7))
		_, rb, ok := b.Get(IntKey(0))
		require.True(t, ok)
		require.NotNil(t, rb)
		assert.Same(t, ref, rb)
		assert.True(t, b.HasRefs())
	})

	t.Run("builders are frozen on copy", func(t *testing.T) {
		b := NewStringBuilder("ab")
		s := Copy(b)
		b.Append("c")
		assert.Equal(t, Str("ab"), s)
	})
}

func TestCmp(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want Ordering
	}{
		{"string vs null", Str("a"), NULL, Greater},
		{"empty string vs null", Str(""), NULL, Equal},
		{"null vs false", NULL, FALSE, Equal},
		{"bool truthiness", TRUE, Long(5), Equal},
		{"null vs long", NULL, Long(-1), Less},
		{"numeric strings", Str("10"), Str("9"), Greater},
		{"non numeric strings", Str("10"), Str("9a"), Less},
		{"long vs string", Long(10), Str("9"), Greater},
		{"long vs double", Long(1), Double(1.5), Less},
		{"resource numeric", &Resource{ID: 3}, Long(3), Equal},
		{"array dominates scalar", NewArray(), Long(100), Greater},
		{"object dominates array", NewObject(nil), NewList(Long(1)), Greater},
		{"array by count", NewList(Long(1)), NewList(Long(0), Long(0)), Less},
		{"array by element", NewList(Long(1), Long(3)), NewList(Long(1), Long(2)), Greater},
		{"nan is unordered", Double(math.NaN()), Long(1), Unordered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cmp(tt.a, tt.b)
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)

			back, err := Cmp(tt.b, tt.a)
			require.Nil(t, err)
			assert.Equal(t, tt.want.Neg(), back, "comparison is antisymmetric")
		})
	}

	t.Run("arrays with different keys are incomparable", func(t *testing.T) {
		a := NewArray()
		a.Set(StrKey("x"), Long(1))
		b := NewArray()
		b.Set(StrKey("y"), Long(1))
		_, err := Cmp(a, b)
		require.NotNil(t, err)
		_, err = Cmp(b, a)
		require.NotNil(t, err)
	})

	t.Run("objects of different classes are incomparable", func(t *testing.T) {
		_, err := Cmp(NewObject(testClass("A")), NewObject(testClass("B")))
		assert.NotNil(t, err)
	})

	t.Run("closures are incomparable with numbers", func(t *testing.T) {
		c := &Closure{Fn: testCallable("f")}
		_, err := Cmp(c, Long(1))
		assert.NotNil(t, err)
		o, err := Cmp(c, c)
		assert.Nil(t, err)
		assert.Equal(t, Equal, o)
	})

	t.Run("objects of the same class compare fields", func(t *testing.T) {
		a, b := NewObject(testClass("P")), NewObject(testClass("P"))
		a.SetField(trueCtx(), "x", one(Long(1)))
		b.SetField(trueCtx(), "x", one(Long(2)))
		o, err := Cmp(a, b)
		require.Nil(t, err)
		assert.Equal(t, Less, o)
	})
}

func TestEquality(t *testing.T) {
	t.Run("loose", func(t *testing.T) {
		assert.True(t, Eq(NULL, Str("")))
		assert.False(t, Eq(NULL, Str("0")))
		assert.True(t, Eq(NULL, NewArray()))
		assert.True(t, Eq(Str("1e1"), Str("10")))
		assert.False(t, Eq(Str("abc"), Str("ABC")))
		assert.True(t, Eq(Long(1), Double(1.0)))
		assert.True(t, Eq(TRUE, Str("x")))
		assert.True(t, Eq(UNSET, NULL))

		a := NewArray()
		a.Set(StrKey("x"), Long(1))
		a.Set(StrKey("y"), Long(2))
		b := NewArray()
		b.Set(StrKey("y"), Str("2"))
		b.Set(StrKey("x"), Str("1"))
		assert.True(t, Eq(a, b), "loose array equality ignores order and types")
		assert.False(t, Eql(a, b))
	})

	t.Run("strict", func(t *testing.T) {
		assert.False(t, Eql(Long(1), Double(1)))
		assert.True(t, Eql(Str("a"), NewStringBuilder("a")))
		assert.True(t, Eql(NewList(Long(1)), NewList(Long(1))))

		o := NewObject(nil)
		assert.True(t, Eql(o, o))
		assert.False(t, Eql(o, NewObject(nil)))
		assert.True(t, Eq(o, NewObject(nil)), "equal fields and class compare loosely equal")
	})

	t.Run("identical", func(t *testing.T) {
		a := NewArray()
		assert.True(t, Identical(a, a))
		assert.False(t, Identical(a, NewArray()))
		assert.True(t, Identical(Str("x"), Str("x")))
		assert.False(t, Identical(Long(1), Double(1)))
	})
}

func TestMarshalCost(t *testing.T) {
	assert.Equal(t, CostEqual, MarshalCost(Long(1), KindLong))
	assert.Equal(t, CostLossless, MarshalCost(Long(1), KindDouble))
	assert.Equal(t, CostNumericLossy, MarshalCost(Double(1.5), KindLong))
	assert.Equal(t, CostToString, MarshalCost(Long(1), KindString))
	assert.Equal(t, CostFromString, MarshalCost(Str("12"), KindLong))
	assert.Equal(t, CostIncompatible, MarshalCost(Str("twelve"), KindLong))
	assert.Equal(t, CostIncompatible, MarshalCost(NewArray(), KindString))
	assert.Equal(t, CostEqual, MarshalCost(NewArray(), KindMixed))
	assert.Less(t, MarshalCost(Long(1), KindDouble), MarshalCost(Long(1), KindString))
}
