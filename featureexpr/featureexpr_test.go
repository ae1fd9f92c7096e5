package featureexpr

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprAlgebra(t *testing.T) {
	s := NewSpace()
	a, b := s.Var("A"), s.Var("B")

	t.Run("terminals", func(t *testing.T) {
		assert.True(t, True().IsTautology())
		assert.True(t, False().IsContradiction())
		assert.True(t, Expr{}.IsTautology(), "zero Expr is True")
		assert.True(t, True().And(False()).IsContradiction())
	})

	t.Run("excluded middle and contradiction", func(t *testing.T) {
		assert.True(t, a.Or(a.Not()).IsTautology())
		assert.True(t, a.And(a.Not()).IsContradiction())
	})

	t.Run("canonical form makes equivalent formulas equal", func(t *testing.T) {
		left := a.And(b).Not()
		right := a.Not().Or(b.Not())
		assert.True(t, left.Equivalent(right))
		assert.Equal(t, left, right)
	})

	t.Run("entailment", func(t *testing.T) {
		assert.True(t, a.And(b).Entails(a))
		assert.False(t, a.Entails(a.And(b)))
		assert.True(t, False().Entails(a))
	})

	t.Run("implies and equiv", func(t *testing.T) {
		assert.True(t, a.Implies(a.Or(b)).IsTautology())
		assert.True(t, a.Equiv(a).IsTautology())
		assert.True(t, a.Equiv(a.Not()).IsContradiction())
	})

	t.Run("eval", func(t *testing.T) {
		e := a.AndNot(b)
		assert.True(t, e.Eval(Configuration{"A": true, "B": false}))
		assert.False(t, e.Eval(Configuration{"A": true, "B": true}))
		assert.False(t, e.Eval(Configuration{}))
	})

	t.Run("features of the support", func(t *testing.T) {
		assert.Equal(t, []string{"A"}, a.And(b.Or(b.Not())).Features())
	})
}

func TestExprString(t *testing.T) {
	s := NewSpace()
	s.Declare("A", "B")
	assert.Equal(t, "True", True().String())
	assert.Equal(t, "False", False().String())
	assert.Equal(t, "A", s.Var("A").String())
	assert.Equal(t, "!A", s.Var("A").Not().String())

	e := s.MustParse("A && !B")
	round, err := s.Parse(e.String())
	require.NoError(t, err)
	assert.True(t, round.Equivalent(e))
}

func TestParse(t *testing.T) {
	s := NewSpace()
	a, b, c := s.Var("A"), s.Var("B"), s.Var("C")

	tests := []struct {
		text string
		want Expr
	}{
		{"true", True()},
		{"0", False()},
		{"A", a},
		{"def(A)", a},
		{"!A", a.Not()},
		{"A && B || C", a.And(b).Or(c)},
		{"A & (B | C)", a.And(b.Or(c))},
		{"A => B", a.Implies(b)},
		{"A <=> !B", a.Equiv(b.Not())},
		{"!(A || B)", a.Not().And(b.Not())},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := s.Parse(tt.text)
			require.NoError(t, err)
			assert.True(t, got.Equivalent(tt.want), "got %s", got)
		})
	}

	t.Run("errors", func(t *testing.T) {
		for _, text := range []string{"", "A &&", "(A", "A B", "&& A"} {
			_, err := s.Parse(text)
			assert.Error(t, err, text)
		}
	})
}

func TestConfigurations(t *testing.T) {
	s := NewSpace()
	s.Declare("A", "B")
	a, b := s.Var("A"), s.Var("B")

	t.Run("enumerates satisfying assignments", func(t *testing.T) {
		cfgs, err := s.Configurations(a.Or(b), "A", "B")
		require.NoError(t, err)
		require.Len(t, cfgs, 3)
		for _, cfg := range cfgs {
			assert.True(t, cfg["A"] || cfg["B"])
		}
		assert.Equal(t, "A,!B", cfgs[0].String())
		assert.Equal(t, "!A,B", cfgs[1].String())
		assert.Equal(t, "A,B", cfgs[2].String())
	})

	t.Run("expands features outside the formula", func(t *testing.T) {
		cfgs, err := s.Configurations(b, "A", "C")
		require.NoError(t, err)
		require.Len(t, cfgs, 4)
		assert.Equal(t, "!A,B,!C", cfgs[0].String())
		assert.Equal(t, "A,B,C", cfgs[3].String())
		assert.Equal(t, int64(4), s.Count(b, "A", "C").Int64())
	})

	t.Run("exactly one configuration", func(t *testing.T) {
		cfg := Configuration{"A": true, "B": false}
		e := s.Exactly(cfg)
		assert.True(t, e.Eval(cfg))
		cfgs, err := s.Configurations(e, "A", "B")
		require.NoError(t, err)
		assert.Len(t, cfgs, 1)
	})

	t.Run("parse and render", func(t *testing.T) {
		cfg, err := ParseConfiguration("B, !A")
		require.NoError(t, err)
		assert.Equal(t, "!A,B", cfg.String())

		cfg, err = ParseConfiguration("A=1,B=off")
		require.NoError(t, err)
		assert.Equal(t, Configuration{"A": true, "B": false}, cfg)

		_, err = ParseConfiguration("A=maybe")
		assert.Error(t, err)
	})
}

func TestConfigurationEncoding(t *testing.T) {
	s := NewSpace()
	s.Declare("A", "B", "C", "D", "E", "F", "G", "H", "I")

	cfg := Configuration{"A": true, "C": true, "I": true}
	data, err := s.EncodeConfiguration(cfg)
	require.NoError(t, err)
	assert.Len(t, data, 2, "nine features pad to two bytes")

	back, err := s.DecodeConfiguration(data)
	require.NoError(t, err)
	for _, name := range s.Features() {
		assert.Equal(t, cfg[name], back[name], name)
	}
}

func TestSpaceConcurrentUse(t *testing.T) {
	s := NewSpace()
	done := make(chan Expr)
	for i := 0; i < 8; i++ {
		go func(i int) {
			e := True()
			for j := 0; j < 50; j++ {
				e = e.And(s.Var(string(rune('A' + (i+j)%6))).Or(s.Var("Z")))
			}
			done <- e
		}(i)
	}
	for i := 0; i < 8; i++ {
		assert.True(t, (<-done).IsSatisfiable())
	}
}

func TestCount_ManyFeatures(t *testing.T) {
	s := NewSpace()
	var names []string
	for i := 0; i < 40; i++ {
		names = append(names, fmt.Sprintf("F%02d", i))
	}
	s.Declare(names...)

	e := s.Var("F00").Or(s.Var("F39"))
	want := new(big.Int).Lsh(big.NewInt(3), 38)
	assert.Equal(t, 0, want.Cmp(s.Count(e, names...)))
	assert.Equal(t, 0, new(big.Int).Lsh(big.NewInt(1), 40).Cmp(s.Count(True(), names...)))
	assert.Equal(t, int64(0), s.Count(False(), names...).Int64())

	_, err := s.Configurations(e, names...)
	assert.ErrorIs(t, err, ErrTooManyConfigurations)

	// a narrow formula over many features still enumerates
	narrow := True()
	for _, name := range names[:39] {
		narrow = narrow.AndNot(s.Var(name))
	}
	cfgs, err := s.Configurations(narrow, names...)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.False(t, cfgs[0]["F39"])
	assert.True(t, cfgs[1]["F39"])
}

func TestCount_MatchesEnumeration(t *testing.T) {
	s := NewSpace()
	s.Declare("A", "B", "C", "D")
	for _, text := range []string{"A && !C", "A || B || D", "(A <=> B) && !D", "True", "False"} {
		e := s.MustParse(text)
		cfgs, err := s.Configurations(e, "A", "B", "C", "D", "E")
		require.NoError(t, err)
		assert.Equal(t, int64(len(cfgs)), s.Count(e, "A", "B", "C", "D", "E").Int64(), text)
		for _, cfg := range cfgs {
			assert.True(t, e.Eval(cfg), text)
		}
	}
}
