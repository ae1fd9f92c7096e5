package featureexpr

import (
	"sort"
	"strings"
)

// Expr is an immutable boolean formula over the features of a Space. The zero
// value is the tautology True.
type Expr struct {
	s  *Space
	id int32
}

// True is the formula satisfied by every configuration
func True() Expr { return Expr{id: trueID} }

// False is the unsatisfiable formula
func False() Expr { return Expr{id: falseID} }

func pickSpace(a, b Expr) *Space {
	if a.s != nil {
		if b.s != nil && b.s != a.s {
			panic("featureexpr: combining formulas from different spaces")
		}
		return a.s
	}
	return b.s
}

func (e Expr) binary(o Expr, op func(s *Space, a, b int32) int32, terminal func(a, b bool) bool) Expr {
	s := pickSpace(e, o)
	if s == nil {
		// both are terminals
		if terminal(e.id == trueID, o.id == trueID) {
			return True()
		}
		return False()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := op(s, e.id, o.id)
	s.trimMemo()
	return Expr{s: s, id: id}
}

// And returns the conjunction of e and o
func (e Expr) And(o Expr) Expr {
	return e.binary(o, (*Space).and, func(a, b bool) bool { return a && b })
}

// Or returns the disjunction of e and o
func (e Expr) Or(o Expr) Expr {
	return e.binary(o, (*Space).or, func(a, b bool) bool { return a || b })
}

// Not returns the negation of e
func (e Expr) Not() Expr {
	if e.s == nil {
		if e.id == trueID {
			return False()
		}
		return True()
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return Expr{s: e.s, id: e.s.not(e.id)}
}

// AndNot returns e && !o
func (e Expr) AndNot(o Expr) Expr {
	return e.And(o.Not())
}

// Implies returns !e || o
func (e Expr) Implies(o Expr) Expr {
	return e.Not().Or(o)
}

// Equiv returns e <=> o
func (e Expr) Equiv(o Expr) Expr {
	return e.And(o).Or(e.Not().And(o.Not()))
}

// IsSatisfiable reports whether at least one configuration satisfies e
func (e Expr) IsSatisfiable() bool { return e.id != falseID }

// IsContradiction reports whether no configuration satisfies e
func (e Expr) IsContradiction() bool { return e.id == falseID }

// IsTautology reports whether every configuration satisfies e
func (e Expr) IsTautology() bool { return e.id == trueID }

// Equivalent reports whether e and o denote the same set of configurations
func (e Expr) Equivalent(o Expr) bool {
	if e.s != nil && o.s != nil && e.s != o.s {
		return false
	}
	return e.id == o.id
}

// Entails reports whether every configuration of e also satisfies o
func (e Expr) Entails(o Expr) bool {
	return e.AndNot(o).IsContradiction()
}

// Eval evaluates e under a concrete configuration; missing features are disabled
func (e Expr) Eval(cfg Configuration) bool {
	if e.s == nil {
		return e.id == trueID
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.s.evaluate(e.id, cfg)
}

// Space returns the owning space, or nil for a constant formula
func (e Expr) Space() *Space { return e.s }

// Features returns the sorted names of the features e depends on
func (e Expr) Features() []string {
	if e.s == nil {
		return nil
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	levels := make(map[int32]bool)
	e.s.support(e.id, make(map[int32]bool), levels)
	out := make([]string, 0, len(levels))
	for level := range levels {
		out = append(out, e.s.names[level])
	}
	sort.Strings(out)
	return out
}

// String renders e in disjunctive normal form, e.g. "A && !B || C"
func (e Expr) String() string {
	switch {
	case e.id == trueID:
		return "True"
	case e.id == falseID:
		return "False"
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	var cubes []string
	e.s.cubes(e.id, nil, &cubes)
	return strings.Join(cubes, " || ")
}

// MarshalText renders e for YAML and JSON encoders
func (e Expr) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}
