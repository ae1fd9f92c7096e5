// Package featureexpr implements boolean feature expressions over named
// configuration flags. Formulas are kept as reduced ordered binary decision
// diagrams, so equivalent formulas share one node and satisfiability is a
// constant-time check.
package featureexpr

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
)

const (
	trueID  int32 = 0
	falseID int32 = 1

	// memo tables are dropped once they grow past this many entries
	maxMemoEntries = 1 << 20
)

type node struct {
	level int32
	low   int32
	high  int32
}

type opKey struct {
	a, b int32
}

// Space owns the feature variables and the shared node table of all formulas
// built from them. A Space is safe for concurrent use.
type Space struct {
	mu      sync.Mutex
	names   []string
	index   map[string]int32
	nodes   []node
	unique  map[node]int32
	andMemo map[opKey]int32
	orMemo  map[opKey]int32
	notMemo map[int32]int32
}

// NewSpace creates an empty feature space
func NewSpace() *Space {
	s := &Space{
		index:   make(map[string]int32),
		unique:  make(map[node]int32),
		andMemo: make(map[opKey]int32),
		orMemo:  make(map[opKey]int32),
		notMemo: make(map[int32]int32),
	}
	// terminals occupy the first two slots
	s.nodes = append(s.nodes, node{level: -1}, node{level: -1})
	return s
}

// Declare registers features in order. Declaring fixes the variable order, so
// declaring the whole feature model up front gives stable, compact diagrams.
func (s *Space) Declare(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.levelOf(name)
	}
}

// Features returns all declared feature names in declaration order
func (s *Space) Features() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Var returns the formula that holds exactly where the feature is enabled
func (s *Space) Var(name string) Expr {
	s.mu.Lock()
	defer s.mu.Unlock()
	level := s.levelOf(name)
	return Expr{s: s, id: s.mk(level, falseID, trueID)}
}

// NodeCount returns the size of the shared node table
func (s *Space) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

func (s *Space) levelOf(name string) int32 {
	if level, ok := s.index[name]; ok {
		return level
	}
	level := int32(len(s.names))
	s.names = append(s.names, name)
	s.index[name] = level
	return level
}

// mk returns the canonical node for (level, low, high). Caller holds s.mu.
func (s *Space) mk(level, low, high int32) int32 {
	if low == high {
		return low
	}
	n := node{level: level, low: low, high: high}
	if id, ok := s.unique[n]; ok {
		return id
	}
	id := int32(len(s.nodes))
	s.nodes = append(s.nodes, n)
	s.unique[n] = id
	return id
}

func isTerminal(id int32) bool {
	return id == trueID || id == falseID
}

func (s *Space) not(a int32) int32 {
	switch a {
	case trueID:
		return falseID
	case falseID:
		return trueID
	}
	if r, ok := s.notMemo[a]; ok {
		return r
	}
	n := s.nodes[a]
	r := s.mk(n.level, s.not(n.low), s.not(n.high))
	s.notMemo[a] = r
	return r
}

func (s *Space) and(a, b int32) int32 {
	switch {
	case a == falseID || b == falseID:
		return falseID
	case a == trueID:
		return b
	case b == trueID || a == b:
		return a
	}
	if a > b {
		a, b = b, a
	}
	key := opKey{a, b}
	if r, ok := s.andMemo[key]; ok {
		return r
	}
	level, al, ah, bl, bh := s.split(a, b)
	r := s.mk(level, s.and(al, bl), s.and(ah, bh))
	s.andMemo[key] = r
	return r
}

func (s *Space) or(a, b int32) int32 {
	switch {
	case a == trueID || b == trueID:
		return trueID
	case a == falseID:
		return b
	case b == falseID || a == b:
		return a
	}
	if a > b {
		a, b = b, a
	}
	key := opKey{a, b}
	if r, ok := s.orMemo[key]; ok {
		return r
	}
	level, al, ah, bl, bh := s.split(a, b)
	r := s.mk(level, s.or(al, bl), s.or(ah, bh))
	s.orMemo[key] = r
	return r
}

// split performs the Shannon expansion of a and b on their topmost variable
func (s *Space) split(a, b int32) (level, al, ah, bl, bh int32) {
	na, nb := s.nodes[a], s.nodes[b]
	switch {
	case isTerminal(a):
		return nb.level, a, a, nb.low, nb.high
	case isTerminal(b):
		return na.level, na.low, na.high, b, b
	case na.level == nb.level:
		return na.level, na.low, na.high, nb.low, nb.high
	case na.level < nb.level:
		return na.level, na.low, na.high, b, b
	default:
		return nb.level, a, a, nb.low, nb.high
	}
}

func (s *Space) trimMemo() {
	if len(s.andMemo)+len(s.orMemo)+len(s.notMemo) < maxMemoEntries {
		return
	}
	s.andMemo = make(map[opKey]int32)
	s.orMemo = make(map[opKey]int32)
	s.notMemo = make(map[int32]int32)
}

// support collects the levels a formula depends on. Caller holds s.mu.
func (s *Space) support(id int32, seen map[int32]bool, levels map[int32]bool) {
	if isTerminal(id) || seen[id] {
		return
	}
	seen[id] = true
	n := s.nodes[id]
	levels[n.level] = true
	s.support(n.low, seen, levels)
	s.support(n.high, seen, levels)
}

// cubes lists the paths to the true terminal as literal conjunctions. Caller holds s.mu.
func (s *Space) cubes(id int32, prefix []string, out *[]string) {
	switch id {
	case falseID:
		return
	case trueID:
		if len(prefix) == 0 {
			*out = append(*out, "True")
			return
		}
		cube := prefix[0]
		for _, lit := range prefix[1:] {
			cube += " && " + lit
		}
		*out = append(*out, cube)
		return
	}
	n := s.nodes[id]
	name := s.names[n.level]
	s.cubes(n.high, append(prefix[:len(prefix):len(prefix)], name), out)
	s.cubes(n.low, append(prefix[:len(prefix):len(prefix)], "!"+name), out)
}

func (s *Space) evaluate(id int32, cfg Configuration) bool {
	for !isTerminal(id) {
		n := s.nodes[id]
		if cfg[s.names[n.level]] {
			id = n.high
		} else {
			id = n.low
		}
	}
	return id == trueID
}

// Exactly returns the formula that holds in cfg and nowhere else, over the
// given features (all declared features when none are named).
func (s *Space) Exactly(cfg Configuration, features ...string) Expr {
	if len(features) == 0 {
		features = s.Features()
	}
	e := True()
	for _, name := range features {
		v := s.Var(name)
		if cfg[name] {
			e = e.And(v)
		} else {
			e = e.AndNot(v)
		}
	}
	return e
}

// MaxConfigurations bounds how many assignments Configurations enumerates
const MaxConfigurations = 1 << 16

// ErrTooManyConfigurations is returned by Configurations when more than
// MaxConfigurations assignments satisfy the formula
var ErrTooManyConfigurations = errors.New("featureexpr: too many configurations to enumerate")

// scope merges features with the support of e, sorted by name
func scope(e Expr, features []string) []string {
	seen := make(map[string]bool)
	var all []string
	for _, name := range append(append([]string{}, features...), e.Features()...) {
		if !seen[name] {
			seen[name] = true
			all = append(all, name)
		}
	}
	sort.Strings(all)
	return all
}

// order splits names into declared variables in level order followed by the
// names the space has never seen. Caller holds s.mu.
func (s *Space) order(names []string) (vars []string, levels []int32, declared int) {
	for _, name := range names {
		if _, ok := s.index[name]; ok {
			vars = append(vars, name)
		}
	}
	sort.Slice(vars, func(i, j int) bool { return s.index[vars[i]] < s.index[vars[j]] })
	declared = len(vars)
	for _, name := range names {
		if _, ok := s.index[name]; !ok {
			vars = append(vars, name)
		}
	}
	levels = make([]int32, len(vars))
	for i, name := range vars {
		if i < declared {
			levels[i] = s.index[name]
		} else {
			levels[i] = -1
		}
	}
	return vars, levels, declared
}

// Count returns the number of assignments of features that satisfy e without
// enumerating them. The features of e's support are always included.
func (s *Space) Count(e Expr, features ...string) *big.Int {
	all := scope(e, features)
	s.mu.Lock()
	defer s.mu.Unlock()
	vars, levels, declared := s.order(all)
	pos := make(map[int32]int, declared)
	for i := 0; i < declared; i++ {
		pos[levels[i]] = i
	}
	posOf := func(id int32) int {
		if isTerminal(id) {
			return declared
		}
		return pos[s.nodes[id].level]
	}

	memo := make(map[int32]*big.Int)
	var count func(id int32) *big.Int
	count = func(id int32) *big.Int {
		switch id {
		case trueID:
			return big.NewInt(1)
		case falseID:
			return big.NewInt(0)
		}
		if c, ok := memo[id]; ok {
			return c
		}
		n := s.nodes[id]
		p := pos[n.level]
		low := new(big.Int).Lsh(count(n.low), uint(posOf(n.low)-p-1))
		high := new(big.Int).Lsh(count(n.high), uint(posOf(n.high)-p-1))
		c := low.Add(low, high)
		memo[id] = c
		return c
	}

	total := new(big.Int).Lsh(count(e.id), uint(posOf(e.id)))
	return total.Lsh(total, uint(len(vars)-declared))
}

// Configurations enumerates the assignments of features that satisfy e. The
// features of e's support are always included. Assignments are ordered as
// binary numbers with the first feature by name as the lowest bit.
func (s *Space) Configurations(e Expr, features ...string) ([]Configuration, error) {
	all := scope(e, features)
	if n := s.Count(e, all...); n.Cmp(big.NewInt(MaxConfigurations)) > 0 {
		return nil, fmt.Errorf("%w: %s assignments of %d features", ErrTooManyConfigurations, n, len(all))
	}

	s.mu.Lock()
	vars, levels, _ := s.order(all)
	var out []Configuration
	s.assign(e.id, vars, levels, 0, make(Configuration, len(vars)), &out)
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		for k := len(all) - 1; k >= 0; k-- {
			a, b := out[i][all[k]], out[j][all[k]]
			if a != b {
				return b
			}
		}
		return false
	})
	return out, nil
}

// assign walks the diagram along vars, expanding variables the path skips.
// Caller holds s.mu.
func (s *Space) assign(id int32, vars []string, levels []int32, i int, cur Configuration, out *[]Configuration) {
	if id == falseID {
		return
	}
	if i == len(vars) {
		cfg := make(Configuration, len(cur))
		for k, v := range cur {
			cfg[k] = v
		}
		*out = append(*out, cfg)
		return
	}
	low, high := id, id
	if !isTerminal(id) && s.nodes[id].level == levels[i] {
		low, high = s.nodes[id].low, s.nodes[id].high
	}
	cur[vars[i]] = false
	s.assign(low, vars, levels, i+1, cur, out)
	cur[vars[i]] = true
	s.assign(high, vars, levels, i+1, cur, out)
}
