package value

import (
	"math"
	"strconv"

	"quercus/errors"
)

// Key is a normalized array key: an integer or a string
type Key struct {
	isStr bool
	i     int64
	s     string
}

// IntKey returns the integer key n
func IntKey(n int64) Key { return Key{i: n} }

// StrKey returns the key for s, normalizing canonical decimal strings to integers
func StrKey(s string) Key {
	if n, ok := canonicalInt(s); ok {
		return Key{i: n}
	}
	return Key{isStr: true, s: s}
}

// IsString reports whether the key is a string key
func (k Key) IsString() bool { return k.isStr }

// Int returns the integer value of an integer key
func (k Key) Int() int64 { return k.i }

// Value returns the key as a PHP value
func (k Key) Value() Value {
	if k.isStr {
		return Str(k.s)
	}
	return Long(k.i)
}

func (k Key) String() string {
	if k.isStr {
		return k.s
	}
	return strconv.FormatInt(k.i, 10)
}

// canonicalInt accepts "0", "-5", "42" but not "05", "-0", "+1" or " 1"
func canonicalInt(s string) (int64, bool) {
	if s == "" || len(s) > 20 {
		return 0, false
	}
	digits := s
	if s[0] == '-' {
		digits = s[1:]
	}
	if digits == "" || (digits[0] == '0' && len(digits) > 1) || (s[0] == '-' && digits == "0") {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if !isDigit(digits[i]) {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// ToKey converts v to an array key. Illegal offsets produce a warning.
func ToKey(v Value) (Key, *errors.ExecutionError) {
	switch x := v.(type) {
	case nil, Null, Unset, *ErrorValue:
		return Key{isStr: true}, nil
	case Bool:
		if x {
			return IntKey(1), nil
		}
		return IntKey(0), nil
	case Long:
		return IntKey(int64(x)), nil
	case Double:
		d := float64(x)
		if d != math.Trunc(d) || math.IsNaN(d) || math.IsInf(d, 0) {
			return IntKey(doubleToLong(d)), errors.NewWarning(errors.CodeConversion, "Implicit conversion from float "+formatDouble(d)+" to int loses precision")
		}
		return IntKey(doubleToLong(d)), nil
	case String:
		return StrKey(x.s), nil
	case *StringBuilder:
		return StrKey(string(x.buf)), nil
	case *Resource:
		return IntKey(x.ID), errors.NewWarning(errors.CodeConversion, "Resource ID#"+strconv.FormatInt(x.ID, 10)+" used as offset, casting to integer")
	}
	return Key{}, errors.NewWarning(errors.CodeConversion, "Illegal offset type "+kindName(v))
}

// slot is an array entry. A slot with a non-nil ref is a reference slot: the
// entry aliases that Var and copies of the array share it.
type slot struct {
	key Key
	val Value
	ref *Var
}

type arrayData struct {
	// number of Array handles sharing this data
	refs  int
	order []*slot
	index map[Key]int
	next  int64
	nrefs int
}

// Array is an ordered PHP array with copy-on-write storage. Each Array handle
// belongs to exactly one storage location; Copy hands out a new handle that
// shares the data until either side writes.
type Array struct {
	d *arrayData
}

// NewArray creates an empty array
func NewArray() *Array {
	return &Array{d: &arrayData{refs: 1, index: make(map[Key]int)}}
}

// Copy returns a copy-on-write copy of a
func (a *Array) Copy() *Array {
	a.d.refs++
	return &Array{d: a.d}
}

// IsShared reports whether the storage is currently shared with another handle
func (a *Array) IsShared() bool { return a.d.refs > 1 }

// mutable detaches a from shared storage before a write
func (a *Array) mutable() *arrayData {
	if a.d.refs <= 1 {
		return a.d
	}
	a.d.refs--
	a.d = a.d.clone()
	return a.d
}

// Detach gives a storage of its own, so nested values read from it can be
// updated in place
func (a *Array) Detach() { a.mutable() }

// clone duplicates plain entries and shares reference entries
func (d *arrayData) clone() *arrayData {
	c := &arrayData{
		refs:  1,
		order: make([]*slot, len(d.order)),
		index: make(map[Key]int, len(d.index)),
		next:  d.next,
		nrefs: d.nrefs,
	}
	for i, s := range d.order {
		ns := &slot{key: s.key, ref: s.ref}
		if s.ref == nil {
			ns.val = Copy(s.val)
		}
		c.order[i] = ns
		c.index[s.key] = i
	}
	return c
}

func (a *Array) String() string {
	return "Array(" + strconv.Itoa(a.Len()) + ")"
}

// Len returns the number of entries
func (a *Array) Len() int { return len(a.d.order) }

// HasRefs reports whether any entry is a reference slot
func (a *Array) HasRefs() bool { return a.d.nrefs > 0 }

// NextIndex returns the key the next append will use
func (a *Array) NextIndex() int64 { return a.d.next }

// Keys returns the keys in order
func (a *Array) Keys() []Key {
	out := make([]Key, len(a.d.order))
	for i, s := range a.d.order {
		out[i] = s.key
	}
	return out
}

// Has reports whether k is present
func (a *Array) Has(k Key) bool {
	_, ok := a.d.index[k]
	return ok
}

// Get returns the plain value or the reference stored under k
func (a *Array) Get(k Key) (Value, *Var, bool) {
	i, ok := a.d.index[k]
	if !ok {
		return UNSET, nil, false
	}
	s := a.d.order[i]
	return s.val, s.ref, true
}

// Each calls f for every entry in order until f returns false
func (a *Array) Each(f func(k Key, v Value, ref *Var) bool) {
	for _, s := range a.d.order {
		if !f(s.key, s.val, s.ref) {
			return
		}
	}
}

func (d *arrayData) bump(k Key) {
	if !k.isStr && k.i >= d.next {
		if k.i == math.MaxInt64 {
			d.next = k.i
		} else {
			d.next = k.i + 1
		}
	}
}

func (d *arrayData) slotFor(k Key) *slot {
	if i, ok := d.index[k]; ok {
		return d.order[i]
	}
	s := &slot{key: k, val: UNSET}
	d.index[k] = len(d.order)
	d.order = append(d.order, s)
	d.bump(k)
	return s
}

// Set stores a plain value under k, replacing any reference binding of the entry
func (a *Array) Set(k Key, v Value) {
	d := a.mutable()
	s := d.slotFor(k)
	if s.ref != nil {
		d.nrefs--
		s.ref = nil
	}
	s.val = v
}

// BindRef makes the entry under k a reference slot aliasing r
func (a *Array) BindRef(k Key, r *Var) {
	d := a.mutable()
	s := d.slotFor(k)
	if s.ref == nil {
		d.nrefs++
	}
	s.ref = r
	s.val = nil
}

// RefAt returns the Var of the entry under k, promoting a plain entry to a
// reference slot; a missing entry is created holding initial
func (a *Array) RefAt(k Key, initial Value) *Var {
	d := a.mutable()
	s := d.slotFor(k)
	if s.ref == nil {
		v := s.val
		if _, unset := v.(Unset); unset || v == nil {
			v = initial
		}
		s.ref = NewVar(v)
		s.val = nil
		d.nrefs++
	}
	return s.ref
}

// Append stores v under the next free integer key and returns that key
func (a *Array) Append(v Value) (Key, bool) {
	if a.d.next == math.MaxInt64 && a.Has(IntKey(math.MaxInt64)) {
		return Key{}, false
	}
	k := IntKey(a.d.next)
	a.Set(k, v)
	return k, true
}

// AppendRef appends a reference slot aliasing r
func (a *Array) AppendRef(r *Var) (Key, bool) {
	if a.d.next == math.MaxInt64 && a.Has(IntKey(math.MaxInt64)) {
		return Key{}, false
	}
	k := IntKey(a.d.next)
	a.BindRef(k, r)
	return k, true
}

// Remove deletes the entry under k. The next free index is not lowered.
func (a *Array) Remove(k Key) {
	if !a.Has(k) {
		return
	}
	d := a.mutable()
	i := d.index[k]
	if d.order[i].ref != nil {
		d.nrefs--
	}
	copy(d.order[i:], d.order[i+1:])
	d.order = d.order[:len(d.order)-1]
	delete(d.index, k)
	for j := i; j < len(d.order); j++ {
		d.index[d.order[j].key] = j
	}
}

// NewList builds a list array from values
func NewList(values ...Value) *Array {
	a := NewArray()
	for _, v := range values {
		a.Append(v)
	}
	return a
}
