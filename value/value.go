// Package value implements the PHP value model: a closed set of value
// variants, reference cells and copy-on-write arrays, together with the
// coercion, comparison and arithmetic rules between them.
package value

import (
	"fmt"
	"strconv"

	"quercus/errors"
)

// Kind identifies a value variant
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindLong
	KindDouble
	KindString
	KindArray
	KindObject
	KindResource
	KindCallable
	KindError
	KindUnset
	KindBreak
	KindContinue
	KindAbort
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindLong:
		return "int"
	case KindDouble:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindResource:
		return "resource"
	case KindCallable:
		return "callable"
	case KindError:
		return "error"
	case KindUnset:
		return "unset"
	case KindBreak:
		return "break"
	case KindContinue:
		return "continue"
	case KindAbort:
		return "abort"
	case KindMixed:
		return "mixed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a PHP runtime value. The set of implementations is closed; all
// capabilities are package functions switching over the variants.
type Value interface {
	Kind() Kind
	sealed()
}

// Null is the PHP null
type Null struct{}

// Bool is a PHP boolean
type Bool bool

// Long is a PHP integer
type Long int64

// Double is a PHP float
type Double float64

// String is an immutable PHP string. Unicode strings come from the unicode
// semantics of the source; binary is the default.
type String struct {
	s       string
	unicode bool
}

// StringBuilder is a mutable string used by repeated concatenation
type StringBuilder struct {
	buf     []byte
	unicode bool
}

// Resource is an opaque host handle
type Resource struct {
	ID     int64
	Type   string
	Handle interface{}
}

// Callable is implemented by engine functions that closures wrap
type Callable interface {
	Name() string
}

// Closure is a callable value, optionally bound to an object
type Closure struct {
	Fn   Callable
	This *Object
}

// ErrorValue is the sentinel produced where a call target could not be resolved.
// It behaves like null in every conversion.
type ErrorValue struct {
	Err *errors.ExecutionError
}

// Unset marks an absent variable, index or field
type Unset struct{}

// Break is the completion signal of break with the remaining loop levels
type Break struct {
	Target int
}

// Continue is the completion signal of continue with the remaining loop levels
type Continue struct {
	Target int
}

// Abort is the completion signal of configurations whose evaluation hit a
// fatal branch fault
type Abort struct {
	Err *errors.ExecutionError
}

var (
	NULL  Value = Null{}
	TRUE  Value = Bool(true)
	FALSE Value = Bool(false)
	UNSET Value = Unset{}

	emptyString Value = String{}

	// BREAK and CONTINUE are the single-level signals
	BREAK    Value = &Break{Target: 1}
	CONTINUE Value = &Continue{Target: 1}
)

func (Null) Kind() Kind           { return KindNull }
func (Bool) Kind() Kind           { return KindBool }
func (Long) Kind() Kind           { return KindLong }
func (Double) Kind() Kind         { return KindDouble }
func (String) Kind() Kind         { return KindString }
func (*StringBuilder) Kind() Kind { return KindString }
func (*Array) Kind() Kind         { return KindArray }
func (*Object) Kind() Kind        { return KindObject }
func (*Resource) Kind() Kind      { return KindResource }
func (*Closure) Kind() Kind       { return KindCallable }
func (*ErrorValue) Kind() Kind    { return KindError }
func (Unset) Kind() Kind          { return KindUnset }
func (*Break) Kind() Kind         { return KindBreak }
func (*Continue) Kind() Kind      { return KindContinue }
func (*Abort) Kind() Kind         { return KindAbort }

func (Null) sealed()           {}
func (Bool) sealed()           {}
func (Long) sealed()           {}
func (Double) sealed()         {}
func (String) sealed()         {}
func (*StringBuilder) sealed() {}
func (*Array) sealed()         {}
func (*Object) sealed()        {}
func (*Resource) sealed()      {}
func (*Closure) sealed()       {}
func (*ErrorValue) sealed()    {}
func (Unset) sealed()          {}
func (*Break) sealed()         {}
func (*Continue) sealed()      {}
func (*Abort) sealed()         {}

// Str creates a binary string
func Str(s string) String { return String{s: s} }

// Unicode creates a unicode string
func Unicode(s string) String { return String{s: s, unicode: true} }

// IsUnicode reports the flavor of the string
func (s String) IsUnicode() bool { return s.unicode }

// Len returns the length in bytes
func (s String) Len() int { return len(s.s) }

// NewStringBuilder starts a builder with initial content
func NewStringBuilder(initial string) *StringBuilder {
	return &StringBuilder{buf: append([]byte(nil), initial...)}
}

// Append appends text in place
func (b *StringBuilder) Append(s string) *StringBuilder {
	b.buf = append(b.buf, s...)
	return b
}

// Freeze returns the current content as an immutable String
func (b *StringBuilder) Freeze() String {
	return String{s: string(b.buf), unicode: b.unicode}
}

// NewError wraps a resolution failure as a value
func NewError(err *errors.ExecutionError) *ErrorValue {
	return &ErrorValue{Err: err}
}

// IsSignal reports whether v is a control-flow completion signal
func IsSignal(v Value) bool {
	switch v.(type) {
	case *Break, *Continue, *Abort:
		return true
	}
	return false
}

// IsNullish reports whether v converts like null (null, unset, error sentinel)
func IsNullish(v Value) bool {
	switch v.(type) {
	case nil, Null, Unset, *ErrorValue:
		return true
	}
	return false
}

// IsSet reports whether v is present and not null, as isset() does
func IsSet(v Value) bool {
	return !IsNullish(v)
}

// Stringers used by fmt and by V rendering

func (Null) String() string { return "NULL" }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (l Long) String() string           { return strconv.FormatInt(int64(l), 10) }
func (d Double) String() string         { return formatDouble(float64(d)) }
func (s String) String() string         { return s.s }
func (b *StringBuilder) String() string { return string(b.buf) }
func (r *Resource) String() string      { return fmt.Sprintf("Resource id #%d", r.ID) }
func (c *Closure) String() string       { return "Closure(" + c.Fn.Name() + ")" }
func (e *ErrorValue) String() string    { return "ERROR(" + e.Err.Message + ")" }
func (Unset) String() string            { return "UNSET" }
func (b *Break) String() string         { return fmt.Sprintf("BREAK(%d)", b.Target) }
func (c *Continue) String() string      { return fmt.Sprintf("CONTINUE(%d)", c.Target) }
func (a *Abort) String() string         { return "ABORT(" + a.Err.Message + ")" }

// Copy returns the value to store on assignment. Arrays are copied lazily,
// builders are frozen; everything else is shared.
func Copy(v Value) Value {
	switch x := v.(type) {
	case *Array:
		return x.Copy()
	case *StringBuilder:
		return x.Freeze()
	case nil:
		return NULL
	}
	return v
}
