package value

import (
	"strings"
	"sync/atomic"

	"quercus/featureexpr"
	"quercus/varex"
)

// ClassInfo is the class descriptor an object is an instance of
type ClassInfo interface {
	Name() string
	// IsA reports membership in the named class or one of its ancestors,
	// case-insensitively
	IsA(name string) bool
}

var lastObjectID atomic.Int64

// Object is a PHP object. Objects are shared by handle; assignment never
// copies them. Fields are reference cells kept in declaration order.
type Object struct {
	ID     int64
	Class  ClassInfo
	names  []string
	fields map[string]*Var
}

// NewObject creates an instance of class with no fields
func NewObject(class ClassInfo) *Object {
	return &Object{
		ID:     lastObjectID.Add(1),
		Class:  class,
		fields: make(map[string]*Var),
	}
}

// ClassName returns the name of the object's class
func (o *Object) ClassName() string {
	if o.Class == nil {
		return "stdClass"
	}
	return o.Class.Name()
}

// IsA reports whether the object is an instance of the named class
func (o *Object) IsA(name string) bool {
	if o.Class == nil {
		return strings.EqualFold(name, "stdClass")
	}
	return o.Class.IsA(name)
}

func (o *Object) String() string {
	return "Object(" + o.ClassName() + ")"
}

// FieldNames returns the field names in declaration order
func (o *Object) FieldNames() []string {
	return o.names
}

// Field returns the cell of a field
func (o *Object) Field(name string) (*Var, bool) {
	f, ok := o.fields[name]
	return f, ok
}

// FieldVar returns the cell of a field, creating an unset one when missing
func (o *Object) FieldVar(name string) *Var {
	if f, ok := o.fields[name]; ok {
		return f
	}
	f := NewVar(UNSET)
	o.names = append(o.names, name)
	o.fields[name] = f
	return f
}

// GetField reads a field within ctx; missing fields read as unset
func (o *Object) GetField(ctx featureexpr.Expr, name string) varex.V[Value] {
	f, ok := o.fields[name]
	if !ok {
		return varex.OneIn(ctx, UNSET)
	}
	return f.Get(ctx)
}

// SetField assigns a field within ctx
func (o *Object) SetField(ctx featureexpr.Expr, name string, v varex.V[Value]) {
	o.FieldVar(name).Set(ctx, v)
}

// BindField replaces a field cell, making the field a reference to r
func (o *Object) BindField(name string, r *Var) {
	if _, ok := o.fields[name]; !ok {
		o.names = append(o.names, name)
	}
	o.fields[name] = r
}

// snapshotWith returns a detached object with the same identity holding the
// given plain field values
func (o *Object) snapshotWith(values []Value) *Object {
	s := &Object{
		ID:     o.ID,
		Class:  o.Class,
		names:  o.names,
		fields: make(map[string]*Var, len(o.names)),
	}
	for i, name := range o.names {
		s.fields[name] = NewVar(values[i])
	}
	return s
}

// fieldValue returns the value of a field of a snapshot object
func (o *Object) fieldValue(name string) Value {
	f, ok := o.fields[name]
	if !ok {
		return UNSET
	}
	return f.v.GetOne()
}
