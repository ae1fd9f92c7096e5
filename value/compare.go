package value

import (
	"math"
	"strings"

	"quercus/errors"
	"quercus/featureexpr"
	"quercus/varex"
)

// Ordering is the result of a loose comparison
type Ordering int

const (
	Less      Ordering = -1
	Equal     Ordering = 0
	Greater   Ordering = 1
	Unordered Ordering = 2 // NAN on either side
)

// Neg flips the ordering
func (o Ordering) Neg() Ordering {
	if o == Unordered {
		return o
	}
	return -o
}

// Int returns the spaceship result of the ordering; unordered compares as 1
func (o Ordering) Int() int64 {
	if o == Unordered {
		return 1
	}
	return int64(o)
}

const maxCompareDepth = 256

func incomparable(a, b Value) *errors.ExecutionError {
	return errors.NewFatalError(errors.CodeIncomparable,
		"Cannot compare values of type "+kindName(a)+" and "+kindName(b))
}

func orderInts(a, b int64) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	}
	return Equal
}

func orderFloats(a, b float64) Ordering {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return Unordered
	case a < b:
		return Less
	case a > b:
		return Greater
	}
	return Equal
}

func orderBools(a, b bool) Ordering {
	switch {
	case a == b:
		return Equal
	case b:
		return Less
	}
	return Greater
}

func orderStrings(a, b string) Ordering {
	return Ordering(strings.Compare(a, b))
}

// normalize maps the null-like variants onto Null
func normalize(v Value) Value {
	switch v.(type) {
	case nil, Unset, *ErrorValue:
		return NULL
	}
	return v
}

// Cmp compares a and b with PHP's loose ordering. Values holding variational
// cells must be resolved first. Mutually incomparable values return an error.
func Cmp(a, b Value) (Ordering, *errors.ExecutionError) {
	return cmp(a, b, 0)
}

func cmp(a, b Value, depth int) (Ordering, *errors.ExecutionError) {
	if depth > maxCompareDepth {
		return Equal, errors.NewFatalError(errors.CodeIncomparable, "Nesting level too deep - recursive dependency?")
	}
	a, b = normalize(a), normalize(b)

	as, aIsStr := stringOf(a)
	bs, bIsStr := stringOf(b)
	_, aNull := a.(Null)
	_, bNull := b.(Null)
	switch {
	case aIsStr && bNull:
		return orderStrings(as, ""), nil
	case aNull && bIsStr:
		return orderStrings("", bs), nil
	}

	_, aBool := a.(Bool)
	_, bBool := b.(Bool)
	if aNull || bNull || aBool || bBool {
		return orderBools(ToBool(a), ToBool(b)), nil
	}

	ao, aObj := a.(*Object)
	bo, bObj := b.(*Object)
	if aObj && bObj {
		return cmpObjects(ao, bo, depth)
	}

	if aIsStr && bIsStr {
		an, ak := parseNumeric(as)
		bn, bk := parseNumeric(bs)
		if ak == wellFormedNumeric && bk == wellFormedNumeric {
			return cmpNumbers(an, bn), nil
		}
		return orderStrings(as, bs), nil
	}

	aa, aArr := a.(*Array)
	ba, bArr := b.(*Array)
	switch {
	case aArr && bArr:
		return cmpArrays(aa, ba, depth)
	case aObj:
		return Greater, nil
	case bObj:
		return Less, nil
	case aArr:
		return Greater, nil
	case bArr:
		return Less, nil
	}

	if isNumericLike(a) && isNumericLike(b) {
		return cmpNumbers(numberOf(a), numberOf(b)), nil
	}

	if ac, ok := a.(*Closure); ok {
		if bc, ok := b.(*Closure); ok && ac == bc {
			return Equal, nil
		}
	}
	return Equal, incomparable(a, b)
}

// isNumericLike covers the numeric, string and resource variants that compare
// numerically with each other
func isNumericLike(v Value) bool {
	switch v.(type) {
	case Long, Double, String, *StringBuilder, *Resource:
		return true
	}
	return false
}

func numberOf(v Value) Value {
	switch x := v.(type) {
	case Long, Double:
		return x
	case *Resource:
		return Long(x.ID)
	}
	s, _ := stringOf(v)
	n, _ := parseNumeric(s)
	return n
}

func cmpNumbers(a, b Value) Ordering {
	al, aLong := a.(Long)
	bl, bLong := b.(Long)
	if aLong && bLong {
		return orderInts(int64(al), int64(bl))
	}
	return orderFloats(ToDouble(a), ToDouble(b))
}

func cmpArrays(a, b *Array, depth int) (Ordering, *errors.ExecutionError) {
	if o := orderInts(int64(a.Len()), int64(b.Len())); o != Equal {
		return o, nil
	}
	for _, s := range a.d.order {
		bv, bref, ok := b.Get(s.key)
		if !ok {
			return Equal, incomparable(a, b)
		}
		o, err := cmp(slotValue(s.val, s.ref), slotValue(bv, bref), depth+1)
		if err != nil || o != Equal {
			return o, err
		}
	}
	return Equal, nil
}

func cmpObjects(a, b *Object, depth int) (Ordering, *errors.ExecutionError) {
	if a.ID == b.ID {
		return Equal, nil
	}
	if !strings.EqualFold(a.ClassName(), b.ClassName()) {
		return Equal, incomparable(a, b)
	}
	if o := orderInts(int64(len(a.names)), int64(len(b.names))); o != Equal {
		return o, nil
	}
	for _, name := range a.names {
		if _, ok := b.fields[name]; !ok {
			return Equal, incomparable(a, b)
		}
		o, err := cmp(a.fieldValue(name), b.fieldValue(name), depth+1)
		if err != nil || o != Equal {
			return o, err
		}
	}
	return Equal, nil
}

// slotValue reads an array entry of a resolved array
func slotValue(v Value, ref *Var) Value {
	if ref != nil {
		return ref.v.GetOne()
	}
	return v
}

// Eq is PHP's loose equality (==)
func Eq(a, b Value) bool {
	return eq(a, b, 0)
}

func eq(a, b Value, depth int) bool {
	if depth > maxCompareDepth {
		return false
	}
	a, b = normalize(a), normalize(b)

	_, aBool := a.(Bool)
	_, bBool := b.(Bool)
	if aBool || bBool {
		return ToBool(a) == ToBool(b)
	}

	as, aIsStr := stringOf(a)
	bs, bIsStr := stringOf(b)
	_, aNull := a.(Null)
	_, bNull := b.(Null)
	switch {
	case aNull && bNull:
		return true
	case aNull && bIsStr:
		return bs == ""
	case bNull && aIsStr:
		return as == ""
	case aNull:
		return !ToBool(b)
	case bNull:
		return !ToBool(a)
	}

	if aIsStr && bIsStr {
		an, ak := parseNumeric(as)
		bn, bk := parseNumeric(bs)
		if ak == wellFormedNumeric && bk == wellFormedNumeric {
			return cmpNumbers(an, bn) == Equal
		}
		return as == bs
	}

	aa, aArr := a.(*Array)
	ba, bArr := b.(*Array)
	if aArr || bArr {
		if !aArr || !bArr || aa.Len() != ba.Len() {
			return false
		}
		for _, s := range aa.d.order {
			bv, bref, ok := ba.Get(s.key)
			if !ok || !eq(slotValue(s.val, s.ref), slotValue(bv, bref), depth+1) {
				return false
			}
		}
		return true
	}

	ao, aObj := a.(*Object)
	bo, bObj := b.(*Object)
	if aObj || bObj {
		if !aObj || !bObj {
			return false
		}
		if ao.ID == bo.ID {
			return true
		}
		if !strings.EqualFold(ao.ClassName(), bo.ClassName()) || len(ao.names) != len(bo.names) {
			return false
		}
		for _, name := range ao.names {
			if _, ok := bo.fields[name]; !ok || !eq(ao.fieldValue(name), bo.fieldValue(name), depth+1) {
				return false
			}
		}
		return true
	}

	ac, aClosure := a.(*Closure)
	bc, bClosure := b.(*Closure)
	if aClosure || bClosure {
		return ac == bc
	}

	if isLongLike(a) && isLongLike(b) {
		return ToLong(a) == ToLong(b)
	}
	if isNumberConvertible(a) || isNumberConvertible(b) {
		return ToDouble(a) == ToDouble(b)
	}
	sa, _ := ToString(a)
	sb, _ := ToString(b)
	return sa == sb
}

// Eql is PHP's strict identity (===)
func Eql(a, b Value) bool {
	return eql(a, b, 0)
}

func eql(a, b Value, depth int) bool {
	if depth > maxCompareDepth {
		return false
	}
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Long:
		y, ok := b.(Long)
		return ok && x == y
	case Double:
		y, ok := b.(Double)
		return ok && x == y
	case String, *StringBuilder:
		bs, ok := stringOf(b)
		as, _ := stringOf(x)
		return ok && as == bs
	case *Array:
		y, ok := b.(*Array)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, s := range x.d.order {
			t := y.d.order[i]
			if s.key != t.key || !eql(slotValue(s.val, s.ref), slotValue(t.val, t.ref), depth+1) {
				return false
			}
		}
		return true
	case *Object:
		y, ok := b.(*Object)
		return ok && x.ID == y.ID
	case *Resource:
		y, ok := b.(*Resource)
		return ok && x.ID == y.ID
	case *Closure:
		y, ok := b.(*Closure)
		return ok && x == y
	}
	return a == b
}

// Identical reports whether a and b are the same stored value: the same
// handle for arrays, objects and builders, equal content for scalars. It is
// the merge criterion for variational cells.
func Identical(a, b Value) bool {
	switch x := a.(type) {
	case *Array:
		y, ok := b.(*Array)
		return ok && x == y
	case *Object:
		y, ok := b.(*Object)
		return ok && x == y
	case *StringBuilder:
		y, ok := b.(*StringBuilder)
		return ok && x == y
	case *Closure, *Resource, *ErrorValue, *Break, *Continue, *Abort:
		return a == b
	case Double:
		y, ok := b.(Double)
		return ok && (x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y))))
	}
	return a == b
}

// Resolve splits v into snapshots that hold no variational cells within ctx:
// arrays with reference entries and objects are rebuilt per combination of
// their cell contents. Snapshots of objects keep the object identity.
func Resolve(ctx featureexpr.Expr, v Value) varex.V[Value] {
	if !needsResolve(v, 0) {
		return varex.OneIn(ctx, v)
	}
	return resolve(ctx, v, make(map[int64]bool), 0)
}

func needsResolve(v Value, depth int) bool {
	switch x := v.(type) {
	case *Object:
		return true
	case *Array:
		if x.HasRefs() {
			return true
		}
		if depth > maxCompareDepth {
			return false
		}
		for _, s := range x.d.order {
			if needsResolve(s.val, depth+1) {
				return true
			}
		}
	}
	return false
}

func resolve(ctx featureexpr.Expr, v Value, seen map[int64]bool, depth int) varex.V[Value] {
	if depth > maxCompareDepth {
		return varex.OneIn(ctx, v)
	}
	switch x := v.(type) {
	case *Array:
		if !needsResolve(x, 0) {
			return varex.OneIn(ctx, v)
		}
		entries := make([]varex.V[Value], len(x.d.order))
		for i, s := range x.d.order {
			entries[i] = resolveCell(ctx, s.val, s.ref, seen, depth)
		}
		keys := x.Keys()
		next := x.d.next
		return varex.Map(varex.Sequence(entries, ctx), func(vals []Value) Value {
			a := NewArray()
			for i, k := range keys {
				a.Set(k, vals[i])
			}
			a.d.next = next
			return a
		})
	case *Object:
		if seen[x.ID] {
			return varex.OneIn(ctx, v)
		}
		seen[x.ID] = true
		defer delete(seen, x.ID)
		fields := make([]varex.V[Value], len(x.names))
		for i, name := range x.names {
			fields[i] = resolveCell(ctx, nil, x.fields[name], seen, depth)
		}
		return varex.Map(varex.Sequence(fields, ctx), func(vals []Value) Value {
			return x.snapshotWith(vals)
		})
	}
	return varex.OneIn(ctx, v)
}

func resolveCell(ctx featureexpr.Expr, v Value, ref *Var, seen map[int64]bool, depth int) varex.V[Value] {
	if ref == nil {
		return resolve(ctx, v, seen, depth+1)
	}
	return varex.SFlatMap(ref.Get(ctx), ctx, func(c featureexpr.Expr, x Value) varex.V[Value] {
		return resolve(c, x, seen, depth+1)
	})
}
