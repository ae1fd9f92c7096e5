package engine

import (
	"fmt"

	"quercus/ast"
	"quercus/errors"
	"quercus/featureexpr"
	"quercus/value"
	"quercus/varex"
)

// arithmetic maps binary and compound assignment operators to their value
// implementation
var arithmetic = map[string]func(a, b value.Value) (value.Value, value.Warnings){
	"+":  value.Add,
	"-":  value.Sub,
	"*":  value.Mul,
	"/":  value.Div,
	"%":  value.Mod,
	".":  value.Concat,
	"&":  value.BitAnd,
	"|":  value.BitOr,
	"^":  value.BitXor,
	"<<": value.Shl,
	">>": value.Shr,
}

// evaluateExpression evaluates expr within ctx. The result covers ctx; its
// aborted branches carry the faults that ended those configurations. The
// error is reserved for request-fatal conditions.
func (env *Env) evaluateExpression(ctx featureexpr.Expr, expr ast.Expression) (varex.V[value.Value], error) {
	if !ctx.IsSatisfiable() {
		return varex.V[value.Value]{}, nil
	}
	switch n := expr.(type) {
	case *ast.Literal:
		return varex.OneIn(ctx, literalValue(n.Value)), nil
	case *ast.Variable:
		return env.readVariable(ctx, n), nil
	case *ast.This:
		if env.scope.this == nil {
			return env.sentinel(ctx, n.Pos, errors.NewWarning(errors.CodeUndefinedVar, "Using $this when not in object context")), nil
		}
		return varex.OneIn(ctx, value.Value(env.scope.this)), nil
	case *ast.ArrayGet:
		return env.readIndex(ctx, n)
	case *ast.ArrayTail:
		return env.fault(ctx, n.Pos, errors.NewRuntimeError(errors.CodeInvalidTarget, "Cannot use [] for reading")), nil
	case *ast.FieldGet:
		return env.readField(ctx, n)
	case *ast.Assign:
		return env.assign(ctx, n)
	case *ast.AssignRef:
		return env.assignRef(ctx, n)
	case *ast.Binary:
		return env.binary(ctx, n)
	case *ast.Unary:
		return env.unary(ctx, n)
	case *ast.Increment:
		return env.increment(ctx, n)
	case *ast.Ternary:
		return env.ternary(ctx, n)
	case *ast.Call:
		return env.callFunction(ctx, n)
	case *ast.CallVar:
		return env.callVariable(ctx, n)
	case *ast.MethodCall:
		return env.callMethod(ctx, n)
	case *ast.StaticCall:
		return env.callStatic(ctx, n)
	case *ast.New:
		return env.newObject(ctx, n)
	case *ast.ArrayLiteral:
		return env.arrayLiteral(ctx, n)
	case *ast.Include:
		return env.include(ctx, n)
	case *ast.InstanceOf:
		return env.instanceOf(ctx, n)
	case *ast.Feature:
		fe, err := env.feature(n.Name, n.Pos)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		return varex.FromBranches(
			varex.Branch[value.Value]{Cond: ctx.And(fe), Value: value.TRUE},
			varex.Branch[value.Value]{Cond: ctx.AndNot(fe), Value: value.FALSE},
		), nil
	case *ast.Choice:
		fe, err := env.feature(n.Condition, n.Pos)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		then, err := env.evaluateExpression(ctx.And(fe), n.Then)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		els, err := env.evaluateExpression(ctx.AndNot(fe), n.Else)
		if err != nil {
			return varex.V[value.Value]{}, err
		}
		return collect(then, els), nil
	case *ast.Closure:
		return env.closure(ctx, n), nil
	}
	return varex.V[value.Value]{}, env.fatal(errors.NewFatalError(errors.CodeUnsupported,
		fmt.Sprintf("unsupported expression %T", expr)).WithLocation(expr.Position()))
}

func literalValue(v interface{}) value.Value {
	switch x := v.(type) {
	case nil:
		return value.NULL
	case bool:
		return value.Bool(x)
	case int:
		return value.Long(x)
	case int64:
		return value.Long(x)
	case uint64:
		return value.Long(int64(x))
	case float64:
		return value.Double(x)
	case string:
		return value.Str(x)
	}
	return value.Str(fmt.Sprint(v))
}

// readVariable reads a variable; unset variables warn and read as unset
func (env *Env) readVariable(ctx featureexpr.Expr, n *ast.Variable) varex.V[value.Value] {
	ev, found := env.scope.vars[n.Name]
	if !found {
		env.warn(ctx, n.Pos, errors.NewWarning(errors.CodeUndefinedVar, "Undefined variable $"+n.Name))
		return varex.OneIn(ctx, value.UNSET)
	}
	v := ev.Get(ctx)
	if unset := v.When(isUnset); unset.IsSatisfiable() {
		env.warn(unset, n.Pos, errors.NewWarning(errors.CodeUndefinedVar, "Undefined variable $"+n.Name))
	}
	return v
}

func isUnset(v value.Value) bool {
	_, ok := v.(value.Unset)
	return ok
}

// readIndex evaluates $a[k] for reading
func (env *Env) readIndex(ctx featureexpr.Expr, n *ast.ArrayGet) (varex.V[value.Value], error) {
	bases, err := env.evaluateExpression(ctx, n.Array)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, bases)
	idx, err := env.evaluateExpression(c, n.Index)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.ZipE(bases, idx, live(c, idx), func(c featureexpr.Expr, b, k value.Value) (varex.V[value.Value], error) {
		return env.indexValue(c, b, k, n.Pos), nil
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, aborted(bases), aborted(idx)), nil
}

// indexValue reads element k of base. Missing keys read as unset.
func (env *Env) indexValue(c featureexpr.Expr, base, k value.Value, pos ast.Position) varex.V[value.Value] {
	switch b := base.(type) {
	case *value.Array:
		key, valid := env.key(c, pos, k)
		if !valid {
			return varex.OneIn(c, value.NULL)
		}
		v, ref, found := b.Get(key)
		if !found {
			env.warn(c, pos, errors.NewWarning(errors.CodeUndefinedIndex, "Undefined array key "+keyText(key)))
			return varex.OneIn(c, value.UNSET)
		}
		return cellIn(c, v, ref)
	case value.String, *value.StringBuilder:
		s, _ := value.ToString(b)
		i := value.ToLong(k)
		if i < 0 {
			i += int64(len(s))
		}
		if i < 0 || i >= int64(len(s)) {
			env.warn(c, pos, errors.NewWarning(errors.CodeUndefinedIndex, fmt.Sprintf("Uninitialized string offset %d", value.ToLong(k))))
			return varex.OneIn(c, value.Value(value.Str("")))
		}
		return varex.OneIn(c, value.Value(value.Str(s[i:i+1])))
	case value.Null, value.Unset, *value.ErrorValue:
		env.warn(c, pos, errors.NewWarning(errors.CodeScalarAsArray, "Trying to access array offset on value of type null"))
		return varex.OneIn(c, value.NULL)
	case *value.Object:
		return env.fault(c, pos, errors.NewRuntimeError(errors.CodeInvalidTarget,
			fmt.Sprintf("Cannot use object of type %s as array", b.ClassName())))
	}
	env.warn(c, pos, errors.NewWarning(errors.CodeScalarAsArray,
		"Trying to access array offset on value of type "+typeName(base)))
	return varex.OneIn(c, value.NULL)
}

func keyText(k value.Key) string {
	if k.IsString() {
		return fmt.Sprintf("%q", k.String())
	}
	return k.String()
}

// readField evaluates $o->f for reading
func (env *Env) readField(ctx featureexpr.Expr, n *ast.FieldGet) (varex.V[value.Value], error) {
	objs, err := env.evaluateExpression(ctx, n.Object)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res := varex.SFlatMap(objs, live(ctx, objs), func(c featureexpr.Expr, o value.Value) varex.V[value.Value] {
		obj, isObj := o.(*value.Object)
		if !isObj {
			env.warn(c, n.Pos, errors.NewWarning(errors.CodeNotAnObject,
				fmt.Sprintf("Attempt to read property \"%s\" on %s", n.Field, typeName(o))))
			return varex.OneIn(c, value.NULL)
		}
		v := obj.GetField(c, n.Field)
		if unset := v.When(isUnset); unset.IsSatisfiable() {
			env.warn(unset, n.Pos, errors.NewWarning(errors.CodeUndefinedIndex,
				fmt.Sprintf("Undefined property: %s::$%s", obj.ClassName(), n.Field)))
		}
		return v
	})
	return collect(res, aborted(objs)), nil
}

// binary evaluates a binary operator. Logical operators and ?? short-circuit.
func (env *Env) binary(ctx featureexpr.Expr, n *ast.Binary) (varex.V[value.Value], error) {
	switch n.Op {
	case "&&", "and":
		return env.logical(ctx, n, false)
	case "||", "or":
		return env.logical(ctx, n, true)
	case "??":
		return env.coalesce(ctx, n)
	}
	left, err := env.evaluateExpression(ctx, n.Left)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, left)
	right, err := env.evaluateExpression(c, n.Right)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.ZipE(left, right, live(c, right), func(c featureexpr.Expr, a, b value.Value) (varex.V[value.Value], error) {
		return env.applyBinary(c, n.Op, a, b, n.Pos)
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, aborted(left), aborted(right)), nil
}

func (env *Env) applyBinary(c featureexpr.Expr, op string, a, b value.Value, pos ast.Position) (varex.V[value.Value], error) {
	switch op {
	case "==", "!=", "<>", "===", "!==", "<", "<=", ">", ">=", "<=>":
		return varex.ZipE(value.Resolve(c, a), value.Resolve(c, b), c, func(c featureexpr.Expr, x, y value.Value) (varex.V[value.Value], error) {
			return env.compare(c, op, x, y, pos), nil
		})
	case "xor":
		return varex.OneIn(c, value.Value(value.Bool(value.ToBool(a) != value.ToBool(b)))), nil
	}
	fn, found := arithmetic[op]
	if !found {
		return varex.V[value.Value]{}, env.fatal(errors.NewFatalError(errors.CodeUnsupported,
			fmt.Sprintf("unsupported binary operator %s", op)).WithLocation(pos))
	}
	r, ws := fn(a, b)
	env.warnAll(c, pos, ws)
	return varex.OneIn(c, r), nil
}

// compare applies a comparison operator to resolved operands. Incomparable
// operands abort the configuration.
func (env *Env) compare(c featureexpr.Expr, op string, a, b value.Value, pos ast.Position) varex.V[value.Value] {
	var r bool
	switch op {
	case "==":
		r = value.Eq(a, b)
	case "!=", "<>":
		r = !value.Eq(a, b)
	case "===":
		r = value.Eql(a, b)
	case "!==":
		r = !value.Eql(a, b)
	default:
		o, err := value.Cmp(a, b)
		if err != nil {
			return env.fault(c, pos, err)
		}
		switch op {
		case "<=>":
			return varex.OneIn(c, value.Value(value.Long(o.Int())))
		case "<":
			r = o == value.Less
		case "<=":
			r = o == value.Less || o == value.Equal
		case ">":
			r = o == value.Greater
		case ">=":
			r = o == value.Greater || o == value.Equal
		}
	}
	return varex.OneIn(c, value.Value(value.Bool(r)))
}

// logical evaluates && and ||. The right operand runs only in the
// configurations the left one does not decide.
func (env *Env) logical(ctx featureexpr.Expr, n *ast.Binary, isOr bool) (varex.V[value.Value], error) {
	left, err := env.evaluateExpression(ctx, n.Left)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, left)
	decided := c.And(left.When(func(v value.Value) bool { return value.ToBool(v) == isOr }))
	rest := c.AndNot(decided)
	right, err := env.evaluateExpression(rest, n.Right)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res := varex.SMap(right, live(rest, right), func(_ featureexpr.Expr, v value.Value) value.Value {
		return value.Bool(value.ToBool(v))
	})
	return collect(varex.OneIn(decided, value.Value(value.Bool(isOr))), res, aborted(left), aborted(right)), nil
}

// coalesce evaluates ??. The left operand is read without undefined
// variable and index warnings.
func (env *Env) coalesce(ctx featureexpr.Expr, n *ast.Binary) (varex.V[value.Value], error) {
	env.quiet++
	left, err := env.evaluateExpression(ctx, n.Left)
	env.quiet--
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, left)
	set := c.And(left.When(func(v value.Value) bool { return !value.IsNullish(v) }))
	right, err := env.evaluateExpression(c.AndNot(set), n.Right)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(left.Select(set), right, aborted(left)), nil
}

// unary evaluates -, +, !, ~ and the scalar casts
func (env *Env) unary(ctx featureexpr.Expr, n *ast.Unary) (varex.V[value.Value], error) {
	operand, err := env.evaluateExpression(ctx, n.Operand)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	res, err := varex.SMapE(operand, live(ctx, operand), func(c featureexpr.Expr, v value.Value) (value.Value, error) {
		var ws value.Warnings
		var r value.Value
		switch n.Op {
		case "-":
			r, ws = value.Neg(v)
		case "+":
			num, w := value.ToNumber(v)
			r, ws = num, value.Warnings{w}
		case "!":
			r = value.Bool(!value.ToBool(v))
		case "~":
			r, ws = value.BitNot(v)
		case "(int)":
			r = value.Long(value.ToLong(v))
		case "(float)":
			r = value.Double(value.ToDouble(v))
		case "(bool)":
			r = value.Bool(value.ToBool(v))
		case "(string)":
			s, w := value.ToStringValue(v)
			r, ws = s, value.Warnings{w}
		default:
			return nil, env.fatal(errors.NewFatalError(errors.CodeUnsupported,
				fmt.Sprintf("unsupported unary operator %s", n.Op)).WithLocation(n.Pos))
		}
		env.warnAll(c, n.Pos, ws)
		return r, nil
	})
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(res, aborted(operand)), nil
}

// ternary evaluates c ? a : b and the short form c ?: b
func (env *Env) ternary(ctx featureexpr.Expr, n *ast.Ternary) (varex.V[value.Value], error) {
	cond, err := env.evaluateExpression(ctx, n.Condition)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	c := live(ctx, cond)
	truthy := c.And(cond.When(value.ToBool))
	var then varex.V[value.Value]
	if n.Then == nil {
		then = cond.Select(truthy)
	} else if then, err = env.evaluateExpression(truthy, n.Then); err != nil {
		return varex.V[value.Value]{}, err
	}
	els, err := env.evaluateExpression(c.AndNot(truthy), n.Else)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	return collect(then, els, aborted(cond)), nil
}

// entry is one element of an array literal in one configuration
type entry struct {
	key    value.Value
	hasKey bool
	val    value.Value
	ref    *value.Var
}

// arrayLiteral builds an array left to right. Elements without a key get
// the next integer index; & elements are stored as references.
func (env *Env) arrayLiteral(ctx featureexpr.Expr, n *ast.ArrayLiteral) (varex.V[value.Value], error) {
	acc := varex.OneIn(ctx, value.Value(value.NewArray()))
	var faults []varex.Branch[value.Value]
	c := ctx
	for _, item := range n.Items {
		keys := varex.OneIn[value.Value](c, nil)
		if item.Key != nil {
			k, err := env.evaluateExpression(c, item.Key)
			if err != nil {
				return varex.V[value.Value]{}, err
			}
			faults = append(faults, aborted(k).Branches()...)
			c = live(c, k)
			keys = k
		}
		var entries varex.V[entry]
		if item.ByRef {
			refs, aborts, err := env.evaluateRef(c, item.Value)
			if err != nil {
				return varex.V[value.Value]{}, err
			}
			faults = append(faults, aborts.Branches()...)
			c = c.AndNot(aborts.Cond())
			entries = varex.Zip(keys, refs, c, func(_ featureexpr.Expr, k value.Value, r *value.Var) entry {
				return entry{key: k, hasKey: item.Key != nil, ref: r}
			})
		} else {
			v, err := env.evaluateExpression(c, item.Value)
			if err != nil {
				return varex.V[value.Value]{}, err
			}
			faults = append(faults, aborted(v).Branches()...)
			c = live(c, v)
			entries = varex.Zip(keys, v, c, func(_ featureexpr.Expr, k, x value.Value) entry {
				return entry{key: k, hasKey: item.Key != nil, val: storable(x)}
			})
		}

		var err error
		acc, err = varex.SFlatMapE(acc, c, func(c featureexpr.Expr, a value.Value) (varex.V[value.Value], error) {
			return perBranch(entries, c, a, func(c featureexpr.Expr, cur value.Value, e entry) (varex.V[value.Value], error) {
				arr := cur.(*value.Array)
				arr.Detach()
				env.putEntry(c, arr, e, n.Pos)
				return varex.OneIn(c, cur), nil
			})
		})
		if err != nil {
			return varex.V[value.Value]{}, err
		}
	}
	return collect(acc, varex.FromBranches(faults...)), nil
}

func (env *Env) putEntry(c featureexpr.Expr, arr *value.Array, e entry, pos ast.Position) {
	if !e.hasKey {
		var appended bool
		if e.ref != nil {
			_, appended = arr.AppendRef(e.ref)
		} else {
			_, appended = arr.Append(e.val)
		}
		if !appended {
			env.warn(c, pos, errors.NewWarning(errors.CodeInvalidTarget,
				"Cannot add element to the array as the next element is already occupied"))
		}
		return
	}
	key, valid := env.key(c, pos, e.key)
	if !valid {
		return
	}
	if e.ref != nil {
		arr.BindRef(key, e.ref)
		return
	}
	arr.Set(key, e.val)
}

// closure creates a closure value. Each closure expression compiles to one
// Function; the value binds the current $this unless the closure is static.
func (env *Env) closure(ctx featureexpr.Expr, n *ast.Closure) varex.V[value.Value] {
	fn, found := env.closures[n]
	if !found {
		fn = &Function{decl: n.Function, name: "{closure}", class: env.scope.class, file: env.file}
		env.closures[n] = fn
	}
	var this *value.Object
	if !n.Function.Static {
		this = env.scope.this
	}
	return varex.OneIn(ctx, value.Value(&value.Closure{Fn: fn, This: this}))
}

// instanceOf evaluates both operands in the request context rather than in
// ctx, then narrows the answer to ctx
func (env *Env) instanceOf(ctx featureexpr.Expr, n *ast.InstanceOf) (varex.V[value.Value], error) {
	subjects, err := env.evaluateExpression(env.root, n.Expr)
	if err != nil {
		return varex.V[value.Value]{}, err
	}
	var classes varex.V[value.Value]
	if lit, isLit := n.Class.(*ast.Literal); isLit {
		classes = varex.OneIn(env.root, literalValue(lit.Value))
	} else if classes, err = env.evaluateExpression(env.root, n.Class); err != nil {
		return varex.V[value.Value]{}, err
	}
	res := varex.Zip(subjects, classes, env.root, func(_ featureexpr.Expr, v, cls value.Value) value.Value {
		if isAbort(v) {
			return v
		}
		if isAbort(cls) {
			return cls
		}
		obj, isObj := v.(*value.Object)
		if !isObj {
			return value.FALSE
		}
		if other, isOther := cls.(*value.Object); isOther {
			return value.Bool(obj.IsA(other.ClassName()))
		}
		name, _ := value.ToString(cls)
		return value.Bool(obj.IsA(name))
	})
	return res.Select(ctx), nil
}
