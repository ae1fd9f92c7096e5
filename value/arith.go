package value

import (
	"math"
	"math/bits"

	"quercus/errors"
)

// Warnings collects the recoverable diagnostics of one operation
type Warnings []*errors.ExecutionError

func (w *Warnings) add(err *errors.ExecutionError) {
	if err != nil {
		*w = append(*w, err)
	}
}

func unsupportedOperands(op string, a, b Value) *errors.ExecutionError {
	return errors.NewWarning(errors.CodeUnsupportedOp,
		"Unsupported operand types: "+kindName(a)+" "+op+" "+kindName(b))
}

// operands converts both sides to numbers, collecting conversion warnings
func operands(a, b Value, w *Warnings) (Value, Value) {
	x, err := ToNumber(a)
	w.add(err)
	y, err := ToNumber(b)
	w.add(err)
	return x, y
}

// Add implements +. Two arrays form their union; an array with a scalar is an
// unsupported operand.
func Add(a, b Value) (Value, Warnings) {
	var w Warnings
	aa, aArr := a.(*Array)
	ba, bArr := b.(*Array)
	switch {
	case aArr && bArr:
		out := aa.Copy()
		ba.Each(func(k Key, v Value, ref *Var) bool {
			if out.Has(k) {
				return true
			}
			if ref != nil {
				out.BindRef(k, ref)
			} else {
				out.Set(k, Copy(v))
			}
			return true
		})
		return out, nil
	case aArr || bArr:
		w.add(unsupportedOperands("+", a, b))
		return NULL, w
	}
	x, y := operands(a, b, &w)
	xl, xLong := x.(Long)
	yl, yLong := y.(Long)
	if xLong && yLong {
		s := xl + yl
		if (s > xl) == (yl > 0) {
			return s, w
		}
		return Double(float64(xl) + float64(yl)), w
	}
	return Double(ToDouble(x) + ToDouble(y)), w
}

// Sub implements -
func Sub(a, b Value) (Value, Warnings) {
	var w Warnings
	if isArray(a) || isArray(b) {
		w.add(unsupportedOperands("-", a, b))
		return NULL, w
	}
	x, y := operands(a, b, &w)
	xl, xLong := x.(Long)
	yl, yLong := y.(Long)
	if xLong && yLong {
		d := xl - yl
		if (d < xl) == (yl > 0) {
			return d, w
		}
		return Double(float64(xl) - float64(yl)), w
	}
	return Double(ToDouble(x) - ToDouble(y)), w
}

// Mul implements *
func Mul(a, b Value) (Value, Warnings) {
	var w Warnings
	if isArray(a) || isArray(b) {
		w.add(unsupportedOperands("*", a, b))
		return NULL, w
	}
	x, y := operands(a, b, &w)
	xl, xLong := x.(Long)
	yl, yLong := y.(Long)
	if xLong && yLong {
		hi, lo := bits.Mul64(uint64(abs64(int64(xl))), uint64(abs64(int64(yl))))
		if hi == 0 && lo <= math.MaxInt64 && xl != math.MinInt64 && yl != math.MinInt64 {
			return xl * yl, w
		}
		return Double(float64(xl) * float64(yl)), w
	}
	return Double(ToDouble(x) * ToDouble(y)), w
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Div implements /. The result is an integer when both operands are integers
// and the division is exact; division by zero warns and yields false.
func Div(a, b Value) (Value, Warnings) {
	var w Warnings
	if isArray(a) || isArray(b) {
		w.add(unsupportedOperands("/", a, b))
		return NULL, w
	}
	x, y := operands(a, b, &w)
	if ToDouble(y) == 0 {
		w.add(errors.NewWarning(errors.CodeDivisionByZero, "Division by zero"))
		return FALSE, w
	}
	xl, xLong := x.(Long)
	yl, yLong := y.(Long)
	if xLong && yLong && !(xl == math.MinInt64 && yl == -1) && xl%yl == 0 {
		return xl / yl, w
	}
	return Double(ToDouble(x) / ToDouble(y)), w
}

// Mod implements %, always on integers
func Mod(a, b Value) (Value, Warnings) {
	var w Warnings
	if isArray(a) || isArray(b) {
		w.add(unsupportedOperands("%", a, b))
		return NULL, w
	}
	x, y := operands(a, b, &w)
	xl, yl := ToLong(x), ToLong(y)
	switch yl {
	case 0:
		w.add(errors.NewWarning(errors.CodeDivisionByZero, "Modulo by zero"))
		return FALSE, w
	case -1:
		return Long(0), w
	}
	return Long(xl % yl), w
}

// Neg implements unary minus
func Neg(a Value) (Value, Warnings) {
	var w Warnings
	if isArray(a) {
		w.add(unsupportedOperands("*", a, Long(-1)))
		return NULL, w
	}
	x, err := ToNumber(a)
	w.add(err)
	if l, ok := x.(Long); ok {
		if l == math.MinInt64 {
			return Double(-float64(l)), w
		}
		return -l, w
	}
	return Double(-ToDouble(x)), w
}

func isArray(v Value) bool {
	_, ok := v.(*Array)
	return ok
}

func bitwise(op string, a, b Value, onLong func(x, y int64) int64, onByte func(x, y byte) byte, union bool) (Value, Warnings) {
	var w Warnings
	as, aStr := stringOf(a)
	bs, bStr := stringOf(b)
	if aStr && bStr {
		n, m := len(as), len(bs)
		short := n
		if m < short {
			short = m
		}
		out := make([]byte, 0, max(n, m))
		for i := 0; i < short; i++ {
			out = append(out, onByte(as[i], bs[i]))
		}
		if union {
			if n > short {
				out = append(out, as[short:]...)
			} else {
				out = append(out, bs[short:]...)
			}
		}
		return Str(string(out)), nil
	}
	if isArray(a) || isArray(b) {
		w.add(unsupportedOperands(op, a, b))
		return NULL, w
	}
	x, y := operands(a, b, &w)
	return Long(onLong(ToLong(x), ToLong(y))), w
}

// BitAnd implements &. Two strings combine bytewise over the shorter length.
func BitAnd(a, b Value) (Value, Warnings) {
	return bitwise("&", a, b, func(x, y int64) int64 { return x & y }, func(x, y byte) byte { return x & y }, false)
}

// BitOr implements |. Two strings combine bytewise over the longer length.
func BitOr(a, b Value) (Value, Warnings) {
	return bitwise("|", a, b, func(x, y int64) int64 { return x | y }, func(x, y byte) byte { return x | y }, true)
}

// BitXor implements ^
func BitXor(a, b Value) (Value, Warnings) {
	return bitwise("^", a, b, func(x, y int64) int64 { return x ^ y }, func(x, y byte) byte { return x ^ y }, false)
}

// BitNot implements ~
func BitNot(a Value) (Value, Warnings) {
	switch x := a.(type) {
	case Long:
		return ^x, nil
	case Double:
		return Long(^doubleToLong(float64(x))), nil
	case String, *StringBuilder:
		s, _ := stringOf(x)
		out := make([]byte, len(s))
		for i := 0; i < len(s); i++ {
			out[i] = ^s[i]
		}
		return Str(string(out)), nil
	}
	return NULL, Warnings{errors.NewWarning(errors.CodeUnsupportedOp, "Cannot perform bitwise not on "+kindName(a))}
}

// Shl implements <<
func Shl(a, b Value) (Value, Warnings) {
	return shift(a, b, true)
}

// Shr implements >> as an arithmetic shift
func Shr(a, b Value) (Value, Warnings) {
	return shift(a, b, false)
}

func shift(a, b Value, left bool) (Value, Warnings) {
	var w Warnings
	if isArray(a) || isArray(b) {
		w.add(unsupportedOperands("<<", a, b))
		return NULL, w
	}
	x, y := operands(a, b, &w)
	n, count := ToLong(x), ToLong(y)
	switch {
	case count < 0:
		w.add(errors.NewWarning(errors.CodeUnsupportedOp, "Bit shift by negative number"))
		return FALSE, w
	case count >= 64 && left:
		return Long(0), w
	case count >= 64:
		if n < 0 {
			return Long(-1), w
		}
		return Long(0), w
	case left:
		return Long(n << uint(count)), w
	}
	return Long(n >> uint(count)), w
}

// Concat implements the . operator. The result is unicode when either side is.
func Concat(a, b Value) (Value, Warnings) {
	var w Warnings
	x, err := ToStringValue(a)
	w.add(err)
	y, err := ToStringValue(b)
	w.add(err)
	return String{s: x.s + y.s, unicode: x.unicode || y.unicode}, w
}

// Increment implements ++ including PHP's alphanumeric string increment
func Increment(a Value) (Value, Warnings) {
	switch x := normalize(a).(type) {
	case Null:
		return Long(1), nil
	case Long:
		if x == math.MaxInt64 {
			return Double(float64(x) + 1), nil
		}
		return x + 1, nil
	case Double:
		return x + 1, nil
	case Bool:
		return x, nil
	case String, *StringBuilder:
		s, _ := stringOf(x)
		if s == "" {
			return Str("1"), nil
		}
		if n, kind := parseNumeric(s); kind == wellFormedNumeric {
			return Increment(n)
		}
		return Str(incrementString(s)), nil
	}
	return a, Warnings{errors.NewWarning(errors.CodeUnsupportedOp, "Cannot increment "+kindName(a))}
}

// Decrement implements --. Decrementing null leaves null; non-numeric strings
// are not changed.
func Decrement(a Value) (Value, Warnings) {
	switch x := normalize(a).(type) {
	case Null:
		return NULL, nil
	case Long:
		if x == math.MinInt64 {
			return Double(float64(x) - 1), nil
		}
		return x - 1, nil
	case Double:
		return x - 1, nil
	case Bool:
		return x, nil
	case String, *StringBuilder:
		s, _ := stringOf(x)
		if s == "" {
			return Long(-1), nil
		}
		if n, kind := parseNumeric(s); kind == wellFormedNumeric {
			return Decrement(n)
		}
		return Str(s), nil
	}
	return a, Warnings{errors.NewWarning(errors.CodeUnsupportedOp, "Cannot decrement "+kindName(a))}
}

// incrementString carries through the trailing alphanumeric run: "a" -> "b",
// "Az" -> "Ba", "zz" -> "aaa", "a9" -> "b0"
func incrementString(s string) string {
	buf := []byte(s)
	i := len(buf) - 1
	for ; i >= 0; i-- {
		c := buf[i]
		switch {
		case c >= 'a' && c < 'z', c >= 'A' && c < 'Z', c >= '0' && c < '9':
			buf[i] = c + 1
			return string(buf)
		case c == 'z':
			buf[i] = 'a'
		case c == 'Z':
			buf[i] = 'A'
		case c == '9':
			buf[i] = '0'
		default:
			return string(buf)
		}
	}
	var first byte
	switch s[0] {
	case 'z':
		first = 'a'
	case 'Z':
		first = 'A'
	default:
		first = '1'
	}
	return string(first) + string(buf)
}
