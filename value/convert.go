package value

import (
	"math"
	"strconv"
	"strings"

	"quercus/errors"
)

// numericKind classifies a string for numeric coercion
type numericKind int

const (
	notNumeric numericKind = iota
	leadingNumeric
	wellFormedNumeric
)

// parseNumeric reads the numeric prefix of s the way PHP does: optional
// surrounding whitespace, sign, digits, fraction and exponent. It returns the
// number as Long or Double and how much of s it consumed.
func parseNumeric(s string) (Value, numericKind) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intEnd := i
	isFloat := false
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > i+1 || intEnd > digits {
			isFloat = true
			i = j
		}
	}
	if i == digits || (i == digits+1 && s[digits] == '.') {
		return Long(0), notNumeric
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			isFloat = true
			i = j
		}
	}
	numEnd := i
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	kind := wellFormedNumeric
	if i < len(s) {
		kind = leadingNumeric
	}

	text := s[start:numEnd]
	if !isFloat {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Long(n), kind
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !isRangeError(err) {
		return Long(0), notNumeric
	}
	return Double(f), kind
}

func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsNumericString reports whether s is a well formed numeric string
func IsNumericString(s string) bool {
	_, kind := parseNumeric(s)
	return kind == wellFormedNumeric
}

func stringOf(v Value) (string, bool) {
	switch x := v.(type) {
	case String:
		return x.s, true
	case *StringBuilder:
		return string(x.buf), true
	}
	return "", false
}

// ToBool converts v to a boolean per PHP truthiness
func ToBool(v Value) bool {
	switch x := v.(type) {
	case nil, Null, Unset, *ErrorValue:
		return false
	case Bool:
		return bool(x)
	case Long:
		return x != 0
	case Double:
		return x != 0
	case String:
		return x.s != "" && x.s != "0"
	case *StringBuilder:
		return len(x.buf) != 0 && !(len(x.buf) == 1 && x.buf[0] == '0')
	case *Array:
		return x.Len() > 0
	case *Object, *Resource, *Closure:
		return true
	case *Break, *Continue, *Abort:
		return false
	}
	panic(unsupported("toBool", v))
}

// ToLong converts v to an integer
func ToLong(v Value) int64 {
	switch x := v.(type) {
	case nil, Null, Unset, *ErrorValue:
		return 0
	case Bool:
		if x {
			return 1
		}
		return 0
	case Long:
		return int64(x)
	case Double:
		return doubleToLong(float64(x))
	case String, *StringBuilder:
		s, _ := stringOf(v)
		n, _ := parseNumeric(s)
		if d, ok := n.(Double); ok {
			return doubleToLong(float64(d))
		}
		return int64(n.(Long))
	case *Array:
		if x.Len() > 0 {
			return 1
		}
		return 0
	case *Object, *Closure:
		return 1
	case *Resource:
		return x.ID
	case *Break, *Continue, *Abort:
		return 0
	}
	panic(unsupported("toLong", v))
}

func doubleToLong(d float64) int64 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	if d >= -9.2233720368547758e18 && d < 9.2233720368547758e18 {
		return int64(d)
	}
	// out of range doubles wrap modulo 2^64
	m := math.Mod(math.Trunc(d), 18446744073709551616.0)
	if m < 0 {
		m += 18446744073709551616.0
	}
	return int64(uint64(m))
}

// ToDouble converts v to a float
func ToDouble(v Value) float64 {
	switch x := v.(type) {
	case Double:
		return float64(x)
	case String, *StringBuilder:
		s, _ := stringOf(v)
		n, _ := parseNumeric(s)
		if d, ok := n.(Double); ok {
			return float64(d)
		}
		return float64(n.(Long))
	}
	return float64(ToLong(v))
}

// ToNumber converts v to Long or Double. Non-numeric strings yield a warning.
func ToNumber(v Value) (Value, *errors.ExecutionError) {
	switch x := v.(type) {
	case Long, Double:
		return x, nil
	case String, *StringBuilder:
		s, _ := stringOf(v)
		n, kind := parseNumeric(s)
		switch kind {
		case notNumeric:
			return Long(0), errors.NewWarning(errors.CodeConversion, "A non-numeric value encountered")
		case leadingNumeric:
			return n, errors.NewWarning(errors.CodeConversion, "A non well formed numeric value encountered")
		}
		return n, nil
	case *Array:
		return NULL, errors.NewWarning(errors.CodeUnsupportedOp, "Unsupported operand types: array")
	case *Object:
		return Long(1), errors.NewWarning(errors.CodeConversion, "Object of class "+x.ClassName()+" could not be converted to number")
	}
	return Long(ToLong(v)), nil
}

// ToString converts v to its string form. Arrays and objects without a string
// conversion produce a warning and a placeholder.
func ToString(v Value) (string, *errors.ExecutionError) {
	switch x := v.(type) {
	case nil, Null, Unset, *ErrorValue:
		return "", nil
	case Bool:
		if x {
			return "1", nil
		}
		return "", nil
	case Long:
		return strconv.FormatInt(int64(x), 10), nil
	case Double:
		return formatDouble(float64(x)), nil
	case String:
		return x.s, nil
	case *StringBuilder:
		return string(x.buf), nil
	case *Array:
		return "Array", errors.NewWarning(errors.CodeConversion, "Array to string conversion")
	case *Object:
		return "Object", errors.NewWarning(errors.CodeConversion, "Object of class "+x.ClassName()+" could not be converted to string")
	case *Resource:
		return x.String(), nil
	case *Closure:
		return "Closure", errors.NewWarning(errors.CodeConversion, "Object of class Closure could not be converted to string")
	case *Break, *Continue, *Abort:
		return "", nil
	}
	panic(unsupported("toString", v))
}

// ToStringValue converts v to a String, keeping string values as they are
func ToStringValue(v Value) (String, *errors.ExecutionError) {
	switch x := v.(type) {
	case String:
		return x, nil
	case *StringBuilder:
		return x.Freeze(), nil
	}
	s, warn := ToString(v)
	return Str(s), warn
}

// formatDouble renders a float with PHP's default precision of 14 digits
func formatDouble(d float64) string {
	switch {
	case math.IsNaN(d):
		return "NAN"
	case math.IsInf(d, 1):
		return "INF"
	case math.IsInf(d, -1):
		return "-INF"
	case d == 0:
		if math.Signbit(d) {
			return "-0"
		}
		return "0"
	}
	s := strconv.FormatFloat(d, 'G', 14, 64)
	i := strings.IndexByte(s, 'E')
	if i < 0 {
		return s
	}
	mantissa, exp := s[:i], s[i+1:]
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	sign := exp[0]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "E" + string(sign) + digits
}

// isLongLike reports whether v participates in integer arithmetic
func isLongLike(v Value) bool {
	switch x := v.(type) {
	case nil, Null, Unset, *ErrorValue, Bool, Long:
		return true
	case String, *StringBuilder:
		s, _ := stringOf(x)
		n, _ := parseNumeric(s)
		_, ok := n.(Long)
		return ok
	}
	return false
}

// isNumberConvertible reports whether v has a numeric reading for comparison
func isNumberConvertible(v Value) bool {
	switch x := v.(type) {
	case Long, Double, Bool, Null:
		return true
	case String, *StringBuilder:
		s, _ := stringOf(x)
		return IsNumericString(s)
	}
	return false
}

func unsupported(op string, v Value) *errors.ExecutionError {
	return errors.NewFatalError(errors.CodeUnsupported, op+" is not implemented for "+kindName(v))
}

func kindName(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String()
}
