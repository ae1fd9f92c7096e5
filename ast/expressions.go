package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Literal is a constant scalar: nil, bool, int64, float64 or string
type Literal struct {
	Value interface{}
	Pos   Position
}

func (n *Literal) Type() NodeType     { return NodeLiteral }
func (n *Literal) Position() Position { return n.Pos }
func (n *Literal) expressionMarker()  {}

func (n *Literal) String() string {
	switch v := n.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprint(v)
	}
}

func (n *Literal) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeLiteral.String(),
		"value":    n.Value,
		"position": n.Pos.ToMap(),
	}
}

// Variable reads or writes the local variable $Name
type Variable struct {
	Name string
	Pos  Position
}

func (n *Variable) Type() NodeType     { return NodeVariable }
func (n *Variable) Position() Position { return n.Pos }
func (n *Variable) expressionMarker()  {}
func (n *Variable) String() string     { return "$" + n.Name }

func (n *Variable) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeVariable.String(),
		"name":     n.Name,
		"position": n.Pos.ToMap(),
	}
}

// This is $this inside a method body
type This struct {
	Pos Position
}

func (n *This) Type() NodeType     { return NodeThis }
func (n *This) Position() Position { return n.Pos }
func (n *This) expressionMarker()  {}
func (n *This) String() string     { return "$this" }

func (n *This) ToMap() map[string]interface{} {
	return map[string]interface{}{"type": NodeThis.String(), "position": n.Pos.ToMap()}
}

// ArrayGet is $Array[Index]
type ArrayGet struct {
	Array Expression
	Index Expression
	Pos   Position
}

func (n *ArrayGet) Type() NodeType     { return NodeArrayGet }
func (n *ArrayGet) Position() Position { return n.Pos }
func (n *ArrayGet) expressionMarker()  {}
func (n *ArrayGet) String() string     { return n.Array.String() + "[" + n.Index.String() + "]" }

func (n *ArrayGet) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeArrayGet.String(),
		"array":    n.Array.ToMap(),
		"index":    n.Index.ToMap(),
		"position": n.Pos.ToMap(),
	}
}

// ArrayTail is the append target $Array[]
type ArrayTail struct {
	Array Expression
	Pos   Position
}

func (n *ArrayTail) Type() NodeType     { return NodeArrayTail }
func (n *ArrayTail) Position() Position { return n.Pos }
func (n *ArrayTail) expressionMarker()  {}
func (n *ArrayTail) String() string     { return n.Array.String() + "[]" }

func (n *ArrayTail) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeArrayTail.String(),
		"array":    n.Array.ToMap(),
		"position": n.Pos.ToMap(),
	}
}

// FieldGet is $Object->Field
type FieldGet struct {
	Object Expression
	Field  string
	Pos    Position
}

func (n *FieldGet) Type() NodeType     { return NodeFieldGet }
func (n *FieldGet) Position() Position { return n.Pos }
func (n *FieldGet) expressionMarker()  {}
func (n *FieldGet) String() string     { return n.Object.String() + "->" + n.Field }

func (n *FieldGet) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeFieldGet.String(),
		"object":   n.Object.ToMap(),
		"field":    n.Field,
		"position": n.Pos.ToMap(),
	}
}

// Assign is Target = Value, or a compound assignment when Op is set ("+", ".", ...)
type Assign struct {
	Target Expression
	Value  Expression
	Op     string
	Pos    Position
}

func (n *Assign) Type() NodeType     { return NodeAssign }
func (n *Assign) Position() Position { return n.Pos }
func (n *Assign) expressionMarker()  {}
func (n *Assign) String() string     { return n.Target.String() + " " + n.Op + "= " + n.Value.String() }

func (n *Assign) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"type":     NodeAssign.String(),
		"target":   n.Target.ToMap(),
		"value":    n.Value.ToMap(),
		"position": n.Pos.ToMap(),
	}
	if n.Op != "" {
		m["op"] = n.Op
	}
	return m
}

// AssignRef is Target =& Source
type AssignRef struct {
	Target Expression
	Source Expression
	Pos    Position
}

func (n *AssignRef) Type() NodeType     { return NodeAssignRef }
func (n *AssignRef) Position() Position { return n.Pos }
func (n *AssignRef) expressionMarker()  {}
func (n *AssignRef) String() string     { return n.Target.String() + " =& " + n.Source.String() }

func (n *AssignRef) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeAssignRef.String(),
		"target":   n.Target.ToMap(),
		"source":   n.Source.ToMap(),
		"position": n.Pos.ToMap(),
	}
}

// Binary is Left Op Right
type Binary struct {
	Op    string
	Left  Expression
	Right Expression
	Pos   Position
}

func (n *Binary) Type() NodeType     { return NodeBinary }
func (n *Binary) Position() Position { return n.Pos }
func (n *Binary) expressionMarker()  {}

func (n *Binary) String() string {
	return "(" + n.Left.String() + " " + n.Op + " " + n.Right.String() + ")"
}

func (n *Binary) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeBinary.String(),
		"op":       n.Op,
		"left":     n.Left.ToMap(),
		"right":    n.Right.ToMap(),
		"position": n.Pos.ToMap(),
	}
}

// Unary is Op Operand for "-", "+", "!" and "~"
type Unary struct {
	Op      string
	Operand Expression
	Pos     Position
}

func (n *Unary) Type() NodeType     { return NodeUnary }
func (n *Unary) Position() Position { return n.Pos }
func (n *Unary) expressionMarker()  {}
func (n *Unary) String() string     { return n.Op + n.Operand.String() }

func (n *Unary) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeUnary.String(),
		"op":       n.Op,
		"operand":  n.Operand.ToMap(),
		"position": n.Pos.ToMap(),
	}
}

// Increment is ++/-- in prefix or postfix form; Delta is +1 or -1
type Increment struct {
	Target Expression
	Delta  int
	Prefix bool
	Pos    Position
}

func (n *Increment) Type() NodeType     { return NodeIncrement }
func (n *Increment) Position() Position { return n.Pos }
func (n *Increment) expressionMarker()  {}

func (n *Increment) String() string {
	op := "++"
	if n.Delta < 0 {
		op = "--"
	}
	if n.Prefix {
		return op + n.Target.String()
	}
	return n.Target.String() + op
}

func (n *Increment) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeIncrement.String(),
		"target":   n.Target.ToMap(),
		"delta":    n.Delta,
		"prefix":   n.Prefix,
		"position": n.Pos.ToMap(),
	}
}

// Ternary is Condition ? Then : Else
type Ternary struct {
	Condition Expression
	Then      Expression
	Else      Expression
	Pos       Position
}

func (n *Ternary) Type() NodeType     { return NodeTernary }
func (n *Ternary) Position() Position { return n.Pos }
func (n *Ternary) expressionMarker()  {}

func (n *Ternary) String() string {
	return n.Condition.String() + " ? " + n.Then.String() + " : " + n.Else.String()
}

func (n *Ternary) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":      NodeTernary.String(),
		"condition": n.Condition.ToMap(),
		"then":      n.Then.ToMap(),
		"else":      n.Else.ToMap(),
		"position":  n.Pos.ToMap(),
	}
}

// Call is a call of a named function, Name(Args)
type Call struct {
	Name string
	Args []Expression
	Pos  Position
}

func (n *Call) Type() NodeType     { return NodeCall }
func (n *Call) Position() Position { return n.Pos }
func (n *Call) expressionMarker()  {}
func (n *Call) String() string     { return n.Name + "(" + joinExpressions(n.Args) + ")" }

func (n *Call) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeCall.String(),
		"name":     n.Name,
		"args":     expressionsToMaps(n.Args),
		"position": n.Pos.ToMap(),
	}
}

// CallVar calls the callable value produced by Callee
type CallVar struct {
	Callee Expression
	Args   []Expression
	Pos    Position
}

func (n *CallVar) Type() NodeType     { return NodeCallVar }
func (n *CallVar) Position() Position { return n.Pos }
func (n *CallVar) expressionMarker()  {}
func (n *CallVar) String() string     { return n.Callee.String() + "(" + joinExpressions(n.Args) + ")" }

func (n *CallVar) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeCallVar.String(),
		"callee":   n.Callee.ToMap(),
		"args":     expressionsToMaps(n.Args),
		"position": n.Pos.ToMap(),
	}
}

// MethodCall is $Object->Method(Args). MethodExpr replaces Method for $obj->$name().
type MethodCall struct {
	Object     Expression
	Method     string
	MethodExpr Expression
	Args       []Expression
	Pos        Position
}

func (n *MethodCall) Type() NodeType     { return NodeMethodCall }
func (n *MethodCall) Position() Position { return n.Pos }
func (n *MethodCall) expressionMarker()  {}

func (n *MethodCall) String() string {
	name := n.Method
	if n.MethodExpr != nil {
		name = n.MethodExpr.String()
	}
	return n.Object.String() + "->" + name + "(" + joinExpressions(n.Args) + ")"
}

func (n *MethodCall) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"type":     NodeMethodCall.String(),
		"object":   n.Object.ToMap(),
		"args":     expressionsToMaps(n.Args),
		"position": n.Pos.ToMap(),
	}
	if n.MethodExpr != nil {
		m["method_expr"] = n.MethodExpr.ToMap()
	} else {
		m["method"] = n.Method
	}
	return m
}

// StaticCall is Class::Method(Args). ClassExpr replaces Class for $cls::method().
type StaticCall struct {
	Class     string
	ClassExpr Expression
	Method    string
	Args      []Expression
	Pos       Position
}

func (n *StaticCall) Type() NodeType     { return NodeStaticCall }
func (n *StaticCall) Position() Position { return n.Pos }
func (n *StaticCall) expressionMarker()  {}

func (n *StaticCall) String() string {
	class := n.Class
	if n.ClassExpr != nil {
		class = n.ClassExpr.String()
	}
	return class + "::" + n.Method + "(" + joinExpressions(n.Args) + ")"
}

func (n *StaticCall) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"type":     NodeStaticCall.String(),
		"method":   n.Method,
		"args":     expressionsToMaps(n.Args),
		"position": n.Pos.ToMap(),
	}
	if n.ClassExpr != nil {
		m["class_expr"] = n.ClassExpr.ToMap()
	} else {
		m["class"] = n.Class
	}
	return m
}

// New is new Class(Args). ClassExpr replaces Class for new $cls().
type New struct {
	Class     string
	ClassExpr Expression
	Args      []Expression
	Pos       Position
}

func (n *New) Type() NodeType     { return NodeNew }
func (n *New) Position() Position { return n.Pos }
func (n *New) expressionMarker()  {}

func (n *New) String() string {
	class := n.Class
	if n.ClassExpr != nil {
		class = n.ClassExpr.String()
	}
	return "new " + class + "(" + joinExpressions(n.Args) + ")"
}

func (n *New) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"type":     NodeNew.String(),
		"args":     expressionsToMaps(n.Args),
		"position": n.Pos.ToMap(),
	}
	if n.ClassExpr != nil {
		m["class_expr"] = n.ClassExpr.ToMap()
	} else {
		m["class"] = n.Class
	}
	return m
}

// ArrayItem is one element of an array literal. Key is nil for auto-indexed items.
type ArrayItem struct {
	Key   Expression
	Value Expression
	ByRef bool
}

// ArrayLiteral is array(...) / [...]
type ArrayLiteral struct {
	Items []ArrayItem
	Pos   Position
}

func (n *ArrayLiteral) Type() NodeType     { return NodeArrayLiteral }
func (n *ArrayLiteral) Position() Position { return n.Pos }
func (n *ArrayLiteral) expressionMarker()  {}

func (n *ArrayLiteral) String() string {
	parts := make([]string, len(n.Items))
	for i, item := range n.Items {
		var sb strings.Builder
		if item.Key != nil {
			sb.WriteString(item.Key.String())
			sb.WriteString(" => ")
		}
		if item.ByRef {
			sb.WriteString("&")
		}
		sb.WriteString(item.Value.String())
		parts[i] = sb.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (n *ArrayLiteral) ToMap() map[string]interface{} {
	items := make([]interface{}, len(n.Items))
	for i, item := range n.Items {
		m := map[string]interface{}{"value": item.Value.ToMap()}
		if item.Key != nil {
			m["key"] = item.Key.ToMap()
		}
		if item.ByRef {
			m["by_ref"] = true
		}
		items[i] = m
	}
	return map[string]interface{}{
		"type":     NodeArrayLiteral.String(),
		"items":    items,
		"position": n.Pos.ToMap(),
	}
}

// Include is include/require with optional _once
type Include struct {
	Path    Expression
	Require bool
	Once    bool
	Pos     Position
}

func (n *Include) Type() NodeType     { return NodeInclude }
func (n *Include) Position() Position { return n.Pos }
func (n *Include) expressionMarker()  {}

func (n *Include) String() string {
	kw := "include"
	if n.Require {
		kw = "require"
	}
	if n.Once {
		kw += "_once"
	}
	return kw + " " + n.Path.String()
}

func (n *Include) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeInclude.String(),
		"path":     n.Path.ToMap(),
		"require":  n.Require,
		"once":     n.Once,
		"position": n.Pos.ToMap(),
	}
}

// InstanceOf is Expr instanceof Class, where Class evaluates to a class name
type InstanceOf struct {
	Expr  Expression
	Class Expression
	Pos   Position
}

func (n *InstanceOf) Type() NodeType     { return NodeInstanceOf }
func (n *InstanceOf) Position() Position { return n.Pos }
func (n *InstanceOf) expressionMarker()  {}
func (n *InstanceOf) String() string     { return n.Expr.String() + " instanceof " + n.Class.String() }

func (n *InstanceOf) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeInstanceOf.String(),
		"expr":     n.Expr.ToMap(),
		"class":    n.Class.ToMap(),
		"position": n.Pos.ToMap(),
	}
}

// Feature evaluates to true exactly in the configurations where the named feature is enabled
type Feature struct {
	Name string
	Pos  Position
}

func (n *Feature) Type() NodeType     { return NodeFeature }
func (n *Feature) Position() Position { return n.Pos }
func (n *Feature) expressionMarker()  {}
func (n *Feature) String() string     { return "feature(" + n.Name + ")" }

func (n *Feature) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeFeature.String(),
		"name":     n.Name,
		"position": n.Pos.ToMap(),
	}
}

// Choice selects Then where the feature expression Condition holds and Else elsewhere
type Choice struct {
	Condition string
	Then      Expression
	Else      Expression
	Pos       Position
}

func (n *Choice) Type() NodeType     { return NodeChoice }
func (n *Choice) Position() Position { return n.Pos }
func (n *Choice) expressionMarker()  {}

func (n *Choice) String() string {
	return "choice(" + n.Condition + ", " + n.Then.String() + ", " + n.Else.String() + ")"
}

func (n *Choice) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":      NodeChoice.String(),
		"condition": n.Condition,
		"then":      n.Then.ToMap(),
		"else":      n.Else.ToMap(),
		"position":  n.Pos.ToMap(),
	}
}

// Closure is an anonymous function literal
type Closure struct {
	Function *FunctionDecl
	Pos      Position
}

func (n *Closure) Type() NodeType     { return NodeClosure }
func (n *Closure) Position() Position { return n.Pos }
func (n *Closure) expressionMarker()  {}
func (n *Closure) String() string     { return "function(" + n.Function.paramList() + ") {...}" }

func (n *Closure) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeClosure.String(),
		"function": n.Function.ToMap(),
		"position": n.Pos.ToMap(),
	}
}

func joinExpressions(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
