package ast

import (
	"strings"
)

// ExpressionStatement evaluates Expression and discards the result
type ExpressionStatement struct {
	Expression Expression
}

func (n *ExpressionStatement) Type() NodeType     { return NodeExpressionStatement }
func (n *ExpressionStatement) Position() Position { return n.Expression.Position() }
func (n *ExpressionStatement) statementMarker()   {}
func (n *ExpressionStatement) String() string     { return n.Expression.String() + ";" }

func (n *ExpressionStatement) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":       NodeExpressionStatement.String(),
		"expression": n.Expression.ToMap(),
	}
}

// Echo writes the string conversion of each value to the output sink
type Echo struct {
	Values []Expression
	Pos    Position
}

func (n *Echo) Type() NodeType     { return NodeEcho }
func (n *Echo) Position() Position { return n.Pos }
func (n *Echo) statementMarker()   {}
func (n *Echo) String() string     { return "echo " + joinExpressions(n.Values) + ";" }

func (n *Echo) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeEcho.String(),
		"values":   expressionsToMaps(n.Values),
		"position": n.Pos.ToMap(),
	}
}

// Text is literal template text outside of <?php ... ?>
type Text struct {
	Text string
	Pos  Position
}

func (n *Text) Type() NodeType     { return NodeText }
func (n *Text) Position() Position { return n.Pos }
func (n *Text) statementMarker()   {}
func (n *Text) String() string     { return "?>" + n.Text + "<?php" }

func (n *Text) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeText.String(),
		"text":     n.Text,
		"position": n.Pos.ToMap(),
	}
}

// Block is a braced statement list
type Block struct {
	Statements []Statement
	Pos        Position
}

func (n *Block) Type() NodeType     { return NodeBlock }
func (n *Block) Position() Position { return n.Pos }
func (n *Block) statementMarker()   {}

func (n *Block) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for _, s := range n.Statements {
		sb.WriteString(" ")
		sb.WriteString(s.String())
	}
	sb.WriteString(" }")
	return sb.String()
}

func (n *Block) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":       NodeBlock.String(),
		"statements": statementsToMaps(n.Statements),
		"position":   n.Pos.ToMap(),
	}
}

// If is if (Condition) Then else Else; Else may be nil
type If struct {
	Condition Expression
	Then      Statement
	Else      Statement
	Pos       Position
}

func (n *If) Type() NodeType     { return NodeIf }
func (n *If) Position() Position { return n.Pos }
func (n *If) statementMarker()   {}

func (n *If) String() string {
	s := "if (" + n.Condition.String() + ") " + n.Then.String()
	if n.Else != nil {
		s += " else " + n.Else.String()
	}
	return s
}

func (n *If) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":      NodeIf.String(),
		"condition": n.Condition.ToMap(),
		"then":      n.Then.ToMap(),
		"else":      optionalMap(n.Else),
		"position":  n.Pos.ToMap(),
	}
}

// While is while (Condition) Body
type While struct {
	Condition Expression
	Body      Statement
	Pos       Position
}

func (n *While) Type() NodeType     { return NodeWhile }
func (n *While) Position() Position { return n.Pos }
func (n *While) statementMarker()   {}
func (n *While) IsLoop() bool       { return true }
func (n *While) String() string     { return "while (" + n.Condition.String() + ") " + n.Body.String() }

func (n *While) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":      NodeWhile.String(),
		"condition": n.Condition.ToMap(),
		"body":      n.Body.ToMap(),
		"position":  n.Pos.ToMap(),
	}
}

// Do is do Body while (Condition)
type Do struct {
	Body      Statement
	Condition Expression
	Pos       Position
}

func (n *Do) Type() NodeType     { return NodeDo }
func (n *Do) Position() Position { return n.Pos }
func (n *Do) statementMarker()   {}
func (n *Do) IsLoop() bool       { return true }
func (n *Do) String() string     { return "do " + n.Body.String() + " while (" + n.Condition.String() + ");" }

func (n *Do) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":      NodeDo.String(),
		"body":      n.Body.ToMap(),
		"condition": n.Condition.ToMap(),
		"position":  n.Pos.ToMap(),
	}
}

// For is for (Init; Condition; Step) Body. A nil Condition loops forever.
type For struct {
	Init      []Expression
	Condition Expression
	Step      []Expression
	Body      Statement
	Pos       Position
}

func (n *For) Type() NodeType     { return NodeFor }
func (n *For) Position() Position { return n.Pos }
func (n *For) statementMarker()   {}
func (n *For) IsLoop() bool       { return true }

func (n *For) String() string {
	cond := ""
	if n.Condition != nil {
		cond = n.Condition.String()
	}
	return "for (" + joinExpressions(n.Init) + "; " + cond + "; " + joinExpressions(n.Step) + ") " + n.Body.String()
}

func (n *For) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":      NodeFor.String(),
		"init":      expressionsToMaps(n.Init),
		"condition": optionalMap(n.Condition),
		"step":      expressionsToMaps(n.Step),
		"body":      n.Body.ToMap(),
		"position":  n.Pos.ToMap(),
	}
}

// Foreach is foreach (Subject as Key => Value) Body; Key may be nil
type Foreach struct {
	Subject Expression
	Key     Expression
	Value   Expression
	ByRef   bool
	Body    Statement
	Pos     Position
}

func (n *Foreach) Type() NodeType     { return NodeForeach }
func (n *Foreach) Position() Position { return n.Pos }
func (n *Foreach) statementMarker()   {}
func (n *Foreach) IsLoop() bool       { return true }

func (n *Foreach) String() string {
	target := n.Value.String()
	if n.ByRef {
		target = "&" + target
	}
	if n.Key != nil {
		target = n.Key.String() + " => " + target
	}
	return "foreach (" + n.Subject.String() + " as " + target + ") " + n.Body.String()
}

func (n *Foreach) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeForeach.String(),
		"subject":  n.Subject.ToMap(),
		"key":      optionalMap(n.Key),
		"value":    n.Value.ToMap(),
		"by_ref":   n.ByRef,
		"body":     n.Body.ToMap(),
		"position": n.Pos.ToMap(),
	}
}

// Break is break [Target]; a nil Target means one level
type Break struct {
	Target Expression
	Pos    Position
}

func (n *Break) Type() NodeType     { return NodeBreak }
func (n *Break) Position() Position { return n.Pos }
func (n *Break) statementMarker()   {}

func (n *Break) String() string {
	if n.Target == nil {
		return "break;"
	}
	return "break " + n.Target.String() + ";"
}

func (n *Break) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeBreak.String(),
		"target":   optionalMap(n.Target),
		"position": n.Pos.ToMap(),
	}
}

// Continue is continue [Target]; a nil Target means one level
type Continue struct {
	Target Expression
	Pos    Position
}

func (n *Continue) Type() NodeType     { return NodeContinue }
func (n *Continue) Position() Position { return n.Pos }
func (n *Continue) statementMarker()   {}

func (n *Continue) String() string {
	if n.Target == nil {
		return "continue;"
	}
	return "continue " + n.Target.String() + ";"
}

func (n *Continue) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeContinue.String(),
		"target":   optionalMap(n.Target),
		"position": n.Pos.ToMap(),
	}
}

// Return is return [Value]
type Return struct {
	Value Expression
	Pos   Position
}

func (n *Return) Type() NodeType     { return NodeReturn }
func (n *Return) Position() Position { return n.Pos }
func (n *Return) statementMarker()   {}

func (n *Return) String() string {
	if n.Value == nil {
		return "return;"
	}
	return "return " + n.Value.String() + ";"
}

func (n *Return) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":     NodeReturn.String(),
		"value":    optionalMap(n.Value),
		"position": n.Pos.ToMap(),
	}
}

// Param is a formal function parameter
type Param struct {
	Name    string
	ByRef   bool
	Default Expression
}

// FunctionDecl declares a named function, a method, or the body of a closure
type FunctionDecl struct {
	Name   string
	Params []Param
	Body   *Block
	Static bool
	Pos    Position
}

func (n *FunctionDecl) Type() NodeType     { return NodeFunctionDecl }
func (n *FunctionDecl) Position() Position { return n.Pos }
func (n *FunctionDecl) statementMarker()   {}

func (n *FunctionDecl) String() string {
	return "function " + n.Name + "(" + n.paramList() + ") " + n.Body.String()
}

func (n *FunctionDecl) paramList() string {
	parts := make([]string, len(n.Params))
	for i, p := range n.Params {
		s := "$" + p.Name
		if p.ByRef {
			s = "&" + s
		}
		if p.Default != nil {
			s += " = " + p.Default.String()
		}
		parts[i] = s
	}
	return strings.Join(parts, ", ")
}

func (n *FunctionDecl) ToMap() map[string]interface{} {
	params := make([]interface{}, len(n.Params))
	for i, p := range n.Params {
		m := map[string]interface{}{"name": p.Name}
		if p.ByRef {
			m["by_ref"] = true
		}
		if p.Default != nil {
			m["default"] = p.Default.ToMap()
		}
		params[i] = m
	}
	m := map[string]interface{}{
		"type":     NodeFunctionDecl.String(),
		"name":     n.Name,
		"params":   params,
		"body":     n.Body.ToMap(),
		"position": n.Pos.ToMap(),
	}
	if n.Static {
		m["static"] = true
	}
	return m
}

// FieldDecl is a declared instance field with an optional default
type FieldDecl struct {
	Name    string
	Default Expression
}

// ClassDecl declares a class with an optional parent
type ClassDecl struct {
	Name    string
	Parent  string
	Fields  []FieldDecl
	Methods []*FunctionDecl
	Pos     Position
}

func (n *ClassDecl) Type() NodeType     { return NodeClassDecl }
func (n *ClassDecl) Position() Position { return n.Pos }
func (n *ClassDecl) statementMarker()   {}

func (n *ClassDecl) String() string {
	s := "class " + n.Name
	if n.Parent != "" {
		s += " extends " + n.Parent
	}
	return s + " {...}"
}

func (n *ClassDecl) ToMap() map[string]interface{} {
	fields := make([]interface{}, len(n.Fields))
	for i, f := range n.Fields {
		m := map[string]interface{}{"name": f.Name}
		if f.Default != nil {
			m["default"] = f.Default.ToMap()
		}
		fields[i] = m
	}
	methods := make([]interface{}, len(n.Methods))
	for i, fn := range n.Methods {
		methods[i] = fn.ToMap()
	}
	m := map[string]interface{}{
		"type":     NodeClassDecl.String(),
		"name":     n.Name,
		"fields":   fields,
		"methods":  methods,
		"position": n.Pos.ToMap(),
	}
	if n.Parent != "" {
		m["parent"] = n.Parent
	}
	return m
}

// Conditional is a preprocessor-style #if block: Then runs where the feature
// expression Condition holds, Else (optional) everywhere else.
type Conditional struct {
	Condition string
	Then      Statement
	Else      Statement
	Pos       Position
}

func (n *Conditional) Type() NodeType     { return NodeConditional }
func (n *Conditional) Position() Position { return n.Pos }
func (n *Conditional) statementMarker()   {}

func (n *Conditional) String() string {
	s := "#if " + n.Condition + " " + n.Then.String()
	if n.Else != nil {
		s += " #else " + n.Else.String()
	}
	return s + " #endif"
}

func (n *Conditional) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":      NodeConditional.String(),
		"condition": n.Condition,
		"then":      n.Then.ToMap(),
		"else":      optionalMap(n.Else),
		"position":  n.Pos.ToMap(),
	}
}
