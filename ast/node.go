package ast

import (
	"fmt"
)

// NodeType identifies the concrete kind of an AST node
type NodeType int

const (
	NodeInvalid NodeType = iota
	NodeProgram

	// expressions
	NodeLiteral
	NodeVariable
	NodeThis
	NodeArrayGet
	NodeArrayTail
	NodeFieldGet
	NodeAssign
	NodeAssignRef
	NodeBinary
	NodeUnary
	NodeIncrement
	NodeTernary
	NodeCall
	NodeCallVar
	NodeMethodCall
	NodeStaticCall
	NodeNew
	NodeArrayLiteral
	NodeInclude
	NodeInstanceOf
	NodeFeature
	NodeChoice
	NodeClosure

	// statements
	NodeExpressionStatement
	NodeEcho
	NodeText
	NodeBlock
	NodeIf
	NodeWhile
	NodeDo
	NodeFor
	NodeForeach
	NodeBreak
	NodeContinue
	NodeReturn
	NodeFunctionDecl
	NodeClassDecl
	NodeConditional
)

var nodeTypeNames = map[NodeType]string{
	NodeInvalid:             "invalid",
	NodeProgram:             "program",
	NodeLiteral:             "literal",
	NodeVariable:            "variable",
	NodeThis:                "this",
	NodeArrayGet:            "array_get",
	NodeArrayTail:           "array_tail",
	NodeFieldGet:            "field_get",
	NodeAssign:              "assign",
	NodeAssignRef:           "assign_ref",
	NodeBinary:              "binary",
	NodeUnary:               "unary",
	NodeIncrement:           "increment",
	NodeTernary:             "ternary",
	NodeCall:                "call",
	NodeCallVar:             "call_var",
	NodeMethodCall:          "method_call",
	NodeStaticCall:          "static_call",
	NodeNew:                 "new",
	NodeArrayLiteral:        "array_literal",
	NodeInclude:             "include",
	NodeInstanceOf:          "instanceof",
	NodeFeature:             "feature",
	NodeChoice:              "choice",
	NodeClosure:             "closure",
	NodeExpressionStatement: "expression_statement",
	NodeEcho:                "echo",
	NodeText:                "text",
	NodeBlock:               "block",
	NodeIf:                  "if",
	NodeWhile:               "while",
	NodeDo:                  "do",
	NodeFor:                 "for",
	NodeForeach:             "foreach",
	NodeBreak:               "break",
	NodeContinue:            "continue",
	NodeReturn:              "return",
	NodeFunctionDecl:        "function",
	NodeClassDecl:           "class",
	NodeConditional:         "conditional",
}

// String returns the interchange name of the node type
func (t NodeType) String() string {
	if name, ok := nodeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// nodeTypeByName is the inverse of nodeTypeNames, used by the decoder
var nodeTypeByName = func() map[string]NodeType {
	m := make(map[string]NodeType, len(nodeTypeNames))
	for t, name := range nodeTypeNames {
		m[name] = t
	}
	return m
}()

// Position is a source location used for diagnostics
type Position struct {
	File   string
	Line   int
	Column int
}

// String returns "file:line:col", omitting the file when unknown
func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// IsValid reports whether the position carries a line number
func (p Position) IsValid() bool {
	return p.Line > 0
}

// ToMap converts the position to its interchange form
func (p Position) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"line":   p.Line,
		"column": p.Column,
	}
	if p.File != "" {
		m["file"] = p.File
	}
	return m
}

// ProtoNode is the base interface of every AST node
type ProtoNode interface {
	Type() NodeType
	Position() Position
	String() string
	ToMap() map[string]interface{}
}

// Statement is a node executed for its effect and completion signal
type Statement interface {
	ProtoNode
	statementMarker()
}

// Expression is a node evaluated to a value
type Expression interface {
	ProtoNode
	expressionMarker()
}

// LoopStatement is implemented by every loop construct that consumes break/continue signals
type LoopStatement interface {
	Statement
	IsLoop() bool
}

// Program is the root of a parsed file
type Program struct {
	File       string
	Statements []Statement
}

// Type returns NodeProgram
func (p *Program) Type() NodeType { return NodeProgram }

// Position returns the first line of the program file
func (p *Program) Position() Position { return Position{File: p.File, Line: 1, Column: 1} }

// String returns a short description of the program
func (p *Program) String() string {
	return fmt.Sprintf("Program(%s, %d statements)", p.File, len(p.Statements))
}

// ToMap converts the program to its interchange form
func (p *Program) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":       NodeProgram.String(),
		"file":       p.File,
		"statements": statementsToMaps(p.Statements),
	}
}

func statementsToMaps(stmts []Statement) []interface{} {
	out := make([]interface{}, len(stmts))
	for i, s := range stmts {
		out[i] = s.ToMap()
	}
	return out
}

func expressionsToMaps(exprs []Expression) []interface{} {
	out := make([]interface{}, len(exprs))
	for i, e := range exprs {
		out[i] = e.ToMap()
	}
	return out
}

// optionalMap returns nil for a nil node so absent children stay absent
func optionalMap(n ProtoNode) interface{} {
	if n == nil || isNilNode(n) {
		return nil
	}
	return n.ToMap()
}

func isNilNode(n ProtoNode) bool {
	switch v := n.(type) {
	case *Block:
		return v == nil
	case *FunctionDecl:
		return v == nil
	}
	return false
}
