package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeFile reads a serialized AST produced by the parser. The format is chosen by
// extension: .json is JSON, anything else is YAML.
func DecodeFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AST file %s: %v", path, err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return Decode(data, format, path)
}

// Decode decodes a serialized program in the given format ("json" or "yaml").
// The document is either a program map or a bare list of statements.
func Decode(data []byte, format, file string) (*Program, error) {
	var doc interface{}
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON AST %s: %v", file, err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML AST %s: %v", file, err)
		}
	default:
		return nil, fmt.Errorf("unsupported AST format: %s", format)
	}

	d := &decoder{file: file}
	var stmts []interface{}
	switch root := doc.(type) {
	case []interface{}:
		stmts = root
	case map[string]interface{}:
		if t, _ := root["type"].(string); t != "" && t != NodeProgram.String() {
			return nil, fmt.Errorf("%s: root node must be a program, got %q", file, t)
		}
		if f, ok := root["file"].(string); ok && f != "" && file == "" {
			d.file = f
		}
		list, ok := root["statements"].([]interface{})
		if !ok && root["statements"] != nil {
			return nil, fmt.Errorf("%s: statements must be a list", file)
		}
		stmts = list
	case nil:
	default:
		return nil, fmt.Errorf("%s: unexpected AST root %T", file, doc)
	}

	body, err := d.statementList(stmts)
	if err != nil {
		return nil, err
	}
	return &Program{File: d.file, Statements: body}, nil
}

// DecodeStatement decodes a single statement from its map form
func DecodeStatement(m map[string]interface{}, file string) (Statement, error) {
	d := &decoder{file: file}
	return d.statement(m)
}

// DecodeExpression decodes a single expression from its map form
func DecodeExpression(m map[string]interface{}, file string) (Expression, error) {
	d := &decoder{file: file}
	return d.expression(m)
}

type decoder struct {
	file string
}

func (d *decoder) errorf(m map[string]interface{}, format string, args ...interface{}) error {
	pos := d.position(m)
	return fmt.Errorf("%s: %s", pos.String(), fmt.Sprintf(format, args...))
}

func (d *decoder) position(m map[string]interface{}) Position {
	pos := Position{File: d.file}
	p, ok := m["position"].(map[string]interface{})
	if !ok {
		return pos
	}
	if line, ok := toInt(p["line"]); ok {
		pos.Line = line
	}
	if col, ok := toInt(p["column"]); ok {
		pos.Column = col
	}
	if f, ok := p["file"].(string); ok && f != "" {
		pos.File = f
	}
	return pos
}

func (d *decoder) asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func (d *decoder) str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func (d *decoder) boolean(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func (d *decoder) statementList(list []interface{}) ([]Statement, error) {
	out := make([]Statement, 0, len(list))
	for _, item := range list {
		m, ok := d.asMap(item)
		if !ok {
			return nil, fmt.Errorf("%s: statement must be a map, got %T", d.file, item)
		}
		s, err := d.statement(m)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) expressionList(v interface{}) ([]Expression, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected expression list, got %T", d.file, v)
	}
	out := make([]Expression, 0, len(list))
	for _, item := range list {
		m, ok := d.asMap(item)
		if !ok {
			return nil, fmt.Errorf("%s: expression must be a map, got %T", d.file, item)
		}
		e, err := d.expression(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// child decodes a required sub-expression
func (d *decoder) child(m map[string]interface{}, key string) (Expression, error) {
	c, ok := d.asMap(m[key])
	if !ok {
		return nil, d.errorf(m, "%s node requires %q", d.str(m, "type"), key)
	}
	return d.expression(c)
}

// optional decodes a sub-expression that may be absent
func (d *decoder) optional(m map[string]interface{}, key string) (Expression, error) {
	c, ok := d.asMap(m[key])
	if !ok {
		return nil, nil
	}
	return d.expression(c)
}

func (d *decoder) childStatement(m map[string]interface{}, key string) (Statement, error) {
	c, ok := d.asMap(m[key])
	if !ok {
		return nil, d.errorf(m, "%s node requires %q", d.str(m, "type"), key)
	}
	return d.statement(c)
}

func (d *decoder) optionalStatement(m map[string]interface{}, key string) (Statement, error) {
	c, ok := d.asMap(m[key])
	if !ok {
		return nil, nil
	}
	return d.statement(c)
}

func (d *decoder) statement(m map[string]interface{}) (Statement, error) {
	pos := d.position(m)
	nodeType, ok := nodeTypeByName[d.str(m, "type")]
	if !ok {
		return nil, d.errorf(m, "unknown node type %q", d.str(m, "type"))
	}

	switch nodeType {
	case NodeExpressionStatement:
		e, err := d.child(m, "expression")
		if err != nil {
			return nil, err
		}
		return &ExpressionStatement{Expression: e}, nil

	case NodeEcho:
		values, err := d.expressionList(m["values"])
		if err != nil {
			return nil, err
		}
		return &Echo{Values: values, Pos: pos}, nil

	case NodeText:
		return &Text{Text: d.str(m, "text"), Pos: pos}, nil

	case NodeBlock:
		return d.block(m)

	case NodeIf:
		cond, err := d.child(m, "condition")
		if err != nil {
			return nil, err
		}
		then, err := d.childStatement(m, "then")
		if err != nil {
			return nil, err
		}
		els, err := d.optionalStatement(m, "else")
		if err != nil {
			return nil, err
		}
		return &If{Condition: cond, Then: then, Else: els, Pos: pos}, nil

	case NodeWhile:
		cond, err := d.child(m, "condition")
		if err != nil {
			return nil, err
		}
		body, err := d.childStatement(m, "body")
		if err != nil {
			return nil, err
		}
		return &While{Condition: cond, Body: body, Pos: pos}, nil

	case NodeDo:
		body, err := d.childStatement(m, "body")
		if err != nil {
			return nil, err
		}
		cond, err := d.child(m, "condition")
		if err != nil {
			return nil, err
		}
		return &Do{Body: body, Condition: cond, Pos: pos}, nil

	case NodeFor:
		init, err := d.expressionList(m["init"])
		if err != nil {
			return nil, err
		}
		cond, err := d.optional(m, "condition")
		if err != nil {
			return nil, err
		}
		step, err := d.expressionList(m["step"])
		if err != nil {
			return nil, err
		}
		body, err := d.childStatement(m, "body")
		if err != nil {
			return nil, err
		}
		return &For{Init: init, Condition: cond, Step: step, Body: body, Pos: pos}, nil

	case NodeForeach:
		subject, err := d.child(m, "subject")
		if err != nil {
			return nil, err
		}
		key, err := d.optional(m, "key")
		if err != nil {
			return nil, err
		}
		val, err := d.child(m, "value")
		if err != nil {
			return nil, err
		}
		body, err := d.childStatement(m, "body")
		if err != nil {
			return nil, err
		}
		return &Foreach{Subject: subject, Key: key, Value: val, ByRef: d.boolean(m, "by_ref"), Body: body, Pos: pos}, nil

	case NodeBreak:
		target, err := d.optional(m, "target")
		if err != nil {
			return nil, err
		}
		return &Break{Target: target, Pos: pos}, nil

	case NodeContinue:
		target, err := d.optional(m, "target")
		if err != nil {
			return nil, err
		}
		return &Continue{Target: target, Pos: pos}, nil

	case NodeReturn:
		val, err := d.optional(m, "value")
		if err != nil {
			return nil, err
		}
		return &Return{Value: val, Pos: pos}, nil

	case NodeFunctionDecl:
		return d.function(m)

	case NodeClassDecl:
		return d.class(m)

	case NodeConditional:
		then, err := d.childStatement(m, "then")
		if err != nil {
			return nil, err
		}
		els, err := d.optionalStatement(m, "else")
		if err != nil {
			return nil, err
		}
		return &Conditional{Condition: d.str(m, "condition"), Then: then, Else: els, Pos: pos}, nil
	}

	// an expression in statement position
	e, err := d.expression(m)
	if err != nil {
		return nil, err
	}
	return &ExpressionStatement{Expression: e}, nil
}

func (d *decoder) block(m map[string]interface{}) (*Block, error) {
	list, _ := m["statements"].([]interface{})
	stmts, err := d.statementList(list)
	if err != nil {
		return nil, err
	}
	return &Block{Statements: stmts, Pos: d.position(m)}, nil
}

func (d *decoder) function(m map[string]interface{}) (*FunctionDecl, error) {
	fn := &FunctionDecl{Name: d.str(m, "name"), Static: d.boolean(m, "static"), Pos: d.position(m)}
	params, _ := m["params"].([]interface{})
	for _, raw := range params {
		pm, ok := d.asMap(raw)
		if !ok {
			return nil, d.errorf(m, "parameter must be a map")
		}
		def, err := d.optional(pm, "default")
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, Param{Name: d.str(pm, "name"), ByRef: d.boolean(pm, "by_ref"), Default: def})
	}
	body, ok := d.asMap(m["body"])
	if !ok {
		fn.Body = &Block{Pos: fn.Pos}
		return fn, nil
	}
	b, err := d.block(body)
	if err != nil {
		return nil, err
	}
	fn.Body = b
	return fn, nil
}

func (d *decoder) class(m map[string]interface{}) (*ClassDecl, error) {
	cl := &ClassDecl{Name: d.str(m, "name"), Parent: d.str(m, "parent"), Pos: d.position(m)}
	if cl.Name == "" {
		return nil, d.errorf(m, "class declaration requires a name")
	}
	fields, _ := m["fields"].([]interface{})
	for _, raw := range fields {
		fm, ok := d.asMap(raw)
		if !ok {
			return nil, d.errorf(m, "field must be a map")
		}
		def, err := d.optional(fm, "default")
		if err != nil {
			return nil, err
		}
		cl.Fields = append(cl.Fields, FieldDecl{Name: d.str(fm, "name"), Default: def})
	}
	methods, _ := m["methods"].([]interface{})
	for _, raw := range methods {
		mm, ok := d.asMap(raw)
		if !ok {
			return nil, d.errorf(m, "method must be a map")
		}
		fn, err := d.function(mm)
		if err != nil {
			return nil, err
		}
		cl.Methods = append(cl.Methods, fn)
	}
	return cl, nil
}

func (d *decoder) expression(m map[string]interface{}) (Expression, error) {
	pos := d.position(m)
	nodeType, ok := nodeTypeByName[d.str(m, "type")]
	if !ok {
		return nil, d.errorf(m, "unknown node type %q", d.str(m, "type"))
	}

	switch nodeType {
	case NodeLiteral:
		v, err := literalValue(m["value"])
		if err != nil {
			return nil, d.errorf(m, "%v", err)
		}
		return &Literal{Value: v, Pos: pos}, nil

	case NodeVariable:
		return &Variable{Name: strings.TrimPrefix(d.str(m, "name"), "$"), Pos: pos}, nil

	case NodeThis:
		return &This{Pos: pos}, nil

	case NodeArrayGet:
		arr, err := d.child(m, "array")
		if err != nil {
			return nil, err
		}
		idx, err := d.child(m, "index")
		if err != nil {
			return nil, err
		}
		return &ArrayGet{Array: arr, Index: idx, Pos: pos}, nil

	case NodeArrayTail:
		arr, err := d.child(m, "array")
		if err != nil {
			return nil, err
		}
		return &ArrayTail{Array: arr, Pos: pos}, nil

	case NodeFieldGet:
		obj, err := d.child(m, "object")
		if err != nil {
			return nil, err
		}
		return &FieldGet{Object: obj, Field: d.str(m, "field"), Pos: pos}, nil

	case NodeAssign:
		target, err := d.child(m, "target")
		if err != nil {
			return nil, err
		}
		val, err := d.child(m, "value")
		if err != nil {
			return nil, err
		}
		return &Assign{Target: target, Value: val, Op: d.str(m, "op"), Pos: pos}, nil

	case NodeAssignRef:
		target, err := d.child(m, "target")
		if err != nil {
			return nil, err
		}
		src, err := d.child(m, "source")
		if err != nil {
			return nil, err
		}
		return &AssignRef{Target: target, Source: src, Pos: pos}, nil

	case NodeBinary:
		left, err := d.child(m, "left")
		if err != nil {
			return nil, err
		}
		right, err := d.child(m, "right")
		if err != nil {
			return nil, err
		}
		return &Binary{Op: d.str(m, "op"), Left: left, Right: right, Pos: pos}, nil

	case NodeUnary:
		operand, err := d.child(m, "operand")
		if err != nil {
			return nil, err
		}
		return &Unary{Op: d.str(m, "op"), Operand: operand, Pos: pos}, nil

	case NodeIncrement:
		target, err := d.child(m, "target")
		if err != nil {
			return nil, err
		}
		delta, ok := toInt(m["delta"])
		if !ok || delta == 0 {
			delta = 1
		}
		return &Increment{Target: target, Delta: delta, Prefix: d.boolean(m, "prefix"), Pos: pos}, nil

	case NodeTernary:
		cond, err := d.child(m, "condition")
		if err != nil {
			return nil, err
		}
		then, err := d.child(m, "then")
		if err != nil {
			return nil, err
		}
		els, err := d.child(m, "else")
		if err != nil {
			return nil, err
		}
		return &Ternary{Condition: cond, Then: then, Else: els, Pos: pos}, nil

	case NodeCall:
		args, err := d.expressionList(m["args"])
		if err != nil {
			return nil, err
		}
		return &Call{Name: d.str(m, "name"), Args: args, Pos: pos}, nil

	case NodeCallVar:
		callee, err := d.child(m, "callee")
		if err != nil {
			return nil, err
		}
		args, err := d.expressionList(m["args"])
		if err != nil {
			return nil, err
		}
		return &CallVar{Callee: callee, Args: args, Pos: pos}, nil

	case NodeMethodCall:
		obj, err := d.child(m, "object")
		if err != nil {
			return nil, err
		}
		nameExpr, err := d.optional(m, "method_expr")
		if err != nil {
			return nil, err
		}
		args, err := d.expressionList(m["args"])
		if err != nil {
			return nil, err
		}
		return &MethodCall{Object: obj, Method: d.str(m, "method"), MethodExpr: nameExpr, Args: args, Pos: pos}, nil

	case NodeStaticCall:
		classExpr, err := d.optional(m, "class_expr")
		if err != nil {
			return nil, err
		}
		args, err := d.expressionList(m["args"])
		if err != nil {
			return nil, err
		}
		return &StaticCall{Class: d.str(m, "class"), ClassExpr: classExpr, Method: d.str(m, "method"), Args: args, Pos: pos}, nil

	case NodeNew:
		classExpr, err := d.optional(m, "class_expr")
		if err != nil {
			return nil, err
		}
		args, err := d.expressionList(m["args"])
		if err != nil {
			return nil, err
		}
		return &New{Class: d.str(m, "class"), ClassExpr: classExpr, Args: args, Pos: pos}, nil

	case NodeArrayLiteral:
		lit := &ArrayLiteral{Pos: pos}
		items, _ := m["items"].([]interface{})
		for _, raw := range items {
			im, ok := d.asMap(raw)
			if !ok {
				return nil, d.errorf(m, "array item must be a map")
			}
			key, err := d.optional(im, "key")
			if err != nil {
				return nil, err
			}
			val, err := d.child(im, "value")
			if err != nil {
				return nil, err
			}
			lit.Items = append(lit.Items, ArrayItem{Key: key, Value: val, ByRef: d.boolean(im, "by_ref")})
		}
		return lit, nil

	case NodeInclude:
		path, err := d.child(m, "path")
		if err != nil {
			return nil, err
		}
		return &Include{Path: path, Require: d.boolean(m, "require"), Once: d.boolean(m, "once"), Pos: pos}, nil

	case NodeInstanceOf:
		e, err := d.child(m, "expr")
		if err != nil {
			return nil, err
		}
		class, err := d.child(m, "class")
		if err != nil {
			return nil, err
		}
		return &InstanceOf{Expr: e, Class: class, Pos: pos}, nil

	case NodeFeature:
		return &Feature{Name: d.str(m, "name"), Pos: pos}, nil

	case NodeChoice:
		then, err := d.child(m, "then")
		if err != nil {
			return nil, err
		}
		els, err := d.child(m, "else")
		if err != nil {
			return nil, err
		}
		return &Choice{Condition: d.str(m, "condition"), Then: then, Else: els, Pos: pos}, nil

	case NodeClosure:
		fm, ok := d.asMap(m["function"])
		if !ok {
			return nil, d.errorf(m, "closure requires a function")
		}
		fn, err := d.function(fm)
		if err != nil {
			return nil, err
		}
		return &Closure{Function: fn, Pos: pos}, nil
	}

	return nil, d.errorf(m, "%s is not an expression", nodeType)
}

// literalValue normalizes decoded scalars to nil, bool, int64, float64 or string
func literalValue(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i, nil
			}
		}
		return x.Float64()
	}
	return nil, fmt.Errorf("unsupported literal %T", v)
}

func toInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case json.Number:
		i, err := x.Int64()
		return int(i), err == nil
	}
	return 0, false
}
