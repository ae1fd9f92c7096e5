package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"quercus/ast"
	"quercus/container"
	"quercus/featureexpr"
	"quercus/loader"
)

// AST builders for engine tests

func lit(v interface{}) ast.Expression { return &ast.Literal{Value: v} }
func vr(name string) *ast.Variable     { return &ast.Variable{Name: name} }
func idx(a, k ast.Expression) *ast.ArrayGet {
	return &ast.ArrayGet{Array: a, Index: k}
}
func tail(a ast.Expression) *ast.ArrayTail { return &ast.ArrayTail{Array: a} }
func field(o ast.Expression, name string) *ast.FieldGet {
	return &ast.FieldGet{Object: o, Field: name}
}
func bin(op string, l, r ast.Expression) *ast.Binary { return &ast.Binary{Op: op, Left: l, Right: r} }
func call(name string, args ...ast.Expression) *ast.Call {
	return &ast.Call{Name: name, Args: args}
}
func feature(name string) *ast.Feature { return &ast.Feature{Name: name} }

func expr(e ast.Expression) ast.Statement { return &ast.ExpressionStatement{Expression: e} }
func set(target, v ast.Expression) ast.Statement {
	return expr(&ast.Assign{Target: target, Value: v})
}
func setRef(target, source ast.Expression) ast.Statement {
	return expr(&ast.AssignRef{Target: target, Source: source})
}
func echo(vals ...ast.Expression) ast.Statement { return &ast.Echo{Values: vals} }
func block(stmts ...ast.Statement) *ast.Block  { return &ast.Block{Statements: stmts} }
func ret(e ast.Expression) ast.Statement       { return &ast.Return{Value: e} }
func when(cond string, then, els ast.Statement) ast.Statement {
	return &ast.Conditional{Condition: cond, Then: then, Else: els}
}
func incr(target ast.Expression) ast.Expression {
	return &ast.Increment{Target: target, Delta: 1}
}

type item struct {
	key   ast.Expression
	value ast.Expression
	ref   bool
}

func array(items ...item) *ast.ArrayLiteral {
	n := &ast.ArrayLiteral{}
	for _, it := range items {
		n.Items = append(n.Items, ast.ArrayItem{Key: it.key, Value: it.value, ByRef: it.ref})
	}
	return n
}

func funcDecl(name string, params []string, body ...ast.Statement) *ast.FunctionDecl {
	decl := &ast.FunctionDecl{Name: name, Body: block(body...)}
	for _, p := range params {
		decl.Params = append(decl.Params, ast.Param{Name: p})
	}
	return decl
}

func program(stmts ...ast.Statement) *ast.Program {
	return &ast.Program{File: "/app/index.php", Statements: stmts}
}

// newTestEngine creates an engine over features. Programs added to the
// returned loader can be included.
func newTestEngine(t *testing.T, cfg ExecutionEngineConfig) (*ExecutionEngine, *loader.MapLoader) {
	t.Helper()
	c := container.NewDIContainer()
	ml := loader.NewMapLoader()
	require.NoError(t, c.RegisterInstance("loader", loader.ModuleLoader(ml)))
	cfg.Container = c
	e, err := NewExecutionEngineWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, ml
}

func run(t *testing.T, e *ExecutionEngine, prog *ast.Program) *Result {
	t.Helper()
	res, err := e.Run(context.Background(), prog)
	require.NoError(t, err)
	return res
}

func config(t *testing.T, text string) featureexpr.Configuration {
	t.Helper()
	cfg, err := featureexpr.ParseConfiguration(text)
	require.NoError(t, err)
	return cfg
}

// outputIn renders the output of res in the configuration given as text
func outputIn(t *testing.T, res *Result, text string) string {
	t.Helper()
	return res.Output.Render(config(t, text))
}
