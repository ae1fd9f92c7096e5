package repl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/ast"
	"quercus/engine"
	"quercus/serialization"
)

// program echoes "x", sets $g to 1 under A and 2 otherwise, then echoes $g.
// Under B it also reads an undefined variable.
func program() *ast.Program {
	assign := func(v int) ast.Statement {
		return &ast.ExpressionStatement{Expression: &ast.Assign{
			Target: &ast.Variable{Name: "g"}, Value: &ast.Literal{Value: v},
		}}
	}
	return &ast.Program{File: "/app/index.php", Statements: []ast.Statement{
		&ast.Echo{Values: []ast.Expression{&ast.Literal{Value: "x"}}},
		&ast.Conditional{Condition: "A", Then: assign(1), Else: assign(2)},
		&ast.Echo{Values: []ast.Expression{&ast.Variable{Name: "g"}}},
		&ast.Conditional{Condition: "B", Then: &ast.Echo{Values: []ast.Expression{&ast.Variable{Name: "undefined"}}}},
	}}
}

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()
	e, err := engine.NewExecutionEngineWithConfig(engine.ExecutionEngineConfig{Features: []string{"A", "B"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	res, err := e.Run(context.Background(), program())
	require.NoError(t, err)

	var out bytes.Buffer
	r := NewREPLWithConfig(REPLConfig{
		Result: res,
		File:   "/app/index.php",
		Runner: func(ctx context.Context, path string) (*engine.Result, error) {
			return e.Run(ctx, &ast.Program{File: path, Statements: []ast.Statement{
				&ast.Echo{Values: []ast.Expression{&ast.Literal{Value: "other"}}},
			}})
		},
		Out: &out,
		In:  strings.NewReader(""),
	})
	return r, &out
}

func TestREPL_Commands(t *testing.T) {
	r, _ := newTestREPL(t)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"configs", ":configs", "  0  !A,!B\n  1  A,!B\n  2  !A,B\n  3  A,B"},
		{"show by index", ":show 1", "config: A,!B\noutput:\nx1"},
		{"show by literal", ":show !A,B", "config: !A,B\noutput:\nx2\ndiagnostic: Warning: Undefined variable $undefined"},
		{"var in configuration", ":var $g A", "1"},
		{"globals", ":globals", "g"},
		{"sat tautology", ":sat A || !A", "valid in all 4 configurations"},
		{"sat partial", ":sat A && B", "satisfiable in 1 of 4 configurations: A && B"},
		{"unsat", ":sat A && !A", "unsatisfiable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.ExecuteCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestREPL_VariableBranches(t *testing.T) {
	r, _ := newTestREPL(t)

	out, err := r.ExecuteCommand(":var g")
	require.NoError(t, err)
	assert.Contains(t, out, "[A]  1")
	assert.Contains(t, out, "[!A]  2")
}

func TestREPL_OutputAndDiagnostics(t *testing.T) {
	r, _ := newTestREPL(t)

	out, err := r.ExecuteCommand(":output")
	require.NoError(t, err)
	assert.Contains(t, out, "#if A\n1\n#endif\n")

	out, err = r.ExecuteCommand(":diag")
	require.NoError(t, err)
	assert.Equal(t, "[B]  Warning: Undefined variable $undefined", out)
}

func TestREPL_Errors(t *testing.T) {
	r, _ := newTestREPL(t)

	for _, input := range []string{
		"echo 1",
		":nope",
		":show",
		":show 9",
		":sat A &&",
		":save /tmp/x.report",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := r.ExecuteCommand(input)
			assert.Error(t, err)
		})
	}
}

func TestREPL_Save(t *testing.T) {
	r, _ := newTestREPL(t)
	path := filepath.Join(t.TempDir(), "report.yaml")

	out, err := r.ExecuteCommand(":save " + path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote yaml report")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report, err := serialization.Deserialize(data, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "/app/index.php", report.File)
	assert.Len(t, report.Configurations, 4)
}

func TestREPL_RunReplacesResult(t *testing.T) {
	r, _ := newTestREPL(t)

	out, err := r.ExecuteCommand(":run /app/other.php")
	require.NoError(t, err)
	assert.Contains(t, out, "/app/other.php: 4 configurations")

	out, err = r.ExecuteCommand(":show 0")
	require.NoError(t, err)
	assert.Contains(t, out, "output:\nother")
}

func TestREPL_PipedSession(t *testing.T) {
	r, out := newTestREPL(t)
	r.in = strings.NewReader(":show 3\n\n:exit\n:configs\n")

	require.NoError(t, r.Run())
	assert.Contains(t, out.String(), "config: A,B")
	assert.NotContains(t, out.String(), "  0  !A,!B")
	assert.Equal(t, []string{":show 3", ":exit"}, r.GetHistory())
}

func TestCompleter(t *testing.T) {
	r, _ := newTestREPL(t)
	c := NewCompleter(r)

	got, n := c.Do([]rune(":sh"), 3)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][]rune{[]rune("ow")}, got)

	got, _ = c.Do([]rune(":var $"), 6)
	assert.Equal(t, [][]rune{[]rune("g")}, got)

	got, _ = c.Do([]rune(":save out.json ms"), 17)
	assert.Equal(t, [][]rune{[]rune("gpack")}, got)
}
