package ast

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleYAML = `
type: program
statements:
  - type: echo
    position: {line: 2, column: 1}
    values:
      - type: binary
        op: "."
        left: {type: literal, value: "a"}
        right: {type: variable, name: "$x"}
  - type: conditional
    condition: "A && !B"
    then:
      type: block
      statements:
        - type: assign
          target: {type: variable, name: x}
          value: {type: literal, value: 3}
`

func TestDecode_YAML(t *testing.T) {
	prog, err := Decode([]byte(sampleYAML), "yaml", "index.php")
	require.NoError(t, err)
	assert.Equal(t, "index.php", prog.File)
	require.Len(t, prog.Statements, 2)

	echo, ok := prog.Statements[0].(*Echo)
	require.True(t, ok)
	assert.Equal(t, `echo ("a" . $x);`, echo.String())
	assert.Equal(t, Position{File: "index.php", Line: 2, Column: 1}, echo.Position())

	cond, ok := prog.Statements[1].(*Conditional)
	require.True(t, ok)
	assert.Equal(t, "A && !B", cond.Condition)
	assert.Nil(t, cond.Else)

	block, ok := cond.Then.(*Block)
	require.True(t, ok)
	require.Len(t, block.Statements, 1)
	stmt, ok := block.Statements[0].(*ExpressionStatement)
	require.True(t, ok)
	assign, ok := stmt.Expression.(*Assign)
	require.True(t, ok)
	assert.Equal(t, int64(3), assign.Value.(*Literal).Value)
}

func TestDecode_JSONNumbers(t *testing.T) {
	data := `[{"type": "echo", "values": [
		{"type": "literal", "value": 3},
		{"type": "literal", "value": 2.5},
		{"type": "literal", "value": 1e3},
		{"type": "literal", "value": null},
		{"type": "literal", "value": true}
	]}]`
	prog, err := Decode([]byte(data), "json", "")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)

	var got []interface{}
	for _, v := range prog.Statements[0].(*Echo).Values {
		got = append(got, v.(*Literal).Value)
	}
	assert.Equal(t, []interface{}{int64(3), 2.5, 1000.0, nil, true}, got)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
		want   string
	}{
		{"unknown format", "toml", "a = 1", "unsupported AST format"},
		{"bad yaml", "yaml", "type: [", "failed to parse YAML AST"},
		{"bad json", "json", "{", "failed to parse JSON AST"},
		{"root is not a program", "yaml", "type: echo", "root node must be a program"},
		{"scalar root", "yaml", "42", "unexpected AST root"},
		{"unknown node", "yaml", "- type: goto", `unknown node type "goto"`},
		{"missing child", "yaml", "- type: while\n  position: {line: 7}\n  body: {type: block}", `while node requires "condition"`},
		{"statement as expression", "yaml", "- type: echo\n  values: [{type: block}]", "block is not an expression"},
		{"class without name", "yaml", "- type: class", "class declaration requires a name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format, "f.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_ErrorPosition(t *testing.T) {
	_, err := Decode([]byte("- type: while\n  position: {line: 7, column: 3}\n  body: {type: block}"), "yaml", "loop.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loop.yaml:7:3")
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "main.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0644))
	prog, err := DecodeFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, prog.File)
	assert.Len(t, prog.Statements, 2)

	jsonPath := filepath.Join(dir, "main.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"type": "program", "statements": [{"type": "text", "text": "hi"}]}`), 0644))
	prog, err = DecodeFile(jsonPath)
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)
	assert.Equal(t, "hi", prog.Statements[0].(*Text).Text)

	_, err = DecodeFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestToMap_DecodesBack(t *testing.T) {
	pos := Position{File: "f.php", Line: 4, Column: 2}
	prog := &Program{
		File: "f.php",
		Statements: []Statement{
			&Foreach{
				Subject: &Variable{Name: "items", Pos: pos},
				Key:     &Variable{Name: "k", Pos: pos},
				Value:   &Variable{Name: "v", Pos: pos},
				ByRef:   true,
				Body: &Block{Statements: []Statement{
					&If{
						Condition: &Binary{Op: "==", Left: &Variable{Name: "k"}, Right: &Literal{Value: int64(1)}},
						Then:      &Break{Target: &Literal{Value: int64(2)}},
					},
					&Echo{Values: []Expression{&Call{Name: "strlen", Args: []Expression{&Variable{Name: "v"}}}}},
				}},
				Pos: pos,
			},
			&Echo{Values: []Expression{&Choice{Condition: "A", Then: &Literal{Value: "x"}, Else: &Literal{Value: 1.5}}}},
		},
	}

	data, err := yaml.Marshal(prog.ToMap())
	require.NoError(t, err)
	decoded, err := Decode(data, "yaml", "")
	require.NoError(t, err)

	assert.Equal(t, "f.php", decoded.File)
	require.Len(t, decoded.Statements, len(prog.Statements))
	for i := range prog.Statements {
		assert.Equal(t, prog.Statements[i].String(), decoded.Statements[i].String())
	}
	assert.Equal(t, pos, decoded.Statements[0].Position())
}

func TestNodeType_String(t *testing.T) {
	assert.Equal(t, "array_literal", NodeArrayLiteral.String())
	assert.Equal(t, "conditional", NodeConditional.String())
	assert.Equal(t, "NodeType(999)", NodeType(999).String())
	for typ, name := range nodeTypeNames {
		assert.Equal(t, typ, nodeTypeByName[name])
	}
}
