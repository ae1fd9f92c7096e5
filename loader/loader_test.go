package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/ast"
	"quercus/errors"
)

const echoProgram = `
type: program
statements:
  - type: echo
    values:
      - {type: literal, value: "hi"}
`

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func TestFileLoader(t *testing.T) {
	root := t.TempDir()
	lib := filepath.Join(root, "lib")
	writeFile(t, filepath.Join(root, "app", "util.php.yaml"), echoProgram)
	writeFile(t, filepath.Join(lib, "shared.yaml"), echoProgram)

	l := NewFileLoader(lib)

	t.Run("relative to the including directory", func(t *testing.T) {
		prog, err := l.Load(filepath.Join(root, "app"), "util.php")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "app", "util.php.yaml"), prog.File)
		require.Len(t, prog.Statements, 1)
		assert.Equal(t, ast.NodeEcho, prog.Statements[0].Type())
	})

	t.Run("falls back to include paths with replaced extension", func(t *testing.T) {
		prog, err := l.Load(filepath.Join(root, "app"), "shared.php")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(lib, "shared.yaml"), prog.File)
	})

	t.Run("decoded programs are cached", func(t *testing.T) {
		a, err := l.Load(filepath.Join(root, "app"), "util.php")
		require.NoError(t, err)
		b, err := l.Load(root, "app/util.php")
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("missing files are include failures", func(t *testing.T) {
		_, err := l.Load(root, "nope.php")
		assert.True(t, errors.HasCode(err, errors.CodeIncludeFailed))
	})
}

func TestMapLoader(t *testing.T) {
	l := NewMapLoader()
	prog := &ast.Program{}
	l.Add("src/a.php", prog)

	got, err := l.Load("/src", "a.php")
	require.NoError(t, err)
	assert.Same(t, prog, got)
	assert.Equal(t, "/src/a.php", got.File)

	got, err = l.Load("/other", "../src/a.php")
	require.NoError(t, err)
	assert.Same(t, prog, got)

	_, err = l.Load("/src", "b.php")
	assert.Error(t, err)
}
