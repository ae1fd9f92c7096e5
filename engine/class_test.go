package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quercus/ast"
)

func fieldNames(fields []ast.FieldDecl) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func TestClass_FieldDeclsDoNotShareStorage(t *testing.T) {
	// spare capacity in the parent's declaration must not be written through
	fields := make([]ast.FieldDecl, 1, 4)
	fields[0] = ast.FieldDecl{Name: "id"}
	base := &Class{name: "Base", decl: &ast.ClassDecl{Name: "Base", Fields: fields}}

	left := &Class{name: "Left", parent: base, decl: &ast.ClassDecl{Name: "Left", Fields: []ast.FieldDecl{{Name: "l"}}}}
	right := &Class{name: "Right", parent: base, decl: &ast.ClassDecl{Name: "Right", Fields: []ast.FieldDecl{{Name: "r"}}}}

	leftFields := left.fieldDecls()
	rightFields := right.fieldDecls()

	assert.Equal(t, []string{"id", "l"}, fieldNames(leftFields))
	assert.Equal(t, []string{"id", "r"}, fieldNames(rightFields))
	assert.Equal(t, []string{"id"}, fieldNames(base.fieldDecls()))
	assert.Len(t, base.decl.Fields, 1)
	assert.Equal(t, "", fields[:2][1].Name)
}

func TestClass_IsA(t *testing.T) {
	base := &Class{name: "Base", decl: &ast.ClassDecl{Name: "Base"}}
	child := &Class{name: "Child", parent: base, decl: &ast.ClassDecl{Name: "Child", Parent: "Base"}}

	assert.True(t, child.IsA("base"))
	assert.True(t, child.IsA("CHILD"))
	assert.False(t, base.IsA("Child"))
	assert.Same(t, base, child.Parent())
}
