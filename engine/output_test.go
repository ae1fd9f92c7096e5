package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/errors"
	"quercus/featureexpr"
)

func TestOutput_SegmentsAndRender(t *testing.T) {
	s := featureexpr.NewSpace()
	s.Declare("A")
	a := s.Var("A")

	var o Output
	o.Write(featureexpr.True(), "x")
	o.Write(featureexpr.True(), "y")
	o.Write(a, "A")
	o.Write(a.Not(), "")
	o.Write(featureexpr.False(), "never")

	require.Len(t, o.Segments(), 2)
	assert.Equal(t, "xy", o.Segments()[0].Text)
	assert.Equal(t, "xyA", o.Render(featureexpr.Configuration{"A": true}))
	assert.Equal(t, "xy", o.Render(featureexpr.Configuration{"A": false}))
	assert.Equal(t, "xy#if A\nA\n#endif\n", o.Annotated())
}

func TestDiagnostics_ForConfiguration(t *testing.T) {
	s := featureexpr.NewSpace()
	s.Declare("A")
	a := s.Var("A")

	d := NewDiagnostics(nil)
	d.Report(a, errors.NewWarning(errors.CodeUndefinedVar, "Undefined variable $x"))
	d.Report(featureexpr.True(), errors.NewRuntimeError(errors.CodeRedeclared, "Cannot redeclare f()"))
	d.Report(featureexpr.False(), errors.NewWarning(errors.CodeConversion, "dropped"))
	d.Report(a, nil)

	assert.Equal(t, 2, d.Len())
	assert.Len(t, d.For(featureexpr.Configuration{"A": true}), 2)
	only := d.For(featureexpr.Configuration{"A": false})
	require.Len(t, only, 1)
	assert.Equal(t, "Error: Cannot redeclare f()", only[0].String())
}
