package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quercus/ast"
)

type featureText string

func (f featureText) String() string { return string(f) }

func TestExecutionError_Format(t *testing.T) {
	err := NewWarning(CodeUndefinedIndex, "Undefined array key 3")
	assert.Equal(t, "[RUNTIME][UNDEFINED_INDEX] Undefined array key 3", err.Error())

	err.WithLocation(ast.Position{File: "index.php", Line: 4, Column: 7}).WithFeature(featureText("A && !B"))
	assert.Equal(t, "[RUNTIME][UNDEFINED_INDEX] Undefined array key 3 in index.php line 4 col 7 under A && !B", err.Error())

	// an existing location is kept
	err.WithLocation(ast.Position{File: "other.php", Line: 9})
	assert.Equal(t, 4, err.Location.Line)

	// the unrestricted context is not printed
	plain := NewRuntimeError(CodeIncomparable, "cannot compare").WithFeature(featureText("True"))
	assert.Equal(t, "[RUNTIME][INCOMPARABLE] cannot compare", plain.Error())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *ExecutionError
		severity ErrorSeverity
		typ      ErrorType
	}{
		{"execution", NewExecutionError("X", "m"), SeverityError, ErrorTypeSystem},
		{"runtime", NewRuntimeError("X", "m"), SeverityError, ErrorTypeRuntime},
		{"warning", NewWarning("X", "m"), SeverityWarning, ErrorTypeRuntime},
		{"fatal", NewFatalError("X", "m"), SeverityFatal, ErrorTypeRuntime},
		{"validation", NewValidationError("X", "m"), SeverityWarning, ErrorTypeValidation},
		{"system", NewSystemError("X", "m"), SeverityError, ErrorTypeSystem},
		{"user", NewUserError("X", "m"), SeverityInfo, ErrorTypeUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.severity, tt.err.Severity)
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}

	withPos := NewErrorWithPos("X", "m", ast.Position{Line: 2})
	assert.Equal(t, 2, withPos.Location.Line)
	assert.Equal(t, "value 42", Newf("X", "value %d", 42).Message)
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityDebug.Rank(), SeverityInfo.Rank())
	assert.Less(t, SeverityWarning.Rank(), SeverityError.Rank())
	assert.Less(t, SeverityError.Rank(), SeverityFatal.Rank())
	assert.Equal(t, -1, ErrorSeverity("LOUD").Rank())
}

func TestWrapAndChain(t *testing.T) {
	cause := stderrors.New("disk full")
	err := WrapError(cause, CodeIncludeFailed, "include failed")
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeIncludeFailed))

	outer := fmt.Errorf("request: %w", err)
	assert.True(t, IsExecutionError(outer))
	found, ok := AsExecutionError(outer)
	require.True(t, ok)
	assert.Same(t, err, found)
	assert.True(t, HasCode(outer, CodeIncludeFailed))
	assert.False(t, HasCode(outer, CodeTimeout))
	assert.Len(t, GetErrorChain(outer), 3)

	assert.False(t, IsExecutionError(cause))
	assert.True(t, stderrors.Is(outer, NewSystemError(CodeIncludeFailed, "other message")))
	assert.False(t, stderrors.Is(outer, NewRuntimeError(CodeIncludeFailed, "other type")))
}

func TestClone(t *testing.T) {
	err := NewRuntimeError(CodeRedeclared, "Cannot redeclare f()").WithContext("function", "f")
	c := err.Clone()
	c.WithContext("function", "g")
	c.Feature = "A"
	assert.Equal(t, "f", err.Context["function"])
	assert.Empty(t, err.Feature)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Tier
	}{
		{"warning", NewWarning(CodeConversion, "m"), TierCoercion},
		{"undefined function", NewRuntimeError(CodeUndefinedFunction, "m"), TierResolution},
		{"incomparable", NewRuntimeError(CodeIncomparable, "m"), TierBranchFault},
		{"jump outside a loop", NewRuntimeError(CodeNotInLoop, "m"), TierBranchFault},
		{"timeout", NewFatalError(CodeTimeout, "m"), TierTimeout},
		{"cancelled", NewFatalError(CodeCancelled, "m"), TierTimeout},
		{"unsupported", NewFatalError(CodeUnsupported, "m"), TierUnsupported},
		{"unknown fatal code", NewFatalError("OTHER", "m"), TierUnsupported},
		{"unknown error code", NewRuntimeError("OTHER", "m"), TierBranchFault},
		{"wrapped", fmt.Errorf("ctx: %w", NewRuntimeError(CodeUndefinedClass, "m")), TierResolution},
		{"plain error", stderrors.New("boom"), TierUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
	assert.True(t, TierTimeout.IsRequestFatal())
	assert.False(t, TierBranchFault.IsRequestFatal())
	assert.Equal(t, "branch-fault", TierBranchFault.String())
}

func TestDefaultErrorHandler(t *testing.T) {
	h := NewDefaultErrorHandler()
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")

	strategy, err := h.Recover(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, RecoveryActionNone, strategy.Action)

	for code, want := range map[string]RecoveryAction{
		CodeConversion:        RecoveryActionLog,
		CodeUndefinedFunction: RecoveryActionLog,
		CodeIncomparable:      RecoveryActionAbortBranch,
		CodeTimeout:           RecoveryActionAbortRequest,
	} {
		strategy, err := h.Recover(ctx, NewWarning(code, "m"))
		require.NoError(t, err)
		assert.Equal(t, want, strategy.Action, code)
	}

	handled := h.Handle(ctx, stderrors.New("boom"))
	execErr, ok := AsExecutionError(handled)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, execErr.Code)
	assert.Equal(t, SeverityFatal, execErr.Severity)
	assert.NotEmpty(t, execErr.StackTrace)
	assert.Nil(t, h.Handle(ctx, nil))

	inner := NewWarning(CodeConversion, "m").WithLocation(ast.Position{Line: 3})
	wrapped := h.Wrap(ctx, inner, CodeHostCall, "host call failed", WithTypeOption(ErrorTypeUser))
	assert.Equal(t, SeverityWarning, wrapped.Severity)
	assert.Equal(t, 3, wrapped.Location.Line)
	assert.Equal(t, ErrorTypeUser, wrapped.Type)
	assert.Equal(t, "req-1", wrapped.Context["request_id"])
	assert.Nil(t, h.Wrap(ctx, nil, "X", "m"))
}
