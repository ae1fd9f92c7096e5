package errors

import (
	"context"
	"fmt"
)

// ErrorOption is a function that modifies an ExecutionError
type ErrorOption func(*ExecutionError)

// WithSeverityOption sets the severity level for the error
func WithSeverityOption(severity ErrorSeverity) ErrorOption {
	return func(e *ExecutionError) {
		e.Severity = severity
	}
}

// WithTypeOption sets the error type
func WithTypeOption(errorType ErrorType) ErrorOption {
	return func(e *ExecutionError) {
		e.Type = errorType
	}
}

// WithContextOption adds context information to the error
func WithContextOption(key string, value interface{}) ErrorOption {
	return func(e *ExecutionError) {
		if e.Context == nil {
			e.Context = make(map[string]interface{})
		}
		e.Context[key] = value
	}
}

// Tier is the propagation class of an evaluation error
type Tier int

const (
	// TierCoercion: warning, a default value is substituted and evaluation continues
	TierCoercion Tier = iota
	// TierResolution: unknown function/class/method, an error value for the affected configurations
	TierResolution
	// TierBranchFault: the configurations that reached the fault stop executing
	TierBranchFault
	// TierTimeout: the whole request stops
	TierTimeout
	// TierUnsupported: a gap in the interpreter, the whole request stops
	TierUnsupported
)

func (t Tier) String() string {
	switch t {
	case TierCoercion:
		return "coercion"
	case TierResolution:
		return "resolution"
	case TierBranchFault:
		return "branch-fault"
	case TierTimeout:
		return "timeout"
	case TierUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// IsRequestFatal reports whether the tier aborts the whole request
func (t Tier) IsRequestFatal() bool {
	return t >= TierTimeout
}

// Classify maps an error onto its propagation tier. Errors that are not
// ExecutionErrors are treated as interpreter gaps.
func Classify(err error) Tier {
	execErr, ok := AsExecutionError(err)
	if !ok {
		return TierUnsupported
	}
	switch execErr.Code {
	case CodeTimeout, CodeCancelled:
		return TierTimeout
	case CodeUnsupported, CodeInternal, CodeStackDepth, CodeBadFeature:
		return TierUnsupported
	case CodeIncomparable, CodeRequireFailed, CodeRedeclared, CodeInvalidTarget, CodeNotInLoop, CodeNotAnObject:
		return TierBranchFault
	case CodeUndefinedFunction, CodeUndefinedClass, CodeUndefinedMethod, CodeNotCallable,
		CodeIncludeFailed, CodeMissingArgument, CodeHostCall:
		return TierResolution
	}
	switch execErr.Severity {
	case SeverityFatal:
		return TierUnsupported
	case SeverityError:
		return TierBranchFault
	}
	return TierCoercion
}

// RecoveryAction is what the evaluator does after an error
type RecoveryAction string

const (
	RecoveryActionNone         RecoveryAction = "NONE"
	RecoveryActionLog          RecoveryAction = "LOG"
	RecoveryActionAbortBranch  RecoveryAction = "ABORT_BRANCH"
	RecoveryActionAbortRequest RecoveryAction = "ABORT_REQUEST"
)

// RecoveryStrategy represents a strategy for recovering from an error
type RecoveryStrategy struct {
	Action  RecoveryAction `json:"action"`
	Tier    Tier           `json:"tier"`
	Message string         `json:"message"`
}

// ErrorHandler defines the interface for handling errors
type ErrorHandler interface {
	// Handle normalizes an error into an ExecutionError
	Handle(ctx context.Context, err error) error

	// Recover decides how evaluation proceeds after an error
	Recover(ctx context.Context, err error) (RecoveryStrategy, error)

	// Wrap wraps an error with additional context
	Wrap(ctx context.Context, err error, code, message string, options ...ErrorOption) *ExecutionError
}

// DefaultErrorHandler is the default implementation of ErrorHandler
type DefaultErrorHandler struct {
	actions map[Tier]RecoveryAction
}

// NewDefaultErrorHandler creates a new default error handler
func NewDefaultErrorHandler() *DefaultErrorHandler {
	return &DefaultErrorHandler{
		actions: map[Tier]RecoveryAction{
			TierCoercion:    RecoveryActionLog,
			TierResolution:  RecoveryActionLog,
			TierBranchFault: RecoveryActionAbortBranch,
			TierTimeout:     RecoveryActionAbortRequest,
			TierUnsupported: RecoveryActionAbortRequest,
		},
	}
}

// Handle processes an error and returns a potentially modified error
func (h *DefaultErrorHandler) Handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if execErr, ok := AsExecutionError(err); ok {
		return execErr
	}

	execErr := WrapError(err, CodeInternal, err.Error())
	execErr.Severity = SeverityFatal
	return execErr.WithStackTrace()
}

// Recover attempts to recover from an error and returns a recovery strategy
func (h *DefaultErrorHandler) Recover(ctx context.Context, err error) (RecoveryStrategy, error) {
	if err == nil {
		return RecoveryStrategy{Action: RecoveryActionNone}, nil
	}
	tier := Classify(err)
	action, ok := h.actions[tier]
	if !ok {
		action = RecoveryActionAbortRequest
	}
	return RecoveryStrategy{
		Action:  action,
		Tier:    tier,
		Message: fmt.Sprintf("recovery for %s error: %v", tier, err),
	}, nil
}

// Wrap wraps an error with additional context
func (h *DefaultErrorHandler) Wrap(ctx context.Context, err error, code, message string, options ...ErrorOption) *ExecutionError {
	if err == nil {
		return nil
	}

	execErr := NewExecutionError(code, message)
	_ = execErr.Wrap(err)
	if inner, ok := AsExecutionError(err); ok {
		execErr.Severity = inner.Severity
		execErr.Location = inner.Location
		execErr.Feature = inner.Feature
	}

	for _, option := range options {
		option(execErr)
	}

	if ctx != nil {
		if requestID := ctx.Value(RequestIDKey); requestID != nil {
			_ = execErr.WithContext("request_id", requestID)
		}
	}

	return execErr
}

type contextKey string

// RequestIDKey is the context key under which callers store a request id
const RequestIDKey contextKey = "request_id"
