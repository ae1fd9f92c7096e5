package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"quercus/ast"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeRuntime    ErrorType = "RUNTIME"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeSystem     ErrorType = "SYSTEM"
	ErrorTypeUser       ErrorType = "USER"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityDebug   ErrorSeverity = "DEBUG"
	SeverityInfo    ErrorSeverity = "INFO"
	SeverityWarning ErrorSeverity = "WARNING"
	SeverityError   ErrorSeverity = "ERROR"
	SeverityFatal   ErrorSeverity = "FATAL"
)

// Rank orders severities from DEBUG (0) to FATAL (4)
func (s ErrorSeverity) Rank() int {
	switch s {
	case SeverityDebug:
		return 0
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	case SeverityFatal:
		return 4
	}
	return -1
}

// ExecutionError represents a structured error with detailed information
type ExecutionError struct {
	Code       string                 `json:"code" msgpack:"code"`
	Message    string                 `json:"message" msgpack:"message"`
	Location   ast.Position           `json:"location" msgpack:"location"`
	Feature    string                 `json:"feature,omitempty" msgpack:"feature,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty" msgpack:"-"`
	Context    map[string]interface{} `json:"context,omitempty" msgpack:"context,omitempty"`
	Timestamp  time.Time              `json:"timestamp" msgpack:"timestamp"`
	Severity   ErrorSeverity          `json:"severity" msgpack:"severity"`
	Type       ErrorType              `json:"type" msgpack:"type"`
	Cause      error                  `json:"-" msgpack:"-"`
	Wrapped    []error                `json:"-" msgpack:"-"`
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	var builder strings.Builder

	// Format: [TYPE][CODE] message
	builder.WriteString(fmt.Sprintf("[%s][%s] %s", e.Type, e.Code, e.Message))

	if e.Location.IsValid() {
		if e.Location.File != "" {
			builder.WriteString(fmt.Sprintf(" in %s", e.Location.File))
		}
		builder.WriteString(fmt.Sprintf(" line %d col %d", e.Location.Line, e.Location.Column))
	}
	if e.Feature != "" && e.Feature != "True" {
		builder.WriteString(fmt.Sprintf(" under %s", e.Feature))
	}

	return builder.String()
}

// Unwrap returns the underlying error
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *ExecutionError) Is(target error) bool {
	if other, ok := target.(*ExecutionError); ok {
		return e.Code == other.Code && e.Type == other.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *ExecutionError) WithContext(key string, value interface{}) *ExecutionError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the severity level for the error
func (e *ExecutionError) WithSeverity(severity ErrorSeverity) *ExecutionError {
	e.Severity = severity
	return e
}

// WithType sets the error type
func (e *ExecutionError) WithType(errorType ErrorType) *ExecutionError {
	e.Type = errorType
	return e
}

// WithLocation sets the source location, keeping an existing one
func (e *ExecutionError) WithLocation(pos ast.Position) *ExecutionError {
	if !e.Location.IsValid() {
		e.Location = pos
	}
	return e
}

// WithFeature records the feature context the error occurred in
func (e *ExecutionError) WithFeature(feature fmt.Stringer) *ExecutionError {
	e.Feature = feature.String()
	return e
}

// WithStackTrace captures and adds stack trace information
func (e *ExecutionError) WithStackTrace() *ExecutionError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	e.StackTrace = string(buf[:n])
	return e
}

// Wrap wraps another error
func (e *ExecutionError) Wrap(err error) *ExecutionError {
	e.Cause = err
	e.Wrapped = append(e.Wrapped, err)
	return e
}

// Clone returns a shallow copy, used when one error is reported under several contexts
func (e *ExecutionError) Clone() *ExecutionError {
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	return &c
}

func newError(code, message string, severity ErrorSeverity, errorType ErrorType) *ExecutionError {
	return &ExecutionError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Severity:  severity,
		Type:      errorType,
		Context:   make(map[string]interface{}),
	}
}

// NewExecutionError creates a new execution error
func NewExecutionError(code, message string) *ExecutionError {
	return newError(code, message, SeverityError, ErrorTypeSystem)
}

// NewRuntimeError creates an error raised by the evaluated program
func NewRuntimeError(code, message string) *ExecutionError {
	return newError(code, message, SeverityError, ErrorTypeRuntime)
}

// NewWarning creates a recoverable runtime warning
func NewWarning(code, message string) *ExecutionError {
	return newError(code, message, SeverityWarning, ErrorTypeRuntime)
}

// NewFatalError creates an error that aborts the whole request
func NewFatalError(code, message string) *ExecutionError {
	return newError(code, message, SeverityFatal, ErrorTypeRuntime)
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string) *ExecutionError {
	return newError(code, message, SeverityWarning, ErrorTypeValidation)
}

// NewSystemError creates a new system error
func NewSystemError(code, message string) *ExecutionError {
	return newError(code, message, SeverityError, ErrorTypeSystem)
}

// NewUserError creates a new user error
func NewUserError(code, message string) *ExecutionError {
	return newError(code, message, SeverityInfo, ErrorTypeUser)
}

// NewErrorWithPos creates a runtime error at a source position
func NewErrorWithPos(code, message string, pos ast.Position) *ExecutionError {
	e := NewRuntimeError(code, message)
	e.Location = pos
	return e
}

// Newf creates a runtime error with a formatted message
func Newf(code, format string, args ...interface{}) *ExecutionError {
	return NewRuntimeError(code, fmt.Sprintf(format, args...))
}

// WrapError wraps an existing error into an ExecutionError
func WrapError(err error, code, message string) *ExecutionError {
	execErr := NewExecutionError(code, message)
	_ = execErr.Wrap(err)
	return execErr
}

// IsExecutionError checks if an error is an ExecutionError
func IsExecutionError(err error) bool {
	_, ok := AsExecutionError(err)
	return ok
}

// AsExecutionError finds the first ExecutionError in err's chain
func AsExecutionError(err error) (*ExecutionError, bool) {
	var execErr *ExecutionError
	if stderrors.As(err, &execErr) {
		return execErr, true
	}
	return nil, false
}

// HasCode reports whether err's chain contains an ExecutionError with the code
func HasCode(err error, code string) bool {
	for _, e := range GetErrorChain(err) {
		if execErr, ok := e.(*ExecutionError); ok && execErr.Code == code {
			return true
		}
	}
	return false
}

// GetErrorChain returns the chain of errors
func GetErrorChain(err error) []error {
	var chain []error
	for err != nil {
		chain = append(chain, err)
		if execErr, ok := err.(*ExecutionError); ok && len(execErr.Wrapped) > 1 {
			chain = append(chain, execErr.Wrapped[:len(execErr.Wrapped)-1]...)
		}
		err = stderrors.Unwrap(err)
	}
	return chain
}
