package errors

// Error codes raised while evaluating a program
const (
	// coercion warnings
	CodeConversion     = "CONVERSION"
	CodeScalarAsArray  = "SCALAR_AS_ARRAY"
	CodeUndefinedIndex = "UNDEFINED_INDEX"
	CodeUndefinedVar   = "UNDEFINED_VARIABLE"
	CodeDivisionByZero = "DIVISION_BY_ZERO"
	CodeUnsupportedOp  = "UNSUPPORTED_OPERAND"

	// resolution failures
	CodeUndefinedFunction = "UNDEFINED_FUNCTION"
	CodeUndefinedClass    = "UNDEFINED_CLASS"
	CodeUndefinedMethod   = "UNDEFINED_METHOD"
	CodeNotCallable       = "NOT_CALLABLE"
	CodeIncludeFailed     = "INCLUDE_FAILED"
	CodeMissingArgument   = "MISSING_ARGUMENT"
	CodeHostCall          = "HOST_CALL_FAILED"

	// branch faults
	CodeIncomparable  = "INCOMPARABLE"
	CodeRequireFailed = "REQUIRE_FAILED"
	CodeRedeclared    = "REDECLARED"
	CodeNotAnObject   = "NOT_AN_OBJECT"
	CodeInvalidTarget = "INVALID_TARGET"
	CodeNotInLoop     = "NOT_IN_LOOP"

	// request-fatal conditions
	CodeTimeout     = "TIMEOUT"
	CodeCancelled   = "CANCELLED"
	CodeUnsupported = "UNSUPPORTED_OPERATION"
	CodeStackDepth  = "STACK_OVERFLOW"
	CodeInternal    = "INTERNAL"
	CodeBadFeature  = "BAD_FEATURE_EXPRESSION"
)
