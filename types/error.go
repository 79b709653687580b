package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Workflow error codes
const (
	ErrInvalidWorkflow   ErrorCode = "INVALID_WORKFLOW"
	ErrUnknownTool       ErrorCode = "UNKNOWN_TOOL"
	ErrInvalidToolParams ErrorCode = "INVALID_TOOL_PARAMS"
	ErrToolFailed        ErrorCode = "TOOL_FAILED"
	ErrStepFailed        ErrorCode = "STEP_FAILED"
	ErrExecutionCanceled ErrorCode = "EXECUTION_CANCELED"
)

// Persistence error codes
const (
	ErrExecutionNotFound ErrorCode = "EXECUTION_NOT_FOUND"
	ErrStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCheckpointFailed  ErrorCode = "CHECKPOINT_FAILED"
)

// Infra error codes
const (
	ErrCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	StepID    string    `json:"step_id,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithStep attaches the owning step ID.
func (e *Error) WithStep(stepID string) *Error {
	e.StepID = stepID
	return e
}

// WithTool attaches the tool name.
func (e *Error) WithTool(tool string) *Error {
	e.Tool = tool
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
