package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeDefinition      = "DEFINITION_ERROR"
	ErrCodeUnknownAction   = "UNKNOWN_ACTION"
	ErrCodeCorruptState    = "CORRUPT_STATE"
	ErrCodeActionFault     = "ACTION_FAULT"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeExecution       = "EXECUTION_ERROR"
	ErrCodeAssertionFailed = "ASSERTION_FAILED"
	ErrCodeGate            = "GATE_ERROR"
	ErrCodeStore           = "STORE_ERROR"
)

// LobsterError is the structured error type for all lobster operations.
type LobsterError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *LobsterError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *LobsterError) Unwrap() error {
	return e.Cause
}

// NewError creates a new LobsterError.
func NewError(code, message string) *LobsterError {
	return &LobsterError{Code: code, Message: message}
}

// NewErrorf creates a new LobsterError with a formatted message.
func NewErrorf(code, format string, args ...any) *LobsterError {
	return &LobsterError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *LobsterError) WithStep(stepID string) *LobsterError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *LobsterError) WithCause(err error) *LobsterError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *LobsterError) WithDetails(details map[string]any) *LobsterError {
	e.Details = details
	return e
}
