package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeConfig       = "CONFIG_ERROR"
	ErrCodeReference    = "REFERENCE_ERROR"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeCollaborator = "COLLABORATOR_ERROR"
	ErrCodeUnsupported  = "UNSUPPORTED_OPERATION"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeStore        = "STORE_ERROR"
	ErrCodeExecution    = "EXECUTION_ERROR"
	ErrCodeStepFailed   = "STEP_FAILED"
	ErrCodeCircuitOpen  = "CIRCUIT_OPEN"
	ErrCodeSecret       = "SECRET_ERROR"
)

// ScenarioError is the structured error type returned by every layer of the interpreter.
type ScenarioError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Step    string         `json:"step,omitempty"`
	Cause   error          `json:"-"`
}

func (e *ScenarioError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ScenarioError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ScenarioError.
func NewError(code, message string) *ScenarioError {
	return &ScenarioError{Code: code, Message: message}
}

// NewErrorf creates a new ScenarioError with a formatted message.
func NewErrorf(code, format string, args ...any) *ScenarioError {
	return &ScenarioError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches the identity of the failing step.
func (e *ScenarioError) WithStep(step string) *ScenarioError {
	e.Step = step
	return e
}

// WithCause attaches an underlying cause.
func (e *ScenarioError) WithCause(err error) *ScenarioError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *ScenarioError) WithDetails(details map[string]any) *ScenarioError {
	e.Details = details
	return e
}

// IsCode reports whether any ScenarioError in err's chain carries the given code.
func IsCode(err error, code string) bool {
	for err != nil {
		var se *ScenarioError
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Cause
	}
	return false
}

// CodeOf returns the code of the outermost ScenarioError in err's chain, or "".
func CodeOf(err error) string {
	var se *ScenarioError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
