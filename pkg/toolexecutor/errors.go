package toolexecutor

import (
	"errors"
	"fmt"
	"strings"
)

// Stable error codes carried by every engine error.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeRiskViolation        = "RISK_VIOLATION"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	CodeExecution            = "EXECUTION_ERROR"
)

var (
	// ErrToolNotFound is returned when a registry has no tool with the requested name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateTool is returned when registering a name that is already taken.
	ErrDuplicateTool = errors.New("tool already registered")
)

// CodedError is implemented by all structured engine errors.
type CodedError interface {
	error
	Code() string
}

// FieldError describes one argument that failed schema validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when raw arguments do not satisfy the tool schema.
type ValidationError struct {
	ToolName    string                 `json:"toolName"`
	FieldErrors []FieldError           `json:"fieldErrors"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Code implements CodedError.
func (e *ValidationError) Code() string { return CodeValidation }

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("tool %s: invalid arguments: %s", e.ToolName, strings.Join(parts, "; "))
}

// RiskViolationError is returned when the access policy denies a call.
type RiskViolationError struct {
	ToolName     string                 `json:"toolName"`
	RequiredRole string                 `json:"requiredRole"`
	ActualRole   string                 `json:"actualRole"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// Code implements CodedError.
func (e *RiskViolationError) Code() string { return CodeRiskViolation }

func (e *RiskViolationError) Error() string {
	return fmt.Sprintf("tool %s requires role %q (actual %q)", e.ToolName, e.RequiredRole, e.ActualRole)
}

// ConfirmationRequiredError is returned when a tool needs confirmation and the
// call was not confirmed. PendingArgs are the validated arguments, ready to be
// replayed with ExecutionOptions.Confirmed set.
type ConfirmationRequiredError struct {
	ToolName    string                 `json:"toolName"`
	PendingArgs map[string]interface{} `json:"pendingArgs"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Code implements CodedError.
func (e *ConfirmationRequiredError) Code() string { return CodeConfirmationRequired }

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("tool %s requires confirmation", e.ToolName)
}

// ExecutionError wraps any failure raised by the middleware chain or executor.
type ExecutionError struct {
	ToolName string                 `json:"toolName"`
	Cause    error                  `json:"-"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Code implements CodedError.
func (e *ExecutionError) Code() string { return CodeExecution }

func (e *ExecutionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("tool %s execution failed", e.ToolName)
	}
	return fmt.Sprintf("tool %s execution failed: %v", e.ToolName, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// ErrorCode returns the engine code of err, or "" when err is not an engine error.
func ErrorCode(err error) string {
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// wrapExecutionError leaves engine errors untouched and wraps everything else.
func wrapExecutionError(toolName string, err error) error {
	switch err.(type) {
	case *ValidationError, *RiskViolationError, *ConfirmationRequiredError, *ExecutionError:
		return err
	}
	return &ExecutionError{ToolName: toolName, Cause: err}
}
