// Package adapters holds the provider-neutral half of the LLM tool adapters:
// turning an ExecutionResult or engine error into the text a model sees.
package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/harun/toolgate/pkg/toolexecutor"
)

// ToolError is the JSON body reported to a model when a call fails.
type ToolError struct {
	Code         string                    `json:"code"`
	Message      string                    `json:"message"`
	ToolName     string                    `json:"toolName,omitempty"`
	FieldErrors  []toolexecutor.FieldError `json:"fieldErrors,omitempty"`
	RequiredRole string                    `json:"requiredRole,omitempty"`
	ActualRole   string                    `json:"actualRole,omitempty"`
	PendingArgs  map[string]interface{}    `json:"pendingArgs,omitempty"`
}

// CodeToolNotFound is reported when the model names an unregistered tool.
const CodeToolNotFound = "TOOL_NOT_FOUND"

// NewToolError converts err into the structured body shown to a model.
func NewToolError(err error) ToolError {
	te := ToolError{Code: toolexecutor.ErrorCode(err), Message: err.Error()}

	var validationErr *toolexecutor.ValidationError
	var riskErr *toolexecutor.RiskViolationError
	var confirmErr *toolexecutor.ConfirmationRequiredError
	var execErr *toolexecutor.ExecutionError

	switch {
	case errors.Is(err, toolexecutor.ErrToolNotFound):
		te.Code = CodeToolNotFound
	case errors.As(err, &validationErr):
		te.ToolName = validationErr.ToolName
		te.FieldErrors = validationErr.FieldErrors
	case errors.As(err, &riskErr):
		te.ToolName = riskErr.ToolName
		te.RequiredRole = riskErr.RequiredRole
		te.ActualRole = riskErr.ActualRole
	case errors.As(err, &confirmErr):
		te.ToolName = confirmErr.ToolName
		te.PendingArgs = confirmErr.PendingArgs
	case errors.As(err, &execErr):
		te.ToolName = execErr.ToolName
	}
	if te.Code == "" {
		te.Code = toolexecutor.CodeExecution
	}
	return te
}

// FormatOutcome renders the outcome of Tool.Execute as tool-result content.
// Success content is the JSON encoding of the result data.
func FormatOutcome(result *toolexecutor.ExecutionResult, err error) (content string, isError bool) {
	if err != nil {
		raw, mErr := json.Marshal(map[string]interface{}{"error": NewToolError(err)})
		if mErr != nil {
			return fmt.Sprintf(`{"error":{"code":%q,"message":%q}}`, toolexecutor.CodeExecution, err.Error()), true
		}
		return string(raw), true
	}

	raw, mErr := json.Marshal(result.Data)
	if mErr != nil {
		return fmt.Sprintf(`{"error":{"code":%q,"message":"result is not JSON encodable: %s"}}`, toolexecutor.CodeExecution, mErr.Error()), true
	}
	return string(raw), false
}

// DecodeArguments parses the raw JSON arguments a model produced. Empty input
// is an empty object.
func DecodeArguments(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// RequiredFields returns the "required" list of a JSON schema document,
// sorted.
func RequiredFields(schema map[string]interface{}) []string {
	switch req := schema["required"].(type) {
	case []string:
		out := append([]string(nil), req...)
		sort.Strings(out)
		return out
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		sort.Strings(out)
		return out
	}
	return nil
}
