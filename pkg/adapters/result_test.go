package adapters

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOutcome_Success(t *testing.T) {
	result := &toolexecutor.ExecutionResult{
		Data:     map[string]interface{}{"temperature": 22},
		Metadata: toolexecutor.ResultMetadata{ToolName: "get_weather", Timestamp: time.Now()},
	}

	content, isError := FormatOutcome(result, nil)
	assert.False(t, isError)
	assert.JSONEq(t, `{"temperature":22}`, content)
}

func TestFormatOutcome_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err: &toolexecutor.ValidationError{ToolName: "get_weather", FieldErrors: []toolexecutor.FieldError{
				{Field: "city", Message: "Invalid type. Expected: string, given: integer"},
			}},
			want: `{"error":{"code":"VALIDATION_ERROR","message":"tool get_weather: invalid arguments: city: Invalid type. Expected: string, given: integer","toolName":"get_weather","fieldErrors":[{"field":"city","message":"Invalid type. Expected: string, given: integer"}]}}`,
		},
		{
			name: "risk",
			err:  &toolexecutor.RiskViolationError{ToolName: "delete_user", RequiredRole: "admin", ActualRole: "user"},
			want: `{"error":{"code":"RISK_VIOLATION","message":"tool delete_user requires role \"admin\" (actual \"user\")","toolName":"delete_user","requiredRole":"admin","actualRole":"user"}}`,
		},
		{
			name: "confirmation",
			err:  &toolexecutor.ConfirmationRequiredError{ToolName: "transfer_funds", PendingArgs: map[string]interface{}{"amount": 100}},
			want: `{"error":{"code":"CONFIRMATION_REQUIRED","message":"tool transfer_funds requires confirmation","toolName":"transfer_funds","pendingArgs":{"amount":100}}}`,
		},
		{
			name: "not found",
			err:  fmt.Errorf("%w: nope", toolexecutor.ErrToolNotFound),
			want: `{"error":{"code":"TOOL_NOT_FOUND","message":"tool not found: nope"}}`,
		},
		{
			name: "execution",
			err:  &toolexecutor.ExecutionError{ToolName: "flaky", Cause: errors.New("upstream down")},
			want: `{"error":{"code":"EXECUTION_ERROR","message":"tool flaky execution failed: upstream down","toolName":"flaky"}}`,
		},
		{
			name: "plain",
			err:  errors.New("bad input"),
			want: `{"error":{"code":"EXECUTION_ERROR","message":"bad input"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, isError := FormatOutcome(nil, tt.err)
			assert.True(t, isError)
			assert.JSONEq(t, tt.want, content)
		})
	}
}

func TestFormatOutcome_UnencodableResult(t *testing.T) {
	content, isError := FormatOutcome(&toolexecutor.ExecutionResult{Data: make(chan int)}, nil)
	assert.True(t, isError)
	assert.Contains(t, content, "EXECUTION_ERROR")
}

func TestDecodeArguments(t *testing.T) {
	args, err := DecodeArguments(`{"city":"Paris"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"city": "Paris"}, args)

	args, err = DecodeArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = DecodeArguments("null")
	require.NoError(t, err)
	assert.NotNil(t, args)

	_, err = DecodeArguments("{broken")
	assert.Error(t, err)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"city"}, RequiredFields(map[string]interface{}{"required": []string{"city"}}))
	assert.Equal(t, []string{"a", "b"}, RequiredFields(map[string]interface{}{"required": []string{"b", "a"}}))
	assert.Equal(t, []string{"a", "b"}, RequiredFields(map[string]interface{}{"required": []interface{}{"b", "a"}}))
	assert.Nil(t, RequiredFields(map[string]interface{}{}))
}

func TestNewToolError_RiskFields(t *testing.T) {
	te := NewToolError(&toolexecutor.RiskViolationError{ToolName: "delete_user", RequiredRole: "admin", ActualRole: "none"})
	assert.Equal(t, toolexecutor.CodeRiskViolation, te.Code)
	assert.Equal(t, "delete_user", te.ToolName)
	assert.Equal(t, "admin", te.RequiredRole)
	assert.Equal(t, "none", te.ActualRole)
}
