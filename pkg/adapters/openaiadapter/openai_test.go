package openaiadapter

import (
	"context"
	"testing"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *toolexecutor.Registry {
	t.Helper()
	reg := toolexecutor.NewRegistry(zerolog.Nop())
	reg.MustRegister(toolexecutor.MustNew(toolexecutor.ToolDefinition{
		Name:        "get_weather",
		Description: "Current weather for a city",
		Schema: toolexecutor.MustObjectSchema([]toolexecutor.ToolParameter{
			{Name: "city", Type: "string", Description: "City name", Required: true},
		}),
		Executor: func(ctx context.Context, args map[string]interface{}, execCtx toolexecutor.ExecutionContext) (interface{}, error) {
			return map[string]interface{}{"city": args["city"], "temperature": 22}, nil
		},
	}))
	reg.MustRegister(toolexecutor.MustNew(toolexecutor.ToolDefinition{
		Name:        "delete_user",
		Description: "Delete a user",
		RiskLevel:   toolexecutor.RiskHigh,
		Executor: func(ctx context.Context, args map[string]interface{}, execCtx toolexecutor.ExecutionContext) (interface{}, error) {
			return "deleted", nil
		},
	}))
	return reg
}

func toolCall(id, name, arguments string) openai.ChatCompletionMessageToolCall {
	return openai.ChatCompletionMessageToolCall{
		ID:   id,
		Type: "function",
		Function: openai.ChatCompletionMessageToolCallFunction{
			Name:      name,
			Arguments: arguments,
		},
	}
}

func TestToolParams(t *testing.T) {
	params := ToolParams(newRegistry(t))
	require.Len(t, params, 2)

	assert.Equal(t, "delete_user", params[0].Function.Name)
	assert.Equal(t, "get_weather", params[1].Function.Name)
	assert.Equal(t, "Current weather for a city", params[1].Function.Description.Value)
	assert.Equal(t, "object", params[1].Function.Parameters["type"])
	assert.Equal(t, []string{"city"}, params[1].Function.Parameters["required"])
}

func TestHandleToolCall_Success(t *testing.T) {
	d := New(newRegistry(t), zerolog.Nop())

	result := d.HandleToolCall(context.Background(), toolCall("call_1", "get_weather", `{"city":"Paris"}`),
		toolexecutor.ExecutionContext{}, toolexecutor.ExecutionOptions{})

	assert.Equal(t, "call_1", result.ToolCallID)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"city":"Paris","temperature":22}`, result.Content)

	msg := result.Message()
	require.NotNil(t, msg.OfTool)
	assert.Equal(t, "call_1", msg.OfTool.ToolCallID)
}

func TestHandleToolCall_Failures(t *testing.T) {
	d := New(newRegistry(t), zerolog.Nop())
	ctx := context.Background()
	user := toolexecutor.ExecutionContext{User: &toolexecutor.User{ID: "u1", Role: "user"}}

	tests := []struct {
		name string
		call openai.ChatCompletionMessageToolCall
		code string
	}{
		{name: "bad json", call: toolCall("c1", "get_weather", `{"city":`), code: "EXECUTION_ERROR"},
		{name: "validation", call: toolCall("c2", "get_weather", `{"city":123}`), code: "VALIDATION_ERROR"},
		{name: "risk", call: toolCall("c3", "delete_user", `{}`), code: "RISK_VIOLATION"},
		{name: "unknown tool", call: toolCall("c4", "launch_rocket", `{}`), code: "TOOL_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.HandleToolCall(ctx, tt.call, user, toolexecutor.ExecutionOptions{})
			assert.True(t, result.IsError)
			assert.Equal(t, tt.call.ID, result.ToolCallID)
			assert.Contains(t, result.Content, `"code":"`+tt.code+`"`)
		})
	}
}

func TestHandleToolCalls(t *testing.T) {
	d := New(newRegistry(t), zerolog.Nop())

	messages := d.HandleToolCalls(context.Background(), []openai.ChatCompletionMessageToolCall{
		toolCall("a", "get_weather", `{"city":"Oslo"}`),
		toolCall("b", "delete_user", `{}`),
	}, toolexecutor.ExecutionContext{IsAdmin: true}, toolexecutor.ExecutionOptions{})

	require.Len(t, messages, 2)
	assert.Equal(t, "a", messages[0].OfTool.ToolCallID)
	assert.Equal(t, "b", messages[1].OfTool.ToolCallID)
}
