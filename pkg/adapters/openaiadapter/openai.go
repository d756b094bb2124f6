// Package openaiadapter exposes registry tools to the OpenAI chat completions
// API and dispatches the tool calls it returns.
package openaiadapter

import (
	"context"

	"github.com/harun/toolgate/pkg/adapters"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog"
)

// ToolResult is the outcome of one tool call, ready to be sent back.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message returns the result as a tool message.
func (r ToolResult) Message() openai.ChatCompletionMessageParamUnion {
	return openai.ToolMessage(r.Content, r.ToolCallID)
}

// Dispatcher binds a registry to the OpenAI tool calling convention.
type Dispatcher struct {
	registry *toolexecutor.Registry
	logger   zerolog.Logger
}

// New creates a Dispatcher for reg.
func New(reg *toolexecutor.Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger.With().Str("component", "openai_adapter").Logger(),
	}
}

// ToolParams declares every registered tool, sorted by name.
func (d *Dispatcher) ToolParams() []openai.ChatCompletionToolParam {
	return ToolParams(d.registry)
}

// ToolParams declares every tool in reg, sorted by name.
func ToolParams(reg *toolexecutor.Registry) []openai.ChatCompletionToolParam {
	tools := reg.List()
	params := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		params = append(params, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name(),
				Description: openai.String(tool.Description()),
				Parameters:  openai.FunctionParameters(tool.Schema().JSONSchema()),
			},
		})
	}
	return params
}

// HandleToolCall executes one model tool call. Failures, including policy
// rejections, are returned as error content rather than Go errors so the
// model can react to them.
func (d *Dispatcher) HandleToolCall(ctx context.Context, call openai.ChatCompletionMessageToolCall, execCtx toolexecutor.ExecutionContext, opts toolexecutor.ExecutionOptions) ToolResult {
	args, err := adapters.DecodeArguments(call.Function.Arguments)
	if err != nil {
		content, _ := adapters.FormatOutcome(nil, err)
		return ToolResult{ToolCallID: call.ID, Content: content, IsError: true}
	}

	result, err := d.registry.Execute(ctx, call.Function.Name, args, execCtx, opts)
	if err != nil {
		d.logger.Debug().
			Err(err).
			Str("tool", call.Function.Name).
			Str("tool_call_id", call.ID).
			Msg("Tool call returned an error to the model")
	}

	content, isError := adapters.FormatOutcome(result, err)
	return ToolResult{ToolCallID: call.ID, Content: content, IsError: isError}
}

// HandleToolCalls executes calls in order and returns their tool messages.
func (d *Dispatcher) HandleToolCalls(ctx context.Context, calls []openai.ChatCompletionMessageToolCall, execCtx toolexecutor.ExecutionContext, opts toolexecutor.ExecutionOptions) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(calls))
	for _, call := range calls {
		messages = append(messages, d.HandleToolCall(ctx, call, execCtx, opts).Message())
	}
	return messages
}
