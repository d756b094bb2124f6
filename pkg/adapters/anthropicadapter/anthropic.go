// Package anthropicadapter exposes registry tools to the Anthropic messages
// API and dispatches the tool_use blocks it returns.
package anthropicadapter

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/harun/toolgate/pkg/adapters"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// ToolResult is the outcome of one tool_use block.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Block returns the result as a tool_result content block.
func (r ToolResult) Block() anthropic.ContentBlockParamUnion {
	return anthropic.NewToolResultBlock(r.ToolUseID, r.Content, r.IsError)
}

// Dispatcher binds a registry to the Anthropic tool use convention.
type Dispatcher struct {
	registry *toolexecutor.Registry
	logger   zerolog.Logger
}

// New creates a Dispatcher for reg.
func New(reg *toolexecutor.Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger.With().Str("component", "anthropic_adapter").Logger(),
	}
}

// ToolParams declares every registered tool, sorted by name.
func (d *Dispatcher) ToolParams() []anthropic.ToolUnionParam {
	return ToolParams(d.registry)
}

// ToolParams declares every tool in reg, sorted by name.
func ToolParams(reg *toolexecutor.Registry) []anthropic.ToolUnionParam {
	tools := reg.List()
	params := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		toolParam := anthropic.ToolParam{
			Name:        tool.Name(),
			Description: anthropic.String(tool.Description()),
			InputSchema: inputSchema(tool.Schema().JSONSchema()),
		}
		params = append(params, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return params
}

// inputSchema maps a schema document onto the SDK param. Keywords other than
// properties, required and type (additionalProperties, $defs, ...) travel in
// ExtraFields so the model sees every constraint the validator enforces.
func inputSchema(doc map[string]interface{}) anthropic.ToolInputSchemaParam {
	param := anthropic.ToolInputSchemaParam{
		Properties: doc["properties"],
		Required:   adapters.RequiredFields(doc),
	}

	extra := make(map[string]interface{})
	for k, v := range doc {
		switch k {
		case "properties", "required", "type":
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		param.ExtraFields = extra
	}
	return param
}

// HandleToolUseBlock executes a tool_use block from a model response.
func (d *Dispatcher) HandleToolUseBlock(ctx context.Context, block anthropic.ToolUseBlock, execCtx toolexecutor.ExecutionContext, opts toolexecutor.ExecutionOptions) ToolResult {
	return d.HandleToolUse(ctx, block.ID, block.Name, json.RawMessage(block.JSON.Input.Raw()), execCtx, opts)
}

// HandleToolUse executes one tool use. Failures, including policy rejections,
// are returned as error results so the model can react to them.
func (d *Dispatcher) HandleToolUse(ctx context.Context, id, name string, input json.RawMessage, execCtx toolexecutor.ExecutionContext, opts toolexecutor.ExecutionOptions) ToolResult {
	args, err := adapters.DecodeArguments(string(input))
	if err != nil {
		content, _ := adapters.FormatOutcome(nil, err)
		return ToolResult{ToolUseID: id, Content: content, IsError: true}
	}

	result, err := d.registry.Execute(ctx, name, args, execCtx, opts)
	if err != nil {
		d.logger.Debug().
			Err(err).
			Str("tool", name).
			Str("tool_use_id", id).
			Msg("Tool use returned an error to the model")
	}

	content, isError := adapters.FormatOutcome(result, err)
	return ToolResult{ToolUseID: id, Content: content, IsError: isError}
}

// HandleContent executes every tool_use block in a response's content and
// returns the user message carrying their results. ok is false when the
// content held no tool_use blocks.
func (d *Dispatcher) HandleContent(ctx context.Context, content []anthropic.ContentBlockUnion, execCtx toolexecutor.ExecutionContext, opts toolexecutor.ExecutionOptions) (msg anthropic.MessageParam, ok bool) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, block := range content {
		if toolUse, isToolUse := block.AsAny().(anthropic.ToolUseBlock); isToolUse {
			blocks = append(blocks, d.HandleToolUseBlock(ctx, toolUse, execCtx, opts).Block())
		}
	}
	if len(blocks) == 0 {
		return anthropic.MessageParam{}, false
	}
	return anthropic.NewUserMessage(blocks...), true
}
