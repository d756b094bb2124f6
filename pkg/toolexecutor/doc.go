// Package toolexecutor declares and executes structured tools for agents.
//
// Every call to Tool.Execute runs the same pipeline:
//
//	validate -> access policy -> confirmation gate -> OnStart -> middleware chain -> executor -> OnSuccess|OnError
//
// Invariants:
// - Tool names and descriptions are non-empty; a Registry rejects duplicate names.
// - Arguments are schema-validated before any policy check or side effect.
// - HIGH risk tools run only with sudo or an admin caller.
// - Tools requiring confirmation run only when the call is explicitly confirmed.
// - Hooks are best-effort: their errors and panics never change the call outcome.
// - Success is returned as an ExecutionResult; every failure is returned as one of
//   ValidationError, RiskViolationError, ConfirmationRequiredError or ExecutionError.
//
// Usage:
//
//	schema, _ := toolexecutor.ObjectSchema([]toolexecutor.ToolParameter{
//		{Name: "city", Type: "string", Description: "City name", Required: true},
//	})
//	tool, _ := toolexecutor.New(toolexecutor.ToolDefinition{
//		Name:        "get_weather",
//		Description: "Current weather for a city",
//		Schema:      schema,
//		Executor: func(ctx context.Context, args map[string]interface{}, execCtx toolexecutor.ExecutionContext) (interface{}, error) {
//			return map[string]interface{}{"temperature": 22}, nil
//		},
//	})
//	result, err := tool.Execute(ctx, map[string]interface{}{"city": "Paris"}, toolexecutor.ExecutionContext{}, toolexecutor.ExecutionOptions{})
package toolexecutor
