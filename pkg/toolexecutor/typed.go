package toolexecutor

import (
	"context"
	"encoding/json"
	"fmt"
)

// Typed adapts a function over a concrete argument type into an Executor. The
// validated argument map is decoded into T through its JSON tags.
func Typed[T any, R any](fn func(ctx context.Context, args T, execCtx ExecutionContext) (R, error)) Executor {
	return func(ctx context.Context, args map[string]interface{}, execCtx ExecutionContext) (interface{}, error) {
		var typed T
		if err := DecodeArgs(args, &typed); err != nil {
			return nil, err
		}
		return fn(ctx, typed, execCtx)
	}
}

// DecodeArgs decodes an argument map into out.
func DecodeArgs(args map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}
	return nil
}
