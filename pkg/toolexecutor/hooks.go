package toolexecutor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// StartEvent is passed to Hooks.OnStart.
type StartEvent struct {
	CallID   string
	ToolName string
	Args     map[string]interface{}
	Context  ExecutionContext
}

// SuccessEvent is passed to Hooks.OnSuccess.
type SuccessEvent struct {
	CallID   string
	ToolName string
	Result   interface{}
	Duration time.Duration
	Context  ExecutionContext
}

// ErrorEvent is passed to Hooks.OnError.
type ErrorEvent struct {
	CallID   string
	ToolName string
	Err      error
	Duration time.Duration
	Context  ExecutionContext
}

// Hooks observe the lifecycle of a call. Every field is optional. Hook errors
// and panics are logged and discarded.
type Hooks struct {
	OnStart   func(ctx context.Context, ev StartEvent) error
	OnSuccess func(ctx context.Context, ev SuccessEvent) error
	OnError   func(ctx context.Context, ev ErrorEvent) error
}

// JoinHooks returns Hooks that invoke every member in order. Each member runs
// in its own guarded call, so one failing hook never suppresses the next.
func JoinHooks(members ...Hooks) Hooks {
	return Hooks{
		OnStart: func(ctx context.Context, ev StartEvent) error {
			for _, h := range members {
				if h.OnStart != nil {
					guard(*zerolog.Ctx(ctx), "on_start", ev.ToolName, func() error { return h.OnStart(ctx, ev) })
				}
			}
			return nil
		},
		OnSuccess: func(ctx context.Context, ev SuccessEvent) error {
			for _, h := range members {
				if h.OnSuccess != nil {
					guard(*zerolog.Ctx(ctx), "on_success", ev.ToolName, func() error { return h.OnSuccess(ctx, ev) })
				}
			}
			return nil
		},
		OnError: func(ctx context.Context, ev ErrorEvent) error {
			for _, h := range members {
				if h.OnError != nil {
					guard(*zerolog.Ctx(ctx), "on_error", ev.ToolName, func() error { return h.OnError(ctx, ev) })
				}
			}
			return nil
		},
	}
}

func (t *Tool) fireStart(ctx context.Context, ev StartEvent) {
	if t.hooks == nil || t.hooks.OnStart == nil {
		return
	}
	guard(t.logger, "on_start", t.name, func() error { return t.hooks.OnStart(ctx, ev) })
}

func (t *Tool) fireSuccess(ctx context.Context, ev SuccessEvent) {
	if t.hooks == nil || t.hooks.OnSuccess == nil {
		return
	}
	guard(t.logger, "on_success", t.name, func() error { return t.hooks.OnSuccess(ctx, ev) })
}

func (t *Tool) fireError(ctx context.Context, ev ErrorEvent) {
	if t.hooks == nil || t.hooks.OnError == nil {
		return
	}
	guard(t.logger, "on_error", t.name, func() error { return t.hooks.OnError(ctx, ev) })
}

// guard runs one hook, swallowing its error or panic.
func guard(logger zerolog.Logger, hook, toolName string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug().
				Str("hook", hook).
				Str("tool", toolName).
				Str("panic", fmt.Sprint(r)).
				Msg("Tool hook panicked")
		}
	}()

	if err := fn(); err != nil {
		logger.Debug().
			Err(err).
			Str("hook", hook).
			Str("tool", toolName).
			Msg("Tool hook failed")
	}
}
