// Package coretools provides the built-in demonstration tools: one per risk
// level, each wired with the configured middleware stack and lifecycle hooks.
package coretools

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/harun/toolgate/pkg/middleware"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// Built-in tool names.
const (
	ToolGetWeather    = "get_weather"
	ToolTransferFunds = "transfer_funds"
	ToolDeleteUser    = "delete_user"
)

// DefaultUsers seeds the backend created when Options.Backend is nil.
var DefaultUsers = []string{"u-1001", "u-1002", "u-1003"}

// Options configures built-in tool registration.
type Options struct {
	// Middleware is instantiated once per tool, so each tool gets its own
	// rate limiter.
	Middleware middleware.Options
	Hooks      []toolexecutor.Hooks
	Disabled   []string
	Backend    *Backend
	Logger     zerolog.Logger
}

// Register adds every built-in tool not listed in opts.Disabled to reg and
// returns the names it registered.
func Register(reg *toolexecutor.Registry, opts Options) ([]string, error) {
	if reg == nil {
		return nil, errors.New("tool registry is required")
	}
	backend := opts.Backend
	if backend == nil {
		backend = NewBackend(DefaultUsers...)
	}

	var hooks *toolexecutor.Hooks
	switch len(opts.Hooks) {
	case 0:
	case 1:
		hooks = &opts.Hooks[0]
	default:
		joined := toolexecutor.JoinHooks(opts.Hooks...)
		hooks = &joined
	}

	disabled := make(map[string]bool, len(opts.Disabled))
	for _, name := range opts.Disabled {
		disabled[name] = true
	}

	var registered []string
	for _, def := range []toolexecutor.ToolDefinition{
		weatherTool(),
		transferTool(backend),
		deleteUserTool(backend),
	} {
		if disabled[def.Name] {
			opts.Logger.Debug().Str("tool", def.Name).Msg("Built-in tool disabled")
			continue
		}

		mws, err := middleware.Stack(opts.Middleware)
		if err != nil {
			return registered, fmt.Errorf("failed to build middleware for %s: %w", def.Name, err)
		}
		def.Middleware = mws
		def.Hooks = hooks
		def.Logger = opts.Logger

		tool, err := toolexecutor.New(def)
		if err != nil {
			return registered, fmt.Errorf("failed to build tool %s: %w", def.Name, err)
		}
		if err := reg.Register(tool); err != nil {
			return registered, fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
		registered = append(registered, def.Name)
	}
	return registered, nil
}

// WeatherArgs are the get_weather arguments.
type WeatherArgs struct {
	City  string `json:"city"`
	Units string `json:"units"`
}

// Weather is the get_weather result.
type Weather struct {
	City        string `json:"city"`
	Temperature int    `json:"temperature"`
	Units       string `json:"units"`
	Conditions  string `json:"conditions"`
}

var conditions = []string{"sunny", "cloudy", "rain", "windy", "fog", "snow"}

func weatherTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        ToolGetWeather,
		Description: "Get the current weather for a city.",
		RiskLevel:   toolexecutor.RiskLow,
		Retryable:   true,
		MaxRetries:  2,
		Schema: toolexecutor.MustObjectSchema([]toolexecutor.ToolParameter{
			{Name: "city", Type: "string", Description: "City name", Required: true},
			{Name: "units", Type: "string", Description: "Temperature units", Default: "celsius", Enum: []string{"celsius", "fahrenheit"}},
		}),
		Executor: toolexecutor.Typed(func(ctx context.Context, args WeatherArgs, _ toolexecutor.ExecutionContext) (Weather, error) {
			return lookupWeather(args), nil
		}),
	}
}

// lookupWeather derives stable readings from the city name.
func lookupWeather(args WeatherArgs) Weather {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(args.City))))
	sum := h.Sum32()

	celsius := int(sum%36) - 5
	w := Weather{
		City:        args.City,
		Temperature: celsius,
		Units:       "celsius",
		Conditions:  conditions[int(sum/36)%len(conditions)],
	}
	if args.Units == "fahrenheit" {
		w.Temperature = celsius*9/5 + 32
		w.Units = "fahrenheit"
	}
	return w
}

// TransferArgs are the transfer_funds arguments.
type TransferArgs struct {
	Amount    float64 `json:"amount"`
	ToAccount string  `json:"toAccount"`
}

var transferSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"amount": map[string]interface{}{
			"type":        "number",
			"description": "Amount to transfer",
			"minimum":     0.01,
		},
		"toAccount": map[string]interface{}{
			"type":        "string",
			"description": "Destination account",
			"minLength":   1,
		},
	},
	"required":             []interface{}{"amount", "toAccount"},
	"additionalProperties": false,
}

func transferTool(backend *Backend) toolexecutor.ToolDefinition {
	schema, err := toolexecutor.NewJSONSchema(transferSchema)
	if err != nil {
		panic(err)
	}
	return toolexecutor.ToolDefinition{
		Name:                 ToolTransferFunds,
		Description:          "Transfer funds to another account. Requires confirmation.",
		RiskLevel:            toolexecutor.RiskMedium,
		RequiresConfirmation: true,
		Schema:               schema,
		Executor: toolexecutor.Typed(func(ctx context.Context, args TransferArgs, execCtx toolexecutor.ExecutionContext) (Transfer, error) {
			return backend.Transfer(ctx, args.Amount, args.ToAccount, userID(execCtx))
		}),
	}
}

// DeleteUserArgs are the delete_user arguments.
type DeleteUserArgs struct {
	UserID string `json:"userId"`
}

func deleteUserTool(backend *Backend) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        ToolDeleteUser,
		Description: "Permanently delete a user account.",
		RiskLevel:   toolexecutor.RiskHigh,
		Schema: toolexecutor.MustObjectSchema([]toolexecutor.ToolParameter{
			{Name: "userId", Type: "string", Description: "ID of the user to delete", Required: true},
		}),
		Executor: toolexecutor.Typed(func(ctx context.Context, args DeleteUserArgs, _ toolexecutor.ExecutionContext) (map[string]interface{}, error) {
			if err := backend.DeleteUser(ctx, args.UserID); err != nil {
				return nil, err
			}
			return map[string]interface{}{"userId": args.UserID, "deleted": true}, nil
		}),
	}
}

func userID(execCtx toolexecutor.ExecutionContext) string {
	if execCtx.User == nil {
		return ""
	}
	return execCtx.User.ID
}
