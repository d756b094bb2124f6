package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Executor is the function a tool wraps. args are the validated arguments.
type Executor func(ctx context.Context, args map[string]interface{}, execCtx ExecutionContext) (interface{}, error)

// ToolDefinition declares a tool. It is consumed once by New.
type ToolDefinition struct {
	Name        string
	Description string

	// Schema validates arguments. nil accepts any argument object.
	Schema   Schema
	Executor Executor

	// RiskLevel defaults to RiskLow.
	RiskLevel            RiskLevel
	RequiresConfirmation bool

	// Retryable and MaxRetries are advisory; see Tool.Retry.
	Retryable  bool
	MaxRetries int

	Middleware []Middleware
	Hooks      *Hooks
	Logger     zerolog.Logger
}

// ResultMetadata describes a successful call.
type ResultMetadata struct {
	ToolName        string    `json:"toolName"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	ExecutionTimeMs int64     `json:"executionTime"`
	Timestamp       time.Time `json:"timestamp"`
	CallID          string    `json:"callId"`
}

// ExecutionResult is returned by a successful call. Failures are returned as
// errors, never as results.
type ExecutionResult struct {
	Data     interface{}    `json:"data"`
	Metadata ResultMetadata `json:"metadata"`
}

// Tool is an immutable, invocable tool. It is safe for concurrent use.
type Tool struct {
	name                 string
	description          string
	schema               Schema
	riskLevel            RiskLevel
	requiresConfirmation bool
	retry                RetryConfig
	hooks                *Hooks
	chain                Handler
	logger               zerolog.Logger
}

// New validates def and builds a Tool. The middleware chain is composed here,
// once, not per call.
func New(def ToolDefinition) (*Tool, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, fmt.Errorf("tool name cannot be empty")
	}
	if strings.TrimSpace(def.Description) == "" {
		return nil, fmt.Errorf("tool %s: description cannot be empty", name)
	}
	if def.Executor == nil {
		return nil, fmt.Errorf("tool %s: executor cannot be nil", name)
	}

	risk := def.RiskLevel
	if risk == "" {
		risk = RiskLow
	}
	if !risk.IsValid() {
		return nil, fmt.Errorf("tool %s: invalid risk level %q", name, def.RiskLevel)
	}

	if def.MaxRetries < 0 {
		return nil, fmt.Errorf("tool %s: max retries cannot be negative", name)
	}

	for i, mw := range def.Middleware {
		if mw == nil {
			return nil, fmt.Errorf("tool %s: middleware %d is nil", name, i)
		}
	}

	schema := def.Schema
	if schema == nil {
		schema = anySchema{}
	}

	var hooks *Hooks
	if def.Hooks != nil {
		h := *def.Hooks
		hooks = &h
	}

	mws := append([]Middleware(nil), def.Middleware...)

	return &Tool{
		name:                 name,
		description:          def.Description,
		schema:               schema,
		riskLevel:            risk,
		requiresConfirmation: def.RequiresConfirmation,
		retry:                RetryConfig{Retryable: def.Retryable, MaxRetries: def.MaxRetries},
		hooks:                hooks,
		chain:                Chain(executorHandler(def.Executor), mws...),
		logger:               def.Logger.With().Str("component", "toolexecutor").Str("tool", name).Logger(),
	}, nil
}

// MustNew is New for static declarations; it panics on error.
func MustNew(def ToolDefinition) *Tool {
	t, err := New(def)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tool) Name() string               { return t.name }
func (t *Tool) Description() string        { return t.description }
func (t *Tool) Schema() Schema             { return t.schema }
func (t *Tool) RiskLevel() RiskLevel       { return t.riskLevel }
func (t *Tool) RequiresConfirmation() bool { return t.requiresConfirmation }
func (t *Tool) Retry() RetryConfig         { return t.retry }

// Validate runs the tool schema against args without executing anything.
func (t *Tool) Validate(args map[string]interface{}) ValidationResult {
	return t.schema.Validate(args)
}

// Execute validates args, applies the access policy and the confirmation
// gate, then runs the middleware chain and the executor.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}, execCtx ExecutionContext, opts ExecutionOptions) (*ExecutionResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()
	callID := uuid.NewString()

	validation := t.schema.Validate(args)
	if !validation.Valid {
		t.logger.Debug().
			Str("call_id", callID).
			Int("field_errors", len(validation.Errors)).
			Msg("Tool arguments rejected")
		return nil, &ValidationError{ToolName: t.name, FieldErrors: validation.Errors}
	}

	if err := CheckAccess(t.name, t.riskLevel, execCtx, opts); err != nil {
		t.logger.Warn().
			Str("call_id", callID).
			Str("risk_level", string(t.riskLevel)).
			Str("role", ResolveRole(execCtx)).
			Msg("Tool execution blocked by access policy")
		return nil, err
	}

	if err := CheckConfirmation(t.name, t.requiresConfirmation, validation.Args, opts); err != nil {
		t.logger.Info().
			Str("call_id", callID).
			Msg("Tool execution awaiting confirmation")
		return nil, err
	}

	call := &Call{
		ID:       callID,
		ToolName: t.name,
		Args:     validation.Args,
		Context:  execCtx,
	}
	ctx = ContextWithCall(ctx, call)

	t.fireStart(ctx, StartEvent{CallID: callID, ToolName: t.name, Args: call.Args, Context: execCtx})

	chainStart := time.Now()
	data, err := t.runChain(ctx, call)
	duration := time.Since(chainStart)

	if err != nil {
		t.fireError(ctx, ErrorEvent{CallID: callID, ToolName: t.name, Err: err, Duration: duration, Context: execCtx})
		t.logger.Debug().
			Err(err).
			Str("call_id", callID).
			Dur("duration", duration).
			Msg("Tool execution failed")
		return nil, wrapExecutionError(t.name, err)
	}

	t.fireSuccess(ctx, SuccessEvent{CallID: callID, ToolName: t.name, Result: data, Duration: duration, Context: execCtx})

	return &ExecutionResult{
		Data: data,
		Metadata: ResultMetadata{
			ToolName:        t.name,
			RiskLevel:       t.riskLevel,
			ExecutionTimeMs: time.Since(startTime).Milliseconds(),
			Timestamp:       startTime,
			CallID:          callID,
		},
	}, nil
}

// runChain converts a panic anywhere in the chain into an error so exactly
// one terminal hook fires.
func (t *Tool) runChain(ctx context.Context, call *Call) (data interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			if rerr, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", rerr)
			} else {
				err = fmt.Errorf("panic: %v", r)
			}
		}
	}()
	return t.chain(ctx, call)
}

// RetryConfig is advisory retry metadata. The engine never retries; callers
// and adapters may.
type RetryConfig struct {
	Retryable  bool `json:"retryable"`
	MaxRetries int  `json:"maxRetries"`
}

// ShouldRetry reports whether a caller should retry after err on the given
// attempt (1-based). Policy and validation failures are never retried.
func (c RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || !c.Retryable || attempt > c.MaxRetries {
		return false
	}
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}
