package middleware

import (
	"context"
	"time"

	"github.com/harun/toolgate/internal/logger"
	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// Logging logs each call entering and leaving the chain. Arguments are logged
// only when a redactor is supplied, and always through it.
func Logging(log zerolog.Logger, redactor *logger.Redactor) toolexecutor.Middleware {
	log = log.With().Str("component", "tool_middleware").Logger()

	return func(ctx context.Context, call *toolexecutor.Call, next toolexecutor.Handler) (interface{}, error) {
		l := tracing.LoggerFromContext(ctx, log).With().
			Str("tool", call.ToolName).
			Str("call_id", call.ID).
			Str("role", toolexecutor.ResolveRole(call.Context)).
			Logger()

		ev := l.Debug()
		if redactor != nil {
			ev = ev.Interface("args", redactor.RedactArgs(call.Args))
		}
		ev.Msg("Tool call started")

		start := time.Now()
		data, err := next(ctx, call)
		duration := time.Since(start)

		if err != nil {
			l.Warn().
				Err(err).
				Str("code", errorCode(err)).
				Dur("duration", duration).
				Msg("Tool call failed")
			return data, err
		}

		if limited, ok := data.(*RateLimitedResult); ok {
			l.Warn().
				Int64("retry_after_ms", limited.RetryAfterMs).
				Msg("Tool call rate limited")
			return data, nil
		}

		l.Info().
			Dur("duration", duration).
			Msg("Tool call completed")
		return data, nil
	}
}

func errorCode(err error) string {
	if code := toolexecutor.ErrorCode(err); code != "" {
		return code
	}
	return toolexecutor.CodeExecution
}
