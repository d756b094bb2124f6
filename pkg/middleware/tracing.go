package middleware

import (
	"context"

	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Tracing runs the rest of the chain inside a span named "tool.<name>".
func Tracing(tracerName string) toolexecutor.Middleware {
	return func(ctx context.Context, call *toolexecutor.Call, next toolexecutor.Handler) (interface{}, error) {
		ctx = tracing.WithCallID(ctx, call.ID)
		ctx, span := tracing.StartSpan(ctx, tracerName, "tool."+call.ToolName,
			attribute.String("tool.name", call.ToolName),
			attribute.String("tool.call_id", call.ID),
			attribute.String("tool.role", toolexecutor.ResolveRole(call.Context)),
		)
		defer span.End()

		data, err := next(ctx, call)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return data, err
		}

		if limited, ok := data.(*RateLimitedResult); ok {
			span.SetAttributes(attribute.Int64("tool.retry_after_ms", limited.RetryAfterMs))
			span.SetStatus(codes.Error, limited.Error)
			return data, nil
		}

		span.SetStatus(codes.Ok, "")
		return data, nil
	}
}
