package middleware

import (
	"context"
	"time"

	"github.com/harun/toolgate/internal/metrics"
	"github.com/harun/toolgate/pkg/toolexecutor"
)

// Metrics records executions, durations and throttled calls. It must sit
// outside RateLimit in the chain to observe throttling.
func Metrics(m *metrics.Metrics) toolexecutor.Middleware {
	return func(ctx context.Context, call *toolexecutor.Call, next toolexecutor.Handler) (interface{}, error) {
		start := time.Now()
		data, err := next(ctx, call)

		if _, ok := data.(*RateLimitedResult); ok && err == nil {
			m.ObserveRateLimited(call.ToolName)
			return data, nil
		}

		m.ObserveExecution(call.ToolName, time.Since(start), err)
		return data, err
	}
}
