package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/toolgate/pkg/toolexecutor"
)

// ErrTimeout is wrapped by errors returned when a call outlives its deadline.
var ErrTimeout = errors.New("tool execution timed out")

type outcome struct {
	data interface{}
	err  error
}

// Timeout bounds the rest of the chain to d. The derived context is cancelled
// on expiry; an executor that ignores it keeps running in the background but
// its result is discarded.
func Timeout(d time.Duration) toolexecutor.Middleware {
	return func(ctx context.Context, call *toolexecutor.Call, next toolexecutor.Handler) (interface{}, error) {
		if d <= 0 {
			return next(ctx, call)
		}

		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan outcome, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- outcome{err: fmt.Errorf("panic: %v", r)}
				}
			}()
			data, err := next(ctx, call)
			done <- outcome{data: data, err: err}
		}()

		select {
		case out := <-done:
			return out.data, out.err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s", ErrTimeout, d)
			}
			return nil, ctx.Err()
		}
	}
}
