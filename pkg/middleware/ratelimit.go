package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"golang.org/x/time/rate"
)

// ErrRateLimited is the message carried by RateLimitedResult.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig configures per-key token buckets.
type RateLimitConfig struct {
	Enabled   bool `mapstructure:"enabled" json:"enabled"`
	PerMinute int  `mapstructure:"per_minute" json:"per_minute"`
	// Burst defaults to 10% of PerMinute, at least 1.
	Burst int `mapstructure:"burst" json:"burst"`
	// PerUser keys buckets by tool and user ID instead of tool alone.
	PerUser bool `mapstructure:"per_user" json:"per_user"`
}

// RateLimitedResult is returned in place of the executor's result when a call
// is throttled. It is a successful value, not an error.
type RateLimitedResult struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	RetryAfterMs int64  `json:"retryAfterMs"`
}

// RateLimiter keeps one limiter per key.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	keyFunc func(call *toolexecutor.Call) string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewRateLimiter creates a limiter from cfg.
func NewRateLimiter(cfg RateLimitConfig) (*RateLimiter, error) {
	if cfg.PerMinute <= 0 {
		return nil, fmt.Errorf("rate limit per_minute must be positive, got %d", cfg.PerMinute)
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.PerMinute / 10
		if burst < 1 {
			burst = 1
		}
	}

	keyFunc := byTool
	if cfg.PerUser {
		keyFunc = byToolAndUser
	}

	return &RateLimiter{
		limit:    rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:    burst,
		keyFunc:  keyFunc,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}, nil
}

func byTool(call *toolexecutor.Call) string {
	return call.ToolName
}

func byToolAndUser(call *toolexecutor.Call) string {
	user := ""
	if call.Context.User != nil {
		user = call.Context.User.ID
	}
	return call.ToolName + "|" + user
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Reserve takes a token for call. It returns zero when the call may proceed,
// or how long the caller should wait otherwise. A denied reservation does not
// consume a token.
func (l *RateLimiter) Reserve(call *toolexecutor.Call) time.Duration {
	lim := l.limiter(l.keyFunc(call))
	now := l.now()

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Minute
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return delay
	}
	return 0
}

// Middleware returns the limiter as a chain stage. Throttled calls never reach
// next.
func (l *RateLimiter) Middleware() toolexecutor.Middleware {
	return func(ctx context.Context, call *toolexecutor.Call, next toolexecutor.Handler) (interface{}, error) {
		if delay := l.Reserve(call); delay > 0 {
			retryAfter := delay.Milliseconds()
			if retryAfter == 0 {
				retryAfter = 1
			}
			return &RateLimitedResult{
				Success:      false,
				Error:        ErrRateLimited.Error(),
				RetryAfterMs: retryAfter,
			}, nil
		}
		return next(ctx, call)
	}
}

// RateLimit builds a RateLimiter from cfg and returns its middleware.
func RateLimit(cfg RateLimitConfig) (toolexecutor.Middleware, error) {
	l, err := NewRateLimiter(cfg)
	if err != nil {
		return nil, err
	}
	return l.Middleware(), nil
}
