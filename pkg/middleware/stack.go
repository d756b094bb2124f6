package middleware

import (
	"time"

	"github.com/harun/toolgate/internal/logger"
	"github.com/harun/toolgate/internal/metrics"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// Options selects the standard middleware. Zero values disable a stage.
type Options struct {
	Logger     *zerolog.Logger
	Redactor   *logger.Redactor
	Metrics    *metrics.Metrics
	TracerName string
	RateLimit  RateLimitConfig
	Timeout    time.Duration
}

// Stack returns the standard middleware in chain order: tracing, logging,
// metrics, rate limiting, timeout. Each tool gets its own rate limiter.
func Stack(opts Options) ([]toolexecutor.Middleware, error) {
	var mws []toolexecutor.Middleware

	if opts.TracerName != "" {
		mws = append(mws, Tracing(opts.TracerName))
	}
	if opts.Logger != nil {
		mws = append(mws, Logging(*opts.Logger, opts.Redactor))
	}
	if opts.Metrics != nil {
		mws = append(mws, Metrics(opts.Metrics))
	}
	if opts.RateLimit.Enabled {
		mw, err := RateLimit(opts.RateLimit)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if opts.Timeout > 0 {
		mws = append(mws, Timeout(opts.Timeout))
	}

	return mws, nil
}
