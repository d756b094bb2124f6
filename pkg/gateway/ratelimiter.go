package gateway

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrClientRateLimited is returned when a client exceeds its per-minute budget.
	ErrClientRateLimited = errors.New("rate limit exceeded")
	// ErrTooManyConcurrent is returned when a client has too many requests in flight.
	ErrTooManyConcurrent = errors.New("too many concurrent requests")
)

// Default per-connection limits.
const (
	DefaultClientRequestsPerMinute = 60
	DefaultClientMaxConcurrent     = 10
)

// ClientRateLimiter limits one WebSocket connection with a one-minute
// sliding window and a cap on in-flight requests. It is independent of the
// per-tool limiter in the middleware stack.
type ClientRateLimiter struct {
	mu                sync.Mutex
	requestsPerMinute int
	maxConcurrent     int
	requests          []time.Time
	concurrent        int
	now               func() time.Time
}

// NewClientRateLimiter creates a rate limiter with the default limits
func NewClientRateLimiter() *ClientRateLimiter {
	return NewClientRateLimiterWithLimits(DefaultClientRequestsPerMinute, DefaultClientMaxConcurrent)
}

// NewClientRateLimiterWithLimits creates a rate limiter with custom limits.
// Non-positive values fall back to the defaults.
func NewClientRateLimiterWithLimits(requestsPerMinute, maxConcurrent int) *ClientRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultClientRequestsPerMinute
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultClientMaxConcurrent
	}
	return &ClientRateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		now:               time.Now,
	}
}

// Acquire admits one request or returns ErrTooManyConcurrent or
// ErrClientRateLimited. Every successful Acquire must be paired with Release.
func (r *ClientRateLimiter) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.concurrent >= r.maxConcurrent {
		return ErrTooManyConcurrent
	}

	now := r.now()
	r.prune(now)
	if len(r.requests) >= r.requestsPerMinute {
		return ErrClientRateLimited
	}

	r.requests = append(r.requests, now)
	r.concurrent++
	return nil
}

// Release marks one admitted request as finished.
func (r *ClientRateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.concurrent > 0 {
		r.concurrent--
	}
}

// UpdateLimits updates the rate limits
func (r *ClientRateLimiter) UpdateLimits(requestsPerMinute, maxConcurrent int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requestsPerMinute = requestsPerMinute
	r.maxConcurrent = maxConcurrent
}

// Stats returns the requests in the current window and the in-flight count.
func (r *ClientRateLimiter) Stats() (requestCount, concurrentCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(r.now())
	return len(r.requests), r.concurrent
}

func (r *ClientRateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	kept := r.requests[:0]
	for _, at := range r.requests {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	r.requests = kept
}

// rateLimitCode maps a limiter error to its RPC error code.
func rateLimitCode(err error) int {
	if errors.Is(err, ErrTooManyConcurrent) {
		return TooManyConcurrent
	}
	return RateLimitExceeded
}
