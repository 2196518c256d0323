package stream

import (
	"time"

	"github.com/sebastos1/aa/internal/platform/timeouts"
)

// RetryPolicy decides how long to wait before reconnecting.
type RetryPolicy interface {
	// Next returns the delay before reconnect attempt number attempt
	// (starting at 1). serverRetry is the reconnection time last requested
	// by the server through a retry field, or zero.
	Next(attempt int, serverRetry time.Duration) time.Duration
}

// RetryPolicyFunc adapts a function to RetryPolicy.
type RetryPolicyFunc func(attempt int, serverRetry time.Duration) time.Duration

// Next calls f.
func (f RetryPolicyFunc) Next(attempt int, serverRetry time.Duration) time.Duration {
	return f(attempt, serverRetry)
}

// DefaultPolicy waits a fixed delay, replaced by the server's requested
// reconnection time when one was sent. This is how browsers reconnect an
// EventSource.
type DefaultPolicy struct {
	Delay time.Duration
}

// Next implements RetryPolicy.
func (p DefaultPolicy) Next(_ int, serverRetry time.Duration) time.Duration {
	if serverRetry > 0 {
		return serverRetry
	}
	if p.Delay > 0 {
		return p.Delay
	}
	return timeouts.StreamRetry
}

// BackoffPolicy doubles the delay per consecutive failure up to Max. The
// server's requested reconnection time acts as a floor.
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// Next implements RetryPolicy.
func (p BackoffPolicy) Next(attempt int, serverRetry time.Duration) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	limit := p.Max
	if limit <= 0 {
		limit = 30 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := initial
	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	if delay > limit {
		delay = limit
	}
	if serverRetry > delay {
		delay = serverRetry
	}
	return delay
}
