package resilience

import (
	"context"
	"net/http"
)

// DisabledCircuitBreaker is a no-op circuit breaker that allows all requests.
type DisabledCircuitBreaker struct {
	name string
}

func NewDisabledCircuitBreaker(name string) *DisabledCircuitBreaker {
	return &DisabledCircuitBreaker{name: name}
}

func (cb *DisabledCircuitBreaker) Name() string { return cb.name }

// Execute runs op without circuit breaker protection.
func (cb *DisabledCircuitBreaker) Execute(ctx context.Context, op Operation) ExecutionResult {
	value, err := op(ctx)
	return ExecutionResult{Value: value, Err: err, State: StateClosed, Allowed: true}
}

// State returns StateClosed as this is a disabled circuit breaker.
func (cb *DisabledCircuitBreaker) State() State { return StateClosed }

// Metrics returns a closed snapshot as this is a disabled circuit breaker.
func (cb *DisabledCircuitBreaker) Metrics() Metrics {
	return Metrics{Name: cb.name, State: StateClosed}
}

// Reset does nothing as this is a disabled circuit breaker.
func (cb *DisabledCircuitBreaker) Reset() {}

// SetOnStateChange does nothing as this is a disabled circuit breaker.
func (cb *DisabledCircuitBreaker) SetOnStateChange(fn func(from, to State)) {}

// DisabledRateLimiter admits every request. Results carry a zero Limit.
type DisabledRateLimiter struct{}

func NewDisabledRateLimiter() *DisabledRateLimiter {
	return &DisabledRateLimiter{}
}

// CheckLimit always allows as this is a disabled rate limiter.
func (l *DisabledRateLimiter) CheckLimit(ctx context.Context, identifier string, consume bool) (RateLimitResult, error) {
	return RateLimitResult{Identifier: identifier, Allowed: true}, nil
}

// Stats returns empty statistics as this is a disabled rate limiter.
func (l *DisabledRateLimiter) Stats(ctx context.Context, identifier string) (LimiterStats, error) {
	return LimiterStats{Identifier: identifier}, nil
}

// GenerateHeaders returns no headers as this is a disabled rate limiter.
func (l *DisabledRateLimiter) GenerateHeaders(result RateLimitResult) http.Header {
	return http.Header{}
}

// Reset does nothing as this is a disabled rate limiter.
func (l *DisabledRateLimiter) Reset(ctx context.Context) error { return nil }

// Close does nothing as this is a disabled rate limiter.
func (l *DisabledRateLimiter) Close() error { return nil }
