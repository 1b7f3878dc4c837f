// Package resilience provides the admission guards placed in front of an
// upstream: a circuit breaker with exponential backoff and a sliding-window
// rate limiter.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/types"
)

// State is the position of a circuit breaker in its closed/open/half-open cycle.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Operation is the call protected by a guard.
type Operation func(ctx context.Context) (any, error)

// ExecutionResult is the outcome of CircuitBreaker.Execute.
// When Allowed is false the operation was not invoked.
type ExecutionResult struct {
	Value            any
	Err              error
	State            State
	RetryAfter       time.Duration
	CurrentFailures  int
	CurrentSuccesses int
	Allowed          bool
}

// Metrics is a snapshot of a circuit breaker.
type Metrics struct {
	Name             string        `json:"name"`
	State            State         `json:"state"`
	TotalRequests    int64         `json:"totalRequests"`
	TotalFailures    int64         `json:"totalFailures"`
	TotalSuccesses   int64         `json:"totalSuccesses"`
	RejectedRequests int64         `json:"rejectedRequests"`
	CurrentFailures  int           `json:"currentFailures"`
	CurrentSuccesses int           `json:"currentSuccesses"`
	CurrentTimeout   time.Duration `json:"currentTimeout"`
	RetryAfter       time.Duration `json:"retryAfter"`
	LastFailureTime  time.Time     `json:"lastFailureTime"`
	LastSuccessTime  time.Time     `json:"lastSuccessTime"`
	StateChangedAt   time.Time     `json:"stateChangedAt"`
	// Outcomes recorded within the monitoring period.
	WindowRequests int `json:"windowRequests"`
	WindowFailures int `json:"windowFailures"`
}

// FailureRate returns WindowFailures / WindowRequests, or 0 with no requests.
func (m Metrics) FailureRate() float64 {
	if m.WindowRequests == 0 {
		return 0
	}
	return float64(m.WindowFailures) / float64(m.WindowRequests)
}

// Option configures a CircuitBreaker or RateLimiter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now. Used by tests to advance time deterministically.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CircuitBreaker stops calling a failing upstream for a cooldown that grows
// with every reopen, then probes it with a limited number of requests.
type CircuitBreaker struct {
	name   string
	cfg    config.CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	state atomic.Int32

	mu                sync.Mutex
	failureCount      int
	closedSuccesses   int
	halfOpenRequests  int
	halfOpenSuccesses int
	currentTimeout    time.Duration
	stateChangedAt    time.Time
	failureTimes      []time.Time
	successTimes      []time.Time
	totalRequests     int64
	totalFailures     int64
	totalSuccesses    int64
	rejected          int64
	lastFailure       time.Time
	lastSuccess       time.Time

	onStateChange func(from, to State)
}

// stateTransition allows callbacks to be invoked outside the mutex to prevent deadlocks.
type stateTransition struct {
	from     State
	to       State
	callback func(from, to State)
}

// NewCircuitBreaker validates cfg and returns a closed breaker.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, logger *slog.Logger, opts ...Option) (*CircuitBreaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	cb := &CircuitBreaker{
		name:           name,
		cfg:            cfg,
		logger:         logger.With("component", "circuit-breaker", "name", name),
		now:            o.now,
		currentTimeout: cfg.Timeout,
		stateChangedAt: o.now(),
	}
	cb.state.Store(int32(StateClosed))

	return cb, nil
}

// Name returns the identifier the breaker was created with.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Execute invokes op at most once, outside the breaker's lock. Errors from op
// are returned in the result and counted as failures; they are never returned
// by Execute itself. A panic in op is recovered and recorded as a failure
// wrapping types.ErrOperationPanic.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) ExecutionResult {
	if denied, ok := cb.admit(); !ok {
		return denied
	}

	value, err := cb.call(ctx, op)

	var transition *stateTransition
	var res ExecutionResult

	cb.mu.Lock()
	if err != nil {
		transition = cb.recordFailure()
	} else {
		transition = cb.recordSuccess()
	}
	res = ExecutionResult{
		Value:            value,
		Err:              err,
		State:            cb.State(),
		CurrentFailures:  cb.failureCount,
		CurrentSuccesses: cb.currentSuccesses(),
		Allowed:          true,
	}
	cb.mu.Unlock()

	// Invoke callback outside mutex to prevent deadlock
	transition.invoke()
	return res
}

func (cb *CircuitBreaker) call(ctx context.Context, op Operation) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cb.logger.Error("Operation panicked", "panic", r)
			value, err = nil, fmt.Errorf("%w: %v", types.ErrOperationPanic, r)
		}
	}()
	return op(ctx)
}

// admit counts the request and decides whether it may proceed.
func (cb *CircuitBreaker) admit() (ExecutionResult, bool) {
	var transition *stateTransition

	cb.mu.Lock()
	now := cb.now()
	cb.totalRequests++
	cb.purge(now)

	allowed := false
	var retryAfter time.Duration

	switch State(cb.state.Load()) {
	case StateClosed:
		allowed = true

	case StateOpen:
		elapsed := now.Sub(cb.stateChangedAt)
		if elapsed >= cb.currentTimeout {
			transition = cb.transitionTo(StateHalfOpen, now)
			cb.halfOpenRequests = 1
			allowed = true
		} else {
			retryAfter = cb.currentTimeout - elapsed
		}

	case StateHalfOpen:
		if cb.halfOpenRequests < cb.cfg.SuccessThreshold {
			cb.halfOpenRequests++
			allowed = true
		}
	}

	var res ExecutionResult
	if !allowed {
		cb.rejected++
		res = ExecutionResult{
			State:            cb.State(),
			RetryAfter:       retryAfter,
			CurrentFailures:  cb.failureCount,
			CurrentSuccesses: cb.currentSuccesses(),
		}
	}
	cb.mu.Unlock()

	transition.invoke()
	return res, allowed
}

// recordSuccess must be called while holding the mutex.
func (cb *CircuitBreaker) recordSuccess() *stateTransition {
	now := cb.now()
	cb.totalSuccesses++
	cb.lastSuccess = now
	cb.successTimes = append(cb.successTimes, now)

	switch State(cb.state.Load()) {
	case StateClosed:
		if cb.failureCount > 0 {
			cb.failureCount--
		}
		cb.closedSuccesses++
		if cb.closedSuccesses >= cb.cfg.ResetThreshold && cb.currentTimeout != cb.cfg.Timeout {
			cb.currentTimeout = cb.cfg.Timeout
			cb.logger.Debug("Timeout reset to base", "timeout", cb.currentTimeout)
		}

	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.cfg.SuccessThreshold {
			return cb.transitionTo(StateClosed, now)
		}
	}
	return nil
}

// recordFailure must be called while holding the mutex.
func (cb *CircuitBreaker) recordFailure() *stateTransition {
	now := cb.now()
	cb.totalFailures++
	cb.lastFailure = now
	cb.failureTimes = append(cb.failureTimes, now)
	cb.closedSuccesses = 0

	switch State(cb.state.Load()) {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			return cb.transitionTo(StateOpen, now)
		}

	case StateHalfOpen:
		return cb.transitionTo(StateOpen, now)
	}
	return nil
}

// purge drops outcomes older than the monitoring period.
// Must be called while holding the mutex.
func (cb *CircuitBreaker) purge(now time.Time) {
	cutoff := now.Add(-cb.cfg.MonitoringPeriod)
	cb.failureTimes = dropBefore(cb.failureTimes, cutoff)
	cb.successTimes = dropBefore(cb.successTimes, cutoff)
	if cb.failureCount > len(cb.failureTimes) {
		cb.failureCount = len(cb.failureTimes)
	}
}

func dropBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0], times[i:]...)
}

// currentSuccesses must be called while holding the mutex.
func (cb *CircuitBreaker) currentSuccesses() int {
	switch State(cb.state.Load()) {
	case StateClosed:
		return cb.closedSuccesses
	case StateHalfOpen:
		return cb.halfOpenSuccesses
	default:
		return 0
	}
}

// transitionTo changes the circuit breaker state.
// Must be called while holding the mutex.
// Returns a stateTransition if a callback should be invoked, nil otherwise.
// The caller MUST invoke the callback (if non-nil) AFTER releasing the mutex
// to prevent deadlocks.
func (cb *CircuitBreaker) transitionTo(newState State, now time.Time) *stateTransition {
	oldState := State(cb.state.Load())
	if oldState == newState {
		return nil
	}

	switch newState {
	case StateClosed:
		cb.failureCount = 0
		cb.failureTimes = cb.failureTimes[:0]
		cb.closedSuccesses = 0
		cb.halfOpenRequests = 0
		cb.halfOpenSuccesses = 0
		relaxed := time.Duration(float64(cb.currentTimeout) / cb.cfg.BackoffMultiplier)
		cb.currentTimeout = max(cb.cfg.Timeout, relaxed)
		cb.logger.Info("Circuit closed", "timeout", cb.currentTimeout)

	case StateOpen:
		grown := time.Duration(float64(cb.currentTimeout) * cb.cfg.BackoffMultiplier)
		cb.currentTimeout = min(grown, cb.cfg.MaxTimeout)
		cb.halfOpenRequests = 0
		cb.halfOpenSuccesses = 0
		cb.closedSuccesses = 0
		cb.logger.Warn("Circuit opened",
			"from", oldState.String(),
			"failures", cb.failureCount,
			"timeout", cb.currentTimeout,
		)

	case StateHalfOpen:
		cb.halfOpenRequests = 0
		cb.halfOpenSuccesses = 0
		cb.logger.Info("Circuit half-open, probing upstream")
	}

	cb.stateChangedAt = now
	cb.state.Store(int32(newState))

	if cb.onStateChange != nil {
		return &stateTransition{
			from:     oldState,
			to:       newState,
			callback: cb.onStateChange,
		}
	}
	return nil
}

// invoke safely invokes a state transition callback.
// Must be called AFTER releasing the mutex.
func (t *stateTransition) invoke() {
	if t != nil && t.callback != nil {
		t.callback(t.from, t.to)
	}
}

// State returns the current circuit breaker state. An OPEN breaker whose
// timeout has elapsed still reports OPEN until the next Execute.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// SetOnStateChange sets a callback for state changes.
// The callback is invoked synchronously after state transitions complete and
// may safely read breaker state.
func (cb *CircuitBreaker) SetOnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset returns the breaker to CLOSED with the base timeout and clears
// every counter except the cumulative totals.
func (cb *CircuitBreaker) Reset() {
	var transition *stateTransition

	cb.mu.Lock()
	now := cb.now()
	oldState := State(cb.state.Load())

	cb.failureCount = 0
	cb.closedSuccesses = 0
	cb.halfOpenRequests = 0
	cb.halfOpenSuccesses = 0
	cb.failureTimes = nil
	cb.successTimes = nil
	cb.currentTimeout = cb.cfg.Timeout
	cb.stateChangedAt = now
	cb.state.Store(int32(StateClosed))

	if oldState != StateClosed && cb.onStateChange != nil {
		transition = &stateTransition{from: oldState, to: StateClosed, callback: cb.onStateChange}
	}
	cb.mu.Unlock()

	transition.invoke()
}

// Metrics returns a snapshot of the breaker.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.purge(now)

	state := State(cb.state.Load())
	var retryAfter time.Duration
	if state == StateOpen {
		retryAfter = max(0, cb.currentTimeout-now.Sub(cb.stateChangedAt))
	}

	return Metrics{
		Name:             cb.name,
		State:            state,
		TotalRequests:    cb.totalRequests,
		TotalFailures:    cb.totalFailures,
		TotalSuccesses:   cb.totalSuccesses,
		RejectedRequests: cb.rejected,
		CurrentFailures:  cb.failureCount,
		CurrentSuccesses: cb.currentSuccesses(),
		CurrentTimeout:   cb.currentTimeout,
		RetryAfter:       retryAfter,
		LastFailureTime:  cb.lastFailure,
		LastSuccessTime:  cb.lastSuccess,
		StateChangedAt:   cb.stateChangedAt,
		WindowRequests:   len(cb.failureTimes) + len(cb.successTimes),
		WindowFailures:   len(cb.failureTimes),
	}
}
