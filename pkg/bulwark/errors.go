package bulwark

import (
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

type (
	// AdmissionError is returned when the rate limiter or circuit breaker refuses a call.
	AdmissionError = types.AdmissionError
	// AdmissionReason says which component refused the call.
	AdmissionReason = types.AdmissionReason
	// UpstreamError carries the HTTP status of a failed upstream call.
	UpstreamError = types.UpstreamError
	// ConfigError describes an invalid configuration field.
	ConfigError = types.ConfigError
)

const (
	ReasonCircuitOpen = types.ReasonCircuitOpen
	ReasonRateLimited = types.ReasonRateLimited
)

var (
	// ErrCircuitOpen indicates that the circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrRateLimited indicates that the rate limit for the period is used up.
	ErrRateLimited = types.ErrRateLimited
	// ErrInvalidConfig indicates that a configuration value is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig
	// ErrClosed indicates that the client has been shut down.
	ErrClosed = types.ErrClosed
	// ErrUnknownCacheType indicates a cache type with no preset.
	ErrUnknownCacheType = types.ErrUnknownCacheType
	// ErrStoreUnavailable indicates that the shared window store cannot be reached.
	ErrStoreUnavailable = types.ErrStoreUnavailable
	// ErrOperationPanic wraps a panic recovered from a protected call.
	ErrOperationPanic = types.ErrOperationPanic
)

// NewUpstreamError classifies a failed HTTP response.
func NewUpstreamError(statusCode int, status string, err error) *UpstreamError {
	return types.NewUpstreamError(statusCode, status, err)
}

// UpstreamStatus returns the HTTP status carried by err, or 0.
func UpstreamStatus(err error) int {
	return types.UpstreamStatus(err)
}

// IsCircuitOpen returns true if the call was refused by an open circuit.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsRateLimited returns true if the call was refused by the rate limiter.
func IsRateLimited(err error) bool {
	return types.IsRateLimited(err)
}

// IsConfigError returns true if err describes an invalid configuration.
func IsConfigError(err error) bool {
	return types.IsConfigError(err)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}

// RetryAfter returns how long to wait before retrying a refused call.
func RetryAfter(err error) (time.Duration, bool) {
	return types.RetryAfter(err)
}
