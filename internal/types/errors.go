// Package types provides shared types for the bulwark library.
// This package breaks import cycles between the internal packages and pkg/bulwark.
package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrCircuitOpen       = errors.New("bulwark: circuit breaker open")
	ErrRateLimited       = errors.New("bulwark: rate limit exceeded")
	ErrInvalidConfig     = errors.New("bulwark: invalid configuration")
	ErrClosed            = errors.New("bulwark: closed")
	ErrUnknownCacheType  = errors.New("bulwark: unknown cache type")
	ErrStaleMiss         = errors.New("bulwark: no stale value")
	ErrStoreUnavailable  = errors.New("bulwark: window store unavailable")
	ErrSerializationFail = errors.New("bulwark: serialization failed")
	ErrOperationPanic    = errors.New("bulwark: operation panicked")
)

// ConfigError reports an invalid configuration value detected at construction time.
type ConfigError struct {
	Component string
	Field     string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bulwark: invalid %s config: %s %s", e.Component, e.Field, e.Reason)
}

// Is makes every ConfigError match ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func NewConfigError(component, field, reason string) *ConfigError {
	return &ConfigError{
		Component: component,
		Field:     field,
		Reason:    reason,
	}
}

// AdmissionReason says which guard refused a call.
type AdmissionReason int

const (
	ReasonCircuitOpen AdmissionReason = iota + 1
	ReasonRateLimited
)

func (r AdmissionReason) String() string {
	switch r {
	case ReasonCircuitOpen:
		return "circuit-open"
	case ReasonRateLimited:
		return "rate-limited"
	default:
		return "unknown"
	}
}

// AdmissionError is a structured admission denial. It is not a failure of the
// upstream and is never counted by the circuit breaker.
type AdmissionError struct {
	Reason     AdmissionReason
	Identifier string
	RetryAfter time.Duration
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("bulwark: %s denied by %s, retry after %s", e.Identifier, e.Reason, e.RetryAfter)
}

// Is matches ErrCircuitOpen or ErrRateLimited depending on the reason.
func (e *AdmissionError) Is(target error) bool {
	switch e.Reason {
	case ReasonCircuitOpen:
		return target == ErrCircuitOpen
	case ReasonRateLimited:
		return target == ErrRateLimited
	default:
		return false
	}
}

func NewAdmissionError(reason AdmissionReason, identifier string, retryAfter time.Duration) *AdmissionError {
	return &AdmissionError{
		Reason:     reason,
		Identifier: identifier,
		RetryAfter: retryAfter,
	}
}

// UpstreamError is an HTTP-shaped failure classified once at the transport
// boundary and passed through as a typed value.
type UpstreamError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *UpstreamError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %d %s: %v", e.StatusCode, status, e.Err)
	}
	return fmt.Sprintf("upstream %d %s", e.StatusCode, status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the status is worth retrying later.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func NewUpstreamError(statusCode int, status string, err error) *UpstreamError {
	return &UpstreamError{
		StatusCode: statusCode,
		Status:     status,
		Err:        err,
	}
}

// UpstreamStatus returns the HTTP status carried by err, or 0.
func UpstreamStatus(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// RetryAfter extracts the retry hint from an admission error.
func RetryAfter(err error) (time.Duration, bool) {
	var ae *AdmissionError
	if errors.As(err, &ae) {
		return ae.RetryAfter, true
	}
	return 0, false
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Denials clear by themselves once RetryAfter elapses
	var ae *AdmissionError
	if errors.As(err, &ae) {
		return true
	}

	if errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrClosed) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Temporary()
	}

	return true
}
