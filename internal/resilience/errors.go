package resilience

import (
	"github.com/LavishGent/bulwark/internal/types"
)

// Denial converts a refused execution into an AdmissionError, or returns nil
// when the execution was allowed.
func (r ExecutionResult) Denial(name string) error {
	if r.Allowed {
		return nil
	}
	return types.NewAdmissionError(types.ReasonCircuitOpen, name, r.RetryAfter)
}

// Denial converts a refused rate-limit check into an AdmissionError, or
// returns nil when the request was allowed.
func (r RateLimitResult) Denial() error {
	if r.Allowed {
		return nil
	}
	return types.NewAdmissionError(types.ReasonRateLimited, r.Identifier, r.RetryAfter)
}
