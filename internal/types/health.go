package types

import "time"

// HealthStatus represents the health of one alert source or of the whole layer.
type HealthStatus int

const (
	// HealthStatusHealthy indicates no unresolved warnings or critical alerts.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusWarning indicates unresolved warning alerts.
	HealthStatusWarning
	// HealthStatusCritical indicates a recent unresolved critical alert.
	HealthStatusCritical
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusWarning:
		return "warning"
	case HealthStatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Severity orders alerts from informational to critical.
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// AlertSource names the component an alert was raised for.
type AlertSource string

const (
	SourceRateLimiter    AlertSource = "rate_limiter"
	SourceCircuitBreaker AlertSource = "circuit_breaker"
	SourceClient         AlertSource = "client"
)

// AlertSources lists every source in reporting order.
var AlertSources = []AlertSource{SourceRateLimiter, SourceCircuitBreaker, SourceClient}

// AlertType identifies the condition that raised an alert. De-duplication is keyed on it.
type AlertType string

const (
	AlertRateLimitWarning  AlertType = "rate_limit_warning"
	AlertRateLimitExceeded AlertType = "rate_limit_exceeded"
	AlertCircuitOpen       AlertType = "circuit_breaker_open"
	AlertCircuitHalfOpen   AlertType = "circuit_breaker_half_open"
	AlertCircuitRecovered  AlertType = "circuit_breaker_recovered"
	AlertHighFailureRate   AlertType = "high_failure_rate"
	AlertSlowResponse      AlertType = "slow_response"
	AlertRequestFailed     AlertType = "api_request_failed"
)

// Alert is one entry of the monitor's append-only alert log.
//
//nolint:govet // Alert struct - field order mirrors the wire representation
type Alert struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       AlertType      `json:"type"`
	Severity   Severity       `json:"severity"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Source     AlertSource    `json:"source"`
	Identifier string         `json:"identifier,omitempty"`
	Resolved   bool           `json:"resolved"`
	ResolvedAt time.Time      `json:"resolvedAt,omitempty"`
}

// APIMetrics aggregates upstream request outcomes reported to the monitor.
type APIMetrics struct {
	TotalRequests       int64
	FailedRequests      int64
	ErrorRate           float64
	AverageResponseTime time.Duration
	LastRequestAt       time.Time
}

// HealthReport is the monitor's derived health view.
type HealthReport struct {
	Timestamp time.Time
	Healthy   bool
	Overall   HealthStatus
	Sources   map[AlertSource]HealthStatus
	Issues    []string
}

// AlertCounts summarises the retained alert log.
type AlertCounts struct {
	Total      int
	Unresolved int
	BySeverity map[Severity]int
}

// MonitorSummary is the periodic snapshot the monitor publishes.
type MonitorSummary struct {
	Timestamp time.Time
	Health    HealthReport
	API       APIMetrics
	Alerts    AlertCounts
}
