package metrics

import (
	"fmt"

	"github.com/LavishGent/bulwark/internal/types"
)

// Tag creates a formatted DataDog tag string in "key:value" format.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

// SourceTag creates an alert source tag (rate_limiter/circuit_breaker/client).
func SourceTag(source types.AlertSource) string {
	return Tag("source", string(source))
}

// SeverityTag creates an alert severity tag.
func SeverityTag(severity types.Severity) string {
	return Tag("severity", severity.String())
}

// AlertTypeTag creates an alert type tag.
func AlertTypeTag(alertType types.AlertType) string {
	return Tag("alert_type", string(alertType))
}

// IdentifierTag creates a tag for the breaker or limiter identifier an alert concerns.
func IdentifierTag(id string) string {
	return Tag("identifier", id)
}

// StatusTag creates a status tag (hit/miss/success/failure/denied).
func StatusTag(status string) string {
	return Tag("status", status)
}

// CircuitStateTag creates a circuit breaker state tag.
func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}

// AlertTags returns the standard tag set attached to every published alert.
func AlertTags(a *types.Alert) []string {
	tags := []string{
		SourceTag(a.Source),
		SeverityTag(a.Severity),
		AlertTypeTag(a.Type),
	}
	if a.Identifier != "" {
		tags = append(tags, IdentifierTag(a.Identifier))
	}
	return tags
}

// EventAlertType maps an alert onto a DataDog event alert type.
func EventAlertType(a *types.Alert) string {
	if a.Type == types.AlertCircuitRecovered {
		return "success"
	}
	switch a.Severity {
	case types.SeverityCritical, types.SeverityError:
		return "error"
	case types.SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}
