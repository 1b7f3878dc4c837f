package types

import "time"

// Publisher receives alerts, periodic summaries and ad-hoc metrics.
// Implementations must be safe for concurrent use and must not block for long.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text string, alertType string, tags ...string)
	PublishAlert(alert *Alert)
	PublishSummary(summary *MonitorSummary)
	Close() error
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
