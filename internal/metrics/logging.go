package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

// LoggingPublisher writes metrics, alerts and summaries through slog.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

// NewLoggingPublisher creates a new logging publisher.
func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

// Gauge logs a gauge metric.
func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.logger.Debug("gauge",
		"name", name,
		"value", value,
		"tags", p.mergeTags(tags),
	)
}

// Incr logs an increment metric.
func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.logger.Debug("incr",
		"name", name,
		"tags", p.mergeTags(tags),
	)
}

// Timing logs a timing metric.
func (p *LoggingPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.logger.Debug("timing",
		"name", name,
		"duration_ms", duration.Milliseconds(),
		"tags", p.mergeTags(tags),
	)
}

// Event logs an event.
func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	p.logger.Info("event",
		"title", title,
		"text", text,
		"alert_type", alertType,
		"tags", p.mergeTags(tags),
	)
}

// PublishAlert logs an alert at a level matching its severity.
func (p *LoggingPublisher) PublishAlert(a *types.Alert) {
	if a == nil {
		return
	}

	level := slog.LevelInfo
	switch a.Severity {
	case types.SeverityWarning:
		level = slog.LevelWarn
	case types.SeverityError, types.SeverityCritical:
		level = slog.LevelError
	}

	p.logger.Log(context.Background(), level, a.Message,
		"alert_id", a.ID,
		"type", a.Type,
		"severity", a.Severity.String(),
		"source", a.Source,
		"identifier", a.Identifier,
		"details", a.Details,
	)
}

// PublishSummary logs the periodic monitor summary.
func (p *LoggingPublisher) PublishSummary(s *types.MonitorSummary) {
	if s == nil {
		return
	}

	p.logger.Info("monitor_summary",
		"health", s.Health.Overall.String(),
		"issues", s.Health.Issues,
		"api_total_requests", s.API.TotalRequests,
		"api_failed_requests", s.API.FailedRequests,
		"api_error_rate", s.API.ErrorRate,
		"api_avg_response_ms", s.API.AverageResponseTime.Milliseconds(),
		"alerts_total", s.Alerts.Total,
		"alerts_unresolved", s.Alerts.Unresolved,
	)
}

// Close does nothing for logging publisher.
func (p *LoggingPublisher) Close() error {
	return nil
}

func (p *LoggingPublisher) mergeTags(tags []string) []string {
	return mergeTags(p.baseTags, tags)
}

func mergeTags(base, tags []string) []string {
	if len(tags) == 0 {
		return base
	}
	if len(base) == 0 {
		return tags
	}
	out := make([]string, 0, len(base)+len(tags))
	out = append(out, base...)
	return append(out, tags...)
}

var _ types.Publisher = (*LoggingPublisher)(nil)
