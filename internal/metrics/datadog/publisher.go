// Package datadog provides a DataDog StatsD metrics publisher.
package datadog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/metrics"
	"github.com/LavishGent/bulwark/internal/types"
)

// Publisher implements types.Publisher using the DataDog StatsD client.
// Alerts become DataDog events and summaries become gauges.
//
//nolint:govet // Small struct - minimal alignment benefit
type Publisher struct {
	baseTags []string
	client   statsd.ClientInterface
	logger   *slog.Logger
}

// NewPublisher creates a new DataDog publisher from config.
// If DataDog is not enabled, returns a NoOpPublisher instead.
func NewPublisher(cfg config.DataDogConfig, logger *slog.Logger, opts ...statsd.Option) (types.Publisher, error) {
	if !cfg.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	addr := fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.Port)

	options := []statsd.Option{statsd.WithTags(cfg.Tags)}
	if cfg.Prefix != "" {
		options = append(options, statsd.WithNamespace(cfg.Prefix+"."))
	}
	options = append(options, opts...)

	client, err := statsd.New(addr, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	logger.Info("DataDog publisher initialized",
		"address", addr,
		"prefix", cfg.Prefix,
		"tags", cfg.Tags,
	)

	return NewPublisherWithClient(client, logger), nil
}

// NewPublisherWithClient wraps an existing StatsD client. Tags configured on
// the client are applied by the client itself.
func NewPublisherWithClient(client statsd.ClientInterface, logger *slog.Logger, baseTags ...string) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		baseTags: baseTags,
		logger:   logger.With("component", "datadog"),
	}
}

// Gauge records a gauge metric (value at a point in time).
func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	if err := p.client.Gauge(name, value, p.mergeTags(tags), 1); err != nil {
		p.logger.Debug("Failed to send gauge metric", "name", name, "error", err)
	}
}

// Incr increments a counter by 1.
func (p *Publisher) Incr(name string, tags ...string) {
	if err := p.client.Incr(name, p.mergeTags(tags), 1); err != nil {
		p.logger.Debug("Failed to send incr metric", "name", name, "error", err)
	}
}

// Timing records a timing metric.
func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	if err := p.client.Timing(name, duration, p.mergeTags(tags), 1); err != nil {
		p.logger.Debug("Failed to send timing metric", "name", name, "error", err)
	}
}

// Event sends a DataDog event.
func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	event := &statsd.Event{
		Title:     title,
		Text:      text,
		AlertType: statsd.EventAlertType(alertType),
		Tags:      p.mergeTags(tags),
	}
	if err := p.client.Event(event); err != nil {
		p.logger.Debug("Failed to send event", "title", title, "error", err)
	}
}

// PublishAlert sends the alert as an event and increments the alert counter.
func (p *Publisher) PublishAlert(a *types.Alert) {
	if a == nil {
		return
	}

	tags := metrics.AlertTags(a)
	event := &statsd.Event{
		Title:          fmt.Sprintf("[%s] %s", a.Severity, a.Type),
		Text:           a.Message,
		Timestamp:      a.Timestamp,
		AggregationKey: string(a.Type),
		SourceTypeName: "bulwark",
		AlertType:      statsd.EventAlertType(metrics.EventAlertType(a)),
		Priority:       priority(a.Severity),
		Tags:           p.mergeTags(tags),
	}
	if err := p.client.Event(event); err != nil {
		p.logger.Debug("Failed to send alert event", "alert_id", a.ID, "error", err)
	}
	p.Incr("alerts", tags...)
}

// PublishSummary publishes the monitor summary as gauges.
func (p *Publisher) PublishSummary(s *types.MonitorSummary) {
	if s == nil {
		return
	}

	p.Gauge("health.status", float64(s.Health.Overall), metrics.Tag("source", "overall"))
	for source, status := range s.Health.Sources {
		p.Gauge("health.status", float64(status), metrics.SourceTag(source))
	}

	p.Gauge("api.requests.total", float64(s.API.TotalRequests))
	p.Gauge("api.requests.failed", float64(s.API.FailedRequests))
	p.Gauge("api.error_rate", clamp(s.API.ErrorRate, 0, 1))
	p.Gauge("api.response_time_ms", max(0, float64(s.API.AverageResponseTime)/float64(time.Millisecond)))
	p.Gauge("alerts.total", float64(s.Alerts.Total))
	p.Gauge("alerts.unresolved", float64(s.Alerts.Unresolved))
	for severity, n := range s.Alerts.BySeverity {
		p.Gauge("alerts.by_severity", float64(n), metrics.SeverityTag(severity))
	}
}

// Close flushes and releases the StatsD client.
func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *Publisher) mergeTags(tags []string) []string {
	if len(tags) == 0 {
		return p.baseTags
	}
	if len(p.baseTags) == 0 {
		return tags
	}
	return append(append([]string{}, p.baseTags...), tags...)
}

func priority(s types.Severity) statsd.EventPriority {
	if s >= types.SeverityError {
		return statsd.Normal
	}
	return statsd.Low
}

func clamp(val, minVal, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

var _ types.Publisher = (*Publisher)(nil)
