package metrics

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/types"
)

// OTelPublisher records metrics through an OpenTelemetry meter. Ad-hoc
// instruments are created lazily by name and cached.
type OTelPublisher struct {
	meter  metric.Meter
	logger *slog.Logger

	alerts      metric.Int64Counter
	events      metric.Int64Counter
	health      metric.Int64Gauge
	apiRequests metric.Int64Gauge
	apiErrRate  metric.Float64Gauge
	apiAvgMs    metric.Float64Gauge
	unresolved  metric.Int64Gauge

	mu         sync.Mutex
	gauges     map[string]metric.Float64Gauge
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOTelPublisherFromConfig creates a publisher on the global meter provider.
// If OTel is not enabled, returns a NoOpPublisher instead.
func NewOTelPublisherFromConfig(cfg config.OTelConfig, logger *slog.Logger) (types.Publisher, error) {
	if !cfg.Enabled {
		return NewNoOpPublisher(), nil
	}
	return NewOTelPublisher(otel.GetMeterProvider().Meter(cfg.MeterName), logger)
}

// NewOTelPublisher creates a publisher recording on meter.
func NewOTelPublisher(meter metric.Meter, logger *slog.Logger) (*OTelPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &OTelPublisher{
		meter:      meter,
		logger:     logger.With("component", "otel-metrics"),
		gauges:     make(map[string]metric.Float64Gauge),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}

	var err error
	if p.alerts, err = meter.Int64Counter(
		"bulwark.alerts",
		metric.WithDescription("Alerts recorded by the monitor"),
		metric.WithUnit("{alert}"),
	); err != nil {
		return nil, err
	}
	if p.events, err = meter.Int64Counter(
		"bulwark.events",
		metric.WithDescription("Events emitted by bulwark components"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, err
	}
	if p.health, err = meter.Int64Gauge(
		"bulwark.health",
		metric.WithDescription("Health status: 1 healthy, 2 warning, 3 critical"),
	); err != nil {
		return nil, err
	}
	if p.apiRequests, err = meter.Int64Gauge(
		"bulwark.api.requests",
		metric.WithDescription("Upstream requests observed by the monitor"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if p.apiErrRate, err = meter.Float64Gauge(
		"bulwark.api.error_rate",
		metric.WithDescription("Fraction of failed upstream requests"),
	); err != nil {
		return nil, err
	}
	if p.apiAvgMs, err = meter.Float64Gauge(
		"bulwark.api.response_time_ms",
		metric.WithDescription("Average upstream response time over the recent sample window"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if p.unresolved, err = meter.Int64Gauge(
		"bulwark.alerts.unresolved",
		metric.WithDescription("Unresolved alerts retained by the monitor"),
		metric.WithUnit("{alert}"),
	); err != nil {
		return nil, err
	}

	return p, nil
}

// Gauge records a gauge metric.
func (p *OTelPublisher) Gauge(name string, value float64, tags ...string) {
	p.mu.Lock()
	g, ok := p.gauges[name]
	if !ok {
		var err error
		if g, err = p.meter.Float64Gauge(name); err != nil {
			p.mu.Unlock()
			p.logger.Debug("Failed to create gauge", "name", name, "error", err)
			return
		}
		p.gauges[name] = g
	}
	p.mu.Unlock()

	g.Record(context.Background(), value, metric.WithAttributes(tagAttributes(tags)...))
}

// Incr increments a counter by 1.
func (p *OTelPublisher) Incr(name string, tags ...string) {
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		var err error
		if c, err = p.meter.Int64Counter(name); err != nil {
			p.mu.Unlock()
			p.logger.Debug("Failed to create counter", "name", name, "error", err)
			return
		}
		p.counters[name] = c
	}
	p.mu.Unlock()

	c.Add(context.Background(), 1, metric.WithAttributes(tagAttributes(tags)...))
}

// Timing records a duration in milliseconds on a histogram.
func (p *OTelPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		var err error
		if h, err = p.meter.Float64Histogram(name, metric.WithUnit("ms")); err != nil {
			p.mu.Unlock()
			p.logger.Debug("Failed to create histogram", "name", name, "error", err)
			return
		}
		p.histograms[name] = h
	}
	p.mu.Unlock()

	ms := float64(duration) / float64(time.Millisecond)
	h.Record(context.Background(), ms, metric.WithAttributes(tagAttributes(tags)...))
}

// Event counts an event. OpenTelemetry metrics have no event type, so only
// the alert type and tags are kept as attributes.
func (p *OTelPublisher) Event(title, text, alertType string, tags ...string) {
	attrs := append(tagAttributes(tags), attribute.String("event.alert_type", alertType))
	p.events.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// PublishAlert counts an alert keyed by its source, severity and type.
func (p *OTelPublisher) PublishAlert(a *types.Alert) {
	if a == nil {
		return
	}
	p.alerts.Add(context.Background(), 1, metric.WithAttributes(tagAttributes(AlertTags(a))...))
}

// PublishSummary records the monitor summary as gauges.
func (p *OTelPublisher) PublishSummary(s *types.MonitorSummary) {
	if s == nil {
		return
	}
	ctx := context.Background()

	p.health.Record(ctx, int64(s.Health.Overall), metric.WithAttributes(attribute.String("source", "overall")))
	for source, status := range s.Health.Sources {
		p.health.Record(ctx, int64(status), metric.WithAttributes(attribute.String("source", string(source))))
	}

	p.apiRequests.Record(ctx, s.API.TotalRequests)
	p.apiErrRate.Record(ctx, s.API.ErrorRate)
	p.apiAvgMs.Record(ctx, float64(s.API.AverageResponseTime)/float64(time.Millisecond))
	p.unresolved.Record(ctx, int64(s.Alerts.Unresolved))
}

// Close does nothing; the meter provider is owned by the application.
func (p *OTelPublisher) Close() error {
	return nil
}

// tagAttributes converts "key:value" tags into attributes. A tag without a
// colon becomes a boolean attribute set to true.
func tagAttributes(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for _, t := range tags {
		k, v, ok := strings.Cut(t, ":")
		if !ok {
			attrs = append(attrs, attribute.Bool(k, true))
			continue
		}
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

var _ types.Publisher = (*OTelPublisher)(nil)
