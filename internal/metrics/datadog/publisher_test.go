package datadog

import (
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/metrics"
	"github.com/LavishGent/bulwark/internal/types"
)

type gauge struct {
	name  string
	value float64
	tags  []string
}

// recordingClient captures what the publisher sends.
type recordingClient struct {
	*statsd.NoOpClient

	mu      sync.Mutex
	gauges  []gauge
	incrs   []string
	timings map[string]time.Duration
	events  []*statsd.Event
	closed  bool
}

func newRecordingClient() *recordingClient {
	return &recordingClient{NoOpClient: &statsd.NoOpClient{}, timings: make(map[string]time.Duration)}
}

func (c *recordingClient) Gauge(name string, value float64, tags []string, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges = append(c.gauges, gauge{name: name, value: value, tags: tags})
	return nil
}

func (c *recordingClient) Incr(name string, tags []string, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incrs = append(c.incrs, name)
	return nil
}

func (c *recordingClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timings[name] = value
	return nil
}

func (c *recordingClient) Event(e *statsd.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *recordingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingClient) gauge(name string, tag string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.gauges {
		if g.name != name {
			continue
		}
		if tag == "" {
			return g.value, true
		}
		for _, t := range g.tags {
			if t == tag {
				return g.value, true
			}
		}
	}
	return 0, false
}

func TestNewPublisherDisabled(t *testing.T) {
	p, err := NewPublisher(config.DataDogConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, &metrics.NoOpPublisher{}, p)
}

func TestNewPublisherEnabled(t *testing.T) {
	cfg := config.DefaultConfig().Metrics.DataDog
	cfg.Enabled = true
	cfg.Tags = []string{"env:test"}

	p, err := NewPublisher(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Publisher{}, p)

	// UDP sends succeed without an agent listening.
	p.Gauge("test.gauge", 1)
	assert.NoError(t, p.Close())
}

func TestPublisherPublishAlert(t *testing.T) {
	client := newRecordingClient()
	p := NewPublisherWithClient(client, nil, "service:test")

	alert := &types.Alert{
		ID:         "a-1",
		Timestamp:  time.Now(),
		Type:       types.AlertCircuitOpen,
		Severity:   types.SeverityCritical,
		Message:    "Circuit breaker upstream opened",
		Source:     types.SourceCircuitBreaker,
		Identifier: "upstream",
	}
	p.PublishAlert(alert)
	p.PublishAlert(nil)

	require.Len(t, client.events, 1)
	event := client.events[0]
	assert.Equal(t, "[critical] circuit_breaker_open", event.Title)
	assert.Equal(t, alert.Message, event.Text)
	assert.Equal(t, statsd.Error, event.AlertType)
	assert.Equal(t, statsd.Normal, event.Priority)
	assert.Equal(t, "circuit_breaker_open", event.AggregationKey)
	assert.Contains(t, event.Tags, "service:test")
	assert.Contains(t, event.Tags, "identifier:upstream")
	assert.Equal(t, []string{"alerts"}, client.incrs)
}

func TestPublisherRecoveryAlertIsSuccess(t *testing.T) {
	client := newRecordingClient()
	p := NewPublisherWithClient(client, nil)

	p.PublishAlert(&types.Alert{Type: types.AlertCircuitRecovered, Severity: types.SeverityInfo})

	require.Len(t, client.events, 1)
	assert.Equal(t, statsd.Success, client.events[0].AlertType)
	assert.Equal(t, statsd.Low, client.events[0].Priority)
}

func TestPublisherPublishSummary(t *testing.T) {
	client := newRecordingClient()
	p := NewPublisherWithClient(client, nil)

	p.PublishSummary(&types.MonitorSummary{
		Health: types.HealthReport{
			Overall: types.HealthStatusCritical,
			Sources: map[types.AlertSource]types.HealthStatus{
				types.SourceCircuitBreaker: types.HealthStatusCritical,
			},
		},
		API: types.APIMetrics{
			TotalRequests:       20,
			FailedRequests:      5,
			ErrorRate:           0.25,
			AverageResponseTime: 1500 * time.Millisecond,
		},
		Alerts: types.AlertCounts{
			Total:      4,
			Unresolved: 2,
			BySeverity: map[types.Severity]int{types.SeverityCritical: 4},
		},
	})
	p.PublishSummary(nil)

	tests := []struct {
		name  string
		tag   string
		value float64
	}{
		{"health.status", "source:overall", 3},
		{"health.status", "source:circuit_breaker", 3},
		{"api.requests.total", "", 20},
		{"api.requests.failed", "", 5},
		{"api.error_rate", "", 0.25},
		{"api.response_time_ms", "", 1500},
		{"alerts.total", "", 4},
		{"alerts.unresolved", "", 2},
		{"alerts.by_severity", "severity:critical", 4},
	}
	for _, tt := range tests {
		got, ok := client.gauge(tt.name, tt.tag)
		if assert.True(t, ok, "gauge %s %s missing", tt.name, tt.tag) {
			assert.InDelta(t, tt.value, got, 1e-9, tt.name)
		}
	}
}

func TestPublisherPassthrough(t *testing.T) {
	client := newRecordingClient()
	p := NewPublisherWithClient(client, nil)

	p.Timing("request.duration", 25*time.Millisecond, "status:success")
	p.Incr("cache.hit")
	p.Event("title", "text", "warning")

	assert.Equal(t, 25*time.Millisecond, client.timings["request.duration"])
	assert.Equal(t, []string{"cache.hit"}, client.incrs)
	require.Len(t, client.events, 1)
	assert.Equal(t, statsd.Warning, client.events[0].AlertType)

	require.NoError(t, p.Close())
	assert.True(t, client.closed)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-1, 0, 1))
	assert.Equal(t, 1.0, clamp(2, 0, 1))
	assert.Equal(t, 0.5, clamp(0.5, 0, 1))
}
