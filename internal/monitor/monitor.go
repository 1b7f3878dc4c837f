// Package monitor records alerts raised from rate-limiter, circuit-breaker
// and upstream request signals and derives health from them. It owns no
// execution path.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/metrics"
	"github.com/LavishGent/bulwark/internal/resilience"
	"github.com/LavishGent/bulwark/internal/types"
)

const (
	// AlertRetention is how long alerts, and resolved alerts after their
	// resolution, are kept.
	AlertRetention = 24 * time.Hour
	// CriticalLookback is how far back an unresolved critical alert affects health.
	CriticalLookback = 5 * time.Minute
	// MinFailureRateSample is the smallest windowed request count that can
	// raise a high-failure-rate alert.
	MinFailureRateSample = 10
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now. A nil clock is ignored.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator replaces the uuid alert ID source. A nil generator is ignored.
func WithIDGenerator(fn func() string) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// Monitor is an append-only alert log with de-duplication, resolution and pruning.
type Monitor struct {
	cfg        config.MonitoringConfig
	logger     *slog.Logger
	publisher  types.Publisher
	console    *metrics.LoggingPublisher
	background *metrics.BackgroundPublisher
	latencies  *metrics.LatencyWindow
	now        func() time.Time
	newID      func() string

	mu         sync.Mutex
	alerts     []*types.Alert
	lastByType map[types.AlertType]time.Time
	breakers   map[string]resilience.State
	apiTotal   int64
	apiFailed  int64
	apiLast    time.Time
	enabled    bool
	closed     bool
}

// New creates a monitor. Alerts and summaries go to publisher when
// EmitEvents is set and to the logger when ConsoleAlerts is set. A nil
// publisher discards them.
func New(cfg config.MonitoringConfig, publisher types.Publisher, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = metrics.NewNoOpPublisher()
	}

	m := &Monitor{
		cfg:        cfg,
		logger:     logger.With("component", "monitor"),
		publisher:  publisher,
		latencies:  metrics.NewLatencyWindow(metrics.DefaultLatencySamples),
		now:        time.Now,
		newID:      uuid.NewString,
		lastByType: make(map[types.AlertType]time.Time),
		breakers:   make(map[string]resilience.State),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.ConsoleAlerts {
		m.console = metrics.NewLoggingPublisher(logger)
	}
	m.background = metrics.NewBackgroundPublisher(publisher, cfg.MetricsInterval, m.periodicSummary, logger)

	m.SetEnabled(cfg.Enabled)
	return m, nil
}

// SetEnabled turns recording on or off and starts or stops the periodic
// summary accordingly.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.enabled = enabled
	m.mu.Unlock()

	if enabled {
		m.background.Start(context.Background())
	} else {
		m.background.Stop()
	}
	m.logger.Debug("Monitoring toggled", "enabled", enabled)
}

// Enabled reports whether the monitor is recording.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Close stops the periodic summary. Recording stops; retained alerts stay readable.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.enabled = false
	m.mu.Unlock()

	m.background.Stop()
	return nil
}

// RecordRateLimit raises a warning when the consumed fraction reaches the
// configured threshold and an error when the request was denied.
func (m *Monitor) RecordRateLimit(id string, result resilience.RateLimitResult) {
	var raised []*types.Alert

	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	now := m.now()

	ratio := result.UsageRatio()
	if ratio >= m.cfg.RateLimitWarningThreshold {
		raised = appendAlert(raised, m.addLocked(now, false, &types.Alert{
			Type:       types.AlertRateLimitWarning,
			Severity:   types.SeverityWarning,
			Source:     types.SourceRateLimiter,
			Identifier: id,
			Message:    fmt.Sprintf("Rate limit usage for %s at %.0f%%", id, ratio*100),
			Details: map[string]any{
				"limit":      result.Limit,
				"remaining":  result.Remaining,
				"usageRatio": ratio,
			},
		}))
	}

	if !result.Allowed {
		raised = appendAlert(raised, m.addLocked(now, false, &types.Alert{
			Type:       types.AlertRateLimitExceeded,
			Severity:   types.SeverityError,
			Source:     types.SourceRateLimiter,
			Identifier: id,
			Message:    fmt.Sprintf("Rate limit exceeded for %s", id),
			Details: map[string]any{
				"limit":        result.Limit,
				"currentUsage": result.CurrentUsage,
				"retryAfterMs": result.RetryAfter.Milliseconds(),
				"resetTime":    result.ResetTime,
			},
		}))
	}
	m.mu.Unlock()

	m.emit(raised)
}

// RecordCircuitBreaker raises alerts from a breaker metrics snapshot. A
// critical alert is raised on the transition into OPEN, so repeated OPEN
// snapshots for id alert once. HALF_OPEN raises a warning. CLOSED after an
// unresolved OPEN alert for id raises a recovery alert. A high windowed
// failure rate raises a warning.
func (m *Monitor) RecordCircuitBreaker(id string, cb resilience.Metrics) {
	var raised []*types.Alert

	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	now := m.now()
	prev, seen := m.breakers[id]
	m.breakers[id] = cb.State

	switch cb.State {
	case resilience.StateOpen:
		if seen && prev == resilience.StateOpen {
			break
		}
		raised = appendAlert(raised, m.addLocked(now, false, &types.Alert{
			Type:       types.AlertCircuitOpen,
			Severity:   types.SeverityCritical,
			Source:     types.SourceCircuitBreaker,
			Identifier: id,
			Message:    fmt.Sprintf("Circuit breaker %s opened", id),
			Details: map[string]any{
				"currentFailures": cb.CurrentFailures,
				"currentTimeout":  cb.CurrentTimeout.String(),
				"retryAfterMs":    cb.RetryAfter.Milliseconds(),
			},
		}))
	case resilience.StateHalfOpen:
		raised = appendAlert(raised, m.addLocked(now, false, &types.Alert{
			Type:       types.AlertCircuitHalfOpen,
			Severity:   types.SeverityWarning,
			Source:     types.SourceCircuitBreaker,
			Identifier: id,
			Message:    fmt.Sprintf("Circuit breaker %s half-open, probing upstream", id),
			Details: map[string]any{
				"currentSuccesses": cb.CurrentSuccesses,
			},
		}))
	case resilience.StateClosed:
		if m.resolveOpenLocked(id, now) > 0 {
			raised = appendAlert(raised, m.addLocked(now, true, &types.Alert{
				Type:       types.AlertCircuitRecovered,
				Severity:   types.SeverityInfo,
				Source:     types.SourceCircuitBreaker,
				Identifier: id,
				Message:    fmt.Sprintf("Circuit breaker %s recovered", id),
				Details: map[string]any{
					"currentTimeout": cb.CurrentTimeout.String(),
				},
			}))
		}
	}

	if rate := cb.FailureRate(); cb.WindowRequests >= MinFailureRateSample && rate >= m.cfg.FailureRateThreshold {
		raised = appendAlert(raised, m.addLocked(now, false, &types.Alert{
			Type:       types.AlertHighFailureRate,
			Severity:   types.SeverityWarning,
			Source:     types.SourceCircuitBreaker,
			Identifier: id,
			Message:    fmt.Sprintf("High failure rate for %s: %.1f%%", id, rate*100),
			Details: map[string]any{
				"failureRate":    rate,
				"windowRequests": cb.WindowRequests,
				"windowFailures": cb.WindowFailures,
			},
		}))
	}
	m.mu.Unlock()

	m.emit(raised)
}

// RecordAPIRequest updates request totals and the recent latency window.
// It raises a warning for a response slower than the configured threshold
// and an error for a failed request. label names the call for alert messages.
func (m *Monitor) RecordAPIRequest(duration time.Duration, success bool, label string) {
	var raised []*types.Alert

	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	now := m.now()

	m.apiTotal++
	if !success {
		m.apiFailed++
	}
	m.apiLast = now
	m.latencies.Add(duration)

	if duration > m.cfg.ResponseTimeThreshold {
		raised = appendAlert(raised, m.addLocked(now, false, &types.Alert{
			Type:       types.AlertSlowResponse,
			Severity:   types.SeverityWarning,
			Source:     types.SourceClient,
			Identifier: label,
			Message:    fmt.Sprintf("Slow API response for %s: %s", labelOr(label), duration),
			Details: map[string]any{
				"durationMs":  duration.Milliseconds(),
				"thresholdMs": m.cfg.ResponseTimeThreshold.Milliseconds(),
			},
		}))
	}

	if !success {
		raised = appendAlert(raised, m.addLocked(now, false, &types.Alert{
			Type:       types.AlertRequestFailed,
			Severity:   types.SeverityError,
			Source:     types.SourceClient,
			Identifier: label,
			Message:    fmt.Sprintf("API request failed for %s", labelOr(label)),
			Details: map[string]any{
				"durationMs": duration.Milliseconds(),
				"errorRate":  float64(m.apiFailed) / float64(m.apiTotal),
			},
		}))
	}
	m.mu.Unlock()

	m.emit(raised)
}

// addLocked appends alert unless an alert of the same type was recorded
// within the aggregation window. bypass skips that check. Returns nil when
// suppressed. Callers hold m.mu.
func (m *Monitor) addLocked(now time.Time, bypass bool, alert *types.Alert) *types.Alert {
	if !bypass {
		if last, ok := m.lastByType[alert.Type]; ok && now.Sub(last) < m.cfg.AlertAggregationWindow {
			return nil
		}
	}

	alert.ID = m.newID()
	alert.Timestamp = now
	m.alerts = append(m.alerts, alert)
	m.lastByType[alert.Type] = now
	m.pruneLocked(now)

	clone := *alert
	return &clone
}

// resolveOpenLocked marks every unresolved OPEN and HALF_OPEN alert for id
// resolved and returns how many OPEN alerts it changed.
func (m *Monitor) resolveOpenLocked(id string, now time.Time) int {
	resolved := 0
	for _, a := range m.alerts {
		if a.Identifier != id || a.Resolved {
			continue
		}
		switch a.Type {
		case types.AlertCircuitOpen:
			resolved++
		case types.AlertCircuitHalfOpen:
		default:
			continue
		}
		a.Resolved = true
		a.ResolvedAt = now
	}
	return resolved
}

// pruneLocked drops expired alerts, then keeps only the newest MaxStoredAlerts.
func (m *Monitor) pruneLocked(now time.Time) {
	m.alerts = slices.DeleteFunc(m.alerts, func(a *types.Alert) bool {
		if now.Sub(a.Timestamp) > AlertRetention {
			return true
		}
		return a.Resolved && now.Sub(a.ResolvedAt) > AlertRetention
	})

	if extra := len(m.alerts) - m.cfg.MaxStoredAlerts; extra > 0 {
		m.alerts = slices.Delete(m.alerts, 0, extra)
	}
}

func (m *Monitor) emit(alerts []*types.Alert) {
	for _, a := range alerts {
		if m.console != nil {
			m.console.PublishAlert(a)
		}
		if m.cfg.EmitEvents {
			m.publisher.PublishAlert(a)
		}
	}
}

// Prune removes expired alerts immediately instead of waiting for the next alert.
func (m *Monitor) Prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(m.now())
}

// Alerts returns a copy of the retained alerts, oldest first.
func (m *Monitor) Alerts() []types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Alert, len(m.alerts))
	for i, a := range m.alerts {
		out[i] = *a
	}
	return out
}

// ActiveAlerts returns the unresolved retained alerts, oldest first.
func (m *Monitor) ActiveAlerts() []types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Alert
	for _, a := range m.alerts {
		if !a.Resolved {
			out = append(out, *a)
		}
	}
	return out
}

// APIMetrics returns the aggregate upstream request metrics.
func (m *Monitor) APIMetrics() types.APIMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiMetricsLocked()
}

func (m *Monitor) apiMetricsLocked() types.APIMetrics {
	am := types.APIMetrics{
		TotalRequests:       m.apiTotal,
		FailedRequests:      m.apiFailed,
		AverageResponseTime: m.latencies.Average(),
		LastRequestAt:       m.apiLast,
	}
	if m.apiTotal > 0 {
		am.ErrorRate = float64(m.apiFailed) / float64(m.apiTotal)
	}
	return am
}

// Health derives per-source and overall status from unresolved alerts. A
// source is critical with an unresolved critical alert from the last five
// minutes and warning with any unresolved warning alert.
func (m *Monitor) Health() types.HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthLocked(m.now())
}

func (m *Monitor) healthLocked(now time.Time) types.HealthReport {
	report := types.HealthReport{
		Timestamp: now,
		Overall:   types.HealthStatusHealthy,
		Sources:   make(map[types.AlertSource]types.HealthStatus, len(types.AlertSources)),
	}
	for _, s := range types.AlertSources {
		report.Sources[s] = types.HealthStatusHealthy
	}

	for _, a := range m.alerts {
		if a.Resolved {
			continue
		}
		current := report.Sources[a.Source]
		switch {
		case a.Severity == types.SeverityCritical && now.Sub(a.Timestamp) <= CriticalLookback:
			report.Sources[a.Source] = types.HealthStatusCritical
		case a.Severity == types.SeverityWarning && current != types.HealthStatusCritical:
			report.Sources[a.Source] = types.HealthStatusWarning
		}
	}

	for _, s := range types.AlertSources {
		status := report.Sources[s]
		if status == types.HealthStatusHealthy {
			continue
		}
		report.Issues = append(report.Issues, fmt.Sprintf("%s: %s", s, status))
		report.Overall = max(report.Overall, status)
	}
	report.Healthy = report.Overall == types.HealthStatusHealthy
	return report
}

// Summary builds a snapshot of health, API metrics and alert counts.
func (m *Monitor) Summary() *types.MonitorSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	counts := types.AlertCounts{
		Total:      len(m.alerts),
		BySeverity: make(map[types.Severity]int),
	}
	for _, a := range m.alerts {
		counts.BySeverity[a.Severity]++
		if !a.Resolved {
			counts.Unresolved++
		}
	}

	return &types.MonitorSummary{
		Timestamp: now,
		Health:    m.healthLocked(now),
		API:       m.apiMetricsLocked(),
		Alerts:    counts,
	}
}

// periodicSummary is the background loop's source. It logs to the console
// when enabled and returns nil when events are off so nothing is published.
func (m *Monitor) periodicSummary() *types.MonitorSummary {
	s := m.Summary()
	if m.console != nil {
		m.console.PublishSummary(s)
	}
	if !m.cfg.EmitEvents {
		return nil
	}
	return s
}

func appendAlert(alerts []*types.Alert, a *types.Alert) []*types.Alert {
	if a == nil {
		return alerts
	}
	return append(alerts, a)
}

func labelOr(label string) string {
	if label == "" {
		return "upstream"
	}
	return label
}
