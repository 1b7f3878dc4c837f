package metrics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

func TestLatencyWindow(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		w := NewLatencyWindow(10)
		if w.Len() != 0 || w.Average() != 0 || w.Percentile(99) != 0 {
			t.Errorf("empty window: len=%d avg=%v p99=%v", w.Len(), w.Average(), w.Percentile(99))
		}
	})

	t.Run("default size", func(t *testing.T) {
		w := NewLatencyWindow(0)
		for i := 0; i < DefaultLatencySamples+5; i++ {
			w.Add(time.Millisecond)
		}
		if w.Len() != DefaultLatencySamples {
			t.Errorf("Len() = %d, want %d", w.Len(), DefaultLatencySamples)
		}
	})

	t.Run("average", func(t *testing.T) {
		w := NewLatencyWindow(10)
		w.Add(10 * time.Millisecond)
		w.Add(20 * time.Millisecond)
		w.Add(30 * time.Millisecond)
		if got := w.Average(); got != 20*time.Millisecond {
			t.Errorf("Average() = %v, want 20ms", got)
		}
	})

	t.Run("keeps only the newest samples", func(t *testing.T) {
		w := NewLatencyWindow(3)
		for i := 1; i <= 5; i++ {
			w.Add(time.Duration(i) * time.Millisecond)
		}

		samples := w.Samples()
		want := []time.Duration{3 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond}
		if len(samples) != len(want) {
			t.Fatalf("Samples() = %v, want %v", samples, want)
		}
		for i := range want {
			if samples[i] != want[i] {
				t.Errorf("Samples()[%d] = %v, want %v", i, samples[i], want[i])
			}
		}
		if w.Average() != 4*time.Millisecond {
			t.Errorf("Average() = %v, want 4ms", w.Average())
		}
	})

	t.Run("reset", func(t *testing.T) {
		w := NewLatencyWindow(3)
		w.Add(time.Second)
		w.Reset()
		if w.Len() != 0 {
			t.Errorf("Len() after Reset = %d, want 0", w.Len())
		}
	})
}

func TestLatencyWindowConcurrency(t *testing.T) {
	w := NewLatencyWindow(50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w.Add(time.Duration(j) * time.Microsecond)
				_ = w.Average()
			}
		}()
	}
	wg.Wait()

	if w.Len() != 50 {
		t.Errorf("Len() = %d, want 50", w.Len())
	}
}

func TestAvgDuration(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		expected  time.Duration
	}{
		{"empty", nil, 0},
		{"single", []time.Duration{5 * time.Millisecond}, 5 * time.Millisecond},
		{"multiple", []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, 2 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := avgDuration(tt.durations); got != tt.expected {
				t.Errorf("avgDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	durations := make([]time.Duration, 100)
	for i := range durations {
		durations[99-i] = time.Duration(i+1) * time.Millisecond
	}

	tests := []struct {
		p        int
		expected time.Duration
	}{
		{0, time.Millisecond},
		{50, 50 * time.Millisecond},
		{95, 95 * time.Millisecond},
		{100, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := percentile(durations, tt.p); got != tt.expected {
			t.Errorf("percentile(%d) = %v, want %v", tt.p, got, tt.expected)
		}
	}

	if durations[0] != 100*time.Millisecond {
		t.Error("percentile() modified its input")
	}
}

func testAlert() *types.Alert {
	return &types.Alert{
		ID:         "a-1",
		Timestamp:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Type:       types.AlertCircuitOpen,
		Severity:   types.SeverityCritical,
		Message:    "Circuit breaker upstream opened",
		Source:     types.SourceCircuitBreaker,
		Identifier: "upstream",
	}
}

func testSummary() *types.MonitorSummary {
	return &types.MonitorSummary{
		Timestamp: time.Now(),
		Health: types.HealthReport{
			Overall: types.HealthStatusWarning,
			Sources: map[types.AlertSource]types.HealthStatus{
				types.SourceRateLimiter:    types.HealthStatusWarning,
				types.SourceCircuitBreaker: types.HealthStatusHealthy,
				types.SourceClient:         types.HealthStatusHealthy,
			},
			Issues: []string{"rate_limiter: warning"},
		},
		API: types.APIMetrics{
			TotalRequests:       10,
			FailedRequests:      2,
			ErrorRate:           0.2,
			AverageResponseTime: 120 * time.Millisecond,
		},
		Alerts: types.AlertCounts{
			Total:      3,
			Unresolved: 1,
			BySeverity: map[types.Severity]int{types.SeverityWarning: 3},
		},
	}
}

func TestLoggingPublisher(t *testing.T) {
	newPublisher := func(level slog.Level) (*LoggingPublisher, *bytes.Buffer) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level}))
		return NewLoggingPublisher(logger, "service:test"), &buf
	}

	t.Run("creates with default logger", func(t *testing.T) {
		if NewLoggingPublisher(nil) == nil {
			t.Fatal("NewLoggingPublisher(nil) returned nil")
		}
	})

	t.Run("debug metrics", func(t *testing.T) {
		p, buf := newPublisher(slog.LevelDebug)

		p.Gauge("test.metric", 42.5, "tag1:value1")
		p.Incr("test.counter", "operation:get")
		p.Timing("test.latency", 100*time.Millisecond, "status:success")

		out := buf.String()
		for _, want := range []string{"test.metric", "test.counter", "duration_ms=100", "service:test"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("debug metrics hidden at info", func(t *testing.T) {
		p, buf := newPublisher(slog.LevelInfo)
		p.Gauge("test.metric", 1)
		if buf.Len() != 0 {
			t.Errorf("unexpected output at info level: %s", buf.String())
		}
	})

	t.Run("event", func(t *testing.T) {
		p, buf := newPublisher(slog.LevelInfo)
		p.Event("Test Event", "This is a test event", "info", "source:test")
		if !strings.Contains(buf.String(), "Test Event") {
			t.Errorf("event not logged: %s", buf.String())
		}
	})

	t.Run("alert level follows severity", func(t *testing.T) {
		p, buf := newPublisher(slog.LevelInfo)

		p.PublishAlert(testAlert())
		out := buf.String()
		if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "circuit_breaker_open") {
			t.Errorf("critical alert output = %s", out)
		}

		buf.Reset()
		warn := testAlert()
		warn.Severity = types.SeverityWarning
		p.PublishAlert(warn)
		if !strings.Contains(buf.String(), "level=WARN") {
			t.Errorf("warning alert output = %s", buf.String())
		}
	})

	t.Run("summary", func(t *testing.T) {
		p, buf := newPublisher(slog.LevelInfo)
		p.PublishSummary(testSummary())
		out := buf.String()
		if !strings.Contains(out, "monitor_summary") || !strings.Contains(out, "health=warning") {
			t.Errorf("summary output = %s", out)
		}
	})

	t.Run("nil inputs", func(t *testing.T) {
		p, buf := newPublisher(slog.LevelDebug)
		p.PublishAlert(nil)
		p.PublishSummary(nil)
		if buf.Len() != 0 {
			t.Errorf("nil inputs produced output: %s", buf.String())
		}
	})

	t.Run("close returns nil", func(t *testing.T) {
		if err := NewLoggingPublisher(nil).Close(); err != nil {
			t.Errorf("Close() error = %v, want nil", err)
		}
	})
}

func TestMergeTagsDoesNotAliasBase(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "a:1"

	first := mergeTags(base, []string{"b:2"})
	second := mergeTags(base, []string{"c:3"})

	if first[1] != "b:2" || second[1] != "c:3" {
		t.Errorf("mergeTags() aliased base: first=%v second=%v", first, second)
	}
}

func TestBackgroundPublisher(t *testing.T) {
	summaryFn := func() *types.MonitorSummary { return testSummary() }

	t.Run("creates with nil logger", func(t *testing.T) {
		if NewBackgroundPublisher(NewNoOpPublisher(), time.Second, summaryFn, nil) == nil {
			t.Fatal("NewBackgroundPublisher() returned nil")
		}
	})

	t.Run("start and stop", func(t *testing.T) {
		publisher := &trackingPublisher{}
		bg := NewBackgroundPublisher(publisher, 10*time.Millisecond, summaryFn, nil)

		bg.Start(context.Background())
		if !bg.Running() {
			t.Error("Running() = false after Start")
		}
		time.Sleep(50 * time.Millisecond)
		bg.Stop()

		if bg.Running() {
			t.Error("Running() = true after Stop")
		}
		if publisher.summaryCount.Load() < 1 {
			t.Error("expected at least one publish before stop")
		}
	})

	t.Run("no publishes after stop", func(t *testing.T) {
		publisher := &trackingPublisher{}
		bg := NewBackgroundPublisher(publisher, 5*time.Millisecond, summaryFn, nil)

		bg.Start(context.Background())
		time.Sleep(20 * time.Millisecond)
		bg.Stop()

		count := publisher.summaryCount.Load()
		time.Sleep(20 * time.Millisecond)
		if publisher.summaryCount.Load() != count {
			t.Error("summary published after Stop")
		}
	})

	t.Run("restart", func(t *testing.T) {
		publisher := &trackingPublisher{}
		bg := NewBackgroundPublisher(publisher, 5*time.Millisecond, summaryFn, nil)

		bg.Start(context.Background())
		bg.Start(context.Background())
		bg.Stop()
		bg.Stop()

		bg.Start(context.Background())
		time.Sleep(30 * time.Millisecond)
		bg.Stop()

		if publisher.summaryCount.Load() < 1 {
			t.Error("expected a publish after restart")
		}
	})

	t.Run("zero interval never starts", func(t *testing.T) {
		bg := NewBackgroundPublisher(NewNoOpPublisher(), 0, summaryFn, nil)
		bg.Start(context.Background())
		if bg.Running() {
			t.Error("Running() = true with zero interval")
		}
	})

	t.Run("publish now", func(t *testing.T) {
		publisher := &trackingPublisher{}
		bg := NewBackgroundPublisher(publisher, time.Hour, summaryFn, nil)

		bg.PublishNow()
		if publisher.summaryCount.Load() != 1 {
			t.Errorf("summaryCount = %d, want 1", publisher.summaryCount.Load())
		}
	})

	t.Run("recovers from panic", func(t *testing.T) {
		bg := NewBackgroundPublisher(NewNoOpPublisher(), time.Hour, func() *types.MonitorSummary {
			panic("boom")
		}, nil)
		bg.PublishNow()
	})

	t.Run("context cancellation", func(t *testing.T) {
		publisher := &trackingPublisher{}
		bg := NewBackgroundPublisher(publisher, 10*time.Millisecond, summaryFn, nil)

		ctx, cancel := context.WithCancel(context.Background())
		bg.Start(ctx)
		time.Sleep(30 * time.Millisecond)
		cancel()
		bg.Stop()

		if publisher.summaryCount.Load() < 1 {
			t.Error("expected at least one publish")
		}
	})
}

func TestNoOpPublisher(t *testing.T) {
	publisher := NewNoOpPublisher()

	publisher.Gauge("test", 1.0, "tag:value")
	publisher.Incr("test", "tag:value")
	publisher.Timing("test", time.Second, "tag:value")
	publisher.Event("title", "text", "info", "tag:value")
	publisher.PublishAlert(testAlert())
	publisher.PublishSummary(testSummary())

	if err := publisher.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestMultiPublisher(t *testing.T) {
	t.Run("empty returns noop", func(t *testing.T) {
		if _, ok := NewMultiPublisher(nil, nil).(*NoOpPublisher); !ok {
			t.Error("NewMultiPublisher() with no publishers is not a NoOpPublisher")
		}
	})

	t.Run("single is unwrapped", func(t *testing.T) {
		p := &trackingPublisher{}
		if got := NewMultiPublisher(nil, p); got != p {
			t.Errorf("NewMultiPublisher() = %T, want the single publisher", got)
		}
	})

	t.Run("fans out", func(t *testing.T) {
		a, b := &trackingPublisher{}, &trackingPublisher{}
		m := NewMultiPublisher(a, b)

		m.Gauge("g", 1)
		m.Incr("c")
		m.Timing("t", time.Millisecond)
		m.Event("e", "text", "info")
		m.PublishAlert(testAlert())
		m.PublishSummary(testSummary())

		for i, p := range []*trackingPublisher{a, b} {
			if p.callCount.Load() != 6 {
				t.Errorf("publisher %d calls = %d, want 6", i, p.callCount.Load())
			}
		}
	})

	t.Run("close joins errors", func(t *testing.T) {
		errA := errors.New("a")
		errB := errors.New("b")
		m := NewMultiPublisher(&trackingPublisher{closeErr: errA}, &trackingPublisher{}, &trackingPublisher{closeErr: errB})

		err := m.Close()
		if !errors.Is(err, errA) || !errors.Is(err, errB) {
			t.Errorf("Close() = %v, want both errors", err)
		}
	})
}

func TestTagHelpers(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{"Tag", func() string { return Tag("key", "value") }, "key:value"},
		{"SourceTag", func() string { return SourceTag(types.SourceRateLimiter) }, "source:rate_limiter"},
		{"SeverityTag", func() string { return SeverityTag(types.SeverityCritical) }, "severity:critical"},
		{"AlertTypeTag", func() string { return AlertTypeTag(types.AlertSlowResponse) }, "alert_type:slow_response"},
		{"IdentifierTag", func() string { return IdentifierTag("users-api") }, "identifier:users-api"},
		{"StatusTag", func() string { return StatusTag("hit") }, "status:hit"},
		{"CircuitStateTag", func() string { return CircuitStateTag("open") }, "circuit_state:open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.fn(); result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}

func TestAlertTags(t *testing.T) {
	a := testAlert()
	tags := AlertTags(a)
	want := []string{"source:circuit_breaker", "severity:critical", "alert_type:circuit_breaker_open", "identifier:upstream"}
	if strings.Join(tags, ",") != strings.Join(want, ",") {
		t.Errorf("AlertTags() = %v, want %v", tags, want)
	}

	a.Identifier = ""
	if len(AlertTags(a)) != 3 {
		t.Errorf("AlertTags() without identifier = %v", AlertTags(a))
	}
}

func TestEventAlertType(t *testing.T) {
	tests := []struct {
		alertType types.AlertType
		severity  types.Severity
		expected  string
	}{
		{types.AlertCircuitOpen, types.SeverityCritical, "error"},
		{types.AlertRequestFailed, types.SeverityError, "error"},
		{types.AlertSlowResponse, types.SeverityWarning, "warning"},
		{types.AlertCircuitRecovered, types.SeverityInfo, "success"},
		{types.AlertRateLimitWarning, types.SeverityInfo, "info"},
	}

	for _, tt := range tests {
		got := EventAlertType(&types.Alert{Type: tt.alertType, Severity: tt.severity})
		if got != tt.expected {
			t.Errorf("EventAlertType(%s, %s) = %q, want %q", tt.alertType, tt.severity, got, tt.expected)
		}
	}
}

func TestTimer(t *testing.T) {
	publisher := &trackingPublisher{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	timer := NewTimerWithClock(publisher, clock, "test.operation", "status:success")
	now = now.Add(250 * time.Millisecond)

	if elapsed := timer.Elapsed(); elapsed != 250*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 250ms", elapsed)
	}

	if d := timer.Stop("identifier:x"); d != 250*time.Millisecond {
		t.Errorf("Stop() = %v, want 250ms", d)
	}
	if publisher.timingCount.Load() != 1 {
		t.Errorf("timingCount = %d, want 1", publisher.timingCount.Load())
	}
	if got := strings.Join(publisher.lastTags(), ","); got != "status:success,identifier:x" {
		t.Errorf("timing tags = %s", got)
	}
}

func TestTimerWallClock(t *testing.T) {
	publisher := &trackingPublisher{}
	timer := NewTimer(publisher, "test.operation")

	time.Sleep(10 * time.Millisecond)

	if d := timer.Stop(); d < 10*time.Millisecond {
		t.Errorf("Stop() = %v, want >= 10ms", d)
	}
}

// Helper for testing publishers
type trackingPublisher struct {
	mu           sync.Mutex
	tags         []string
	closeErr     error
	callCount    atomic.Int64
	summaryCount atomic.Int64
	timingCount  atomic.Int64
}

func (p *trackingPublisher) Gauge(name string, value float64, tags ...string) { p.callCount.Add(1) }
func (p *trackingPublisher) Incr(name string, tags ...string)                 { p.callCount.Add(1) }
func (p *trackingPublisher) Timing(name string, duration time.Duration, tags ...string) {
	p.callCount.Add(1)
	p.timingCount.Add(1)
	p.mu.Lock()
	p.tags = tags
	p.mu.Unlock()
}
func (p *trackingPublisher) Event(title, text, alertType string, tags ...string) { p.callCount.Add(1) }
func (p *trackingPublisher) PublishAlert(alert *types.Alert)                     { p.callCount.Add(1) }
func (p *trackingPublisher) PublishSummary(summary *types.MonitorSummary) {
	p.callCount.Add(1)
	p.summaryCount.Add(1)
}
func (p *trackingPublisher) Close() error { return p.closeErr }

func (p *trackingPublisher) lastTags() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tags
}

var _ types.Publisher = (*trackingPublisher)(nil)
