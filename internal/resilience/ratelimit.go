package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/LavishGent/bulwark/internal/config"
)

// RateLimitResult is the outcome of RateLimiter.CheckLimit.
type RateLimitResult struct {
	Identifier string
	// ResetTime is when the oldest counted sub-window leaves the period.
	ResetTime   time.Time
	WindowStart time.Time
	// RetryAfter is only set when the request was denied.
	RetryAfter   time.Duration
	Remaining    int
	Limit        int
	CurrentUsage int
	Allowed      bool
}

// UsageRatio returns the consumed fraction of the limit including this request.
func (r RateLimitResult) UsageRatio() float64 {
	if r.Limit <= 0 {
		return 0
	}
	return float64(r.Limit-r.Remaining) / float64(r.Limit)
}

// LimiterStats describes one identifier's current window table.
type LimiterStats struct {
	Identifier    string    `json:"identifier"`
	CurrentUsage  int       `json:"currentUsage"`
	Limit         int       `json:"limit"`
	ActiveWindows int       `json:"activeWindows"`
	OldestWindow  time.Time `json:"oldestWindow"`
	NewestWindow  time.Time `json:"newestWindow"`
}

// RateLimiter is a sliding-window limiter: time is cut into sub-windows of
// cfg.Window and a request is admitted while the sum over the rolling
// cfg.Period stays below cfg.MaxRequests.
type RateLimiter struct {
	cfg    config.RateLimitConfig
	store  WindowStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRateLimiter validates cfg. A nil store selects a MemoryWindowStore.
func NewRateLimiter(cfg config.RateLimitConfig, store WindowStore, logger *slog.Logger, opts ...Option) (*RateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = NewMemoryWindowStore()
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := applyOptions(opts)
	return &RateLimiter{
		cfg:    cfg.WithBurstDefaults(),
		store:  store,
		logger: logger.With("component", "rate-limiter"),
		now:    o.now,
	}, nil
}

// Config returns the limiter configuration with burst defaults applied.
// Burst fields are informational and not enforced.
func (l *RateLimiter) Config() config.RateLimitConfig {
	return l.cfg
}

func (l *RateLimiter) windowStart(now time.Time) time.Time {
	return now.Truncate(l.cfg.Window)
}

// CheckLimit decides whether identifier may make one more request. With
// consume false the decision is reported without recording a request.
// Store errors are returned as-is; the result is then not meaningful.
func (l *RateLimiter) CheckLimit(ctx context.Context, identifier string, consume bool) (RateLimitResult, error) {
	now := l.now()
	window := l.windowStart(now)

	state, err := l.store.Check(ctx, identifier, WindowRequest{
		Window:  window,
		Cutoff:  now.Add(-l.cfg.Period),
		Limit:   l.cfg.MaxRequests,
		Consume: consume,
		TTL:     l.cfg.Period + l.cfg.Window,
	})
	if err != nil {
		l.logger.Warn("Window store check failed", "identifier", identifier, "error", err)
		return RateLimitResult{}, err
	}

	allowed := state.Usage < l.cfg.MaxRequests
	used := state.Usage
	if state.Consumed {
		used++
	}

	oldest := window
	if !state.Oldest.IsZero() {
		oldest = state.Oldest
	}

	result := RateLimitResult{
		Identifier:   identifier,
		Allowed:      allowed,
		Remaining:    max(0, l.cfg.MaxRequests-used),
		Limit:        l.cfg.MaxRequests,
		CurrentUsage: used,
		ResetTime:    oldest.Add(l.cfg.Period),
		WindowStart:  window,
	}

	if !allowed {
		result.RetryAfter = max(oldest.Add(l.cfg.Period).Sub(now), time.Millisecond)
		l.logger.Debug("Rate limit exceeded",
			"identifier", identifier,
			"usage", state.Usage,
			"limit", l.cfg.MaxRequests,
			"retryAfter", result.RetryAfter,
		)
	}

	return result, nil
}

// Stats reports identifier's usage without recording a request.
func (l *RateLimiter) Stats(ctx context.Context, identifier string) (LimiterStats, error) {
	state, err := l.store.Snapshot(ctx, identifier, l.now().Add(-l.cfg.Period))
	if err != nil {
		return LimiterStats{}, err
	}

	return LimiterStats{
		Identifier:    identifier,
		CurrentUsage:  state.Usage,
		Limit:         l.cfg.MaxRequests,
		ActiveWindows: state.Windows,
		OldestWindow:  state.Oldest,
		NewestWindow:  state.Newest,
	}, nil
}

// Reset clears every identifier's window table.
func (l *RateLimiter) Reset(ctx context.Context) error {
	if err := l.store.Reset(ctx); err != nil {
		return err
	}
	l.logger.Info("Rate limiter reset")
	return nil
}

// Close releases the window store.
func (l *RateLimiter) Close() error {
	return l.store.Close()
}
