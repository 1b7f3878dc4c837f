package bulwark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/LavishGent/bulwark/internal/cache"
	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/guard"
	"github.com/LavishGent/bulwark/internal/metrics"
	"github.com/LavishGent/bulwark/internal/metrics/datadog"
	"github.com/LavishGent/bulwark/internal/monitor"
	"github.com/LavishGent/bulwark/internal/resilience"
	"github.com/LavishGent/bulwark/internal/types"
)

// Breaker is a circuit breaker owned by a Client.
type Breaker interface {
	Name() string
	Execute(ctx context.Context, op resilience.Operation) resilience.ExecutionResult
	State() resilience.State
	Metrics() resilience.Metrics
	Reset()
	SetOnStateChange(fn func(from, to resilience.State))
}

// Limiter is the rate limiter owned by a Client.
type Limiter interface {
	CheckLimit(ctx context.Context, identifier string, consume bool) (resilience.RateLimitResult, error)
	Stats(ctx context.Context, identifier string) (resilience.LimiterStats, error)
	GenerateHeaders(result resilience.RateLimitResult) http.Header
	Reset(ctx context.Context) error
	Close() error
}

var (
	_ Breaker = (*resilience.CircuitBreaker)(nil)
	_ Breaker = (*resilience.DisabledCircuitBreaker)(nil)
	_ Limiter = (*resilience.RateLimiter)(nil)
	_ Limiter = (*resilience.DisabledRateLimiter)(nil)
)

// Client owns the caches, breakers, limiter, monitor and publishers protecting
// one upstream. It is safe for concurrent use. Call Shutdown when done.
type Client struct {
	cfg       *config.Config
	root      *slog.Logger
	logger    *slog.Logger
	now       func() time.Time
	publisher types.Publisher
	factory   *cache.Factory
	limiter   Limiter
	monitor   *monitor.Monitor
	stale     cache.StaleStore

	mu       sync.Mutex
	breakers map[string]Breaker
	closed   bool
}

func newClient(cfg *config.Config, o *clientOptions) (c *Client, err error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := o.now
	if now == nil {
		now = time.Now
	}

	c = &Client{
		cfg:      cfg,
		root:     logger,
		logger:   logger.With("component", "bulwark", "upstream", cfg.Name),
		now:      now,
		breakers: make(map[string]Breaker),
	}

	// Release whatever was built if a later step fails.
	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}()

	publishers := []types.Publisher{o.publisher}
	if cfg.Metrics.Enabled {
		dd, err := datadog.NewPublisher(cfg.Metrics.DataDog, logger)
		if err != nil {
			return nil, fmt.Errorf("datadog publisher: %w", err)
		}
		publishers = append(publishers, dd)

		ot, err := metrics.NewOTelPublisherFromConfig(cfg.Metrics.OTel, logger)
		if err != nil {
			_ = dd.Close()
			return nil, fmt.Errorf("otel publisher: %w", err)
		}
		publishers = append(publishers, ot)
	}
	c.publisher = metrics.NewMultiPublisher(publishers...)
	closers = append(closers, c.publisher.Close)

	c.limiter, err = newLimiter(cfg, o, logger, now)
	if err != nil {
		return nil, err
	}
	closers = append(closers, c.limiter.Close)

	c.monitor, err = monitor.New(cfg.Monitoring, c.publisher, logger, monitor.WithClock(now))
	if err != nil {
		return nil, err
	}
	closers = append(closers, c.monitor.Close)

	if cfg.Stale.Enabled {
		stale, err := cache.NewBigCacheStore(cfg.Stale, cache.NewJSONSerializer(), logger)
		if err != nil {
			return nil, err
		}
		c.stale = stale
	} else {
		c.stale = cache.NewDisabledStaleStore()
	}

	factoryOpts := []cache.FactoryOption{cache.WithCacheOptions(cache.WithClock(now))}
	if o.getenv != nil {
		factoryOpts = append(factoryOpts, cache.WithEnvLookup(o.getenv))
	}
	c.factory = cache.NewFactory(logger, factoryOpts...)

	c.logger.Info("Client ready",
		"cache", cfg.Cache.Enabled,
		"circuitBreaker", cfg.CircuitBreaker.Enabled,
		"rateLimit", cfg.RateLimit.Enabled,
		"redis", cfg.Redis.Enabled || o.redis != nil,
		"monitoring", cfg.Monitoring.Enabled,
	)
	return c, nil
}

func newLimiter(cfg *config.Config, o *clientOptions, logger *slog.Logger, now func() time.Time) (Limiter, error) {
	if !cfg.RateLimit.Enabled {
		return resilience.NewDisabledRateLimiter(), nil
	}

	var store resilience.WindowStore
	switch {
	case o.redis != nil:
		store = resilience.NewRedisWindowStoreFromClient(o.redis, cfg.Redis.KeyPrefix, logger)
	case cfg.Redis.Enabled:
		ctx, cancel := context.WithTimeout(context.Background(), max(cfg.Redis.DialTimeout, time.Second))
		defer cancel()
		rs, err := resilience.NewRedisWindowStore(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		store = rs
	}

	limiter, err := resilience.NewRateLimiter(cfg.RateLimit, store, logger, resilience.WithClock(now))
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return limiter, nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Breaker returns the circuit breaker for name, creating it on first use.
// An empty name selects the configured upstream name.
func (c *Client) Breaker(name string) (Breaker, error) {
	if name == "" {
		name = c.cfg.Name
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, types.ErrClosed
	}
	if b, ok := c.breakers[name]; ok {
		return b, nil
	}

	if !c.cfg.CircuitBreaker.Enabled {
		b := resilience.NewDisabledCircuitBreaker(name)
		c.breakers[name] = b
		return b, nil
	}

	cb, err := resilience.NewCircuitBreaker(name, c.cfg.CircuitBreaker, c.root, resilience.WithClock(c.now))
	if err != nil {
		return nil, err
	}
	cb.SetOnStateChange(func(from, to resilience.State) {
		c.publisher.Incr("circuit.transition",
			metrics.IdentifierTag(name),
			metrics.CircuitStateTag(to.String()),
		)
		c.publisher.Event(
			fmt.Sprintf("Circuit %s %s", name, to),
			fmt.Sprintf("Circuit breaker %s moved from %s to %s", name, from, to),
			transitionEventType(to),
			metrics.IdentifierTag(name),
			metrics.CircuitStateTag(to.String()),
		)
		c.monitor.RecordCircuitBreaker(name, cb.Metrics())
	})
	c.breakers[name] = cb
	return cb, nil
}

func transitionEventType(to resilience.State) string {
	switch to {
	case resilience.StateOpen:
		return "error"
	case resilience.StateHalfOpen:
		return "warning"
	default:
		return "success"
	}
}

// Breakers returns a snapshot of every breaker created so far.
func (c *Client) Breakers() map[string]resilience.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]resilience.Metrics, len(c.breakers))
	for name, b := range c.breakers {
		out[name] = b.Metrics()
	}
	return out
}

// Limiter returns the shared rate limiter.
func (c *Client) Limiter() Limiter {
	return c.limiter
}

// RateLimitHeaders renders result as X-RateLimit-* response headers.
func (c *Client) RateLimitHeaders(result resilience.RateLimitResult) http.Header {
	return c.limiter.GenerateHeaders(result)
}

// Monitor returns the alert recorder.
func (c *Client) Monitor() *monitor.Monitor {
	return c.monitor
}

// Publisher returns the combined publisher every component reports to.
func (c *Client) Publisher() Publisher {
	return c.publisher
}

// Health returns the monitor's derived health view.
func (c *Client) Health() HealthReport {
	return c.monitor.Health()
}

// IsHealthy reports whether no source is in a warning or critical state.
func (c *Client) IsHealthy() bool {
	return c.monitor.Health().Healthy
}

// Summary returns a snapshot of health, API metrics and alert counts.
func (c *Client) Summary() *MonitorSummary {
	return c.monitor.Summary()
}

// CacheStats returns stats for every cache the client has built.
func (c *Client) CacheStats() map[string]cache.Stats {
	return c.factory.AllStats()
}

// StaleStats returns stale-store counters.
func (c *Client) StaleStats() cache.StaleStats {
	return c.stale.Stats()
}

// Shutdown stops the monitor and cache background loops, releases the stale
// store and limiter store, and closes the publishers. It is safe to call more
// than once.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		// Final summary goes out before the publishers close.
		if c.monitor.Enabled() && c.cfg.Monitoring.EmitEvents {
			c.publisher.PublishSummary(c.monitor.Summary())
		}
		done <- errors.Join(
			c.monitor.Close(),
			c.factory.Shutdown(),
			c.stale.Close(),
			c.limiter.Close(),
			c.publisher.Close(),
		)
	}()

	select {
	case err := <-done:
		c.logger.Info("Client shut down")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// NewGuard builds a guard for the named upstream with its own response cache
// of cacheType. An empty name selects the configured upstream name and an
// empty cacheType the configured cache type. When caching is disabled the
// guard still limits, breaks and falls back to stale values.
func NewGuard[V any](c *Client, name, cacheType string) (*Guard[V], error) {
	if c.isClosed() {
		return nil, types.ErrClosed
	}
	if name == "" {
		name = c.cfg.Name
	}

	var responses *cache.Cache[V]
	if c.cfg.Cache.Enabled {
		if cacheType == "" {
			cacheType = c.cfg.Cache.Type
		}
		var err error
		responses, err = cache.CreateCache[V](c.factory, cacheType, c.cfg.Cache.Overrides)
		if err != nil {
			return nil, err
		}
	}

	breaker, err := c.Breaker(name)
	if err != nil {
		return nil, err
	}

	return guard.New(name, responses, guard.Components{
		Limiter:   c.limiter,
		Breaker:   breaker,
		Monitor:   c.monitor,
		Stale:     c.stale,
		Publisher: c.publisher,
		Logger:    c.root,
		Now:       c.now,
	}), nil
}

// NewCache builds a standalone cache of cacheType tracked by the client's
// factory, with env and config overrides applied.
func NewCache[V any](c *Client, cacheType string) (*Cache[V], error) {
	if cacheType == "" {
		cacheType = c.cfg.Cache.Type
	}
	return cache.CreateCache[V](c.factory, cacheType, c.cfg.Cache.Overrides)
}

// SharedCache returns the single cache of cacheType shared by every caller
// asking for the same value type.
func SharedCache[V any](c *Client, cacheType string) (*Cache[V], error) {
	if cacheType == "" {
		cacheType = c.cfg.Cache.Type
	}
	return cache.GetOrCreateCache[V](c.factory, cacheType, c.cfg.Cache.Overrides)
}
