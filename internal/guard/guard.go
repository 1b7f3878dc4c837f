// Package guard runs upstream calls through the response cache, the rate
// limiter and the circuit breaker, reports every outcome to the monitor and
// falls back to the last good response when the call cannot be made.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/bulwark/internal/cache"
	"github.com/LavishGent/bulwark/internal/metrics"
	"github.com/LavishGent/bulwark/internal/resilience"
	"github.com/LavishGent/bulwark/internal/types"
)

// Breaker is the part of a circuit breaker the guard drives.
type Breaker interface {
	Name() string
	Execute(ctx context.Context, op resilience.Operation) resilience.ExecutionResult
	Metrics() resilience.Metrics
}

// Limiter is the part of a rate limiter the guard drives.
type Limiter interface {
	CheckLimit(ctx context.Context, identifier string, consume bool) (resilience.RateLimitResult, error)
}

// Recorder receives the signals the guard observes. *monitor.Monitor implements it.
type Recorder interface {
	RecordRateLimit(id string, result resilience.RateLimitResult)
	RecordCircuitBreaker(id string, m resilience.Metrics)
	RecordAPIRequest(duration time.Duration, success bool, label string)
}

// Fetch calls the upstream.
type Fetch[V any] func(ctx context.Context) (V, error)

// Source says where a Result's value came from.
type Source int

const (
	SourceNone Source = iota
	SourceCache
	SourceUpstream
	SourceStale
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceUpstream:
		return "upstream"
	case SourceStale:
		return "stale"
	default:
		return "none"
	}
}

// Result is the outcome of one guarded call. When Source is SourceStale, Err
// holds the reason the upstream was not used.
type Result[V any] struct {
	Value  V
	Err    error
	Source Source
	// Shared is true when the value came from another in-flight call for the same key.
	Shared bool
}

// Components are the collaborators of a Guard. Nil fields get no-op defaults.
type Components struct {
	Limiter   Limiter
	Breaker   Breaker
	Monitor   Recorder
	Stale     cache.StaleStore
	Publisher types.Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Guard protects calls to one upstream, identified by name for the limiter,
// breaker and monitor.
type Guard[V any] struct {
	name      string
	cache     *cache.Cache[V]
	limiter   Limiter
	breaker   Breaker
	monitor   Recorder
	stale     cache.StaleStore
	publisher types.Publisher
	logger    *slog.Logger
	now       func() time.Time
	group     singleflight.Group
}

// New creates a guard. A nil c disables response caching.
func New[V any](name string, c *cache.Cache[V], comp Components) *Guard[V] {
	g := &Guard[V]{
		name:      name,
		cache:     c,
		limiter:   comp.Limiter,
		breaker:   comp.Breaker,
		monitor:   comp.Monitor,
		stale:     comp.Stale,
		publisher: comp.Publisher,
		logger:    comp.Logger,
		now:       comp.Now,
	}

	if g.limiter == nil {
		g.limiter = resilience.NewDisabledRateLimiter()
	}
	if g.breaker == nil {
		g.breaker = resilience.NewDisabledCircuitBreaker(name)
	}
	if g.monitor == nil {
		g.monitor = noopRecorder{}
	}
	if g.stale == nil {
		g.stale = cache.NewDisabledStaleStore()
	}
	if g.publisher == nil {
		g.publisher = metrics.NewNoOpPublisher()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "guard", "upstream", name)
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Name returns the upstream identifier.
func (g *Guard[V]) Name() string {
	return g.name
}

// Cache returns the response cache, or nil when caching is off.
func (g *Guard[V]) Cache() *cache.Cache[V] {
	return g.cache
}

// Do returns the value for key, from the cache when fresh and from the
// upstream otherwise. An empty key skips caching and request collapsing.
// Concurrent misses on one key share a single upstream call that is not
// cancelled when any one caller's ctx is; a caller whose ctx ends first
// returns ctx.Err().
// A stale value is returned without error when the upstream could not be used.
func (g *Guard[V]) Do(ctx context.Context, key string, fetch Fetch[V]) (V, error) {
	res := g.Execute(ctx, key, fetch)
	if res.Source == SourceStale {
		return res.Value, nil
	}
	return res.Value, res.Err
}

// Execute is Do with the full outcome.
func (g *Guard[V]) Execute(ctx context.Context, key string, fetch Fetch[V]) Result[V] {
	if g.cache != nil && key != "" {
		if v, ok := g.cache.Get(key); ok {
			g.publisher.Incr("cache.hit", metrics.IdentifierTag(g.name))
			return Result[V]{Value: v, Source: SourceCache}
		}
		g.publisher.Incr("cache.miss", metrics.IdentifierTag(g.name))
	}

	if key == "" {
		return g.call(ctx, key, fetch)
	}

	// The collapsed call outlives any single caller, so it runs detached from
	// the caller's cancellation and each caller waits on its own ctx.
	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		if g.cache != nil {
			if v, ok := g.cache.Get(key); ok {
				return Result[V]{Value: v, Source: SourceCache}, nil
			}
		}
		return g.call(detached, key, fetch), nil
	})

	select {
	case out := <-ch:
		res := out.Val.(Result[V])
		res.Shared = out.Shared
		return res
	case <-ctx.Done():
		g.publisher.Incr("request.abandoned", metrics.IdentifierTag(g.name))
		return Result[V]{Err: ctx.Err()}
	}
}

// call runs one upstream attempt: limiter admission, breaker execution,
// monitor reporting and write-back.
func (g *Guard[V]) call(ctx context.Context, key string, fetch Fetch[V]) Result[V] {
	rl, err := g.limiter.CheckLimit(ctx, g.name, true)
	switch {
	case err != nil:
		// Fail open while the window store is unreachable.
		g.logger.Warn("Rate limiter unavailable, admitting request", "error", err)
		g.publisher.Incr("ratelimit.store_error", metrics.IdentifierTag(g.name))
	default:
		g.monitor.RecordRateLimit(g.name, rl)
		if !rl.Allowed {
			g.publisher.Incr("request.denied", metrics.IdentifierTag(g.name), metrics.Tag("reason", "rate_limited"))
			return g.fallback(key, rl.Denial())
		}
	}

	timer := metrics.NewTimerWithClock(g.publisher, g.now, "upstream.request", metrics.IdentifierTag(g.name))
	exec := g.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	g.monitor.RecordCircuitBreaker(g.name, g.breaker.Metrics())

	if !exec.Allowed {
		g.publisher.Incr("request.denied", metrics.IdentifierTag(g.name), metrics.Tag("reason", "circuit_open"))
		return g.fallback(key, exec.Denial(g.breaker.Name()))
	}

	if exec.Err != nil {
		duration := timer.Stop(metrics.StatusTag("failure"))
		g.monitor.RecordAPIRequest(duration, false, g.name)
		g.logger.Debug("Upstream call failed", "key", key, "state", exec.State, "error", exec.Err)
		return g.fallback(key, exec.Err)
	}

	duration := timer.Stop(metrics.StatusTag("success"))
	g.monitor.RecordAPIRequest(duration, true, g.name)

	v, _ := exec.Value.(V)
	if key != "" {
		if g.cache != nil {
			g.cache.Set(key, v)
		}
		if err := g.stale.Put(key, v); err != nil {
			g.logger.Debug("Failed to store stale copy", "key", key, "error", err)
		}
	}
	return Result[V]{Value: v, Source: SourceUpstream}
}

// fallback serves the last good value for key when one exists, otherwise
// returns cause.
func (g *Guard[V]) fallback(key string, cause error) Result[V] {
	if key == "" {
		return Result[V]{Err: cause}
	}

	var v V
	err := g.stale.Load(key, &v)
	if err != nil {
		if !errors.Is(err, types.ErrStaleMiss) {
			g.logger.Debug("Failed to read stale copy", "key", key, "error", err)
		}
		return Result[V]{Err: cause}
	}

	g.logger.Info("Serving stale value", "key", key, "reason", cause)
	g.publisher.Incr("stale.served", metrics.IdentifierTag(g.name))
	return Result[V]{Value: v, Err: cause, Source: SourceStale}
}

type noopRecorder struct{}

func (noopRecorder) RecordRateLimit(string, resilience.RateLimitResult) {}
func (noopRecorder) RecordCircuitBreaker(string, resilience.Metrics)    {}
func (noopRecorder) RecordAPIRequest(time.Duration, bool, string)       {}
