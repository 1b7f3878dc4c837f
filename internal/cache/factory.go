package cache

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/types"
)

// Cache types understood by the factory.
const (
	TypeDefault     = "default"
	TypeAPIResponse = "api-response"
	TypeSearch      = "search"
	TypeMetadata    = "metadata"
	TypeSession     = "session"
)

var presets = map[string]config.CacheOptions{
	TypeDefault: config.DefaultCacheOptions(),
	TypeAPIResponse: {
		MaxSize:         500,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
		MemoryThreshold: 25 * 1024 * 1024,
	},
	TypeSearch: {
		MaxSize:         200,
		DefaultTTL:      2 * time.Minute,
		CleanupInterval: 30 * time.Second,
		MemoryThreshold: 10 * 1024 * 1024,
	},
	TypeMetadata: {
		MaxSize:         1000,
		DefaultTTL:      30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MemoryThreshold: 20 * 1024 * 1024,
	},
	TypeSession: {
		MaxSize:         100,
		DefaultTTL:      time.Hour,
		CleanupInterval: 5 * time.Minute,
		MemoryThreshold: 5 * 1024 * 1024,
	},
}

// Preset returns the built-in options for cacheType.
func Preset(cacheType string) (config.CacheOptions, bool) {
	opts, ok := presets[cacheType]
	return opts, ok
}

// PresetTypes returns the known cache types in sorted order.
func PresetTypes() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// managed is the type-erased view of a Cache the factory keeps for
// aggregate operations.
type managed interface {
	Cleanup() int
	Clear()
	Stats() Stats
	Close() error
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithEnvLookup replaces os.Getenv for per-type overrides.
func WithEnvLookup(getenv func(string) string) FactoryOption {
	return func(f *Factory) {
		if getenv != nil {
			f.getenv = getenv
		}
	}
}

// WithCacheOptions applies options to every cache the factory builds.
func WithCacheOptions(opts ...Option) FactoryOption {
	return func(f *Factory) {
		f.cacheOpts = append(f.cacheOpts, opts...)
	}
}

// Factory builds caches from named presets and tracks them for aggregate
// stats, cleanup and shutdown.
type Factory struct {
	logger    *slog.Logger
	getenv    func(string) string
	cacheOpts []Option

	mu         sync.Mutex
	singletons map[string]managed
	created    []namedCache
	closed     bool
}

type namedCache struct {
	name  string
	cache managed
}

// NewFactory returns a factory with no caches. A nil logger uses slog.Default.
func NewFactory(logger *slog.Logger, opts ...FactoryOption) *Factory {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Factory{
		logger:     logger.With("component", "cache-factory"),
		getenv:     os.Getenv,
		singletons: make(map[string]managed),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve returns the options for cacheType after applying environment
// settings and then overrides on top of the preset.
func (f *Factory) Resolve(cacheType string, overrides config.CacheOptions) (config.CacheOptions, error) {
	preset, ok := presets[cacheType]
	if !ok {
		return config.CacheOptions{}, fmt.Errorf("%w: %w", types.ErrUnknownCacheType,
			types.NewConfigError("cache-factory", "type", fmt.Sprintf("%q is not a known cache type", cacheType)))
	}

	opts := config.ApplyCacheEnv(cacheType, preset, f.getenv).Merge(overrides)
	if err := opts.Validate(); err != nil {
		return config.CacheOptions{}, err
	}
	return opts, nil
}

// CreateCache always builds a new cache of the given type.
func CreateCache[V any](f *Factory, cacheType string, overrides config.CacheOptions) (*Cache[V], error) {
	opts, err := f.Resolve(cacheType, overrides)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, types.ErrClosed
	}

	c := New[V](opts, f.logger, f.cacheOpts...)
	f.created = append(f.created, namedCache{name: cacheType, cache: c})

	f.logger.Debug("Created cache",
		"type", cacheType,
		"maxSize", opts.MaxSize,
		"ttl", opts.DefaultTTL,
	)
	return c, nil
}

// GetOrCreateCache returns the shared cache for cacheType, building it on the
// first call. Overrides passed after the first call are ignored.
func GetOrCreateCache[V any](f *Factory, cacheType string, overrides config.CacheOptions) (*Cache[V], error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, types.ErrClosed
	}
	if existing, ok := f.singletons[cacheType]; ok {
		f.mu.Unlock()
		c, ok := existing.(*Cache[V])
		if !ok {
			return nil, fmt.Errorf("cache type %q already holds %T", cacheType, existing)
		}
		return c, nil
	}
	f.mu.Unlock()

	opts, err := f.Resolve(cacheType, overrides)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, types.ErrClosed
	}
	// Lost a race with another caller
	if existing, ok := f.singletons[cacheType]; ok {
		c, ok := existing.(*Cache[V])
		if !ok {
			return nil, fmt.Errorf("cache type %q already holds %T", cacheType, existing)
		}
		return c, nil
	}

	c := New[V](opts, f.logger, f.cacheOpts...)
	f.singletons[cacheType] = c
	f.created = append(f.created, namedCache{name: cacheType, cache: c})
	return c, nil
}

// WarmCache preloads entries. A ttl <= 0 uses the cache's default TTL.
// It returns the number of entries written.
func WarmCache[V any](c *Cache[V], entries map[string]V, ttl time.Duration) int {
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}
	for key, value := range entries {
		c.SetWithTTL(key, value, ttl)
	}
	return len(entries)
}

// AllStats returns stats for every cache the factory built, keyed by type.
// Caches created more than once for a type get a "#n" suffix.
func (f *Factory) AllStats() map[string]Stats {
	f.mu.Lock()
	caches := append([]namedCache(nil), f.created...)
	f.mu.Unlock()

	stats := make(map[string]Stats, len(caches))
	for _, nc := range caches {
		key := nc.name
		for n := 2; ; n++ {
			if _, taken := stats[key]; !taken {
				break
			}
			key = fmt.Sprintf("%s#%d", nc.name, n)
		}
		stats[key] = nc.cache.Stats()
	}
	return stats
}

// CleanupAll sweeps expired entries from every cache and returns the total removed.
func (f *Factory) CleanupAll() int {
	f.mu.Lock()
	caches := append([]namedCache(nil), f.created...)
	f.mu.Unlock()

	total := 0
	for _, nc := range caches {
		total += nc.cache.Cleanup()
	}
	return total
}

// Shutdown stops every cache's background loop and clears it.
// The factory refuses to build caches afterwards.
func (f *Factory) Shutdown() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	caches := f.created
	f.created = nil
	f.singletons = make(map[string]managed)
	f.mu.Unlock()

	for _, nc := range caches {
		_ = nc.cache.Close()
		nc.cache.Clear()
	}

	f.logger.Debug("Cache factory shut down", "caches", len(caches))
	return nil
}
