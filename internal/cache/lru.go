// Package cache provides the in-process response caches: a generic TTL/LRU
// cache, a preset-driven factory, and a long-lived stale store.
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/bulwark/internal/config"
)

type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	ttl       time.Duration
	size      int64
}

func (e *entry[V]) expired(now time.Time) bool {
	return e.ttl <= 0 || now.Sub(e.createdAt) > e.ttl
}

// Stats is a point-in-time snapshot of a cache.
type Stats struct {
	Size            int     `json:"size"`
	MaxSize         int     `json:"maxSize"`
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	Evictions       int64   `json:"evictions"`
	Expired         int64   `json:"expired"`
	Cleanups        int64   `json:"cleanups"`
	MemoryUsage     int64   `json:"memoryUsage"`
	MemoryThreshold int64   `json:"memoryThreshold"`
	HitRatio        float64 `json:"hitRatio"`
}

// Option configures a Cache.
type Option func(*settings)

type settings struct {
	now func() time.Time
}

// WithClock replaces time.Now. Used by tests to advance time deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Cache is a TTL/LRU cache bounded by entry count and an estimated memory budget.
// The front of the list is the least recently used entry.
type Cache[V any] struct {
	opts   config.CacheOptions
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	items       map[string]*list.Element
	order       *list.List
	memoryUsage int64
	hits        int64
	misses      int64
	evictions   int64
	expired     int64
	cleanups    int64

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a cache and starts its background expiry loop when
// opts.CleanupInterval is positive. Call Close to stop the loop.
func New[V any](opts config.CacheOptions, logger *slog.Logger, options ...Option) *Cache[V] {
	if logger == nil {
		logger = slog.Default()
	}

	s := settings{now: time.Now}
	for _, opt := range options {
		opt(&s)
	}

	c := &Cache[V]{
		opts:   opts,
		logger: logger.With("component", "lru-cache"),
		now:    s.now,
		items:  make(map[string]*list.Element),
		order:  list.New(),
		stopCh: make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.cleanupLoop(opts.CleanupInterval)
	}

	return c
}

// Get returns the value for key and marks it most recently used.
// Unknown and expired keys count as misses; expired entries are removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	e := el.Value.(*entry[V])
	if e.expired(c.now()) {
		c.removeElement(el)
		c.expired++
		c.misses++
		return zero, false
	}

	c.hits++
	c.order.MoveToBack(el)
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.opts.DefaultTTL)
}

// SetWithTTL stores value under key. A ttl <= 0 stores an entry that is
// already expired and will never be returned.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	size := estimateEntrySize(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		c.memoryUsage += size - e.size
		e.value = value
		e.createdAt = now
		e.ttl = ttl
		e.size = size
		c.order.MoveToBack(el)
	} else {
		if c.opts.MaxSize > 0 && c.order.Len() >= c.opts.MaxSize {
			c.evictOldest("capacity")
		}
		e := &entry[V]{
			key:       key,
			value:     value,
			createdAt: now,
			ttl:       ttl,
			size:      size,
		}
		c.items[key] = c.order.PushBack(e)
		c.memoryUsage += size
	}

	if c.opts.MemoryThreshold > 0 && c.memoryUsage > c.opts.MemoryThreshold {
		c.reclaimMemory(now)
	}
}

// Has reports whether key holds a live entry without touching its recency.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if el.Value.(*entry[V]).expired(c.now()) {
		c.removeElement(el)
		c.expired++
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Clear removes every entry and resets all counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.memoryUsage = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.expired = 0
	c.cleanups = 0
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.purgeExpired(c.now())
	c.cleanups++
	return removed
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the stored keys from least to most recently used.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Stats returns a snapshot of the cache counters and its hit ratio.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ratio float64
	if total := c.hits + c.misses; total > 0 {
		ratio = float64(c.hits) / float64(total)
	}

	return Stats{
		Size:            c.order.Len(),
		MaxSize:         c.opts.MaxSize,
		Hits:            c.hits,
		Misses:          c.misses,
		Evictions:       c.evictions,
		Expired:         c.expired,
		Cleanups:        c.cleanups,
		MemoryUsage:     c.memoryUsage,
		MemoryThreshold: c.opts.MemoryThreshold,
		HitRatio:        ratio,
	}
}

// Options returns the resolved options the cache was built with.
func (c *Cache[V]) Options() config.CacheOptions {
	return c.opts
}

// Close stops the background expiry loop. The cache stays usable.
func (c *Cache[V]) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	return nil
}

func (c *Cache[V]) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if removed := c.Cleanup(); removed > 0 && c.opts.Debug {
				c.logger.Debug("Removed expired entries", "count", removed)
			}
		}
	}
}

// reclaimMemory runs with c.mu held.
func (c *Cache[V]) reclaimMemory(now time.Time) {
	before := c.memoryUsage
	c.purgeExpired(now)
	for c.memoryUsage > c.opts.MemoryThreshold && c.order.Len() > 0 {
		c.evictOldest("memory")
	}
	c.cleanups++

	c.logger.Debug("Memory threshold exceeded",
		"before", before,
		"after", c.memoryUsage,
		"threshold", c.opts.MemoryThreshold,
	)
}

// purgeExpired runs with c.mu held.
func (c *Cache[V]) purgeExpired(now time.Time) int {
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry[V]).expired(now) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	c.expired += int64(removed)
	return removed
}

// evictOldest runs with c.mu held.
func (c *Cache[V]) evictOldest(reason string) {
	el := c.order.Front()
	if el == nil {
		return
	}
	e := c.removeElement(el)
	c.evictions++

	if c.opts.Debug {
		c.logger.Debug("Evicted entry", "key", e.key, "reason", reason, "bytes", e.size)
	}
}

func (c *Cache[V]) removeElement(el *list.Element) *entry[V] {
	e := c.order.Remove(el).(*entry[V])
	delete(c.items, e.key)
	c.memoryUsage -= e.size
	return e
}
