package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/allegro/bigcache/v3"

	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/types"
)

// StaleStore keeps the last good value per key so it can be served when the
// upstream cannot be called.
type StaleStore interface {
	Put(key string, value any) error
	Load(key string, dest any) error
	Delete(key string) error
	Stats() StaleStats
	Close() error
}

// StaleStats counts stale-store reads and writes.
type StaleStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Writes  int64 `json:"writes"`
	Dropped int64 `json:"dropped"`
	Entries int   `json:"entries"`
}

// BigCacheStore implements StaleStore on top of BigCache. Values are
// serialized, so Load decodes into a fresh destination on every call.
type BigCacheStore struct {
	cache      *bigcache.BigCache
	serializer Serializer
	logger     *slog.Logger

	hits    atomic.Int64
	misses  atomic.Int64
	writes  atomic.Int64
	dropped atomic.Int64

	closed atomic.Bool
}

// NewBigCacheStore creates a stale store. A nil serializer selects JSON.
func NewBigCacheStore(cfg config.StaleConfig, serializer Serializer, logger *slog.Logger) (*BigCacheStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if serializer == nil {
		serializer = NewJSONSerializer()
	}

	s := &BigCacheStore{
		serializer: serializer,
		logger:     logger.With("component", "stale-store"),
	}

	bcConfig := bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         cfg.LifeWindow,
		CleanWindow:        cfg.CleanWindow,
		MaxEntriesInWindow: 1000 * 10 * 60,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: s.logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			if reason == bigcache.NoSpace {
				s.dropped.Add(1)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create stale store: %w", err)
	}

	s.cache = bc
	return s, nil
}

// Put records value as the last good result for key.
func (s *BigCacheStore) Put(key string, value any) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	data, err := s.serializer.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.cache.Set(key, data); err != nil {
		return fmt.Errorf("stale put %q: %w", key, err)
	}

	s.writes.Add(1)
	return nil
}

// Load decodes the last good result for key into dest.
// It returns ErrStaleMiss when nothing is stored.
func (s *BigCacheStore) Load(key string, dest any) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	data, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			s.misses.Add(1)
			return types.ErrStaleMiss
		}
		return fmt.Errorf("stale load %q: %w", key, err)
	}

	if err := s.serializer.Unmarshal(data, dest); err != nil {
		return err
	}

	s.hits.Add(1)
	return nil
}

func (s *BigCacheStore) Delete(key string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return fmt.Errorf("stale delete %q: %w", key, err)
	}
	return nil
}

func (s *BigCacheStore) Stats() StaleStats {
	stats := StaleStats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Writes:  s.writes.Load(),
		Dropped: s.dropped.Load(),
	}
	if !s.closed.Load() {
		stats.Entries = s.cache.Len()
	}
	return stats
}

func (s *BigCacheStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.cache.Close()
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("bigcache: "+format, args...))
}

var _ StaleStore = (*BigCacheStore)(nil)
