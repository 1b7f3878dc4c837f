package resilience

import (
	"context"
	"sync"
	"time"
)

// WindowRequest asks a store to admit one request against an identifier's
// sub-window table.
type WindowRequest struct {
	// Window is the start of the sub-window the request falls into.
	Window time.Time
	// Windows starting at or before Cutoff are purged first.
	Cutoff  time.Time
	Limit   int
	Consume bool
	// TTL bounds how long an idle identifier's table is retained.
	TTL time.Duration
}

// WindowState describes an identifier's table after a check.
// Usage is the sum before any increment made by the check.
type WindowState struct {
	Oldest   time.Time
	Newest   time.Time
	Usage    int
	Windows  int
	Consumed bool
}

// WindowStore holds sub-window counts per identifier. Check must purge, sum
// and conditionally increment atomically with respect to other callers.
type WindowStore interface {
	Check(ctx context.Context, identifier string, req WindowRequest) (WindowState, error)
	Snapshot(ctx context.Context, identifier string, cutoff time.Time) (WindowState, error)
	Reset(ctx context.Context) error
	Close() error
}

// MemoryWindowStore keeps window tables in process memory.
type MemoryWindowStore struct {
	mu     sync.Mutex
	tables map[string]map[int64]int
}

// NewMemoryWindowStore returns an empty in-process store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{
		tables: make(map[string]map[int64]int),
	}
}

func (s *MemoryWindowStore) Check(ctx context.Context, identifier string, req WindowRequest) (WindowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.purge(identifier, req.Cutoff)
	state := summarize(table)

	if req.Consume && state.Usage < req.Limit {
		if table == nil {
			table = make(map[int64]int)
			s.tables[identifier] = table
		}
		key := req.Window.UnixMilli()
		table[key]++
		state = summarize(table)
		state.Usage--
		state.Consumed = true
	}

	return state, nil
}

func (s *MemoryWindowStore) Snapshot(ctx context.Context, identifier string, cutoff time.Time) (WindowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return summarize(s.purge(identifier, cutoff)), nil
}

func (s *MemoryWindowStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = make(map[string]map[int64]int)
	return nil
}

func (s *MemoryWindowStore) Close() error {
	return nil
}

// purge drops windows starting at or before cutoff; the period boundary is
// exclusive. It must be called while holding the mutex.
func (s *MemoryWindowStore) purge(identifier string, cutoff time.Time) map[int64]int {
	table, ok := s.tables[identifier]
	if !ok {
		return nil
	}

	limit := cutoff.UnixMilli()
	for start := range table {
		if start <= limit {
			delete(table, start)
		}
	}
	if len(table) == 0 {
		delete(s.tables, identifier)
		return nil
	}
	return table
}

func summarize(table map[int64]int) WindowState {
	var state WindowState
	var oldest, newest int64
	for start, count := range table {
		state.Usage += count
		state.Windows++
		if state.Windows == 1 || start < oldest {
			oldest = start
		}
		if state.Windows == 1 || start > newest {
			newest = start
		}
	}
	if state.Windows > 0 {
		state.Oldest = time.UnixMilli(oldest)
		state.Newest = time.UnixMilli(newest)
	}
	return state
}

var _ WindowStore = (*MemoryWindowStore)(nil)
