package cache

import "github.com/LavishGent/bulwark/internal/types"

// DisabledStaleStore is a no-op StaleStore used when stale fallback is off.
type DisabledStaleStore struct{}

func NewDisabledStaleStore() *DisabledStaleStore {
	return &DisabledStaleStore{}
}

// Put does nothing as this store is disabled.
func (s *DisabledStaleStore) Put(key string, value any) error { return nil }

// Load always misses as this store is disabled.
func (s *DisabledStaleStore) Load(key string, dest any) error { return types.ErrStaleMiss }

// Delete does nothing as this store is disabled.
func (s *DisabledStaleStore) Delete(key string) error { return nil }

// Stats returns empty statistics as this store is disabled.
func (s *DisabledStaleStore) Stats() StaleStats { return StaleStats{} }

// Close does nothing as this store is disabled.
func (s *DisabledStaleStore) Close() error { return nil }

var _ StaleStore = (*DisabledStaleStore)(nil)
