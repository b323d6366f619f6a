package cache

import (
	"context"
	"time"

	"github.com/erp/wmssync/internal/domain/shared"
	gocache "github.com/patrickmn/go-cache"
)

// InMemoryIdempotencyStore implements IdempotencyStore on a process-local TTL cache.
// It suits single-instance deployments and tests.
type InMemoryIdempotencyStore struct {
	entries *gocache.Cache
}

// NewInMemoryIdempotencyStore creates a store whose expired keys are purged
// every cleanupInterval. A zero interval uses five minutes.
func NewInMemoryIdempotencyStore(cleanupInterval time.Duration) *InMemoryIdempotencyStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &InMemoryIdempotencyStore{
		entries: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// MarkProcessed marks a key as processed for ttl.
// Returns true if the key was newly marked, false if it was already processed.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	// Add fails while an unexpired entry exists
	if err := s.entries.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// IsProcessed checks if a key has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	_, found := s.entries.Get(key)
	return found, nil
}

// Release forgets a key
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

// Close drops all keys
func (s *InMemoryIdempotencyStore) Close() error {
	s.entries.Flush()
	return nil
}

// Size returns the number of unexpired keys
func (s *InMemoryIdempotencyStore) Size() int {
	return len(s.entries.Items())
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
