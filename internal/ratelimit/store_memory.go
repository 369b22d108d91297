package ratelimit

import (
	"context"
	"sync"
	"time"
)

// BucketStore increments a window-scoped counter and returns the new count.
// The key already embeds the window start, so a new window begins at zero
// simply by addressing a fresh key.
type BucketStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type bucket struct {
	count     int64
	expiresAt time.Time
}

// InMemoryBucketStore keeps counters in a map. Buckets past their TTL are
// lazily replaced on next increment and swept by Purge.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	// clock is swappable for tests
	clock func() time.Time
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{
		buckets: make(map[string]*bucket),
		clock:   time.Now,
	}
}

func (s *InMemoryBucketStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	b, ok := s.buckets[key]
	if !ok || now.After(b.expiresAt) {
		b = &bucket{expiresAt: now.Add(ttl)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, nil
}

// Purge drops expired buckets. Called by the cleanup worker.
func (s *InMemoryBucketStore) Purge(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, b := range s.buckets {
		if now.After(b.expiresAt) {
			delete(s.buckets, key)
			deleted++
		}
	}
	return deleted, nil
}
