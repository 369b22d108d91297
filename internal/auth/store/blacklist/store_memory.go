// Package blacklist stores token hashes that must never validate again,
// regardless of signature or expiry. Entries carry the underlying token's
// expiry so the store can purge them once the token would have died anyway.
package blacklist

import (
	"context"
	"sync"
	"time"

	"trustcore/internal/auth/models"
)

// InMemoryBlacklist is the single-node implementation.
// Multi-instance deployments need RedisBlacklist or PostgresBlacklist so a
// revocation on one node blocks the token everywhere.
type InMemoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]models.BlacklistEntry // keyed by token hash
}

func NewInMemoryBlacklist() *InMemoryBlacklist {
	return &InMemoryBlacklist{entries: make(map[string]models.BlacklistEntry)}
}

func (s *InMemoryBlacklist) Add(_ context.Context, entry models.BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.TokenHash] = entry
	return nil
}

// Contains reports whether the token hash is blacklisted at the given instant.
func (s *InMemoryBlacklist) Contains(_ context.Context, tokenHash string, now time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[tokenHash]
	if !ok {
		return false, nil
	}
	// An expired entry refers to a token that can no longer validate on its
	// own expiry; treat as not blacklisted and let cleanup remove it.
	if now.After(entry.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

func (s *InMemoryBlacklist) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for hash, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, hash)
			deleted++
		}
	}
	return deleted, nil
}
