package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps the chain in a slice, oldest first.
type InMemoryStore struct {
	mu      sync.Mutex
	entries []*Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, build func(prevHash string) (*Entry, error)) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := GenesisHash
	if n := len(s.entries); n > 0 {
		prev = s.entries[n-1].EntryHash
	}

	entry, err := build(prev)
	if err != nil {
		return nil, err
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			matched = append(matched, e)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	out := make([]*Entry, len(matched))
	for i, e := range matched {
		c := *e
		out[i] = &c
	}
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Entry, len(s.entries))
	for i, e := range s.entries {
		c := *e
		out[i] = &c
	}
	return out, nil
}
