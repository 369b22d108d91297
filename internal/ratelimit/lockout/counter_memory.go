package lockout

import (
	"context"
	"sync"
	"time"
)

type tally struct {
	failures    []time.Time
	lockedUntil time.Time
}

// InMemoryCounter keeps failure timestamps per key and prunes those that
// fell out of the window on each write.
type InMemoryCounter struct {
	mu      sync.Mutex
	tallies map[string]*tally
}

func NewInMemoryCounter() *InMemoryCounter {
	return &InMemoryCounter{tallies: make(map[string]*tally)}
}

func (c *InMemoryCounter) RecordFailure(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tallies[key]
	if !ok {
		t = &tally{}
		c.tallies[key] = t
	}

	cutoff := now.Add(-window)
	kept := t.failures[:0]
	for _, ts := range t.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.failures = append(kept, now)
	return len(t.failures), nil
}

func (c *InMemoryCounter) Lock(_ context.Context, key string, until time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tallies[key]
	if !ok {
		t = &tally{}
		c.tallies[key] = t
	}
	t.lockedUntil = until
	return nil
}

func (c *InMemoryCounter) LockedUntil(_ context.Context, key string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.tallies[key]; ok {
		return t.lockedUntil, nil
	}
	return time.Time{}, nil
}

// Purge drops tallies that are unlocked and saw no failures for staleAfter.
// Called by the cleanup worker.
func (c *InMemoryCounter) Purge(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-staleAfter)
	deleted := 0
	for key, t := range c.tallies {
		if t.lockedUntil.After(now) {
			continue
		}
		recent := false
		for _, ts := range t.failures {
			if ts.After(cutoff) {
				recent = true
				break
			}
		}
		if recent {
			continue
		}
		delete(c.tallies, key)
		deleted++
	}
	return deleted, nil
}

func (c *InMemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tallies, key)
	return nil
}
