package aggregator

import (
	"context"
	"sync"
)

// InMemoryEventSink deduplicates by event ID and keeps accepted events in
// arrival order.
type InMemoryEventSink struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	events []Event
}

func NewInMemoryEventSink() *InMemoryEventSink {
	return &InMemoryEventSink{seen: make(map[string]struct{})}
}

func (s *InMemoryEventSink) Store(_ context.Context, event Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[event.EventID]; dup {
		return false, nil
	}
	s.seen[event.EventID] = struct{}{}
	s.events = append(s.events, event)
	return true, nil
}

// Events returns a copy of everything accepted so far.
func (s *InMemoryEventSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
