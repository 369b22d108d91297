package session

import (
	"context"
	"sync"
	"time"

	"trustcore/internal/auth/models"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "session not found")

// InMemorySessionStore keeps sessions in process memory.
// In-memory stores keep the initial implementation lightweight and testable;
// they intentionally favor clarity over performance.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *InMemorySessionStore) ListByUser(_ context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			cp := *session
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MarkSuperseded transitions ACTIVE -> SUPERSEDED, recording the successor.
func (s *InMemorySessionStore) MarkSuperseded(_ context.Context, sessionID, successorID id.SessionID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Status = models.SessionStatusSuperseded
	session.SupersededBy = &successorID
	session.LastUsedAt = now
	return nil
}

// MarkRevoked transitions a session to REVOKED. Terminal states stay terminal.
func (s *InMemorySessionStore) MarkRevoked(_ context.Context, sessionID id.SessionID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if session.Status == models.SessionStatusActive {
		session.Status = models.SessionStatusRevoked
		session.RevokedAt = &now
	}
	return nil
}

// RevokeAllForUser revokes every active session for the user and returns the
// sessions that were revoked so their tokens can be blacklisted.
func (s *InMemorySessionStore) RevokeAllForUser(_ context.Context, userID id.UserID, now time.Time) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var revoked []*models.Session
	for _, session := range s.sessions {
		if session.UserID == userID && session.Status == models.SessionStatusActive {
			session.Status = models.SessionStatusRevoked
			t := now
			session.RevokedAt = &t
			cp := *session
			revoked = append(revoked, &cp)
		}
	}
	return revoked, nil
}

func (s *InMemorySessionStore) TouchLastUsed(_ context.Context, sessionID id.SessionID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.LastUsedAt = now
	return nil
}

// DeleteExpired removes sessions whose refresh lineage can no longer be used.
func (s *InMemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}
