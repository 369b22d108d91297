package refreshtoken

import (
	"context"
	"sync"
	"time"

	"trustcore/internal/auth/models"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
)

// Sentinel errors shared by all implementations.
//
// Error contract: stores return ErrNotFound when the token hash is unknown,
// ErrAlreadyUsed when a consumed token is presented again (the theft signal),
// and ErrExpired past the refresh TTL.
var (
	ErrNotFound    = dErrors.New(dErrors.CodeInvalidRefresh, "refresh token not found")
	ErrAlreadyUsed = dErrors.New(dErrors.CodeInvalidRefresh, "refresh token already used")
	ErrExpired     = dErrors.New(dErrors.CodeInvalidRefresh, "refresh token expired")
)

// InMemoryRefreshTokenStore keeps refresh token records in process memory.
type InMemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshTokenRecord // keyed by token hash
}

func NewInMemoryRefreshTokenStore() *InMemoryRefreshTokenStore {
	return &InMemoryRefreshTokenStore{tokens: make(map[string]*models.RefreshTokenRecord)}
}

func (s *InMemoryRefreshTokenStore) Create(_ context.Context, record *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.tokens[record.TokenHash] = &cp
	return nil
}

// Consume atomically marks the record used. A second Consume of the same hash
// returns ErrAlreadyUsed together with the record so the caller can run the
// theft-response path against the owning session.
func (s *InMemoryRefreshTokenStore) Consume(_ context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *record
	if record.Used {
		return &cp, ErrAlreadyUsed
	}
	if now.After(record.ExpiresAt) {
		return &cp, ErrExpired
	}

	record.Used = true
	t := now
	record.UsedAt = &t
	cp = *record
	return &cp, nil
}

func (s *InMemoryRefreshTokenStore) DeleteBySession(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.tokens {
		if record.SessionID == sessionID {
			delete(s.tokens, key)
		}
	}
	return nil
}

// DeleteExpired purges expired and consumed records; returns how many were removed.
func (s *InMemoryRefreshTokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, record := range s.tokens {
		if now.After(record.ExpiresAt) || record.Used {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
