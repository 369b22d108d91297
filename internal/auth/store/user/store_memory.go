package user

import (
	"context"
	"strings"
	"sync"

	"trustcore/internal/auth/models"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
)

// ErrNotFound is returned when a requested record is not found in the store.
// Services should check for this error using errors.Is.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "user not found")

// InMemoryUserStore keeps accounts in process memory. Intentionally favors
// clarity over performance; postgres is the production implementation.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		byID:    make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(u.Email)
	if _, exists := s.byEmail[key]; exists {
		return dErrors.New(dErrors.CodeConflict, "email already registered")
	}
	cp := *u
	s.byID[u.ID] = &cp
	s.byEmail[key] = u.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[userID]
	return &cp, nil
}

// BumpTokenVersion increments the credential generation and stores the new
// password hash atomically. Returns the new version.
func (s *InMemoryUserStore) BumpTokenVersion(_ context.Context, userID id.UserID, newPasswordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return 0, ErrNotFound
	}
	u.TokenVersion++
	if newPasswordHash != "" {
		u.PasswordHash = newPasswordHash
	}
	return u.TokenVersion, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
