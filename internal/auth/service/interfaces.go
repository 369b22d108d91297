package service

import (
	"context"
	"time"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	"trustcore/internal/jwttoken"
	"trustcore/internal/ratelimit/lockout"
	id "trustcore/pkg/domain"
)

// UserStore defines the persistence interface for user accounts.
// Error Contract: Find methods return store.ErrNotFound when the entity doesn't exist.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	BumpTokenVersion(ctx context.Context, userID id.UserID, newPasswordHash string) (int64, error)
}

// SessionStore defines the persistence interface for sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	MarkSuperseded(ctx context.Context, sessionID, successorID id.SessionID, now time.Time) error
	MarkRevoked(ctx context.Context, sessionID id.SessionID, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID id.UserID, now time.Time) ([]*models.Session, error)
	TouchLastUsed(ctx context.Context, sessionID id.SessionID, now time.Time) error
}

// RefreshTokenStore persists single-use refresh tokens by hash.
// Consume must be atomic: a token can move used=false to used=true exactly
// once, and a second presentation returns ErrAlreadyUsed with the record.
type RefreshTokenStore interface {
	Create(ctx context.Context, record *models.RefreshTokenRecord) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error)
	DeleteBySession(ctx context.Context, sessionID id.SessionID) error
}

// BlacklistStore tracks revoked access-token JTIs until natural expiry.
type BlacklistStore interface {
	Add(ctx context.Context, entry models.BlacklistEntry) error
	Contains(ctx context.Context, tokenHash string, now time.Time) (bool, error)
}

// LockoutGuard throttles failed logins per identity and per source IP.
type LockoutGuard interface {
	Check(ctx context.Context, email, ip string) error
	RecordFailure(ctx context.Context, email, ip string) (lockout.Outcome, error)
	Reset(ctx context.Context, email, ip string) error
}

// AuditRecorder appends to the tamper-evident log. Appends are fail-closed
// for the flows that call them.
type AuditRecorder interface {
	Append(ctx context.Context, rec audit.Record) (*audit.Entry, error)
}

// TokenService mints and validates access tokens and generates opaque
// refresh tokens.
type TokenService interface {
	GenerateAccessToken(ctx context.Context, userID id.UserID, tenantID id.TenantID, sessionID id.SessionID, role string, tokenVersion int64) (token string, jti string, err error)
	ValidateToken(ctx context.Context, token string) (*jwttoken.AccessTokenClaims, error)
	ParseExpiredToken(token string) (*jwttoken.AccessTokenClaims, error)
	CreateRefreshToken() (string, error)
	AccessTTL() time.Duration
}
