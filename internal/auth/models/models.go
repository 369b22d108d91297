package models

import (
	"time"

	id "trustcore/pkg/domain"
)

// Principal identifies the authenticated caller. It is an immutable value
// object; TenantID is first-class and non-optional so every tenant-scoped
// query signature forces scoping at compile time.
type Principal struct {
	ID       id.UserID
	TenantID id.TenantID
	Role     string
	Email    string
}

// User is the stored account a Principal is derived from.
// TokenVersion is bumped on password change, which immediately invalidates
// every previously issued access token embedding an older version.
type User struct {
	ID           id.UserID
	TenantID     id.TenantID
	Email        string
	Role         string
	PasswordHash string
	TokenVersion int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal derives the immutable caller identity from a user row.
func (u *User) Principal() Principal {
	return Principal{
		ID:       u.ID,
		TenantID: u.TenantID,
		Role:     u.Role,
		Email:    u.Email,
	}
}

// SessionStatus tracks the session lifecycle.
// ACTIVE --rotate--> SUPERSEDED, ACTIVE --revoke--> REVOKED; both terminal.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusSuperseded SessionStatus = "superseded"
	SessionStatusRevoked    SessionStatus = "revoked"
)

// Session represents one device's refresh lineage. One session per device;
// a refresh rotation closes the old session and opens a successor.
type Session struct {
	ID               id.SessionID
	UserID           id.UserID
	TenantID         id.TenantID
	RefreshTokenHash string
	IP               string
	UserAgent        string
	DeviceName       string
	Fingerprint      string
	Status           SessionStatus
	SupersededBy     *id.SessionID
	CreatedAt        time.Time
	LastUsedAt       time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

// IsActive reports whether the session can still mint credentials.
func (s *Session) IsActive(now time.Time) bool {
	return s.Status == SessionStatusActive && now.Before(s.ExpiresAt)
}

// IsTerminal reports whether the session reached a terminal state.
func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusSuperseded || s.Status == SessionStatusRevoked
}

// RefreshTokenRecord stores a single-use refresh token by hash.
type RefreshTokenRecord struct {
	TokenHash string
	SessionID id.SessionID
	UserID    id.UserID
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
	ExpiresAt time.Time
}

// BlacklistEntry marks a token hash (or access-token JTI) as unusable until
// the underlying token would have expired anyway; entries are purged after
// ExpiresAt by the cleanup worker.
type BlacklistEntry struct {
	TokenHash string
	Reason    string
	ExpiresAt time.Time
}

// Blacklist reasons recorded for audit correlation.
const (
	BlacklistReasonLogout         = "logout"
	BlacklistReasonRotation       = "rotation"
	BlacklistReasonPasswordChange = "password_change"
	BlacklistReasonTheftResponse  = "theft_response"
	BlacklistReasonAdminRevoke    = "admin_revoke"
)

// CredentialPair is what a successful login or refresh returns.
type CredentialPair struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SessionID    id.SessionID
}

// DeviceInfo captures request metadata bound to a session at issue time.
type DeviceInfo struct {
	IP        string
	UserAgent string
}

// SessionView is the caller-facing projection for the session listing endpoint.
type SessionView struct {
	ID         id.SessionID `json:"id"`
	IP         string       `json:"ip"`
	DeviceName string       `json:"device_name"`
	CreatedAt  time.Time    `json:"created_at"`
	LastUsedAt time.Time    `json:"last_used_at"`
	Current    bool         `json:"current"`
}
