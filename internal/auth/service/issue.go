package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"trustcore/internal/audit"
	"trustcore/internal/auth/device"
	"trustcore/internal/auth/models"
	userStore "trustcore/internal/auth/store/user"
	"trustcore/internal/jwttoken"
	"trustcore/internal/ratelimit/lockout"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

// dummyHash is compared against when the email is unknown, so the lookup
// result does not change response timing.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Register creates a new account inside the given tenant.
func (s *Service) Register(ctx context.Context, tenantID id.TenantID, email, password, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if len(password) < 12 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password must be at least 12 characters")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant ID is required")
	}
	if role == "" {
		role = "member"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	now := requestcontext.Now(ctx)
	user := &models.User{
		ID:           id.NewUserID(),
		TenantID:     tenantID,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		TokenVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID.String(), "tenant_id", tenantID.String())
	return user, nil
}

// Login verifies credentials and issues a fresh credential pair bound to a
// new session. Unknown email and wrong password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string, dev models.DeviceInfo) (*models.CredentialPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if s.lockout != nil {
		if err := s.lockout.Check(ctx, email, dev.IP); err != nil {
			return nil, err
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userStore.ErrNotFound) {
			// burn a bcrypt comparison anyway
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, s.failLogin(ctx, email, dev.IP, "")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, s.failLogin(ctx, email, dev.IP, user.ID.String())
	}

	if s.lockout != nil {
		if err := s.lockout.Reset(ctx, email, dev.IP); err != nil {
			s.logger.Warn("lockout reset failed", "error", err, "user_id", user.ID.String())
		}
	}

	pair, err := s.issueCredentials(ctx, user, dev)
	if err != nil {
		return nil, err
	}

	if err := s.audit(ctx, audit.Record{
		ActorID:      user.ID.String(),
		TenantID:     user.TenantID.String(),
		Action:       string(audit.ActionLogin),
		ResourceType: "session",
		ResourceID:   pair.SessionID.String(),
		Success:      true,
		Metadata:     map[string]string{"ip": dev.IP},
	}); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTokenIssued()
		s.metrics.IncrementActiveSessions(1)
	}
	s.logger.Info("login succeeded", "user_id", user.ID.String(), "session_id", pair.SessionID.String())
	return pair, nil
}

// failLogin records the failure against both lockout counters and returns the
// uniform invalid-credentials error, or the lockout error if this attempt
// tripped a threshold.
func (s *Service) failLogin(ctx context.Context, email, ip, actorID string) error {
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures()
	}

	var out lockout.Outcome
	if s.lockout != nil {
		var err error
		out, err = s.lockout.RecordFailure(ctx, email, ip)
		if err != nil {
			s.logger.Error("lockout bookkeeping failed", "error", err)
		}
	}

	action := audit.ActionLoginFailed
	if out.Tripped {
		action = audit.ActionLockoutTripped
		if s.metrics != nil {
			s.metrics.LockoutsTripped.Inc()
		}
	}
	if err := s.audit(ctx, audit.Record{
		ActorID:      actorID,
		TenantID:     "",
		Action:       string(action),
		ResourceType: "login",
		Success:      false,
		Metadata:     map[string]string{"ip": ip},
	}); err != nil {
		return err
	}

	if out.Tripped {
		return dErrors.WithDetails(dErrors.CodeAccountLocked, "account temporarily locked",
			map[string]string{"retry_after_seconds": strconv.Itoa(int(out.RetryAfter / time.Second))})
	}
	if s.lockout != nil {
		return dErrors.WithDetails(dErrors.CodeInvalidCredentials, "invalid email or password",
			map[string]string{"attempts_remaining": strconv.Itoa(out.AttemptsRemaining)})
	}
	return dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")
}

// issueCredentials mints an access/refresh pair and persists the backing
// session and refresh record.
func (s *Service) issueCredentials(ctx context.Context, user *models.User, dev models.DeviceInfo) (*models.CredentialPair, error) {
	now := requestcontext.Now(ctx)
	sessionID := id.NewSessionID()

	refreshToken, err := s.tokens.CreateRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshHash := jwttoken.HashToken(refreshToken)

	session := &models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		TenantID:         user.TenantID,
		RefreshTokenHash: refreshHash,
		IP:               dev.IP,
		UserAgent:        dev.UserAgent,
		DeviceName:       device.DisplayName(dev.UserAgent),
		Fingerprint:      device.Fingerprint(dev.UserAgent),
		Status:           models.SessionStatusActive,
		CreatedAt:        now,
		LastUsedAt:       now,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := s.refresh.Create(ctx, &models.RefreshTokenRecord{
		TokenHash: refreshHash,
		SessionID: sessionID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: session.ExpiresAt,
	}); err != nil {
		return nil, err
	}

	accessToken, _, err := s.tokens.GenerateAccessToken(ctx, user.ID, user.TenantID, sessionID, user.Role, user.TokenVersion)
	if err != nil {
		return nil, err
	}

	return &models.CredentialPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IssuedAt:     now,
		AccessTTL:    s.tokens.AccessTTL(),
		RefreshTTL:   s.refreshTTL,
		SessionID:    sessionID,
	}, nil
}

func (s *Service) cost() int {
	if s.bcryptCost > 0 {
		return s.bcryptCost
	}
	return bcrypt.DefaultCost
}

// audit appends to the chained log; callers on security-sensitive paths must
// propagate the error so the operation fails closed.
func (s *Service) audit(ctx context.Context, rec audit.Record) error {
	if s.auditor == nil {
		return nil
	}
	_, err := s.auditor.Append(ctx, rec)
	return err
}
