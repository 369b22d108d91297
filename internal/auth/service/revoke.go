package service

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	"trustcore/internal/jwttoken"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

// Logout revokes the session behind the presented access token and
// blacklists its JTI until the token would have expired on its own.
// The token may already be expired; only the signature must still hold.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.ParseExpiredToken(accessToken)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return dErrors.New(dErrors.CodeTokenInvalid, "invalid session claim")
	}

	if err := s.sessions.MarkRevoked(ctx, sessionID, now); err != nil {
		return err
	}
	if err := s.refresh.DeleteBySession(ctx, sessionID); err != nil {
		return err
	}

	if err := s.blacklistJTI(ctx, claims, models.BlacklistReasonLogout); err != nil {
		return err
	}

	if err := s.audit(ctx, audit.Record{
		ActorID:      claims.Subject,
		TenantID:     claims.TenantID,
		Action:       string(audit.ActionLogout),
		ResourceType: "session",
		ResourceID:   sessionID.String(),
		Success:      true,
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.DecrementActiveSessions(1)
	}
	return nil
}

// LogoutAll revokes every session the principal has, on every device.
func (s *Service) LogoutAll(ctx context.Context, principal *models.Principal) (int, error) {
	now := requestcontext.Now(ctx)

	revoked, err := s.sessions.RevokeAllForUser(ctx, principal.ID, now)
	if err != nil {
		return 0, err
	}
	for _, session := range revoked {
		if err := s.refresh.DeleteBySession(ctx, session.ID); err != nil {
			return 0, err
		}
	}

	if err := s.audit(ctx, audit.Record{
		ActorID:      principal.ID.String(),
		TenantID:     principal.TenantID.String(),
		Action:       string(audit.ActionSessionsRevoked),
		ResourceType: "user",
		ResourceID:   principal.ID.String(),
		Success:      true,
	}); err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.DecrementActiveSessions(len(revoked))
	}
	s.logger.Info("all sessions revoked", "user_id", principal.ID.String(), "count", len(revoked))
	return len(revoked), nil
}

// RevokeOtherSessions revokes every active session the principal has except
// the one behind the presented token, so a user can shed unfamiliar devices
// without logging themselves out.
func (s *Service) RevokeOtherSessions(ctx context.Context, principal *models.Principal, currentSessionID id.SessionID) (int, error) {
	now := requestcontext.Now(ctx)

	sessions, err := s.sessions.ListByUser(ctx, principal.ID)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, session := range sessions {
		if session.ID == currentSessionID || !session.IsActive(now) {
			continue
		}
		if err := s.sessions.MarkRevoked(ctx, session.ID, now); err != nil {
			return revoked, err
		}
		if err := s.refresh.DeleteBySession(ctx, session.ID); err != nil {
			return revoked, err
		}
		revoked++
	}

	if err := s.audit(ctx, audit.Record{
		ActorID:      principal.ID.String(),
		TenantID:     principal.TenantID.String(),
		Action:       string(audit.ActionSessionsRevoked),
		ResourceType: "user",
		ResourceID:   principal.ID.String(),
		Success:      true,
		Metadata:     map[string]string{"kept_session": currentSessionID.String()},
	}); err != nil {
		return revoked, err
	}

	if s.metrics != nil {
		s.metrics.DecrementActiveSessions(revoked)
	}
	s.logger.Info("other sessions revoked", "user_id", principal.ID.String(), "count", revoked)
	return revoked, nil
}

// RevokeSession revokes one of the principal's own sessions. Asking about a
// session that belongs to someone else looks identical to asking about one
// that does not exist.
func (s *Service) RevokeSession(ctx context.Context, principal *models.Principal, sessionID id.SessionID) error {
	now := requestcontext.Now(ctx)

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != principal.ID {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}

	if err := s.sessions.MarkRevoked(ctx, sessionID, now); err != nil {
		return err
	}
	if err := s.refresh.DeleteBySession(ctx, sessionID); err != nil {
		return err
	}

	if err := s.audit(ctx, audit.Record{
		ActorID:      principal.ID.String(),
		TenantID:     principal.TenantID.String(),
		Action:       string(audit.ActionSessionsRevoked),
		ResourceType: "session",
		ResourceID:   sessionID.String(),
		Success:      true,
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.DecrementActiveSessions(1)
	}
	return nil
}

// ChangePassword rehashes the credential and bumps token_version, which
// invalidates every outstanding access token at the validation step. All
// sessions are revoked; the caller logs in again with the new password.
func (s *Service) ChangePassword(ctx context.Context, principal *models.Principal, currentPassword, newPassword string) error {
	if len(newPassword) < 12 {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 12 characters")
	}

	user, err := s.users.FindByID(ctx, principal.ID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementAuthFailures()
		}
		return dErrors.New(dErrors.CodeInvalidCredentials, "current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	if _, err := s.users.BumpTokenVersion(ctx, user.ID, string(newHash)); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	revoked, err := s.sessions.RevokeAllForUser(ctx, user.ID, now)
	if err != nil {
		return err
	}
	for _, session := range revoked {
		if err := s.refresh.DeleteBySession(ctx, session.ID); err != nil {
			return err
		}
	}

	if err := s.audit(ctx, audit.Record{
		ActorID:      user.ID.String(),
		TenantID:     user.TenantID.String(),
		Action:       string(audit.ActionPasswordChanged),
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		Success:      true,
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.DecrementActiveSessions(len(revoked))
	}
	s.logger.Info("password changed", "user_id", user.ID.String(), "sessions_revoked", len(revoked))
	return nil
}

// blacklistJTI marks an access token's JTI unusable until its natural expiry.
// Already-expired tokens need no entry.
func (s *Service) blacklistJTI(ctx context.Context, claims *jwttoken.AccessTokenClaims, reason string) error {
	now := requestcontext.Now(ctx)
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(now) {
		return nil
	}
	return s.blacklist.Add(ctx, models.BlacklistEntry{
		TokenHash: claims.ID,
		Reason:    reason,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}
