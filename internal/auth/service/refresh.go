package service

import (
	"context"
	"errors"

	"trustcore/internal/audit"
	"trustcore/internal/auth/device"
	"trustcore/internal/auth/models"
	refreshStore "trustcore/internal/auth/store/refreshtoken"
	"trustcore/internal/jwttoken"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

// Refresh rotates a refresh token: the presented token is consumed, its
// session is closed as superseded, and a successor session with a fresh pair
// is opened. Presenting an already-consumed token is treated as theft and
// revokes every session the owning user has.
func (s *Service) Refresh(ctx context.Context, refreshToken string, dev models.DeviceInfo) (*models.CredentialPair, error) {
	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRefresh, "refresh token is required")
	}

	now := requestcontext.Now(ctx)
	tokenHash := jwttoken.HashToken(refreshToken)

	record, err := s.refresh.Consume(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, refreshStore.ErrAlreadyUsed) && record != nil {
			return nil, s.respondToTheft(ctx, record, dev)
		}
		s.logger.Warn("refresh rejected", "error", err)
		return nil, dErrors.New(dErrors.CodeInvalidRefresh, "invalid refresh token")
	}

	session, err := s.sessions.FindByID(ctx, record.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidRefresh, "invalid refresh token")
	}
	if !session.IsActive(now) {
		return nil, dErrors.New(dErrors.CodeInvalidRefresh, "session is no longer active")
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidRefresh, "invalid refresh token")
	}

	pair, err := s.rotateSession(ctx, user, session, dev)
	if err != nil {
		return nil, err
	}

	if err := s.audit(ctx, audit.Record{
		ActorID:      user.ID.String(),
		TenantID:     user.TenantID.String(),
		Action:       string(audit.ActionTokenRefreshed),
		ResourceType: "session",
		ResourceID:   pair.SessionID.String(),
		Success:      true,
		Metadata:     map[string]string{"superseded_session": session.ID.String()},
	}); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTokenRefreshed()
	}
	return pair, nil
}

// rotateSession opens the successor session and closes the old one.
func (s *Service) rotateSession(ctx context.Context, user *models.User, old *models.Session, dev models.DeviceInfo) (*models.CredentialPair, error) {
	now := requestcontext.Now(ctx)
	successorID := id.NewSessionID()

	refreshToken, err := s.tokens.CreateRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshHash := jwttoken.HashToken(refreshToken)

	userAgent := dev.UserAgent
	if userAgent == "" {
		userAgent = old.UserAgent
	}

	successor := &models.Session{
		ID:               successorID,
		UserID:           user.ID,
		TenantID:         user.TenantID,
		RefreshTokenHash: refreshHash,
		IP:               dev.IP,
		UserAgent:        userAgent,
		DeviceName:       device.DisplayName(userAgent),
		Fingerprint:      device.Fingerprint(userAgent),
		Status:           models.SessionStatusActive,
		CreatedAt:        old.CreatedAt,
		LastUsedAt:       now,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, successor); err != nil {
		return nil, err
	}
	if err := s.sessions.MarkSuperseded(ctx, old.ID, successorID, now); err != nil {
		return nil, err
	}

	if err := s.refresh.Create(ctx, &models.RefreshTokenRecord{
		TokenHash: refreshHash,
		SessionID: successorID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: successor.ExpiresAt,
	}); err != nil {
		return nil, err
	}

	accessToken, _, err := s.tokens.GenerateAccessToken(ctx, user.ID, user.TenantID, successorID, user.Role, user.TokenVersion)
	if err != nil {
		return nil, err
	}

	return &models.CredentialPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IssuedAt:     now,
		AccessTTL:    s.tokens.AccessTTL(),
		RefreshTTL:   s.refreshTTL,
		SessionID:    successorID,
	}, nil
}

// respondToTheft handles reuse of a consumed refresh token. Someone holds a
// token that was already rotated away, so every session the user has is
// revoked before the caller gets an answer. The revocation and its audit
// entry both must succeed.
func (s *Service) respondToTheft(ctx context.Context, record *models.RefreshTokenRecord, dev models.DeviceInfo) error {
	now := requestcontext.Now(ctx)

	s.logger.Warn("refresh token reuse detected",
		"user_id", record.UserID.String(),
		"session_id", record.SessionID.String(),
		"ip", dev.IP,
	)

	revoked, err := s.sessions.RevokeAllForUser(ctx, record.UserID, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "theft response failed")
	}
	for _, session := range revoked {
		if err := s.refresh.DeleteBySession(ctx, session.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "theft response failed")
		}
	}

	if err := s.audit(ctx, audit.Record{
		ActorID:      record.UserID.String(),
		TenantID:     tenantOfSessions(revoked),
		Action:       string(audit.ActionRefreshReuse),
		ResourceType: "session",
		ResourceID:   record.SessionID.String(),
		Success:      false,
		Metadata:     map[string]string{"ip": dev.IP},
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.TheftResponses.Inc()
		s.metrics.DecrementActiveSessions(len(revoked))
	}
	return dErrors.New(dErrors.CodeInvalidRefresh, "invalid refresh token")
}

func tenantOfSessions(sessions []*models.Session) string {
	if len(sessions) == 0 {
		return ""
	}
	return sessions[0].TenantID.String()
}
