package service

import (
	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	dErrors "trustcore/pkg/domain-errors"
)

func (s *ServiceTestSuite) TestLogoutRevokesSessionAndToken() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	pair := s.login("alice@example.com", "correct-horse-battery")

	s.Require().NoError(s.svc.Logout(s.ctx, pair.AccessToken))

	// the access token is dead immediately, well before its expiry
	_, _, err := s.svc.Authenticate(s.ctx, pair.AccessToken)
	s.Require().Error(err)
	s.Equal(dErrors.CodeTokenRevoked, dErrors.CodeOf(err))

	// so is the refresh token
	_, err = s.svc.Refresh(s.ctx, pair.RefreshToken, models.DeviceInfo{})
	s.Require().Error(err)
	s.Equal(dErrors.CodeInvalidRefresh, dErrors.CodeOf(err))

	session, err := s.sessions.FindByID(s.ctx, pair.SessionID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusRevoked, session.Status)

	s.Contains(s.auditActions(), string(audit.ActionLogout))
}

func (s *ServiceTestSuite) TestLogoutRejectsForgedToken() {
	err := s.svc.Logout(s.ctx, "not.a.jwt")
	s.Require().Error(err)
	s.Equal(dErrors.CodeTokenInvalid, dErrors.CodeOf(err))
}

func (s *ServiceTestSuite) TestLogoutAllRevokesEveryDevice() {
	user := s.registerUser("alice@example.com", "correct-horse-battery")
	laptop := s.login("alice@example.com", "correct-horse-battery")
	phone := s.login("alice@example.com", "correct-horse-battery")

	principal := user.Principal()
	count, err := s.svc.LogoutAll(s.ctx, &principal)
	s.Require().NoError(err)
	s.Equal(2, count)

	for _, pair := range []*models.CredentialPair{laptop, phone} {
		_, err := s.svc.Refresh(s.ctx, pair.RefreshToken, models.DeviceInfo{})
		s.Require().Error(err)
	}
	s.Contains(s.auditActions(), string(audit.ActionSessionsRevoked))
}

func (s *ServiceTestSuite) TestRevokeOtherSessionsKeepsCurrentDevice() {
	user := s.registerUser("alice@example.com", "correct-horse-battery")
	laptop := s.login("alice@example.com", "correct-horse-battery")
	phone := s.login("alice@example.com", "correct-horse-battery")
	tablet := s.login("alice@example.com", "correct-horse-battery")

	principal := user.Principal()
	count, err := s.svc.RevokeOtherSessions(s.ctx, &principal, laptop.SessionID)
	s.Require().NoError(err)
	s.Equal(2, count)

	// the presented device keeps refreshing
	_, err = s.svc.Refresh(s.ctx, laptop.RefreshToken, models.DeviceInfo{})
	s.Require().NoError(err)

	// the others are dead
	for _, pair := range []*models.CredentialPair{phone, tablet} {
		_, err := s.svc.Refresh(s.ctx, pair.RefreshToken, models.DeviceInfo{})
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidRefresh, dErrors.CodeOf(err))
	}
	s.Contains(s.auditActions(), string(audit.ActionSessionsRevoked))
}

func (s *ServiceTestSuite) TestRevokeSessionOwnershipMasked() {
	alice := s.registerUser("alice@example.com", "correct-horse-battery")
	s.registerUser("mallory@example.com", "correct-horse-battery")
	alicePair := s.login("alice@example.com", "correct-horse-battery")
	s.login("mallory@example.com", "correct-horse-battery")

	malloryUser, err := s.users.FindByEmail(s.ctx, "mallory@example.com")
	s.Require().NoError(err)
	malloryPrincipal := malloryUser.Principal()

	// someone else's session id reads as not found, not forbidden
	err = s.svc.RevokeSession(s.ctx, &malloryPrincipal, alicePair.SessionID)
	s.Require().Error(err)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))

	// the owner can revoke it
	alicePrincipal := alice.Principal()
	s.Require().NoError(s.svc.RevokeSession(s.ctx, &alicePrincipal, alicePair.SessionID))
}

func (s *ServiceTestSuite) TestChangePasswordInvalidatesOldTokens() {
	user := s.registerUser("alice@example.com", "correct-horse-battery")
	pair := s.login("alice@example.com", "correct-horse-battery")

	principal := user.Principal()
	err := s.svc.ChangePassword(s.ctx, &principal, "correct-horse-battery", "brand-new-passphrase")
	s.Require().NoError(err)

	// the old access token embeds token_version 1 and is now stale
	_, _, err = s.svc.Authenticate(s.ctx, pair.AccessToken)
	s.Require().Error(err)
	s.Equal(dErrors.CodeTokenRevoked, dErrors.CodeOf(err))

	// old password no longer works, new one does
	_, err = s.svc.Login(s.ctx, "alice@example.com", "correct-horse-battery", models.DeviceInfo{IP: "203.0.113.5"})
	s.Require().Error(err)
	fresh := s.login("alice@example.com", "brand-new-passphrase")

	_, _, err = s.svc.Authenticate(s.ctx, fresh.AccessToken)
	s.Require().NoError(err)

	s.Contains(s.auditActions(), string(audit.ActionPasswordChanged))
}

func (s *ServiceTestSuite) TestChangePasswordRequiresCurrent() {
	user := s.registerUser("alice@example.com", "correct-horse-battery")
	principal := user.Principal()

	err := s.svc.ChangePassword(s.ctx, &principal, "wrong-current-pass", "brand-new-passphrase")
	s.Require().Error(err)
	s.Equal(dErrors.CodeInvalidCredentials, dErrors.CodeOf(err))
}
