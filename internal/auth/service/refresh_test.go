package service

import (
	"time"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	dErrors "trustcore/pkg/domain-errors"
)

func (s *ServiceTestSuite) TestRefreshRotatesPair() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	first := s.login("alice@example.com", "correct-horse-battery")

	second, err := s.svc.Refresh(s.ctx, first.RefreshToken, models.DeviceInfo{IP: "203.0.113.5"})
	s.Require().NoError(err)

	s.NotEqual(first.RefreshToken, second.RefreshToken)
	s.NotEqual(first.SessionID, second.SessionID)

	// old session is closed as superseded, pointing at its successor
	old, err := s.sessions.FindByID(s.ctx, first.SessionID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusSuperseded, old.Status)
	s.Require().NotNil(old.SupersededBy)
	s.Equal(second.SessionID, *old.SupersededBy)

	s.Contains(s.auditActions(), string(audit.ActionTokenRefreshed))
}

func (s *ServiceTestSuite) TestRefreshWithGarbageToken() {
	_, err := s.svc.Refresh(s.ctx, "no-such-token", models.DeviceInfo{})
	s.Require().Error(err)
	s.Equal(dErrors.CodeInvalidRefresh, dErrors.CodeOf(err))
}

func (s *ServiceTestSuite) TestRefreshReuseRevokesEverything() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	laptop := s.login("alice@example.com", "correct-horse-battery")
	phone := s.login("alice@example.com", "correct-horse-battery")

	// legitimate rotation consumes the laptop token
	rotated, err := s.svc.Refresh(s.ctx, laptop.RefreshToken, models.DeviceInfo{IP: "203.0.113.5"})
	s.Require().NoError(err)

	// an attacker replays the consumed token
	_, err = s.svc.Refresh(s.ctx, laptop.RefreshToken, models.DeviceInfo{IP: "198.51.100.9"})
	s.Require().Error(err)
	s.Equal(dErrors.CodeInvalidRefresh, dErrors.CodeOf(err))

	// every session the user had is revoked, including the untouched phone
	// and the freshly rotated one
	for _, pair := range []*models.CredentialPair{phone, rotated} {
		session, err := s.sessions.FindByID(s.ctx, pair.SessionID)
		s.Require().NoError(err)
		s.Equal(models.SessionStatusRevoked, session.Status)
	}

	// neither surviving refresh token works any more
	_, err = s.svc.Refresh(s.ctx, phone.RefreshToken, models.DeviceInfo{})
	s.Require().Error(err)
	_, err = s.svc.Refresh(s.ctx, rotated.RefreshToken, models.DeviceInfo{})
	s.Require().Error(err)

	s.Contains(s.auditActions(), string(audit.ActionRefreshReuse))
}

func (s *ServiceTestSuite) TestRefreshAfterExpiryRejected() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	pair := s.login("alice@example.com", "correct-horse-battery")

	late := s.at(31 * 24 * time.Hour)
	_, err := s.svc.Refresh(late, pair.RefreshToken, models.DeviceInfo{})
	s.Require().Error(err)
	s.Equal(dErrors.CodeInvalidRefresh, dErrors.CodeOf(err))
}

func (s *ServiceTestSuite) TestRefreshedAccessTokenValidates() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	first := s.login("alice@example.com", "correct-horse-battery")

	second, err := s.svc.Refresh(s.ctx, first.RefreshToken, models.DeviceInfo{})
	s.Require().NoError(err)

	principal, claims, err := s.svc.Authenticate(s.ctx, second.AccessToken)
	s.Require().NoError(err)
	s.Equal("alice@example.com", principal.Email)
	s.Equal(second.SessionID.String(), claims.SessionID)
}
