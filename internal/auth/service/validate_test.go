package service

import (
	"time"

	dErrors "trustcore/pkg/domain-errors"
)

func (s *ServiceTestSuite) TestAuthenticateHappyPath() {
	user := s.registerUser("alice@example.com", "correct-horse-battery")
	pair := s.login("alice@example.com", "correct-horse-battery")

	principal, claims, err := s.svc.Authenticate(s.ctx, pair.AccessToken)
	s.Require().NoError(err)
	s.Equal(user.ID, principal.ID)
	s.Equal(user.TenantID, principal.TenantID)
	s.Equal(pair.SessionID.String(), claims.SessionID)
}

func (s *ServiceTestSuite) TestAuthenticateExpiredToken() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	pair := s.login("alice@example.com", "correct-horse-battery")

	late := s.at(16 * time.Minute)
	_, _, err := s.svc.Authenticate(late, pair.AccessToken)
	s.Require().Error(err)
	s.Equal(dErrors.CodeTokenExpired, dErrors.CodeOf(err))
}

func (s *ServiceTestSuite) TestAuthenticateTamperedToken() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	pair := s.login("alice@example.com", "correct-horse-battery")

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	_, _, err := s.svc.Authenticate(s.ctx, tampered)
	s.Require().Error(err)
	s.Equal(dErrors.CodeTokenInvalid, dErrors.CodeOf(err))
}

func (s *ServiceTestSuite) TestAuthenticateForeignIssuer() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	pair := s.login("alice@example.com", "correct-horse-battery")

	// same key, different issuer: the service must not accept it
	other := NewService(s.users, s.sessions, s.refresh, s.blacklist,
		newTestTokens("other-issuer"))
	_, _, err := other.Authenticate(s.ctx, pair.AccessToken)
	s.Require().Error(err)
	s.Equal(dErrors.CodeTokenInvalid, dErrors.CodeOf(err))
}

func (s *ServiceTestSuite) TestAuthenticateEmptyToken() {
	_, _, err := s.svc.Authenticate(s.ctx, "")
	s.Require().Error(err)
	s.Equal(dErrors.CodeTokenInvalid, dErrors.CodeOf(err))
}
