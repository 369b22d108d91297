package service

import (
	"strconv"

	"trustcore/internal/audit"
	"trustcore/internal/auth/device"
	"trustcore/internal/auth/models"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
)

func (s *ServiceTestSuite) TestRegisterRejectsShortPassword() {
	_, err := s.svc.Register(s.ctx, id.NewTenantID(), "b@example.com", "short", "member")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceTestSuite) TestRegisterNormalizesEmail() {
	user := s.registerUser("  Alice@Example.COM ", "correct-horse-battery")
	s.Equal("alice@example.com", user.Email)
	s.EqualValues(1, user.TokenVersion)
}

func (s *ServiceTestSuite) TestLoginIssuesCredentialPair() {
	s.registerUser("alice@example.com", "correct-horse-battery")

	pair := s.login("alice@example.com", "correct-horse-battery")
	s.NotEmpty(pair.AccessToken)
	s.NotEmpty(pair.RefreshToken)
	s.False(pair.SessionID.IsNil())

	claims, err := s.tokens.ValidateToken(s.ctx, pair.AccessToken)
	s.Require().NoError(err)
	s.Equal(pair.SessionID.String(), claims.SessionID)
	s.EqualValues(1, claims.TokenVersion)

	s.Contains(s.auditActions(), string(audit.ActionLogin))
}

func (s *ServiceTestSuite) TestLoginBindsDeviceToSession() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	ua := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	pair, err := s.svc.Login(s.ctx, "alice@example.com", "correct-horse-battery",
		models.DeviceInfo{IP: "203.0.113.5", UserAgent: ua})
	s.Require().NoError(err)

	session, err := s.sessions.FindByID(s.ctx, pair.SessionID)
	s.Require().NoError(err)
	s.Equal(ua, session.UserAgent)
	s.Equal(device.DisplayName(ua), session.DeviceName)
	s.Equal(device.Fingerprint(ua), session.Fingerprint)
	s.NotEmpty(session.Fingerprint)
}

func (s *ServiceTestSuite) TestLoginUnknownEmailAndWrongPasswordLookAlike() {
	s.registerUser("alice@example.com", "correct-horse-battery")

	_, errUnknown := s.svc.Login(s.ctx, "nobody@example.com", "whatever-password", models.DeviceInfo{IP: "203.0.113.5"})
	_, errWrong := s.svc.Login(s.ctx, "alice@example.com", "wrong-password-here", models.DeviceInfo{IP: "203.0.113.5"})

	s.Require().Error(errUnknown)
	s.Require().Error(errWrong)
	s.Equal(dErrors.CodeInvalidCredentials, dErrors.CodeOf(errUnknown))
	s.Equal(dErrors.CodeInvalidCredentials, dErrors.CodeOf(errWrong))
	s.Equal(errUnknown.Error(), errWrong.Error())
}

func (s *ServiceTestSuite) TestLoginLockoutAfterFiveFailures() {
	s.registerUser("alice@example.com", "correct-horse-battery")

	dev := models.DeviceInfo{IP: "203.0.113.5"}
	for i := 0; i < 4; i++ {
		_, err := s.svc.Login(s.ctx, "alice@example.com", "wrong-password-here", dev)
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidCredentials, dErrors.CodeOf(err))
		s.Equal(strconv.Itoa(4-i), dErrors.DetailsOf(err)["attempts_remaining"])
	}

	// fifth failure trips the identity lockout
	_, err := s.svc.Login(s.ctx, "alice@example.com", "wrong-password-here", dev)
	s.Require().Error(err)
	s.Equal(dErrors.CodeAccountLocked, dErrors.CodeOf(err))
	s.Equal("900", dErrors.DetailsOf(err)["retry_after_seconds"])
	s.Contains(s.auditActions(), string(audit.ActionLockoutTripped))

	// even the correct password is refused while locked
	_, err = s.svc.Login(s.ctx, "alice@example.com", "correct-horse-battery", dev)
	s.Require().Error(err)
	s.Equal(dErrors.CodeAccountLocked, dErrors.CodeOf(err))
}

func (s *ServiceTestSuite) TestLoginResetsCountersOnSuccess() {
	s.registerUser("alice@example.com", "correct-horse-battery")
	dev := models.DeviceInfo{IP: "203.0.113.5"}

	for i := 0; i < 3; i++ {
		_, err := s.svc.Login(s.ctx, "alice@example.com", "wrong-password-here", dev)
		s.Require().Error(err)
	}
	s.login("alice@example.com", "correct-horse-battery")

	// the window starts over after success
	for i := 0; i < 4; i++ {
		_, err := s.svc.Login(s.ctx, "alice@example.com", "wrong-password-here", dev)
		s.Require().Error(err)
		s.Equal(dErrors.CodeInvalidCredentials, dErrors.CodeOf(err))
	}
}

func (s *ServiceTestSuite) TestLoginFailureIsAudited() {
	s.registerUser("alice@example.com", "correct-horse-battery")

	_, err := s.svc.Login(s.ctx, "alice@example.com", "wrong-password-here", models.DeviceInfo{IP: "203.0.113.5"})
	s.Require().Error(err)
	s.Contains(s.auditActions(), string(audit.ActionLoginFailed))
}
