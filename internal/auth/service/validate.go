package service

import (
	"context"

	"trustcore/internal/auth/models"
	"trustcore/internal/jwttoken"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

// Authenticate resolves a bearer token to a Principal. Beyond signature and
// expiry checks it enforces the two stateful conditions claims alone cannot
// answer: the JTI must not be blacklisted, and the embedded token_version
// must match the account's current one.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.Principal, *jwttoken.AccessTokenClaims, error) {
	claims, err := s.tokens.ValidateToken(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}

	now := requestcontext.Now(ctx)
	revoked, err := s.blacklist.Contains(ctx, claims.ID, now)
	if err != nil {
		// cannot prove the token is live, so reject it
		return nil, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "revocation check unavailable")
	}
	if revoked {
		return nil, nil, dErrors.New(dErrors.CodeTokenRevoked, "token has been revoked")
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, nil, dErrors.New(dErrors.CodeTokenInvalid, "invalid token subject")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, dErrors.New(dErrors.CodeTokenInvalid, "unknown token subject")
	}

	if claims.TokenVersion != user.TokenVersion {
		return nil, nil, dErrors.New(dErrors.CodeTokenRevoked, "token issued before credential change")
	}

	principal := user.Principal()
	return &principal, claims, nil
}
