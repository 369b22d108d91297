// Package jwttoken creates and validates the signed access tokens that carry
// principal identity between requests. Refresh tokens are opaque random
// strings; only access tokens are JWTs.
package jwttoken

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

const (
	// TokenTypeAccess marks claims minted for the Authorization header.
	TokenTypeAccess = "access"
)

// AccessTokenClaims represents the JWT claims for our access tokens.
// TokenVersion is the principal's credential generation: a password change
// bumps it, which invalidates every previously issued access token at once.
type AccessTokenClaims struct {
	TenantID     string `json:"tenant_id"`
	Role         string `json:"role"`
	SessionID    string `json:"session_id"`
	TokenType    string `json:"token_type"`
	TokenVersion int64  `json:"token_version"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
}

func NewService(signingKey string, issuer string, accessTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		accessTTL:  accessTTL,
	}
}

// AccessTTL reports the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// GenerateAccessToken mints a signed access token for the given principal.
// Returns the compact token and its JTI for blacklist tracking.
func (s *Service) GenerateAccessToken(
	ctx context.Context,
	userID id.UserID,
	tenantID id.TenantID,
	sessionID id.SessionID,
	role string,
	tokenVersion int64,
) (string, string, error) {
	if userID.IsNil() {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}
	if tenantID.IsNil() {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "tenant ID is required")
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	jti := hex.EncodeToString(b)
	now := requestcontext.Now(ctx)

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		TenantID:     tenantID.String(),
		Role:         role,
		SessionID:    sessionID.String(),
		TokenType:    TokenTypeAccess,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        jti,
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", "", err
	}
	return signedToken, jti, nil
}

// ValidateToken verifies signature, algorithm, expiry, issuer, and token type.
// Blacklist membership and token_version currency are the caller's checks; the
// claims alone cannot answer them.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*AccessTokenClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeTokenExpired, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "invalid token claims")
	}

	if claims.Issuer != s.issuer {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "invalid token issuer")
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "not an access token")
	}

	return claims, nil
}

// ParseExpiredToken parses a token WITHOUT validating expiry.
//
// Used only by logout and revocation flows that need the JTI from a token that
// may already be past its expiry. Signature and algorithm are still enforced.
func (s *Service) ParseExpiredToken(tokenString string) (*AccessTokenClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "empty token")
	}

	claims := new(AccessTokenClaims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "invalid jwt signature")
	}

	return claims, nil
}

// CreateRefreshToken generates an opaque 256-bit refresh token.
// Only its hash is ever persisted.
func (s *Service) CreateRefreshToken() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// HashToken returns the hex SHA-256 digest used as the storage key for
// refresh tokens and blacklist entries.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
