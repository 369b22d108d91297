package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/auth/models"
	"trustcore/internal/jwttoken"
	"trustcore/internal/platform/middleware"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
)

type stubService struct {
	registerFn      func(ctx context.Context, tenantID id.TenantID, email, password, role string) (*models.User, error)
	loginFn         func(ctx context.Context, email, password string, dev models.DeviceInfo) (*models.CredentialPair, error)
	refreshFn       func(ctx context.Context, refreshToken string, dev models.DeviceInfo) (*models.CredentialPair, error)
	logoutFn        func(ctx context.Context, accessToken string) error
	logoutAllFn     func(ctx context.Context, principal *models.Principal) (int, error)
	revokeOthersFn  func(ctx context.Context, principal *models.Principal, current id.SessionID) (int, error)
	revokeSessionFn func(ctx context.Context, principal *models.Principal, sessionID id.SessionID) error
	changePassFn    func(ctx context.Context, principal *models.Principal, current, next string) error
	listSessionsFn  func(ctx context.Context, principal *models.Principal, current id.SessionID) ([]models.SessionView, error)
}

func (s *stubService) Register(ctx context.Context, tenantID id.TenantID, email, password, role string) (*models.User, error) {
	return s.registerFn(ctx, tenantID, email, password, role)
}

func (s *stubService) Login(ctx context.Context, email, password string, dev models.DeviceInfo) (*models.CredentialPair, error) {
	return s.loginFn(ctx, email, password, dev)
}

func (s *stubService) Refresh(ctx context.Context, refreshToken string, dev models.DeviceInfo) (*models.CredentialPair, error) {
	return s.refreshFn(ctx, refreshToken, dev)
}

func (s *stubService) Logout(ctx context.Context, accessToken string) error {
	return s.logoutFn(ctx, accessToken)
}

func (s *stubService) LogoutAll(ctx context.Context, principal *models.Principal) (int, error) {
	return s.logoutAllFn(ctx, principal)
}

func (s *stubService) RevokeOtherSessions(ctx context.Context, principal *models.Principal, current id.SessionID) (int, error) {
	return s.revokeOthersFn(ctx, principal, current)
}

func (s *stubService) RevokeSession(ctx context.Context, principal *models.Principal, sessionID id.SessionID) error {
	return s.revokeSessionFn(ctx, principal, sessionID)
}

func (s *stubService) ChangePassword(ctx context.Context, principal *models.Principal, current, next string) error {
	return s.changePassFn(ctx, principal, current, next)
}

func (s *stubService) ListSessions(ctx context.Context, principal *models.Principal, current id.SessionID) ([]models.SessionView, error) {
	return s.listSessionsFn(ctx, principal, current)
}

type stubAuthenticator struct {
	principal *models.Principal
	claims    *jwttoken.AccessTokenClaims
	err       error
}

func (a *stubAuthenticator) Authenticate(_ context.Context, _ string) (*models.Principal, *jwttoken.AccessTokenClaims, error) {
	return a.principal, a.claims, a.err
}

func newRouter(svc Service, auth middleware.Authenticator) http.Handler {
	h := New(svc, nil)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(auth))
		h.RegisterProtected(r)
	})
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.RemoteAddr = "198.51.100.7:59211"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleLoginSuccess(t *testing.T) {
	sessionID := id.NewSessionID()
	svc := &stubService{
		loginFn: func(_ context.Context, email, password string, dev models.DeviceInfo) (*models.CredentialPair, error) {
			assert.Equal(t, "ops@fjord.example", email)
			assert.Equal(t, "correct horse battery", password)
			assert.Equal(t, "198.51.100.7", dev.IP)
			return &models.CredentialPair{
				AccessToken:  "acc",
				RefreshToken: "ref",
				SessionID:    sessionID,
			}, nil
		},
	}
	router := newRouter(svc, &stubAuthenticator{})

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "ops@fjord.example",
		"password": "correct horse battery",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "acc", resp["access_token"])
	assert.Equal(t, "ref", resp["refresh_token"])
	assert.Equal(t, "Bearer", resp["token_type"])
	assert.Equal(t, sessionID.String(), resp["session_id"])
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	svc := &stubService{
		loginFn: func(_ context.Context, _, _ string, _ models.DeviceInfo) (*models.CredentialPair, error) {
			return nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")
		},
	}
	router := newRouter(svc, &stubAuthenticator{})

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "ops@fjord.example",
		"password": "wrong",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(dErrors.CodeInvalidCredentials), resp["error"])
}

func TestHandleLoginRejectsMalformedBody(t *testing.T) {
	router := newRouter(&stubService{}, &stubAuthenticator{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	req.RemoteAddr = "198.51.100.7:59211"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRegisterRequiresTenant(t *testing.T) {
	router := newRouter(&stubService{}, &stubAuthenticator{})

	rec := postJSON(t, router, "/auth/register", map[string]string{
		"email":    "new@fjord.example",
		"password": "long enough password",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRefreshRequiresToken(t *testing.T) {
	router := newRouter(&stubService{}, &stubAuthenticator{})

	rec := postJSON(t, router, "/auth/refresh", map[string]string{}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLogoutRequiresBearer(t *testing.T) {
	router := newRouter(&stubService{}, &stubAuthenticator{})

	rec := postJSON(t, router, "/auth/logout", map[string]string{}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogoutPassesToken(t *testing.T) {
	var got string
	svc := &stubService{
		logoutFn: func(_ context.Context, accessToken string) error {
			got = accessToken
			return nil
		},
	}
	router := newRouter(svc, &stubAuthenticator{})

	rec := postJSON(t, router, "/auth/logout", map[string]string{}, map[string]string{
		"Authorization": "Bearer the-access-token",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "the-access-token", got)
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	auth := &stubAuthenticator{err: dErrors.New(dErrors.CodeTokenInvalid, "invalid token")}
	router := newRouter(&stubService{}, auth)

	rec := postJSON(t, router, "/auth/logout-all", nil, map[string]string{
		"Authorization": "Bearer junk",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, router, "/auth/logout-all", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogoutAll(t *testing.T) {
	principal := &models.Principal{ID: id.NewUserID(), TenantID: id.NewTenantID(), Role: "member"}
	auth := &stubAuthenticator{principal: principal, claims: &jwttoken.AccessTokenClaims{}}
	svc := &stubService{
		logoutAllFn: func(_ context.Context, p *models.Principal) (int, error) {
			assert.Equal(t, principal.ID, p.ID)
			return 3, nil
		},
	}
	router := newRouter(svc, auth)

	rec := postJSON(t, router, "/auth/logout-all", nil, map[string]string{
		"Authorization": "Bearer ok",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp["sessions_revoked"])
}

func TestHandleRevokeOtherSessionsKeepsCurrent(t *testing.T) {
	principal := &models.Principal{ID: id.NewUserID(), TenantID: id.NewTenantID(), Role: "member"}
	current := id.NewSessionID()
	auth := &stubAuthenticator{
		principal: principal,
		claims:    &jwttoken.AccessTokenClaims{SessionID: current.String()},
	}
	svc := &stubService{
		revokeOthersFn: func(_ context.Context, p *models.Principal, kept id.SessionID) (int, error) {
			assert.Equal(t, principal.ID, p.ID)
			assert.Equal(t, current, kept)
			return 2, nil
		},
	}
	router := newRouter(svc, auth)

	rec := postJSON(t, router, "/auth/sessions/revoke-others", nil, map[string]string{
		"Authorization": "Bearer ok",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["sessions_revoked"])
}

func TestHandleRevokeOtherSessionsRejectsBadSessionClaim(t *testing.T) {
	principal := &models.Principal{ID: id.NewUserID(), TenantID: id.NewTenantID(), Role: "member"}
	auth := &stubAuthenticator{
		principal: principal,
		claims:    &jwttoken.AccessTokenClaims{SessionID: "not-a-uuid"},
	}
	router := newRouter(&stubService{}, auth)

	rec := postJSON(t, router, "/auth/sessions/revoke-others", nil, map[string]string{
		"Authorization": "Bearer ok",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleListSessionsMarksCurrent(t *testing.T) {
	principal := &models.Principal{ID: id.NewUserID(), TenantID: id.NewTenantID(), Role: "member"}
	current := id.NewSessionID()
	auth := &stubAuthenticator{
		principal: principal,
		claims:    &jwttoken.AccessTokenClaims{SessionID: current.String()},
	}
	svc := &stubService{
		listSessionsFn: func(_ context.Context, _ *models.Principal, got id.SessionID) ([]models.SessionView, error) {
			assert.Equal(t, current, got)
			return []models.SessionView{{ID: got, Current: true}}, nil
		},
	}
	h := New(svc, nil)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(auth))
		h.RegisterProtected(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRevokeSessionRejectsBadID(t *testing.T) {
	principal := &models.Principal{ID: id.NewUserID(), TenantID: id.NewTenantID()}
	auth := &stubAuthenticator{principal: principal, claims: &jwttoken.AccessTokenClaims{}}
	router := newRouter(&stubService{}, auth)

	req := httptest.NewRequest(http.MethodDelete, "/auth/sessions/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRevokeSessionOtherOwnerMasked(t *testing.T) {
	principal := &models.Principal{ID: id.NewUserID(), TenantID: id.NewTenantID()}
	auth := &stubAuthenticator{principal: principal, claims: &jwttoken.AccessTokenClaims{}}
	svc := &stubService{
		revokeSessionFn: func(_ context.Context, _ *models.Principal, _ id.SessionID) error {
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		},
	}
	router := newRouter(svc, auth)

	req := httptest.NewRequest(http.MethodDelete, "/auth/sessions/"+id.NewSessionID().String(), nil)
	req.Header.Set("Authorization", "Bearer ok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
