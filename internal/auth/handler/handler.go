package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"trustcore/internal/auth/models"
	"trustcore/internal/platform/middleware"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/platform/httputil"
	"trustcore/pkg/requestcontext"
)

// Service defines the authentication operations the handler exposes.
type Service interface {
	Register(ctx context.Context, tenantID id.TenantID, email, password, role string) (*models.User, error)
	Login(ctx context.Context, email, password string, dev models.DeviceInfo) (*models.CredentialPair, error)
	Refresh(ctx context.Context, refreshToken string, dev models.DeviceInfo) (*models.CredentialPair, error)
	Logout(ctx context.Context, accessToken string) error
	LogoutAll(ctx context.Context, principal *models.Principal) (int, error)
	RevokeOtherSessions(ctx context.Context, principal *models.Principal, currentSessionID id.SessionID) (int, error)
	RevokeSession(ctx context.Context, principal *models.Principal, sessionID id.SessionID) error
	ChangePassword(ctx context.Context, principal *models.Principal, currentPassword, newPassword string) error
	ListSessions(ctx context.Context, principal *models.Principal, currentSessionID id.SessionID) ([]models.SessionView, error)
}

// Handler serves the token lifecycle endpoints.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

// New creates an auth Handler.
func New(auth Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{auth: auth, logger: logger}
}

// Register mounts the public auth routes. Rate limiting is applied by the
// parent router per endpoint class.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/logout", h.HandleLogout)
}

// RegisterProtected mounts the routes that require a valid access token.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/auth/logout-all", h.HandleLogoutAll)
	r.Post("/auth/sessions/revoke-others", h.HandleRevokeOtherSessions)
	r.Put("/auth/password", h.HandleChangePassword)
	r.Get("/auth/sessions", h.HandleListSessions)
	r.Delete("/auth/sessions/{session_id}", h.HandleRevokeSession)
}

type registerRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type registerResponse struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// HandleRegister creates a user account inside a tenant.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := httputil.DecodeJSON(r, &req, 0); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tenantID, err := id.ParseTenantID(req.TenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}

	user, err := h.auth.Register(ctx, tenantID, req.Email, req.Password, req.Role)
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		ID:       user.ID.String(),
		TenantID: user.TenantID.String(),
		Email:    user.Email,
		Role:     user.Role,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	SessionID    string `json:"session_id"`
}

func toCredentialResponse(pair *models.CredentialPair) credentialResponse {
	return credentialResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.AccessTTL.Seconds()),
		SessionID:    pair.SessionID.String(),
	}
}

// HandleLogin exchanges credentials for a token pair.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := httputil.DecodeJSON(r, &req, 0); err != nil {
		httputil.WriteError(w, err)
		return
	}

	pair, err := h.auth.Login(ctx, req.Email, req.Password, deviceInfo(r))
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "login successful",
		"session_id", pair.SessionID,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh rotates a refresh token into a fresh credential pair.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := httputil.DecodeJSON(r, &req, 0); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "refresh_token is required"))
		return
	}

	pair, err := h.auth.Refresh(ctx, req.RefreshToken, deviceInfo(r))
	if err != nil {
		h.logger.WarnContext(ctx, "refresh failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(pair))
}

// HandleLogout revokes the presented access token's session. The token is
// read from the Authorization header; expired tokens are still accepted so a
// client can always log out.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
		return
	}

	if err := h.auth.Logout(ctx, token); err != nil {
		h.logger.WarnContext(ctx, "logout failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// HandleLogoutAll revokes every active session of the caller.
func (h *Handler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	revoked, err := h.auth.LogoutAll(ctx, principal)
	if err != nil {
		h.logger.ErrorContext(ctx, "logout-all failed",
			"error", err,
			"user_id", principal.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"sessions_revoked": revoked})
}

// HandleRevokeOtherSessions revokes every session of the caller except the
// one behind the presented token.
func (h *Handler) HandleRevokeOtherSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	currentSessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeTokenInvalid, "invalid session claim"))
		return
	}

	revoked, err := h.auth.RevokeOtherSessions(ctx, principal, currentSessionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "revoke-others failed",
			"error", err,
			"user_id", principal.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"sessions_revoked": revoked})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword rotates the caller's password and invalidates all
// outstanding credentials.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req changePasswordRequest
	if err := httputil.DecodeJSON(r, &req, 0); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.auth.ChangePassword(ctx, principal, req.CurrentPassword, req.NewPassword); err != nil {
		h.logger.WarnContext(ctx, "password change failed",
			"error", err,
			"user_id", principal.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"changed": true})
}

// HandleListSessions lists the caller's active sessions, flagging the current one.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var currentSessionID id.SessionID
	if claims, ok := middleware.ClaimsFromContext(ctx); ok {
		currentSessionID, _ = id.ParseSessionID(claims.SessionID)
	}

	views, err := h.auth.ListSessions(ctx, principal, currentSessionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list sessions",
			"error", err,
			"user_id", principal.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// HandleRevokeSession revokes one of the caller's sessions by ID.
func (h *Handler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.auth.RevokeSession(ctx, principal, sessionID); err != nil {
		h.logger.WarnContext(ctx, "session revocation failed",
			"error", err,
			"user_id", principal.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func deviceInfo(r *http.Request) models.DeviceInfo {
	return models.DeviceInfo{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
