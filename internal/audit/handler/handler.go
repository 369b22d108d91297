package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trustcore/internal/audit"
	"trustcore/internal/platform/middleware"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/platform/httputil"
	"trustcore/pkg/requestcontext"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Service defines the audit log operations the handler exposes.
type Service interface {
	List(ctx context.Context, tenantID string, limit, offset int) ([]*audit.Entry, error)
	Verify(ctx context.Context) error
}

// Handler serves the tenant-scoped audit trail.
type Handler struct {
	auditor Service
	logger  *slog.Logger
}

// New creates an audit Handler.
func New(auditor Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{auditor: auditor, logger: logger}
}

// Register mounts the audit routes. All of them require authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.HandleList)
	r.Get("/audit/verify", h.HandleVerify)
}

type entryResponse struct {
	ID           string            `json:"id"`
	Timestamp    string            `json:"timestamp"`
	ActorID      string            `json:"actor_id"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Success      bool              `json:"success"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	EntryHash    string            `json:"entry_hash"`
	PrevHash     string            `json:"prev_hash"`
}

// HandleList returns the caller's tenant slice of the audit chain, newest
// first pagination left to limit/offset query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := h.auditor.List(ctx, principal.TenantID.String(), limit, offset)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit entries",
			"error", err,
			"tenant_id", principal.TenantID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:           e.ID,
			Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
			ActorID:      e.ActorID,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Success:      e.Success,
			Metadata:     e.Metadata,
			EntryHash:    e.EntryHash,
			PrevHash:     e.PrevHash,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// HandleVerify walks the full chain and reports whether it is intact.
// Restricted to admins since it reads across tenants.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if principal.Role != "admin" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin role required"))
		return
	}

	if err := h.auditor.Verify(ctx); err != nil {
		h.logger.ErrorContext(ctx, "audit chain verification failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"intact": true})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
