package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"trustcore/internal/connector/ai"
	"trustcore/internal/platform/middleware"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/platform/httputil"
	"trustcore/pkg/requestcontext"
)

// Generator defines the document drafting operation the handler exposes.
type Generator interface {
	GenerateDocument(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResult, error)
}

// Handler proxies document drafting to the AI service behind the resilient
// client. The caller's tenant is taken from the token, never the body.
type Handler struct {
	generator Generator
	logger    *slog.Logger
}

// New creates a drafting Handler.
func New(generator Generator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{generator: generator, logger: logger}
}

// Register mounts the drafting route. It requires authentication and is
// rate limited per tenant by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ai/documents", h.HandleGenerate)
}

type generateRequest struct {
	ShipmentRef  string `json:"shipment_ref"`
	DocumentType string `json:"document_type"`
	Instructions string `json:"instructions,omitempty"`
}

// HandleGenerate drafts an export document for a shipment.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req generateRequest
	if err := httputil.DecodeJSON(r, &req, 0); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.DocumentType) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "document_type is required"))
		return
	}

	result, err := h.generator.GenerateDocument(ctx, ai.GenerateRequest{
		TenantID:     principal.TenantID.String(),
		ShipmentRef:  req.ShipmentRef,
		DocumentType: req.DocumentType,
		Instructions: req.Instructions,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "document drafting failed",
			"error", err,
			"tenant_id", principal.TenantID,
			"document_type", req.DocumentType,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}
