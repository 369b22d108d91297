package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authModels "trustcore/internal/auth/models"
	"trustcore/internal/platform/middleware"
	"trustcore/internal/shipment/models"
	"trustcore/internal/shipment/service"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/platform/httputil"
	"trustcore/pkg/requestcontext"
)

// Service defines the shipment operations the handler exposes.
type Service interface {
	Create(ctx context.Context, principal *authModels.Principal, input service.CreateInput) (*models.Shipment, error)
	Get(ctx context.Context, principal *authModels.Principal, shipmentID id.ShipmentID) (*models.Shipment, error)
	List(ctx context.Context, principal *authModels.Principal) ([]*models.Shipment, error)
	Update(ctx context.Context, principal *authModels.Principal, shipmentID id.ShipmentID, patch models.Patch, expectedVersion int64) (*models.Shipment, error)
}

// Handler serves tenant-scoped shipment endpoints.
type Handler struct {
	shipments Service
	logger    *slog.Logger
}

// New creates a shipment Handler.
func New(shipments Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{shipments: shipments, logger: logger}
}

// Register mounts the shipment routes. All of them require authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/shipments", h.HandleCreate)
	r.Get("/shipments", h.HandleList)
	r.Get("/shipments/{shipment_id}", h.HandleGet)
	r.Put("/shipments/{shipment_id}", h.HandleUpdate)
}

type shipmentResponse struct {
	ID              string    `json:"id"`
	Reference       string    `json:"reference"`
	Status          string    `json:"status"`
	ConsigneeName   string    `json:"consignee_name"`
	OriginPort      string    `json:"origin_port"`
	DestinationPort string    `json:"destination_port"`
	ValueCents      int64     `json:"value_cents"`
	Currency        string    `json:"currency"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toResponse(sh *models.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:              sh.ID.String(),
		Reference:       sh.Reference,
		Status:          string(sh.Status),
		ConsigneeName:   sh.ConsigneeName,
		OriginPort:      sh.OriginPort,
		DestinationPort: sh.DestinationPort,
		ValueCents:      sh.ValueCents,
		Currency:        sh.Currency,
		Version:         sh.Version,
		CreatedAt:       sh.CreatedAt,
		UpdatedAt:       sh.UpdatedAt,
	}
}

type createRequest struct {
	Reference       string `json:"reference"`
	ConsigneeName   string `json:"consignee_name"`
	OriginPort      string `json:"origin_port"`
	DestinationPort string `json:"destination_port"`
	ValueCents      int64  `json:"value_cents"`
	Currency        string `json:"currency"`
}

// HandleCreate opens a new draft shipment in the caller's tenant.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	var req createRequest
	if err := httputil.DecodeJSON(r, &req, 0); err != nil {
		httputil.WriteError(w, err)
		return
	}

	sh, err := h.shipments.Create(ctx, principal, service.CreateInput{
		Reference:       req.Reference,
		ConsigneeName:   req.ConsigneeName,
		OriginPort:      req.OriginPort,
		DestinationPort: req.DestinationPort,
		ValueCents:      req.ValueCents,
		Currency:        req.Currency,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "shipment creation failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toResponse(sh))
}

// HandleList returns every shipment in the caller's tenant.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	shipments, err := h.shipments.List(ctx, principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]shipmentResponse, 0, len(shipments))
	for _, sh := range shipments {
		out = append(out, toResponse(sh))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"shipments": out})
}

// HandleGet returns a single shipment. A shipment belonging to another
// tenant is reported as not found.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	shipmentID, err := id.ParseShipmentID(chi.URLParam(r, "shipment_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sh, err := h.shipments.Get(ctx, principal, shipmentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toResponse(sh))
}

type updateRequest struct {
	ExpectedVersion int64   `json:"expected_version"`
	Status          *string `json:"status,omitempty"`
	ConsigneeName   *string `json:"consignee_name,omitempty"`
	OriginPort      *string `json:"origin_port,omitempty"`
	DestinationPort *string `json:"destination_port,omitempty"`
	ValueCents      *int64  `json:"value_cents,omitempty"`
	Currency        *string `json:"currency,omitempty"`
}

// HandleUpdate applies a versioned update. A stale expected_version yields
// 409 with the current version so the client can re-read and retry.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	shipmentID, err := id.ParseShipmentID(chi.URLParam(r, "shipment_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req updateRequest
	if err := httputil.DecodeJSON(r, &req, 0); err != nil {
		httputil.WriteError(w, err)
		return
	}

	patch := models.Patch{
		ConsigneeName:   req.ConsigneeName,
		OriginPort:      req.OriginPort,
		DestinationPort: req.DestinationPort,
		ValueCents:      req.ValueCents,
		Currency:        req.Currency,
	}
	if req.Status != nil {
		status := models.Status(*req.Status)
		if !status.Valid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown shipment status"))
			return
		}
		patch.Status = &status
	}

	sh, err := h.shipments.Update(ctx, principal, shipmentID, patch, req.ExpectedVersion)
	if err != nil {
		h.logger.WarnContext(ctx, "shipment update failed",
			"error", err,
			"shipment_id", shipmentID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toResponse(sh))
}
