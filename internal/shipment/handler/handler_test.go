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

	authModels "trustcore/internal/auth/models"
	"trustcore/internal/jwttoken"
	"trustcore/internal/platform/middleware"
	"trustcore/internal/shipment/models"
	"trustcore/internal/shipment/service"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
)

type stubShipments struct {
	createFn func(ctx context.Context, p *authModels.Principal, in service.CreateInput) (*models.Shipment, error)
	getFn    func(ctx context.Context, p *authModels.Principal, shipmentID id.ShipmentID) (*models.Shipment, error)
	listFn   func(ctx context.Context, p *authModels.Principal) ([]*models.Shipment, error)
	updateFn func(ctx context.Context, p *authModels.Principal, shipmentID id.ShipmentID, patch models.Patch, expected int64) (*models.Shipment, error)
}

func (s *stubShipments) Create(ctx context.Context, p *authModels.Principal, in service.CreateInput) (*models.Shipment, error) {
	return s.createFn(ctx, p, in)
}

func (s *stubShipments) Get(ctx context.Context, p *authModels.Principal, shipmentID id.ShipmentID) (*models.Shipment, error) {
	return s.getFn(ctx, p, shipmentID)
}

func (s *stubShipments) List(ctx context.Context, p *authModels.Principal) ([]*models.Shipment, error) {
	return s.listFn(ctx, p)
}

func (s *stubShipments) Update(ctx context.Context, p *authModels.Principal, shipmentID id.ShipmentID, patch models.Patch, expected int64) (*models.Shipment, error) {
	return s.updateFn(ctx, p, shipmentID, patch, expected)
}

type stubAuthenticator struct {
	principal *authModels.Principal
}

func (a *stubAuthenticator) Authenticate(_ context.Context, _ string) (*authModels.Principal, *jwttoken.AccessTokenClaims, error) {
	if a.principal == nil {
		return nil, nil, dErrors.New(dErrors.CodeTokenInvalid, "invalid token")
	}
	return a.principal, &jwttoken.AccessTokenClaims{}, nil
}

func newRouter(svc Service, principal *authModels.Principal) http.Handler {
	h := New(svc, nil)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(&stubAuthenticator{principal: principal}))
		h.Register(r)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer ok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func testPrincipal() *authModels.Principal {
	return &authModels.Principal{ID: id.NewUserID(), TenantID: id.NewTenantID(), Role: "member"}
}

func TestHandleCreate(t *testing.T) {
	principal := testPrincipal()
	svc := &stubShipments{
		createFn: func(_ context.Context, p *authModels.Principal, in service.CreateInput) (*models.Shipment, error) {
			assert.Equal(t, principal.TenantID, p.TenantID)
			assert.Equal(t, "EXP-2026-019", in.Reference)
			return &models.Shipment{
				ID:        id.NewShipmentID(),
				TenantID:  p.TenantID,
				Reference: in.Reference,
				Status:    models.StatusDraft,
				Version:   1,
			}, nil
		},
	}
	router := newRouter(svc, principal)

	rec := doJSON(t, router, http.MethodPost, "/shipments", map[string]any{
		"reference":   "EXP-2026-019",
		"value_cents": 1250000,
		"currency":    "USD",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EXP-2026-019", resp["reference"])
	assert.Equal(t, "draft", resp["status"])
	assert.EqualValues(t, 1, resp["version"])
}

func TestHandleGetMasksForeignTenant(t *testing.T) {
	svc := &stubShipments{
		getFn: func(_ context.Context, _ *authModels.Principal, _ id.ShipmentID) (*models.Shipment, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		},
	}
	router := newRouter(svc, testPrincipal())

	rec := doJSON(t, router, http.MethodGet, "/shipments/"+id.NewShipmentID().String(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(dErrors.CodeNotFound), resp["error"])
}

func TestHandleGetRejectsBadID(t *testing.T) {
	router := newRouter(&stubShipments{}, testPrincipal())

	rec := doJSON(t, router, http.MethodGet, "/shipments/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUpdateStaleVersionConflicts(t *testing.T) {
	svc := &stubShipments{
		updateFn: func(_ context.Context, _ *authModels.Principal, _ id.ShipmentID, _ models.Patch, expected int64) (*models.Shipment, error) {
			assert.EqualValues(t, 2, expected)
			return nil, dErrors.New(dErrors.CodeStaleVersion, "shipment was updated concurrently")
		},
	}
	router := newRouter(svc, testPrincipal())

	rec := doJSON(t, router, http.MethodPut, "/shipments/"+id.NewShipmentID().String(), map[string]any{
		"expected_version": 2,
		"consignee_name":   "Nordlys Handel AS",
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(dErrors.CodeStaleVersion), resp["error"])
}

func TestHandleUpdateAppliesPatch(t *testing.T) {
	var gotPatch models.Patch
	svc := &stubShipments{
		updateFn: func(_ context.Context, _ *authModels.Principal, _ id.ShipmentID, patch models.Patch, expected int64) (*models.Shipment, error) {
			gotPatch = patch
			return &models.Shipment{Status: models.StatusSubmitted, Version: expected + 1}, nil
		},
	}
	router := newRouter(svc, testPrincipal())

	rec := doJSON(t, router, http.MethodPut, "/shipments/"+id.NewShipmentID().String(), map[string]any{
		"expected_version": 1,
		"status":           "submitted",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotPatch.Status)
	assert.Equal(t, models.StatusSubmitted, *gotPatch.Status)
	assert.Nil(t, gotPatch.ConsigneeName)
}

func TestHandleUpdateRejectsUnknownStatus(t *testing.T) {
	router := newRouter(&stubShipments{}, testPrincipal())

	rec := doJSON(t, router, http.MethodPut, "/shipments/"+id.NewShipmentID().String(), map[string]any{
		"expected_version": 1,
		"status":           "teleported",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	router := newRouter(&stubShipments{}, nil)

	rec := doJSON(t, router, http.MethodGet, "/shipments", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
