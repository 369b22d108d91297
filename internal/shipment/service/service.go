// Package service owns shipment reads and writes. Writes use optimistic
// concurrency: callers echo back the version they read, and a stale echo is
// rejected so no edit is ever silently lost.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"trustcore/internal/audit"
	authModels "trustcore/internal/auth/models"
	"trustcore/internal/platform/metrics"
	"trustcore/internal/shipment/models"
	"trustcore/internal/shipment/store"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

// ShipmentStore is the persistence contract for shipments.
type ShipmentStore interface {
	Create(ctx context.Context, sh *models.Shipment) error
	FindByID(ctx context.Context, tenantID id.TenantID, shipmentID id.ShipmentID) (*models.Shipment, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Shipment, error)
	UpdateVersioned(ctx context.Context, sh *models.Shipment, expectedVersion int64, now time.Time) (*models.Shipment, error)
}

// OwnershipGuard verifies tenant ownership before any scoped operation.
type OwnershipGuard interface {
	Verify(ctx context.Context, principal *authModels.Principal, resourceType, resourceID string) error
}

// AuditRecorder appends shipment mutations to the tamper-evident log.
type AuditRecorder interface {
	Append(ctx context.Context, rec audit.Record) (*audit.Entry, error)
}

const resourceType = "shipment"

type Service struct {
	store   ShipmentStore
	guard   OwnershipGuard
	auditor AuditRecorder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		s.auditor = recorder
	}
}

func NewService(store ShipmentStore, guard OwnershipGuard, opts ...Option) *Service {
	svc := &Service{store: store, guard: guard}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// CreateInput carries the fields for a new shipment.
type CreateInput struct {
	Reference       string
	ConsigneeName   string
	OriginPort      string
	DestinationPort string
	ValueCents      int64
	Currency        string
}

func (s *Service) Create(ctx context.Context, principal *authModels.Principal, input CreateInput) (*models.Shipment, error) {
	if input.Reference == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "reference is required")
	}
	if input.ValueCents < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "value cannot be negative")
	}

	now := requestcontext.Now(ctx)
	sh := &models.Shipment{
		ID:              id.NewShipmentID(),
		TenantID:        principal.TenantID,
		Reference:       input.Reference,
		Status:          models.StatusDraft,
		ConsigneeName:   input.ConsigneeName,
		OriginPort:      input.OriginPort,
		DestinationPort: input.DestinationPort,
		ValueCents:      input.ValueCents,
		Currency:        input.Currency,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// Get fetches one shipment the principal's tenant owns.
func (s *Service) Get(ctx context.Context, principal *authModels.Principal, shipmentID id.ShipmentID) (*models.Shipment, error) {
	if err := s.guard.Verify(ctx, principal, resourceType, shipmentID.String()); err != nil {
		return nil, err
	}
	return s.store.FindByID(ctx, principal.TenantID, shipmentID)
}

// List returns every shipment in the principal's tenant.
func (s *Service) List(ctx context.Context, principal *authModels.Principal) ([]*models.Shipment, error) {
	return s.store.ListByTenant(ctx, principal.TenantID)
}

// Update applies a patch if and only if the caller's version is current.
// A CodeStaleVersion result means someone else updated first; the caller
// re-reads and reapplies its change against the new version.
func (s *Service) Update(ctx context.Context, principal *authModels.Principal, shipmentID id.ShipmentID, patch models.Patch, expectedVersion int64) (*models.Shipment, error) {
	if expectedVersion < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "expected version is required")
	}
	if err := s.guard.Verify(ctx, principal, resourceType, shipmentID.String()); err != nil {
		return nil, err
	}

	current, err := s.store.FindByID(ctx, principal.TenantID, shipmentID)
	if err != nil {
		return nil, err
	}

	next := *current
	patch.Apply(&next)

	now := requestcontext.Now(ctx)
	updated, err := s.store.UpdateVersioned(ctx, &next, expectedVersion, now)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			if s.metrics != nil {
				s.metrics.VersionConflicts.Inc()
			}
			s.logger.Info("shipment update lost the race",
				"shipment_id", shipmentID.String(),
				"expected_version", expectedVersion,
			)
		}
		return nil, err
	}

	if s.auditor != nil {
		if _, err := s.auditor.Append(ctx, audit.Record{
			ActorID:      principal.ID.String(),
			TenantID:     principal.TenantID.String(),
			Action:       string(audit.ActionShipmentUpdated),
			ResourceType: resourceType,
			ResourceID:   shipmentID.String(),
			Success:      true,
			Metadata: map[string]string{
				"version": strconv.FormatInt(updated.Version, 10),
			},
		}); err != nil {
			return nil, err
		}
	}
	return updated, nil
}
