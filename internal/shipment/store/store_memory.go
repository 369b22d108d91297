// Package store persists shipments. All reads are tenant-scoped; only the
// ownership lookup used by the tenant guard sees across tenants.
package store

import (
	"context"
	"sync"
	"time"

	"trustcore/internal/shipment/models"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
)

var (
	// ErrNotFound is returned when no shipment matches the tenant-scoped query.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "shipment not found")
	// ErrVersionConflict is returned when the expected version is stale.
	ErrVersionConflict = dErrors.New(dErrors.CodeStaleVersion, "shipment was modified by another request")
)

type InMemoryShipmentStore struct {
	mu        sync.Mutex
	shipments map[id.ShipmentID]*models.Shipment
}

func NewInMemoryShipmentStore() *InMemoryShipmentStore {
	return &InMemoryShipmentStore{shipments: make(map[id.ShipmentID]*models.Shipment)}
}

func (s *InMemoryShipmentStore) Create(_ context.Context, sh *models.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.shipments[sh.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "shipment already exists")
	}
	cp := *sh
	s.shipments[sh.ID] = &cp
	return nil
}

func (s *InMemoryShipmentStore) FindByID(_ context.Context, tenantID id.TenantID, shipmentID id.ShipmentID) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shipments[shipmentID]
	if !ok || sh.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *sh
	return &cp, nil
}

func (s *InMemoryShipmentStore) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Shipment
	for _, sh := range s.shipments {
		if sh.TenantID == tenantID {
			cp := *sh
			out = append(out, &cp)
		}
	}
	return out, nil
}

// UpdateVersioned is the compare-and-swap: the write succeeds only when the
// stored version still equals expectedVersion, and exactly one of any set of
// racing writers wins.
func (s *InMemoryShipmentStore) UpdateVersioned(_ context.Context, sh *models.Shipment, expectedVersion int64, now time.Time) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.shipments[sh.ID]
	if !ok || current.TenantID != sh.TenantID {
		return nil, ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	cp := *sh
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = now
	cp.CreatedAt = current.CreatedAt
	s.shipments[sh.ID] = &cp

	out := cp
	return &out, nil
}

// OwnerTenant reports the owning tenant for the guard. Unlike the scoped
// reads it may look at any shipment.
func (s *InMemoryShipmentStore) OwnerTenant(_ context.Context, resourceID string) (id.TenantID, error) {
	shipmentID, err := id.ParseShipmentID(resourceID)
	if err != nil {
		return id.TenantID{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shipments[shipmentID]
	if !ok {
		return id.TenantID{}, ErrNotFound
	}
	return sh.TenantID, nil
}
