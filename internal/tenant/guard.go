// Package tenant enforces ownership isolation. Every tenant-scoped resource
// access goes through the guard, and a resource belonging to another tenant
// is reported exactly like one that does not exist.
package tenant

import (
	"context"
	"errors"
	"log/slog"

	"trustcore/internal/auth/models"
	id "trustcore/pkg/domain"
	dErrors "trustcore/pkg/domain-errors"
)

// ErrNotFound masks both genuinely missing resources and cross-tenant hits.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "resource not found")

// OwnershipSource reports which tenant owns a resource of one type.
// Implementations return a CodeNotFound error when the resource is absent.
type OwnershipSource interface {
	OwnerTenant(ctx context.Context, resourceID string) (id.TenantID, error)
}

// Guard checks resource ownership against the caller's tenant.
type Guard struct {
	sources map[string]OwnershipSource
	logger  *slog.Logger
}

type GuardOption func(*Guard)

func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{sources: make(map[string]OwnershipSource)}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Register binds a resource type to its ownership source. Types are
// registered at wiring time, before the guard serves requests.
func (g *Guard) Register(resourceType string, source OwnershipSource) {
	g.sources[resourceType] = source
}

// Verify confirms the principal's tenant owns the resource. The caller
// learns nothing about other tenants' resources: wrong-tenant and missing
// both come back as the same not-found error.
func (g *Guard) Verify(ctx context.Context, principal *models.Principal, resourceType, resourceID string) error {
	source, ok := g.sources[resourceType]
	if !ok {
		g.logger.Error("ownership check for unregistered resource type", "resource_type", resourceType)
		return dErrors.New(dErrors.CodeInternal, "unknown resource type")
	}

	owner, err := source.OwnerTenant(ctx, resourceID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return ErrNotFound
		}
		return err
	}

	if owner != principal.TenantID {
		// deliberate masking; log the real reason for operators
		g.logger.Warn("cross-tenant access blocked",
			"resource_type", resourceType,
			"resource_id", resourceID,
			"caller_tenant", principal.TenantID.String(),
			"owner_tenant", owner.String(),
		)
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err is the guard's masked not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound)
}
