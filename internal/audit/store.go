package audit

import (
	"context"

	dErrors "trustcore/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific 404s consistent across implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "audit entry not found")

// Store persists chain entries. Append runs build under the store's chain
// lock: build receives the current head hash and returns the finished entry,
// and the store guarantees no other append interleaves. Postgres holds a row
// lock on the chain head for the duration; memory holds a mutex.
type Store interface {
	Append(ctx context.Context, build func(prevHash string) (*Entry, error)) (*Entry, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*Entry, error)
	ListAll(ctx context.Context) ([]*Entry, error)
}
