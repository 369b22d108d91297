// Package audit maintains a tamper-evident, hash-chained log of security
// events. Writes are synchronous and fail closed: when an append cannot be
// persisted the guarded operation must not proceed.
package audit

import (
	"context"
	"crypto/rand"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"trustcore/internal/platform/metrics"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/requestcontext"
)

type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type RecorderOption func(*Recorder)

func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Append assigns identity and chain position to rec and persists it.
// Entry IDs are ULIDs so the log sorts by creation time lexically.
func (r *Recorder) Append(ctx context.Context, rec Record) (*Entry, error) {
	now := requestcontext.Now(ctx)

	entry, err := r.store.Append(ctx, func(prevHash string) (*Entry, error) {
		e := &Entry{
			ID:           ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
			Timestamp:    now,
			ActorID:      rec.ActorID,
			TenantID:     rec.TenantID,
			Action:       rec.Action,
			ResourceType: rec.ResourceType,
			ResourceID:   rec.ResourceID,
			Success:      rec.Success,
			Metadata:     rec.Metadata,
			PrevHash:     prevHash,
		}
		hash, err := ComputeHash(prevHash, e)
		if err != nil {
			return nil, err
		}
		e.EntryHash = hash
		return e, nil
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.AuditAppendErrors.Inc()
		}
		r.logger.Error("audit append failed",
			"error", err,
			"action", rec.Action,
			"actor_id", rec.ActorID,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit append failed")
	}

	if r.metrics != nil {
		r.metrics.AuditAppends.Inc()
	}
	return entry, nil
}

// List returns a tenant's slice of the log, oldest first.
func (r *Recorder) List(ctx context.Context, tenantID string, limit, offset int) ([]*Entry, error) {
	return r.store.ListByTenant(ctx, tenantID, limit, offset)
}

// Verify walks the full chain and reports the first broken link, if any.
func (r *Recorder) Verify(ctx context.Context) error {
	entries, err := r.store.ListAll(ctx)
	if err != nil {
		return err
	}
	return VerifyChain(entries)
}
