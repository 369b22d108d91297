package aggregator

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresEventSink persists tracking events; the primary key on event_id
// makes redeliveries a no-op.
type PostgresEventSink struct {
	db *sql.DB
}

func NewPostgresEventSink(db *sql.DB) *PostgresEventSink {
	return &PostgresEventSink{db: db}
}

func (s *PostgresEventSink) Store(ctx context.Context, event Event) (bool, error) {
	query := `
		INSERT INTO tracking_events (event_id, shipment_ref, event_type, vessel, location, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		event.EventID, event.ShipmentRef, event.EventType,
		event.Vessel, event.Location, event.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert tracking event: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
