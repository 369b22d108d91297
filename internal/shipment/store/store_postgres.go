package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trustcore/internal/shipment/models"
	id "trustcore/pkg/domain"
)

const shipmentColumns = `id, tenant_id, reference, status, consignee_name, origin_port, destination_port, value_cents, currency, version, created_at, updated_at`

type PostgresShipmentStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresShipmentStore {
	return &PostgresShipmentStore{db: db}
}

func (s *PostgresShipmentStore) Create(ctx context.Context, sh *models.Shipment) error {
	query := `
		INSERT INTO shipments (` + shipmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		sh.ID.String(), sh.TenantID.String(), sh.Reference, sh.Status,
		sh.ConsigneeName, sh.OriginPort, sh.DestinationPort,
		sh.ValueCents, sh.Currency, sh.Version, sh.CreatedAt, sh.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func (s *PostgresShipmentStore) FindByID(ctx context.Context, tenantID id.TenantID, shipmentID id.ShipmentID) (*models.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1 AND tenant_id = $2`
	row := s.db.QueryRowContext(ctx, query, shipmentID.String(), tenantID.String())
	return scanShipment(row)
}

func (s *PostgresShipmentStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	var out []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// UpdateVersioned performs the conditional write. The version predicate in
// the WHERE clause is what makes concurrent updates safe: the row only
// changes when nobody got there first.
func (s *PostgresShipmentStore) UpdateVersioned(ctx context.Context, sh *models.Shipment, expectedVersion int64, now time.Time) (*models.Shipment, error) {
	query := `
		UPDATE shipments SET
			reference = $1, status = $2, consignee_name = $3,
			origin_port = $4, destination_port = $5,
			value_cents = $6, currency = $7,
			version = version + 1, updated_at = $8
		WHERE id = $9 AND tenant_id = $10 AND version = $11
		RETURNING ` + shipmentColumns + `
	`
	row := s.db.QueryRowContext(ctx, query,
		sh.Reference, sh.Status, sh.ConsigneeName,
		sh.OriginPort, sh.DestinationPort,
		sh.ValueCents, sh.Currency, now,
		sh.ID.String(), sh.TenantID.String(), expectedVersion,
	)
	updated, err := scanShipment(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// zero rows: distinguish a stale version from a missing shipment
	var currentVersion int64
	probeErr := s.db.QueryRowContext(ctx,
		`SELECT version FROM shipments WHERE id = $1 AND tenant_id = $2`,
		sh.ID.String(), sh.TenantID.String()).Scan(&currentVersion)
	if probeErr != nil {
		if errors.Is(probeErr, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("probe shipment version: %w", probeErr)
	}
	return nil, ErrVersionConflict
}

func (s *PostgresShipmentStore) OwnerTenant(ctx context.Context, resourceID string) (id.TenantID, error) {
	shipmentID, err := id.ParseShipmentID(resourceID)
	if err != nil {
		return id.TenantID{}, ErrNotFound
	}

	var tenantRaw string
	err = s.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM shipments WHERE id = $1`, shipmentID.String()).Scan(&tenantRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.TenantID{}, ErrNotFound
		}
		return id.TenantID{}, fmt.Errorf("query shipment owner: %w", err)
	}
	return id.ParseTenantID(tenantRaw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*models.Shipment, error) {
	var (
		sh        models.Shipment
		rawID     string
		rawTenant string
	)
	err := row.Scan(
		&rawID, &rawTenant, &sh.Reference, &sh.Status,
		&sh.ConsigneeName, &sh.OriginPort, &sh.DestinationPort,
		&sh.ValueCents, &sh.Currency, &sh.Version, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan shipment: %w", err)
	}

	if sh.ID, err = id.ParseShipmentID(rawID); err != nil {
		return nil, err
	}
	if sh.TenantID, err = id.ParseTenantID(rawTenant); err != nil {
		return nil, err
	}
	return &sh, nil
}
