package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/shipment/models"
	id "trustcore/pkg/domain"
)

func newMockStore(t *testing.T) (*PostgresShipmentStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func shipmentRows(sh *models.Shipment) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "reference", "status", "consignee_name",
		"origin_port", "destination_port", "value_cents", "currency",
		"version", "created_at", "updated_at",
	}).AddRow(
		sh.ID.String(), sh.TenantID.String(), sh.Reference, string(sh.Status),
		sh.ConsigneeName, sh.OriginPort, sh.DestinationPort,
		sh.ValueCents, sh.Currency, sh.Version, sh.CreatedAt, sh.UpdatedAt,
	)
}

func testShipment() *models.Shipment {
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	return &models.Shipment{
		ID:              id.NewShipmentID(),
		TenantID:        id.NewTenantID(),
		Reference:       "EXP-2026-044",
		Status:          models.StatusSubmitted,
		ConsigneeName:   "Nordlys Handel AS",
		OriginPort:      "NOOSL",
		DestinationPort: "SGSIN",
		ValueCents:      4_250_000,
		Currency:        "USD",
		Version:         3,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestPostgresUpdateVersionedSuccess(t *testing.T) {
	store, mock := newMockStore(t)
	sh := testShipment()
	now := sh.UpdatedAt.Add(time.Minute)

	updated := *sh
	updated.Version = 4
	updated.UpdatedAt = now

	mock.ExpectQuery(`UPDATE shipments SET`).
		WithArgs(
			sh.Reference, string(sh.Status), sh.ConsigneeName,
			sh.OriginPort, sh.DestinationPort,
			sh.ValueCents, sh.Currency, now,
			sh.ID.String(), sh.TenantID.String(), int64(3),
		).
		WillReturnRows(shipmentRows(&updated))

	got, err := store.UpdateVersioned(context.Background(), sh, 3, now)
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateVersionedStale(t *testing.T) {
	store, mock := newMockStore(t)
	sh := testShipment()
	now := sh.UpdatedAt.Add(time.Minute)

	mock.ExpectQuery(`UPDATE shipments SET`).
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectQuery(`SELECT version FROM shipments`).
		WithArgs(sh.ID.String(), sh.TenantID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(5)))

	_, err := store.UpdateVersioned(context.Background(), sh, 3, now)
	assert.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateVersionedMissingRow(t *testing.T) {
	store, mock := newMockStore(t)
	sh := testShipment()

	mock.ExpectQuery(`UPDATE shipments SET`).
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectQuery(`SELECT version FROM shipments`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	_, err := store.UpdateVersioned(context.Background(), sh, 3, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByIDScopedToTenant(t *testing.T) {
	store, mock := newMockStore(t)
	sh := testShipment()

	mock.ExpectQuery(`SELECT .+ FROM shipments WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(sh.ID.String(), sh.TenantID.String()).
		WillReturnRows(shipmentRows(sh))

	got, err := store.FindByID(context.Background(), sh.TenantID, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, sh.Reference, got.Reference)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOwnerTenant(t *testing.T) {
	store, mock := newMockStore(t)
	sh := testShipment()

	mock.ExpectQuery(`SELECT tenant_id FROM shipments`).
		WithArgs(sh.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(sh.TenantID.String()))

	owner, err := store.OwnerTenant(context.Background(), sh.ID.String())
	require.NoError(t, err)
	assert.Equal(t, sh.TenantID, owner)
}

func TestPostgresOwnerTenantMalformedID(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.OwnerTenant(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}
