package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// chainLockKey is the advisory lock serializing appends across instances.
// A row lock on the head cannot cover the empty-table case.
const chainLockKey = 7388210

const entryColumns = `id, ts, actor_id, tenant_id, action, resource_type, resource_id, success, metadata, prev_hash, entry_hash`

// PostgresStore persists the chain in audit_entries. The table is append-only:
// the migration revokes UPDATE and DELETE from the application role.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, build func(prevHash string) (*Entry, error)) (*Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin audit append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, chainLockKey); err != nil {
		return nil, fmt.Errorf("acquire chain lock: %w", err)
	}

	prev := GenesisHash
	var head string
	err = tx.QueryRowContext(ctx, `SELECT entry_hash FROM audit_entries ORDER BY seq DESC LIMIT 1`).Scan(&head)
	switch {
	case err == nil:
		prev = head
	case errors.Is(err, sql.ErrNoRows):
		// first entry; chain anchors at the genesis hash
	default:
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	entry, err := build(prev)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.ExecContext(ctx, query,
		entry.ID, entry.Timestamp, entry.ActorID, entry.TenantID, entry.Action,
		entry.ResourceType, entry.ResourceID, entry.Success, metadata,
		entry.PrevHash, entry.EntryHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit audit append: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE tenant_id = $1
		ORDER BY seq ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var (
			e        Entry
			metadata []byte
		)
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.ActorID, &e.TenantID, &e.Action,
			&e.ResourceType, &e.ResourceID, &e.Success, &metadata,
			&e.PrevHash, &e.EntryHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(metadata) > 0 && string(metadata) != "null" {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
