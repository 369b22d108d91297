package blacklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trustcore/internal/auth/models"
)

// PostgresBlacklist persists blacklist entries in PostgreSQL for deployments
// without a shared cache.
type PostgresBlacklist struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresBlacklist {
	return &PostgresBlacklist{db: db}
}

func (s *PostgresBlacklist) Add(ctx context.Context, entry models.BlacklistEntry) error {
	query := `
		INSERT INTO token_blacklist (token_hash, reason, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, entry.TokenHash, entry.Reason, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert blacklist entry: %w", err)
	}
	return nil
}

func (s *PostgresBlacklist) Contains(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	query := `SELECT 1 FROM token_blacklist WHERE token_hash = $1 AND expires_at > $2`
	var one int
	err := s.db.QueryRowContext(ctx, query, tokenHash, now).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query blacklist: %w", err)
	}
	return true, nil
}

func (s *PostgresBlacklist) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM token_blacklist WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired blacklist entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
