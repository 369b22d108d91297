package refreshtoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trustcore/internal/auth/models"
	id "trustcore/pkg/domain"
)

// PostgresRefreshTokenStore persists refresh token records in PostgreSQL.
type PostgresRefreshTokenStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{db: db}
}

func (s *PostgresRefreshTokenStore) Create(ctx context.Context, record *models.RefreshTokenRecord) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, session_id, user_id, used, used_at, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.TokenHash, uuid.UUID(record.SessionID), uuid.UUID(record.UserID),
		record.Used, record.UsedAt, record.CreatedAt, record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Consume marks the token used via a conditional UPDATE so exactly one caller
// wins even under concurrent presentation of the same token.
func (s *PostgresRefreshTokenStore) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	query := `
		UPDATE refresh_tokens
		SET used = TRUE, used_at = $2
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
		RETURNING token_hash, session_id, user_id, used, used_at, created_at, expires_at
	`
	record, err := s.scanRecord(s.db.QueryRowContext(ctx, query, tokenHash, now))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	// The conditional update matched nothing; fetch the row to find out why.
	fetch := `
		SELECT token_hash, session_id, user_id, used, used_at, created_at, expires_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	record, err = s.scanRecord(s.db.QueryRowContext(ctx, fetch, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if record.Used {
		return record, ErrAlreadyUsed
	}
	return record, ErrExpired
}

func (s *PostgresRefreshTokenStore) DeleteBySession(ctx context.Context, sessionID id.SessionID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE session_id = $1`, uuid.UUID(sessionID))
	if err != nil {
		return fmt.Errorf("delete session refresh tokens: %w", err)
	}
	return nil
}

func (s *PostgresRefreshTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1 OR used = TRUE`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresRefreshTokenStore) scanRecord(row *sql.Row) (*models.RefreshTokenRecord, error) {
	var (
		record    models.RefreshTokenRecord
		sessionID uuid.UUID
		userID    uuid.UUID
	)
	err := row.Scan(&record.TokenHash, &sessionID, &userID, &record.Used, &record.UsedAt, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		return nil, err
	}
	record.SessionID = id.SessionID(sessionID)
	record.UserID = id.UserID(userID)
	return &record, nil
}
