package session

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

const sessionColumns = `
	id, user_id, tenant_id, refresh_token_hash, ip, user_agent, device_name,
	device_fingerprint, status, superseded_by, created_at, last_used_at,
	expires_at, revoked_at
`

// PostgresSessionStore persists sessions in PostgreSQL.
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	var supersededBy *uuid.UUID
	if session.SupersededBy != nil {
		u := uuid.UUID(*session.SupersededBy)
		supersededBy = &u
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(session.ID), uuid.UUID(session.UserID), uuid.UUID(session.TenantID),
		session.RefreshTokenHash, session.IP, session.UserAgent, session.DeviceName,
		session.Fingerprint, string(session.Status), supersededBy,
		session.CreatedAt, session.LastUsedAt, session.ExpiresAt, session.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query session: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanSession(rows)
}

func (s *PostgresSessionStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *PostgresSessionStore) MarkSuperseded(ctx context.Context, sessionID, successorID id.SessionID, now time.Time) error {
	query := `
		UPDATE sessions
		SET status = $2, superseded_by = $3, last_used_at = $4
		WHERE id = $1 AND status = $5
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(sessionID), string(models.SessionStatusSuperseded),
		uuid.UUID(successorID), now, string(models.SessionStatusActive),
	)
	if err != nil {
		return fmt.Errorf("supersede session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresSessionStore) MarkRevoked(ctx context.Context, sessionID id.SessionID, now time.Time) error {
	query := `
		UPDATE sessions
		SET status = $2, revoked_at = $3
		WHERE id = $1 AND status = $4
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(sessionID), string(models.SessionStatusRevoked), now,
		string(models.SessionStatusActive),
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) RevokeAllForUser(ctx context.Context, userID id.UserID, now time.Time) ([]*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = $2, revoked_at = $3
		WHERE user_id = $1 AND status = $4
		RETURNING ` + sessionColumns
	rows, err := s.db.QueryContext(ctx, query,
		uuid.UUID(userID), string(models.SessionStatusRevoked), now,
		string(models.SessionStatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("revoke user sessions: %w", err)
	}
	defer rows.Close()

	var revoked []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		revoked = append(revoked, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revoked sessions: %w", err)
	}
	return revoked, nil
}

func (s *PostgresSessionStore) TouchLastUsed(ctx context.Context, sessionID id.SessionID, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = $2 WHERE id = $1`,
		uuid.UUID(sessionID), now)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanSession(rows *sql.Rows) (*models.Session, error) {
	var (
		session      models.Session
		sessionID    uuid.UUID
		userID       uuid.UUID
		tenantID     uuid.UUID
		status       string
		supersededBy *uuid.UUID
	)
	err := rows.Scan(
		&sessionID, &userID, &tenantID, &session.RefreshTokenHash,
		&session.IP, &session.UserAgent, &session.DeviceName,
		&session.Fingerprint, &status, &supersededBy,
		&session.CreatedAt, &session.LastUsedAt, &session.ExpiresAt, &session.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.ID = id.SessionID(sessionID)
	session.UserID = id.UserID(userID)
	session.TenantID = id.TenantID(tenantID)
	session.Status = models.SessionStatus(status)
	if supersededBy != nil {
		sid := id.SessionID(*supersededBy)
		session.SupersededBy = &sid
	}
	return &session, nil
}
