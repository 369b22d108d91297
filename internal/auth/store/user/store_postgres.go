package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trustcore/internal/auth/models"
	id "trustcore/pkg/domain"
	"trustcore/pkg/requestcontext"
)

// PostgresUserStore persists accounts in PostgreSQL.
type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, tenant_id, email, role, password_hash, token_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(u.ID), uuid.UUID(u.TenantID), normalizeEmail(u.Email), u.Role,
		u.PasswordHash, u.TokenVersion, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `
		SELECT id, tenant_id, email, role, password_hash, token_version, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, tenant_id, email, role, password_hash, token_version, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, normalizeEmail(email)))
}

func (s *PostgresUserStore) BumpTokenVersion(ctx context.Context, userID id.UserID, newPasswordHash string) (int64, error) {
	now := requestcontext.Now(ctx)
	query := `
		UPDATE users
		SET token_version = token_version + 1,
		    password_hash = COALESCE(NULLIF($2, ''), password_hash),
		    updated_at = $3
		WHERE id = $1
		RETURNING token_version
	`
	var version int64
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(userID), newPasswordHash, now).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	return version, nil
}

func (s *PostgresUserStore) scanUser(row *sql.Row) (*models.User, error) {
	var (
		u        models.User
		userID   uuid.UUID
		tenantID uuid.UUID
	)
	err := row.Scan(&userID, &tenantID, &u.Email, &u.Role, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.TenantID = id.TenantID(tenantID)
	return &u, nil
}
