package lockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresCounter persists lockout state in auth_lockouts so locks survive
// restarts and apply across instances.
type PostgresCounter struct {
	db *sql.DB
}

func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

func (c *PostgresCounter) RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	// restart the tally when the previous failure run fell out of the window
	query := `
		INSERT INTO auth_lockouts (lockout_key, failures, window_started_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (lockout_key) DO UPDATE SET
			failures = CASE
				WHEN auth_lockouts.window_started_at < $3 THEN 1
				ELSE auth_lockouts.failures + 1
			END,
			window_started_at = CASE
				WHEN auth_lockouts.window_started_at < $3 THEN $2
				ELSE auth_lockouts.window_started_at
			END
		RETURNING failures
	`
	var failures int
	err := c.db.QueryRowContext(ctx, query, key, now, now.Add(-window)).Scan(&failures)
	if err != nil {
		return 0, fmt.Errorf("record lockout failure: %w", err)
	}
	return failures, nil
}

func (c *PostgresCounter) Lock(ctx context.Context, key string, until time.Time) error {
	query := `
		INSERT INTO auth_lockouts (lockout_key, failures, window_started_at, locked_until)
		VALUES ($1, 0, $3, $2)
		ON CONFLICT (lockout_key) DO UPDATE SET locked_until = $2
	`
	if _, err := c.db.ExecContext(ctx, query, key, until, until); err != nil {
		return fmt.Errorf("set lockout: %w", err)
	}
	return nil
}

func (c *PostgresCounter) LockedUntil(ctx context.Context, key string) (time.Time, error) {
	var until sql.NullTime
	err := c.db.QueryRowContext(ctx,
		`SELECT locked_until FROM auth_lockouts WHERE lockout_key = $1`, key).Scan(&until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("query lockout: %w", err)
	}
	if !until.Valid {
		return time.Time{}, nil
	}
	return until.Time, nil
}

// Purge drops rows that are unlocked and whose window started more than
// staleAfter ago. Called by the cleanup worker.
func (c *PostgresCounter) Purge(ctx context.Context, now time.Time) (int, error) {
	query := `
		DELETE FROM auth_lockouts
		WHERE (locked_until IS NULL OR locked_until < $1)
		AND window_started_at < $2
	`
	res, err := c.db.ExecContext(ctx, query, now, now.Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("purge lockouts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (c *PostgresCounter) Reset(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM auth_lockouts WHERE lockout_key = $1`, key); err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}
	return nil
}
