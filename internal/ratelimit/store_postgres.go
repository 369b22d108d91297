package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresBucketStore backs counters with an upsert, for single-region
// deployments that run without Redis. Expired rows are swept by Purge.
type PostgresBucketStore struct {
	db *sql.DB
}

func NewPostgresBucketStore(db *sql.DB) *PostgresBucketStore {
	return &PostgresBucketStore{db: db}
}

func (s *PostgresBucketStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	query := `
		INSERT INTO rate_limit_buckets (bucket_key, count, expires_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (bucket_key) DO UPDATE SET count = rate_limit_buckets.count + 1
		RETURNING count
	`
	var count int64
	err := s.db.QueryRowContext(ctx, query, key, time.Now().Add(ttl)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment rate bucket: %w", err)
	}
	return count, nil
}

func (s *PostgresBucketStore) Purge(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_buckets WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge rate buckets: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
