package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trustcore/internal/auth/models"
)

const keyPrefix = "blacklist:"

// RedisBlacklist backs revocation with a shared Redis so a logout on one node
// blocks the token on every node. TTL handling is delegated to Redis; there is
// nothing for the cleanup worker to do here.
type RedisBlacklist struct {
	client *redis.Client
}

func NewRedisBlacklist(client *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (s *RedisBlacklist) Add(ctx context.Context, entry models.BlacklistEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		// Token already dead on its own expiry; nothing to persist.
		return nil
	}
	if err := s.client.Set(ctx, keyPrefix+entry.TokenHash, entry.Reason, ttl).Err(); err != nil {
		return fmt.Errorf("blacklist set: %w", err)
	}
	return nil
}

func (s *RedisBlacklist) Contains(ctx context.Context, tokenHash string, _ time.Time) (bool, error) {
	err := s.client.Get(ctx, keyPrefix+tokenHash).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, fmt.Errorf("blacklist get: %w", err)
}

// DeleteExpired is a no-op; Redis expires keys itself.
func (s *RedisBlacklist) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
