package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "auth:revoked:"

// TokenRepository keeps a denylist of revoked access token ids in Redis.
// A nil client disables revocation.
type TokenRepository struct {
	client *redis.Client
}

// NewTokenRepository constructs the repository.
func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{client: client}
}

// Revoke denylists the token id until ttl elapses.
func (r *TokenRepository) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if r.client == nil || jti == "" || ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedTokenPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token %s: %w", jti, err)
	}
	return nil
}

// IsRevoked reports whether the token id has been denylisted.
func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r.client == nil || jti == "" {
		return false, nil
	}
	err := r.client.Get(ctx, revokedTokenPrefix+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("check revoked token %s: %w", jti, err)
	}
}
