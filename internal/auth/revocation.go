package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocations implements RevocationStore on Redis. Entries carry a TTL
// equal to the token's remaining lifetime, so the list never outgrows the
// set of tokens that could still be replayed.
type RedisRevocations struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisRevocations constructs the store.
func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client, prefix: "auth:revoked:", now: time.Now}
}

// Revoke marks a token ID as unusable until the given expiry.
func (s *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		// Already expired; verification will reject it on its own.
		return nil
	}
	return s.client.Set(ctx, s.prefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether the token ID has been revoked.
func (s *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, s.prefix+tokenID).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ RevocationStore = (*RedisRevocations)(nil)
