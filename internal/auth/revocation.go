package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenKeyPrefix = "revoked_token:"

// RevocationStore 在 redis 中记录已登出的令牌 ID，直到令牌自然过期
type RevocationStore struct {
	rdb *redis.Client
}

func NewRevocationStore(rdb *redis.Client) *RevocationStore {
	return &RevocationStore{rdb: rdb}
}

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		// 已经过期的令牌无需记录
		return nil
	}
	return s.rdb.Set(ctx, revokedTokenKeyPrefix+tokenID, "1", ttl).Err()
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.rdb.Get(ctx, revokedTokenKeyPrefix+tokenID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
