package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimerfeng/StarReviews/internal/cache"
	"github.com/redis/go-redis/v9"
)

// Redis stores values as plain redis strings under a key prefix
type Redis struct {
	redis  *cache.Redis
	prefix string
}

// NewRedis creates a redis-backed store
func NewRedis(r *cache.Redis, prefix string) *Redis {
	return &Redis{redis: r, prefix: prefix}
}

func (s *Redis) key(key string) string {
	return s.prefix + key
}

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

func (s *Redis) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.redis.Client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

func (s *Redis) Health(ctx context.Context) error {
	return s.redis.Health(ctx)
}
