package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps preferences in a single Redis hash so several
// processes can share them.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore uses hash key on the given client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "falconeye:prefs"
	}
	return &RedisStore{redis: client, key: key}
}

func (s *RedisStore) Get(ctx context.Context, field string) (string, error) {
	v, err := s.redis.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s: %w", field, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, field, value string) error {
	if err := s.redis.HSet(ctx, s.key, field, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", field, err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]string, error) {
	m, err := s.redis.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	return m, nil
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}
