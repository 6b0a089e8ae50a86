package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgredis "github.com/platefulhq/plateful-backend/pkg/redis"
)

// RedisStore adapts the platform redis client to the Store contract.
type RedisStore struct {
	client *pkgredis.Client
}

// NewRedis wraps an established redis client.
func NewRedis(client *pkgredis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.client.Set(ctx, key, payload, ttl)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key)
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.client.Exists(ctx, key)
}

func (s *RedisStore) Increment(ctx context.Context, key string, amount int64) (int64, error) {
	return s.client.IncrBy(ctx, key, amount)
}

func (s *RedisStore) Decrement(ctx context.Context, key string, amount int64) (int64, error) {
	return s.client.DecrBy(ctx, key, amount)
}

func (s *RedisStore) DecrementFloor(ctx context.Context, key string, amount int64) (bool, int64, error) {
	return s.client.DecrByFloor(ctx, key, amount)
}

func (s *RedisStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	return s.client.ZAdd(ctx, key, member, score)
}

func (s *RedisStore) ZRange(ctx context.Context, key string, start, end int64) ([]string, error) {
	return s.client.ZRange(ctx, key, start, end)
}

func (s *RedisStore) ZRem(ctx context.Context, key, member string) error {
	return s.client.ZRem(ctx, key, member)
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key)
}
