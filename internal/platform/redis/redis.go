// Package redis provides the Redis client and a SETNX-based claim store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// ClaimStore remembers keys for a bounded time so a redelivered event can be recognized.
type ClaimStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewClaimStore(rdb redis.Cmdable, prefix string, ttl time.Duration) *ClaimStore {
	return &ClaimStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Claim returns true the first time key is seen within the TTL and false afterwards.
func (s *ClaimStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", key, err)
	}
	return ok, nil
}
