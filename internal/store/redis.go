// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis client. Every round-trip is bounded
// by the configured timeout; exceeding it surfaces as an UnavailableError so
// the pipeline fails open instead of stalling request handling behind a slow
// or dead store.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps the given client. A zero timeout disables the per-call
// deadline.
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{
		client:  client,
		timeout: timeout,
	}
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, UnavailableError{Err: err}
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return UnavailableError{Err: err}
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration, refreshTTL bool) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, UnavailableError{Err: err}
	}
	// INCR has no TTL of its own: arm it on the first write, and re-arm it
	// on every increment when the caller wants a rolling window.
	if refreshTTL || count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, UnavailableError{Err: err}
		}
	}
	return count, nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, UnavailableError{Err: err}
	}
	duration, exists := decodeTTLReply(ttl)
	return duration, exists, nil
}

// decodeTTLReply interprets a TTL command reply. The client passes the raw
// sentinels through as durations in nanoseconds: -2 for a missing key, -1
// for a key without expiry.
func decodeTTLReply(ttl time.Duration) (time.Duration, bool) {
	if ttl < 0 {
		return 0, ttl == -1
	}
	return ttl, true
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return UnavailableError{Err: err}
	}
	return nil
}
