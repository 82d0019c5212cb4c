package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingMarker is stored while the first request for a key is running.
// Stored responses are JSON objects, so they can never equal it.
const pendingMarker = "pending"

// RedisIdempotency keeps create outcomes in Redis so every function instance
// sees the same keys.
type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotency creates a store using the provided Redis client and TTL.
func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl}
}

func (r *RedisIdempotency) key(key string) string {
	return "idempotency:notes:" + key
}

// Claim records key as pending if nobody holds it yet.
func (r *RedisIdempotency) Claim(ctx context.Context, key string) (bool, []byte, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), pendingMarker, r.ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET; treat as still in flight.
			return false, nil, nil
		}
		return false, nil, err
	}
	if string(val) == pendingMarker {
		return false, nil, nil
	}
	return false, val, nil
}

// Complete replaces the pending marker with the final response.
func (r *RedisIdempotency) Complete(ctx context.Context, key string, response []byte) error {
	return r.client.Set(ctx, r.key(key), response, r.ttl).Err()
}

// Release deletes a claimed key so the client may retry.
func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
