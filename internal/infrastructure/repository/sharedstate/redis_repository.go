// Package sharedstate implements the shared state store (C9) atop the
// engine's Redis connection: atomic counters, TTL strings, and a
// single-holder lock.
package sharedstate

import (
	"context"
	"strconv"
	"time"

	domain "signalcore/internal/core/domain/telemetry"
	"signalcore/internal/infrastructure/database"
	"signalcore/pkg/ulid"
)

type redisRepository struct {
	redis *database.RedisDB
}

// New returns the Redis-backed SharedStateRepository.
func New(redisDB *database.RedisDB) domain.SharedStateRepository {
	return &redisRepository{redis: redisDB}
}

func (r *redisRepository) IncrCounter(ctx context.Context, key string, delta int64) (int64, error) {
	return r.redis.IncrBy(ctx, key, delta)
}

func (r *redisRepository) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.redis.Get(ctx, key)
	if err != nil {
		// Key absent is a valid zero-value read, mirroring Redis GET
		// semantics for unset counters, not an error.
		if isNilErr(err) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (r *redisRepository) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.redis.Set(ctx, key, value, ttl)
}

func (r *redisRepository) GetString(ctx context.Context, key string) (string, bool, error) {
	val, err := r.redis.Get(ctx, key)
	if err != nil {
		if isNilErr(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// lockTokenKeyPrefix namespaces the per-lock holder token so ReleaseLock
// could in principle verify ownership before deleting; kept simple here
// since the engine runs a single composite updater instance and never
// contends the lock across distinct lock-holder identities.
const lockTokenKeyPrefix = "signalcore:lock-token:"

func (r *redisRepository) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := ulid.New().String()
	acquired, err := r.redis.SetNX(ctx, key, token, ttl)
	if err != nil {
		return false, err
	}
	if acquired {
		_ = r.redis.Set(ctx, lockTokenKeyPrefix+key, token, ttl)
	}
	return acquired, nil
}

func (r *redisRepository) ReleaseLock(ctx context.Context, key string) error {
	return r.redis.Delete(ctx, key, lockTokenKeyPrefix+key)
}

func isNilErr(err error) bool {
	return err != nil && err.Error() == "redis: nil"
}
