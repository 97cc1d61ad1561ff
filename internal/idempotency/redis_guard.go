package idempotency

import (
	"context"
	"time"

	"booking-service/internal/apperror"
)

// KeyClaimer is the Redis primitive the guard relies on: an atomic
// set-if-absent with expiry.
type KeyClaimer interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisGuard records tokens in Redis so they survive restarts and are shared
// across replicas.
type RedisGuard struct {
	claimer KeyClaimer
	ttl     time.Duration
}

func NewRedisGuard(claimer KeyClaimer, ttl time.Duration) *RedisGuard {
	return &RedisGuard{claimer: claimer, ttl: ttl}
}

func (g *RedisGuard) CheckAndRecord(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, apperror.New(apperror.KindInvalidRequest, "idempotency key is required")
	}

	claimed, err := g.claimer.ClaimIdempotencyKey(ctx, token, g.ttl)
	if err != nil {
		return false, apperror.Wrap(apperror.KindPersistence, "failed to record idempotency key", err)
	}
	return !claimed, nil
}
