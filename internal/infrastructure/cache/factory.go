package cache

import (
	"github.com/firesafe/ledger/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns a Redis-backed store when a client is given
// and an in-memory store otherwise.
func NewIdempotencyStore(client redis.UniversalClient, logger *zap.Logger) shared.IdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client != nil {
		logger.Info("Using Redis idempotency store")
		return NewRedisIdempotencyStore(client, "ledger:idempotency:")
	}
	logger.Warn("Redis not configured, using in-memory idempotency store. " +
		"Retries routed to another instance will not be recognised.")
	return NewInMemoryIdempotencyStore()
}
