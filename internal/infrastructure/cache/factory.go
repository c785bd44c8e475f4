package cache

import (
	"fmt"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BackendFactory builds the coordination backends (loan locks and delivery
// claims) selected in the lending configuration.
type BackendFactory struct {
	redisConfig           config.RedisConfig
	lendingConfig         config.LendingConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	// dial is replaced in tests
	dial   func(config.RedisConfig) (*redis.Client, error)
	client *redis.Client
}

// BackendFactoryOption is a functional option for configuring the factory
type BackendFactoryOption func(*BackendFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) BackendFactoryOption {
	return func(f *BackendFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether a redis backend falls back to
// memory when Redis is unreachable. Default is true.
func WithInMemoryFallback(allow bool) BackendFactoryOption {
	return func(f *BackendFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBackendFactory creates a new factory
func NewBackendFactory(redisCfg config.RedisConfig, lendingCfg config.LendingConfig, opts ...BackendFactoryOption) *BackendFactory {
	f := &BackendFactory{
		redisConfig:           redisCfg,
		lendingConfig:         lendingCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		dial:                  NewRedisClient,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// redisClient dials once and shares the client between backends
func (f *BackendFactory) redisClient() (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}
	client, err := f.dial(f.redisConfig)
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

// CreateIdempotencyStore creates the delivery claim store.
// WARNING: the in-memory store does not share claims across instances, so a
// notification may be delivered twice in a multi-instance deployment.
func (f *BackendFactory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	if f.lendingConfig.IdempotencyBackend != config.BackendRedis {
		return NewInMemoryIdempotencyStore(), nil
	}

	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, ""), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"This may cause duplicate notifications in distributed deployments.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}

// CreateLoanLocker creates the per-loan lock. The lock wait equals LockTTL.
func (f *BackendFactory) CreateLoanLocker() (lending.LoanLocker, error) {
	ttl := f.lendingConfig.LockTTL
	if f.lendingConfig.LockBackend != config.BackendRedis {
		return NewInMemoryLoanLocker(ttl), nil
	}

	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis loan locker", zap.Duration("lease", ttl))
		return NewRedisLoanLocker(client, ttl, ttl, f.logger), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for loan locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process loan locks. "+
		"Concurrent instances may race on the same loan until the version check rejects one.",
		zap.Error(err),
	)
	return NewInMemoryLoanLocker(ttl), nil
}

// Close releases the shared Redis client, if one was dialed
func (f *BackendFactory) Close() error {
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}
