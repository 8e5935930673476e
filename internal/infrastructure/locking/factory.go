package locking

import (
	"context"
	"fmt"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lock backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// LockerFactory creates position lockers based on configuration
type LockerFactory struct {
	ledgerConfig        config.LedgerConfig
	redisConfig         config.RedisConfig
	logger              *zap.Logger
	allowMemoryFallback bool
	client              *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithMemoryFallback controls whether an unreachable Redis degrades to the
// in-process locker. Default is true.
func WithMemoryFallback(allow bool) FactoryOption {
	return func(f *LockerFactory) {
		f.allowMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(ledgerCfg config.LedgerConfig, redisCfg config.RedisConfig, opts ...FactoryOption) *LockerFactory {
	f := &LockerFactory{
		ledgerConfig:        ledgerCfg,
		redisConfig:         redisCfg,
		logger:              zap.NewNop(),
		allowMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisLocker connects to Redis and returns a locker over it
func (f *LockerFactory) CreateRedisLocker(ctx context.Context) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", f.redisConfig.Host, f.redisConfig.Port),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	f.client = client
	return NewRedisLocker(client,
		WithLockTTL(f.ledgerConfig.LockTTL),
		WithRedisLogger(f.logger),
	), nil
}

// CreateLocker returns the configured locker. A Redis backend that cannot
// be reached falls back to the in-process locker when fallback is allowed.
func (f *LockerFactory) CreateLocker(ctx context.Context) (appinv.PositionLocker, error) {
	switch f.ledgerConfig.LockBackend {
	case "", BackendMemory:
		f.logger.Info("Using in-process position locker")
		return NewMemoryLocker(), nil
	case BackendRedis:
	default:
		return nil, fmt.Errorf("unknown lock backend %q", f.ledgerConfig.LockBackend)
	}

	locker, err := f.CreateRedisLocker(ctx)
	if err == nil {
		f.logger.Info("Using Redis position locker",
			zap.String("addr", fmt.Sprintf("%s:%d", f.redisConfig.Host, f.redisConfig.Port)),
		)
		return locker, nil
	}
	if !f.allowMemoryFallback {
		return nil, fmt.Errorf("Redis required for position locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process position locker. "+
		"Positions are only serialised within this instance.",
		zap.Error(err),
	)
	return NewMemoryLocker(), nil
}

// Close closes the Redis client if one was created
func (f *LockerFactory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}

var (
	_ appinv.PositionLocker = (*MemoryLocker)(nil)
	_ appinv.PositionLocker = (*RedisLocker)(nil)
)
