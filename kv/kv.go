package kv

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/pure-golang/sheetmail/kv/noop"
	"github.com/pure-golang/sheetmail/kv/redis"
)

// Provider selects the key-value backend.
type Provider string

const (
	ProviderRedis Provider = "redis" // remembers deliveries across runs
	ProviderNoop  Provider = "noop"  // remembers nothing
)

// Config selects and configures the backend.
type Config struct {
	Provider Provider `envconfig:"KV_PROVIDER" default:"noop"`
	// Used with ProviderRedis only.
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	RedisMaxRetries   int           `envconfig:"REDIS_MAX_RETRIES" default:"3"`
	RedisDialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	RedisReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	RedisWriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
	RedisPoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"2"`
}

// Store is the subset of key-value operations the delivery ledger needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// New connects to the configured backend.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Provider {
	case ProviderRedis:
		return redis.Connect(ctx, redis.Config{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			MaxRetries:   cfg.RedisMaxRetries,
			DialTimeout:  cfg.RedisDialTimeout,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisWriteTimeout,
			PoolSize:     cfg.RedisPoolSize,
		}, logger)
	case ProviderNoop, "":
		return noop.NewStore(), nil
	default:
		return nil, errors.Errorf("unknown kv provider: %s", cfg.Provider)
	}
}
