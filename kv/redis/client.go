package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	rclient "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
)

// Client is a go-redis client exposing the kv.Store operations.
type Client struct {
	rdb    *rclient.Client
	cfg    Config
	logger *slog.Logger
}

// Connect opens the connection pool and pings the server.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("redis")
	cfg = cfg.withDefaults()

	logger.Debug("connecting to redis", "addr", cfg.Addr)

	rdb := rclient.NewClient(&rclient.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
	})

	client := &Client{
		rdb:    rdb,
		cfg:    cfg,
		logger: logger,
	}

	if err := client.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("connected to redis", "addr", cfg.Addr, "db", cfg.DB)
	return client, nil
}

// Close closes the pool. Closing twice is not an error.
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}

	if err := c.rdb.Close(); err != nil && !errors.Is(err, rclient.ErrClosed) {
		return errors.Wrap(err, "failed to close redis connection")
	}

	c.rdb = nil
	c.logger.Debug("redis connection closed")
	return nil
}

func (c *Client) client() (*rclient.Client, error) {
	if c.rdb == nil {
		return nil, rclient.ErrClosed
	}
	return c.rdb, nil
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, span := startSpan(ctx, "Ping", "", c.cfg.DB)
	defer span.End()

	rdb, err := c.client()
	if err == nil {
		err = rdb.Ping(ctx).Err()
	}
	if err != nil {
		recordError(span, err)
		return errors.Wrap(err, "failed to ping redis")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Get returns ErrKeyNotFound when key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	ctx, span := startSpan(ctx, "Get", key, c.cfg.DB)
	defer span.End()

	rdb, err := c.client()
	if err != nil {
		recordError(span, err)
		return "", errors.Wrapf(err, "failed to get key %q", key)
	}

	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rclient.Nil) {
			span.SetStatus(codes.Ok, "")
			return "", ErrKeyNotFound
		}
		recordError(span, err)
		return "", errors.Wrapf(err, "failed to get key %q", key)
	}

	span.SetStatus(codes.Ok, "")
	return val, nil
}

// Set stores value; zero expiration keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	ctx, span := startSpan(ctx, "Set", key, c.cfg.DB)
	defer span.End()

	rdb, err := c.client()
	if err == nil {
		err = rdb.Set(ctx, key, value, expiration).Err()
	}
	if err != nil {
		recordError(span, err)
		return errors.Wrapf(err, "failed to set key %q", key)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	ctx, span := startSpan(ctx, "Delete", "", c.cfg.DB)
	defer span.End()

	if len(keys) == 0 {
		return nil
	}

	rdb, err := c.client()
	if err == nil {
		err = rdb.Del(ctx, keys...).Err()
	}
	if err != nil {
		recordError(span, err)
		return errors.Wrap(err, "failed to delete keys")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Exists returns how many of keys are present.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := startSpan(ctx, "Exists", "", c.cfg.DB)
	defer span.End()

	if len(keys) == 0 {
		return 0, nil
	}

	rdb, err := c.client()
	if err != nil {
		recordError(span, err)
		return 0, errors.Wrap(err, "failed to check keys")
	}

	n, err := rdb.Exists(ctx, keys...).Result()
	if err != nil {
		recordError(span, err)
		return 0, errors.Wrap(err, "failed to check keys")
	}

	span.SetStatus(codes.Ok, "")
	return n, nil
}
