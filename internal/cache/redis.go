package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"stream-anomaly-alerts/internal/config"
	"stream-anomaly-alerts/internal/detector"
)

const latestKey = "streamwatch:latest"

// Client caches the most recent scored result in Redis for external
// dashboards.
type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects and pings the configured Redis instance.
func New(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Client{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// SaveLatest stores the newest scored result under a fixed key with a TTL.
func (c *Client) SaveLatest(ctx context.Context, result detector.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := c.rdb.Set(ctx, latestKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set latest result: %w", err)
	}
	return nil
}

// Latest returns the cached result, or nil when none is cached.
func (c *Client) Latest(ctx context.Context) (*detector.Result, error) {
	val, err := c.rdb.Get(ctx, latestKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest result: %w", err)
	}

	var result detector.Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}
