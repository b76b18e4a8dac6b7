// Package redis provides the connection backing the recent-page cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ecoaudit/internal/platform/config"
)

// Client wraps the go-redis client so callers get a health probe alongside
// the raw commands.
type Client struct {
	*redis.Client
}

// New connects a client from the configuration, verifying the connection
// before handing it out. Returns nil when no URL is configured: the cache is
// optional and the server runs without it.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
