// Package redisclient is a thin, optional, non-authoritative go-redis
// wrapper — statsmirror's only consumer publishes a read-only snapshot
// here; nothing in the pool core ever reads back from it (the pool is
// process-local per spec §3/§5's non-goal on persisted state).
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredgw/connpool/config"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	c *redis.Client
}

// New creates a Redis client from the provided config. Returns an error
// if the Redis URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	r := redis.NewClient(opt)
	return &Client{c: r}, nil
}

func (r *Client) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.c.Ping(ctx).Err()
}

// Set publishes value under key with the given expiry, used by statsmirror
// to write one JSON snapshot per pool per tick.
func (r *Client) Set(key string, value []byte, expiry time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.c.Set(ctx, key, value, expiry).Err()
}

// Close releases the underlying connection pool.
func (r *Client) Close() error { return r.c.Close() }
