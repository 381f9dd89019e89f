// Package redis provides a replay.NonceCache backed by Redis, so that
// several dispatcher instances reject the same replayed nonce.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/authgate/pkg/replay"
)

// DefaultKeyPrefix namespaces nonce keys.
const DefaultKeyPrefix = "authgate:nonce:"

// Config holds Redis connection settings.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Cache is a Redis-backed NonceCache.
type Cache struct {
	client goredis.UniversalClient
	prefix string
}

var _ replay.NonceCache = (*Cache)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client. An empty prefix uses
// DefaultKeyPrefix.
func NewWithClient(client goredis.UniversalClient, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Cache{client: client, prefix: prefix}
}

// Check implements replay.NonceCache with SET NX EX, which records the
// key and reports a prior record in one round trip.
func (c *Cache) Check(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("recording nonce: %w", err)
	}
	return !ok, nil
}

// HealthCheck pings Redis.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
