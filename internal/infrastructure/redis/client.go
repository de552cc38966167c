package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ovationhq/ovation-core/internal/infrastructure/config"
)

// defaultScanCount is the batch size hint passed to SCAN.
const defaultScanCount = 100

// Client wraps go-redis with Ovation-specific functionality.
//
// It provides string-oriented get/set with TTL and previous-value return,
// multi-key delete/exists, and cursor-driven key scanning. All values stored
// through this client are strings; typed encoding is owned by the state
// package.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	rdb *goredis.Client
}

// Connect creates a client and verifies the store is reachable.
//
// Parameters:
//   - ctx: Context for the initial ping
//   - cfg: Redis configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If the initial ping fails
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Client{rdb: rdb}, nil
}

// Get retrieves a string value by key.
//
// Returns:
//   - string: The stored value
//   - bool: false if the key does not exist
//   - error: Transport failure
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores a string value with an expiration, returning the previous value.
//
// Parameters:
//   - key: The key to write
//   - value: The string payload
//   - ttl: Expiration; zero means no expiration
//
// Returns:
//   - string: The previous value at the key
//   - bool: false if there was no previous value
//   - error: Transport failure
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	prev, err := c.rdb.SetArgs(ctx, key, value, goredis.SetArgs{
		TTL: ttl,
		Get: true,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		// The write succeeded; there was simply nothing there before.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis set %q: %w", key, err)
	}
	return prev, true, nil
}

// Delete removes one or more keys. Returns the number of keys removed.
func (c *Client) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis delete: %w", err)
	}
	return int(n), nil
}

// Exists returns how many of the given keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.rdb.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis exists: %w", err)
	}
	return int(n), nil
}

// ScanKeys returns all keys matching the given pattern.
// An empty pattern matches every key.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)

	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, pattern, defaultScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		keys = append(keys, batch...)

		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// HealthCheck verifies the store is alive and responding.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// BuildKey joins key parts with the ":" separator used across the cache.
func BuildKey(parts ...string) string {
	return strings.Join(parts, ":")
}
