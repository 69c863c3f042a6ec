package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "veritas:sources:"

// RedisSourceCache keeps search results per query so that repeated
// fact-checks of the same statement skip the search providers.
type RedisSourceCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisSourceCache connects and pings the server.
func NewRedisSourceCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisSourceCache, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisSourceCache(rdb, ttl), nil
}

func newRedisSourceCache(rdb *goredis.Client, ttl time.Duration) *RedisSourceCache {
	return &RedisSourceCache{rdb: rdb, ttl: ttl}
}

// Get reports a cache miss as ok=false with a nil error.
func (c *RedisSourceCache) Get(ctx context.Context, query string) ([]string, bool, error) {
	raw, err := c.rdb.Get(ctx, Key(query)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, false, fmt.Errorf("decode cached sources: %w", err)
	}
	return urls, true, nil
}

func (c *RedisSourceCache) Set(ctx context.Context, query string, urls []string) error {
	raw, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, Key(query), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisSourceCache) Close() error {
	return c.rdb.Close()
}

// Key derives the cache key for a query. Queries are compared after
// trimming and case folding.
func Key(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return keyPrefix + hex.EncodeToString(sum[:])
}
