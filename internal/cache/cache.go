// Package cache is a read-through cache for booking listings.  Entries are
// JSON documents in Redis; every mutation of a booking invalidates the
// listings it appears in.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/showtime-booking/internal/config"
)

// Cache stores JSON-encodable values under string keys.
type Cache interface {
	// Get decodes the value under key into dst.  It reports false on a miss.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// ShowtimeBookingsKey is the key of the booking list of a showtime.
func ShowtimeBookingsKey(showtimeID uint64) string {
	return fmt.Sprintf("bookings:showtime:%d", showtimeID)
}

// UserBookingsKey is the key of a customer's booking history.
func UserBookingsKey(userID uint64) string {
	return fmt.Sprintf("bookings:user:%d", userID)
}

// RedisCache implements Cache on a Redis client.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// New returns a Redis backed cache, or Nop when caching is disabled or
// no client is available.
func New(cfg config.CacheConfig, rdb *redis.Client) Cache {
	if !cfg.Enabled || rdb == nil {
		return Nop{}
	}
	return &RedisCache{rdb: rdb, prefix: cfg.Prefix}
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	bs, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(bs, dst); err != nil {
		// A stale layout is treated as a miss; the next Set overwrites it.
		return false, nil
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.SetEx(ctx, c.key(key), bs, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.rdb.Del(ctx, full...).Err()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Invalidate(context.Context, ...string) error           { return nil }
