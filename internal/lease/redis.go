package lease

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanCount is the COUNT hint passed to each SCAN call.
const scanCount = 200

// RedisStore implements Store on top of a Redis client.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps rdb.  The client must not be nil: leases are the only
// way the sweep learns about abandoned holds.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// SetWithExpiry issues SET key value EX ttl.
func (s *RedisStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// Get reads a key.  A missing key yields (nil, false, nil).
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Delete removes keys with a single DEL.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// compareAndDelete deletes KEYS[1] when its value is ARGV[1].
var compareAndDelete = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// DeleteIfEqual runs GET and DEL in one script so a lease rewritten
// between the caller's read and the delete survives.
func (s *RedisStore) DeleteIfEqual(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := compareAndDelete.Run(ctx, s.rdb, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ScanKeys walks the keyspace with SCAN MATCH prefix*.  Unlike KEYS it
// does not block the server on large keyspaces.  A key may be reported
// more than once; duplicates are removed.
func (s *RedisStore) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		out    []string
		seen   = map[string]bool{}
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
