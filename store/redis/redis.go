// Package redis provides a Redis-backed store.Store. Both operations run
// server-side as single Redis commands or Lua scripts, so the counters are
// safe to share between any number of processes.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ryhazerus/ratelimit/store"
)

// Compile-time interface check.
var _ store.Store = (*RedisStore)(nil)

// RedisStore is a Store backed by Redis. Each bucket counter is a plain
// integer key with a millisecond TTL.
//
// With Redis Cluster both keys of one call must hash to the same slot.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// incrementScript atomically increments the current counter, refreshes its
// expiry and reads the previous counter.
//
// KEYS[1] = current bucket key
// KEYS[2] = previous bucket key
// ARGV[1] = TTL in milliseconds
var incrementScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[1])
local previous = tonumber(redis.call("GET", KEYS[2]) or "0")
return {current, previous}
`)

// IncrementAndPeek atomically increments currentKey and reads previousKey.
func (r *RedisStore) IncrementAndPeek(ctx context.Context, currentKey, previousKey string, ttl time.Duration) (int64, int64, error) {
	vals, err := incrementScript.Run(ctx, r.client, []string{currentKey, previousKey}, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, store.Unavailable("redis increment", err)
	}
	if len(vals) != 2 {
		return 0, 0, store.Unavailable("redis increment", fmt.Errorf("unexpected script reply length %d", len(vals)))
	}
	return vals[0], vals[1], nil
}

// Peek reads both counters with a single MGET.
func (r *RedisStore) Peek(ctx context.Context, currentKey, previousKey string) (int64, int64, error) {
	vals, err := r.client.MGet(ctx, currentKey, previousKey).Result()
	if err != nil {
		return 0, 0, store.Unavailable("redis peek", err)
	}
	if len(vals) != 2 {
		return 0, 0, store.Unavailable("redis peek", fmt.Errorf("unexpected MGET reply length %d", len(vals)))
	}

	current, err := parseCount(vals[0])
	if err != nil {
		return 0, 0, store.Unavailable("redis peek", err)
	}
	previous, err := parseCount(vals[1])
	if err != nil {
		return 0, 0, store.Unavailable("redis peek", err)
	}
	return current, previous, nil
}

// Close closes the underlying Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func parseCount(v interface{}) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse count: %w", err)
		}
		return n, nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("parse count: unexpected type %T", v)
	}
}
