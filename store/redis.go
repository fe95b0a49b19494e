package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string
	// Password is optional.
	Password string
	// DB selects the logical database.
	DB int
	// DialTimeout bounds connection establishment. Default: 5s.
	DialTimeout time.Duration
	// OpTimeout bounds individual read/write operations. Default: 2s.
	OpTimeout time.Duration
}

// Redis is a Store backed by a shared Redis server. It is the backend
// of choice when cache entries and rate-limit windows must be shared
// across processes.
type Redis struct {
	client *redis.Client
}

// admitScript performs the discard-count-append admission sequence on
// a sorted set in one server-side step. Scores and members are
// microsecond timestamps from the server clock, so admission stays
// consistent across client processes with skewed clocks.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local t = redis.call('TIME')
local now = t[1] * 1000000 + t[2]
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	return 0
end
redis.call('ZADD', key, now, now .. '-' .. count)
redis.call('PEXPIRE', key, math.ceil(window / 1000))
return 1
`)

// NewRedis creates a Redis-backed store. The connection is not probed
// here; callers decide availability with Ping.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("store: redis address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})
	return &Redis{client: client}, nil
}

// Get retrieves a value. A redis.Nil reply is a clean miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: redis get: %w", err)
	}
	return value, true, nil
}

// Set stores a value with the given TTL. TTL <= 0 stores nothing.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store: redis set: %w", err)
	}
	return nil
}

// Delete removes keys and reports how many existed.
func (r *Redis) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("store: redis del: %w", err)
	}
	return int(removed), nil
}

// AddToSet adds member to the set at key and refreshes its TTL. The
// add and the TTL refresh travel in one transactional pipeline.
func (r *Redis) AddToSet(ctx context.Context, key, member string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, key, member)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: redis sadd: %w", err)
	}
	return nil
}

// SetMembers returns the members of the set at key, empty on miss.
func (r *Redis) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis smembers: %w", err)
	}
	return members, nil
}

// Scan returns every key with the given prefix.
func (r *Redis) Scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: redis scan: %w", err)
	}
	return keys, nil
}

// Admit runs the admission script. Redis executes scripts atomically,
// which is what makes the sliding window correct under concurrent
// callers sharing one identity.
func (r *Redis) Admit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	admitted, err := admitScript.Run(ctx, r.client, []string{key}, limit, window.Microseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("store: redis admit: %w", err)
	}
	return admitted == 1, nil
}

// Count returns the number of admissions within the window. It uses
// the client clock, which is fine for a non-authoritative read.
func (r *Redis) Count(ctx context.Context, key string, window time.Duration) (int, error) {
	cutoff := time.Now().Add(-window).UnixMicro()
	count, err := r.client.ZCount(ctx, key, strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("store: redis zcount: %w", err)
	}
	return int(count), nil
}

// Ping verifies the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: redis ping: %w", err)
	}
	return nil
}

// Close closes the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ensure Redis implements Store
var _ Store = (*Redis)(nil)
