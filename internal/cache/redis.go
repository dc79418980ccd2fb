package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis is a small read-through cache over a Redis instance. Failures are
// treated as misses so a flaky cache never affects request handling.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis at addr. Returns nil (caching disabled) when addr is
// empty or the server is unreachable.
func New(addr string, ttl time.Duration) *Redis {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Redis unreachable, search cache disabled")
		return nil
	}
	log.Info().Str("addr", addr).Dur("ttl", ttl).Msg("Search cache enabled")
	return &Redis{rdb: rdb, ttl: ttl}
}

// Get returns the cached value for key, or (nil, false) on miss or error.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache get failed")
		return nil, false
	}
	return val, true
}

// Set stores value under key with the configured TTL. Errors are logged and
// dropped.
func (c *Redis) Set(ctx context.Context, key string, value []byte) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Close releases the underlying connection pool.
func (c *Redis) Close() error {
	return c.rdb.Close()
}
