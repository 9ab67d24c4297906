package provider

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisCache memoizes cointegration p-values in redis so parameter sweeps
// over the same pair skip the expensive per-timestamp hypothesis tests. Cache
// failures are soft: a miss is returned and the pipeline recomputes.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. A zero ttl keeps entries for a day.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "spreadrun:coint"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// OpenRedis connects and pings a redis instance.
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *RedisCache) key(k string) string { return c.prefix + ":" + k }

// GetPValue implements spread.PValueCache.
func (c *RedisCache) GetPValue(ctx context.Context, key string) (float64, bool) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("p-value cache read failed")
		}
		return 0, false
	}
	p, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// SetPValue implements spread.PValueCache.
func (c *RedisCache) SetPValue(ctx context.Context, key string, p float64) {
	if err := c.client.Set(ctx, c.key(key), strconv.FormatFloat(p, 'g', -1, 64), c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("p-value cache write failed")
	}
}
