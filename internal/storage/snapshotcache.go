package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisSnapshotCache stores data snapshots in Redis as JSON with a TTL.
// Every Redis or decoding failure is treated as a miss; corrupt entries are
// evicted so the next fetch replaces them.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger logrus.FieldLogger
}

// NewRedisSnapshotCache wraps client. A non-positive ttl disables writes.
// Failures are logged to logger at debug level (the standard logger if nil).
func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *RedisSnapshotCache {
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisSnapshotCache{client: client, ttl: ttl, prefix: "cdesk:", logger: logger}
}

func (c *RedisSnapshotCache) debug(key, msg string, err error) {
	c.logger.WithField("cache_key", c.prefix+key).WithError(err).Debug(msg)
}

// Load decodes the entry under key into out.
func (c *RedisSnapshotCache) Load(ctx context.Context, key string, out any) bool {
	if c == nil || c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.debug(key, "cache read failed", err)
			c.drop(ctx, key)
		}
		return false
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		c.debug(key, "evicting undecodable cache entry", err)
		c.drop(ctx, key)
		return false
	}
	return true
}

// Store encodes value under key.
func (c *RedisSnapshotCache) Store(ctx context.Context, key string, value any) {
	if c == nil || c.client == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		c.debug(key, "encoding snapshot for cache failed", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.debug(key, "cache write failed", err)
	}
}

func (c *RedisSnapshotCache) drop(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.debug(key, "cache evict failed", err)
	}
}

// Evict drops every entry for the given user scope, e.g. on logout.
func (c *RedisSnapshotCache) Evict(ctx context.Context, scope string) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, c.prefix+scope+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.debug(scope+":*", "scanning cache scope failed", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.debug(scope+":*", "evicting cache scope failed", err)
		}
	}
}

// NopSnapshotCache is used when no Redis address is configured.
type NopSnapshotCache struct{}

func (NopSnapshotCache) Load(context.Context, string, any) bool { return false }
func (NopSnapshotCache) Store(context.Context, string, any)     {}
func (NopSnapshotCache) Evict(context.Context, string)          {}
