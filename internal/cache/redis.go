package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/inkwell/internal/redisclient"
	"github.com/redis/go-redis/v9"
)

// Redis shares cached responses across API instances. Redis being down
// behaves like a cache miss.
type Redis struct {
	client *redisclient.Client
	ttl    time.Duration
	prefix string
}

func NewRedis(client *redisclient.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Redis{client: client, ttl: ttl, prefix: "inkwell:"}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Raw().Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Default().WarnContext(ctx, "cache_get_failed", "key", key, "err", err)
		}
		return nil, false
	}
	return b, true
}

func (c *Redis) Set(ctx context.Context, key string, val []byte) {
	if err := c.client.Raw().Set(ctx, c.prefix+key, val, c.ttl).Err(); err != nil {
		slog.Default().WarnContext(ctx, "cache_set_failed", "key", key, "err", err)
	}
}

func (c *Redis) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.prefix+k)
	}

	if err := c.client.Raw().Del(ctx, full...).Err(); err != nil {
		slog.Default().WarnContext(ctx, "cache_delete_failed", "keys", keys, "err", err)
	}
}
