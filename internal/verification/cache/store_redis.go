package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"procverify/internal/decision"
	"procverify/pkg/platform/sentinel"
)

const (
	decisionKeyPrefix = "procverify:decision:"
	hitsKey           = "procverify:cache:hits"
	missesKey         = "procverify:cache:misses"
	scanBatch         = 500
)

// RedisCache shares decisions and counters across instances. Decisions are
// JSON-encoded; counters are plain INCR keys.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*RedisCache)

// WithRedisTTL sets the key expiry. Zero keeps keys until Clear.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func NewRedisCache(client *redis.Client, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*decision.Decision, error) {
	raw, err := c.client.Get(ctx, decisionKeyPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		if incrErr := c.client.Incr(ctx, missesKey).Err(); incrErr != nil {
			return nil, unavailable("count miss", incrErr)
		}
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get decision", err)
	}

	var d decision.Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode cached decision %s: %w", fingerprint, err)
	}
	if err := c.client.Incr(ctx, hitsKey).Err(); err != nil {
		return nil, unavailable("count hit", err)
	}
	return &d, nil
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, d *decision.Decision) error {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode decision %s: %w", fingerprint, err)
	}
	if err := c.client.Set(ctx, decisionKeyPrefix+fingerprint, raw, c.ttl).Err(); err != nil {
		return unavailable("put decision", err)
	}
	return nil
}

// Clear deletes every decision key. Counters are kept.
func (c *RedisCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, decisionKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return unavailable("scan decisions", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return unavailable("delete decisions", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *RedisCache) Stats(ctx context.Context) (Stats, error) {
	var (
		cursor  uint64
		entries int64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, decisionKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return Stats{}, unavailable("scan decisions", err)
		}
		entries += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}

	vals, err := c.client.MGet(ctx, hitsKey, missesKey).Result()
	if err != nil {
		return Stats{}, unavailable("read counters", err)
	}
	return Stats{
		Entries: entries,
		Hits:    counter(vals[0]),
		Misses:  counter(vals[1]),
	}, nil
}

func (c *RedisCache) ResetStats(ctx context.Context) error {
	if err := c.client.Del(ctx, hitsKey, missesKey).Err(); err != nil {
		return unavailable("reset counters", err)
	}
	return nil
}

func counter(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil {
		return 0
	}
	return n
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis cache %s: %w: %w", op, sentinel.ErrUnavailable, err)
}
