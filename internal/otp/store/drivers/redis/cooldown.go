package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cooldown enforces a minimum interval per key across every instance that
// shares the Redis server.
type Cooldown struct {
	client   goredis.UniversalClient
	prefix   string
	interval time.Duration
}

func NewCooldown(client goredis.UniversalClient, prefix string, interval time.Duration) *Cooldown {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cooldown{client: client, prefix: prefix + "cooldown:", interval: interval}
}

// Allow claims the key for one interval. If it is already claimed it returns
// the time left on the claim.
func (c *Cooldown) Allow(ctx context.Context, key string, now time.Time) (time.Duration, error) {
	if c.interval <= 0 {
		return 0, nil
	}

	k := c.prefix + key
	ok, err := c.client.SetNX(ctx, k, now.UnixMilli(), c.interval).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: cooldown: %w", err)
	}
	if ok {
		return 0, nil
	}

	left, err := c.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: cooldown ttl: %w", err)
	}
	return max(left, time.Millisecond), nil
}
