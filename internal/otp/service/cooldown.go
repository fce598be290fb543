package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/otpd/pkg/throttle"
)

// Cooldown enforces the minimum interval between codes sent to one
// identifier. Allow returns zero when the caller may proceed, otherwise how
// long it must wait.
type Cooldown interface {
	Allow(ctx context.Context, key string, now time.Time) (time.Duration, error)
}

// MemoryCooldown is a per-process Cooldown. Use the redis driver's
// cooldown when several instances share a store.
type MemoryCooldown struct {
	keyed *throttle.Keyed
}

func NewMemoryCooldown(interval time.Duration) *MemoryCooldown {
	return &MemoryCooldown{keyed: throttle.Cooldown(interval)}
}

func (c *MemoryCooldown) Allow(_ context.Context, key string, now time.Time) (time.Duration, error) {
	if ok, wait := c.keyed.AllowAt(key, now); !ok {
		return max(wait, time.Millisecond), nil
	}
	return 0, nil
}
