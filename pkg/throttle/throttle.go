// Package throttle keeps one token bucket per key.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultSweepInterval = 5 * time.Minute

// Keyed holds a rate.Limiter per key. Idle buckets (full again) are swept
// at most once per SweepInterval so ephemeral keys do not accumulate.
type Keyed struct {
	limit rate.Limit
	burst int

	limiters sync.Map // map[string]*rate.Limiter

	mu            sync.Mutex
	lastSweep     time.Time
	SweepInterval time.Duration
}

// New returns a Keyed allowing burst events at once and refilling at limit
// events per second.
func New(limit rate.Limit, burst int) *Keyed {
	return &Keyed{
		limit:         limit,
		burst:         burst,
		SweepInterval: defaultSweepInterval,
	}
}

// PerWindow converts "n per window" into a rate.Limit.
func PerWindow(n int, window time.Duration) rate.Limit {
	if n <= 0 || window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(n) / window.Seconds())
}

// Cooldown returns a Keyed that allows a single event per key every
// interval.
func Cooldown(interval time.Duration) *Keyed {
	if interval <= 0 {
		return New(rate.Inf, 1)
	}
	return New(rate.Every(interval), 1)
}

// Allow reports whether an event for key may happen now.
func (k *Keyed) Allow(key string) bool {
	ok, _ := k.AllowAt(key, time.Now())
	return ok
}

// AllowAt reports whether an event for key may happen at now. When it may
// not, the returned duration is how long until it could.
func (k *Keyed) AllowAt(key string, now time.Time) (bool, time.Duration) {
	limiter := k.limiter(key, now)

	if limiter.AllowN(now, 1) {
		return true, 0
	}

	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Duration(1<<63 - 1)
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	return false, delay
}

func (k *Keyed) limiter(key string, now time.Time) *rate.Limiter {
	if l, ok := k.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}

	// Sweep before storing so the fresh (full) bucket is not swept with it.
	k.maybeSweep(now)
	l, _ := k.limiters.LoadOrStore(key, rate.NewLimiter(k.limit, k.burst))

	return l.(*rate.Limiter)
}

func (k *Keyed) maybeSweep(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) < k.SweepInterval {
		return
	}
	k.lastSweep = now

	k.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).TokensAt(now) >= float64(k.burst) {
			k.limiters.Delete(key)
		}
		return true
	})
}
