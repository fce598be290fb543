package throttle_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/otpd/pkg/throttle"
	"github.com/stretchr/testify/require"
)

func TestCooldown(t *testing.T) {
	k := throttle.Cooldown(time.Minute)
	now := time.Unix(1700000000, 0)

	ok, _ := k.AllowAt("9876543210", now)
	require.True(t, ok)

	ok, wait := k.AllowAt("9876543210", now.Add(10*time.Second))
	require.False(t, ok)
	require.InDelta(t, float64(50*time.Second), float64(wait), float64(time.Second))

	// A denied attempt does not push the window out.
	ok, _ = k.AllowAt("9876543210", now.Add(time.Minute+time.Millisecond))
	require.True(t, ok)
}

func TestCooldownKeysAreIndependent(t *testing.T) {
	k := throttle.Cooldown(time.Minute)
	now := time.Unix(1700000000, 0)

	ok, _ := k.AllowAt("a", now)
	require.True(t, ok)
	ok, _ = k.AllowAt("b", now)
	require.True(t, ok)
	ok, _ = k.AllowAt("a", now)
	require.False(t, ok)
}

func TestCooldownDisabled(t *testing.T) {
	k := throttle.Cooldown(0)
	now := time.Unix(1700000000, 0)

	for range 10 {
		ok, _ := k.AllowAt("a", now)
		require.True(t, ok)
	}
}

func TestBurst(t *testing.T) {
	k := throttle.New(throttle.PerWindow(3, time.Minute), 3)
	now := time.Unix(1700000000, 0)

	for i := range 3 {
		ok, _ := k.AllowAt("ip", now)
		require.True(t, ok, "request %d", i+1)
	}

	ok, wait := k.AllowAt("ip", now)
	require.False(t, ok)
	require.Greater(t, wait, time.Duration(0))
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	k := throttle.Cooldown(time.Second)
	k.SweepInterval = time.Minute
	now := time.Unix(1700000000, 0)

	ok, _ := k.AllowAt("old", now)
	require.True(t, ok)

	// Far enough ahead that "old" has refilled and a sweep is due; a new
	// key triggers it. "old" must behave as fresh afterwards.
	later := now.Add(2 * time.Minute)
	ok, _ = k.AllowAt("new", later)
	require.True(t, ok)
	ok, _ = k.AllowAt("old", later)
	require.True(t, ok)
}
