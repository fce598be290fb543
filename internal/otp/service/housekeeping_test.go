package service_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/internal/otp/service"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	h := newHarness(t)

	old, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	fresh, err := h.issuance.Issue(h.ctx, "0123456789")
	require.NoError(t, err)

	hk := service.NewHousekeepingService(h.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour, time.Hour)
	hk.Now = h.clock.Now

	require.EqualValues(t, 1, hk.Cleanup(h.ctx))

	_, err = h.verify.Verify(h.ctx, old.Handle, "000000")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.store.Challenges().GetChallenge(h.ctx, fresh.Handle)
	require.NoError(t, err)
}

func TestHousekeepingStartStop(t *testing.T) {
	h := newHarness(t)

	hk := service.NewHousekeepingService(h.store, slog.New(slog.NewTextHandler(io.Discard, nil)), 0, -time.Second)
	require.Equal(t, time.Hour, hk.Interval)
	require.Zero(t, hk.Grace)

	hk.Start()
	hk.Stop()
}
