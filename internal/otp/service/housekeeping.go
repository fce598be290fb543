package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/store"
)

// HousekeepingService periodically deletes challenges that expired more
// than Grace ago, so terminal rows do not pile up.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Grace    time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to 1 hour and a
// negative grace to zero.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, grace time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if grace < 0 {
		grace = 0
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		Grace:    grace,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "grace", s.Grace)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass and returns the number of challenges removed.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	before := now(s.Now).Add(-s.Grace)

	n, err := s.Store.Challenges().DeleteExpiredChallenges(ctx, before)
	if err != nil {
		s.Logger.Error("failed to delete expired challenges", "error", err)
		return 0
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", n, "before", before)
	return n
}
