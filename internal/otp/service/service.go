// Package service holds the OTP use cases: issuing, resending and verifying
// challenges, plus background housekeeping.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/internal/otp/events"
	"github.com/aussiebroadwan/otpd/internal/otp/store"
	"github.com/aussiebroadwan/otpd/pkg/slogx"
)

// CodeGenerator produces fresh codes. otpcode.Generator satisfies it.
type CodeGenerator interface {
	Generate() (string, error)
}

func now(fn func() time.Time) time.Time {
	if fn == nil {
		return time.Now().UTC()
	}
	return fn()
}

// getChallenge loads a challenge, folding the store's not found into the
// domain error.
func getChallenge(ctx context.Context, s store.Store, handle string) (domain.Challenge, error) {
	if handle == "" {
		return domain.Challenge{}, domain.ErrNotFound
	}
	c, err := s.Challenges().GetChallenge(ctx, handle)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, domain.ErrNotFound
	}
	return c, err
}

// settle re-reads a challenge that a conditional update refused and returns
// the terminal error it now carries.
func settle(ctx context.Context, s store.Store, handle string, now time.Time) error {
	c, err := getChallenge(ctx, s, handle)
	if err != nil {
		return err
	}
	if err := c.TerminalError(now); err != nil {
		return err
	}
	// Only reachable if the row changed back under us.
	return domain.ErrAlreadyConsumed
}

func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slogx.FromContext(ctx).Warn("failed to publish event",
			slog.String("type", string(e.Type)),
			slog.String("challenge_id", e.ChallengeID.String()),
			slog.Any("error", err),
		)
	}
}
