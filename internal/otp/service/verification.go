package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/internal/otp/events"
	"github.com/aussiebroadwan/otpd/internal/otp/store"
	"github.com/aussiebroadwan/otpd/internal/otp/telemetry"
	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/aussiebroadwan/otpd/pkg/jwtx"
	"github.com/aussiebroadwan/otpd/pkg/otpcode"
	"github.com/aussiebroadwan/otpd/pkg/slogx"
	"github.com/pquerna/otp"
)

// codeDigits is the length of every code the service generates.
const codeDigits = otp.DigitsSix

// Verified is a successful verification. Receipt is empty when no signer is
// configured.
type Verified struct {
	ChallengeID      string
	Target           domain.Identifier
	VerifiedAt       time.Time
	Receipt          string
	ReceiptExpiresAt time.Time
}

type VerificationService struct {
	Store     store.Store
	Hasher    *cryptox.SecretHasher
	Events    events.Publisher
	Telemetry *telemetry.Instruments
	Now       func() time.Time

	// Signer mints receipts for successful verifications. Optional.
	Signer          jwtx.Signer
	ReceiptIssuer   string
	ReceiptAudience string
	ReceiptTTL      time.Duration
}

// Verify checks code against the challenge behind handle. Each call makes
// one decision: success consumes the challenge, a wrong code spends one
// attempt and returns a *domain.MismatchError, or the last attempt exhausts
// it. Terminal challenges fail without the code being looked at.
func (s *VerificationService) Verify(ctx context.Context, handle, code string) (v Verified, err error) {
	ctx, span := s.Telemetry.Start(ctx, "otp.verify")
	defer func() {
		result := "success"
		if err != nil {
			result = domain.Reason(err)
			if result == "" {
				result = "error"
			}
		}
		s.Telemetry.Verification(ctx, result)
		telemetry.End(span, err)
	}()

	log := slogx.FromContext(ctx)
	at := now(s.Now)

	if !otpcode.Valid(code, codeDigits) {
		return Verified{}, fmt.Errorf("%w: must be %d digits", domain.ErrMalformedCode, codeDigits.Length())
	}

	c, err := getChallenge(ctx, s.Store, handle)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error("failed to load challenge", slog.Any("error", err))
		}
		return Verified{}, err
	}
	log = log.With(slog.String("challenge_id", c.ID.String()), slog.String("target", c.Target.Masked()))

	if err := c.TerminalError(at); err != nil {
		log.Info("verification refused", slog.String("state", string(c.StateAt(at))))
		s.failed(ctx, c, at, err)
		return Verified{}, err
	}

	ok, err := s.Hasher.Verify(code, c.CodeHash)
	if err != nil {
		log.Error("failed to check code", slog.Any("error", err))
		return Verified{}, fmt.Errorf("check code: %w", err)
	}

	if !ok {
		err := s.mismatch(ctx, handle, at)
		log.Info("verification failed", slog.String("reason", domain.Reason(err)))
		s.failed(ctx, c, at, err)
		return Verified{}, err
	}

	won, err := s.Store.Challenges().ConsumeChallenge(ctx, handle, at)
	if err != nil {
		log.Error("failed to consume challenge", slog.Any("error", err))
		return Verified{}, fmt.Errorf("consume challenge: %w", err)
	}
	if !won {
		// Lost to a concurrent verify, an exhaustion or the clock.
		err := settle(ctx, s.Store, handle, at)
		log.Info("verification lost race", slog.String("reason", domain.Reason(err)))
		s.failed(ctx, c, at, err)
		return Verified{}, err
	}

	v = Verified{ChallengeID: c.ID.String(), Target: c.Target, VerifiedAt: at}
	if s.Signer != nil {
		v.Receipt, v.ReceiptExpiresAt, err = s.receipt(c, at)
		if err != nil {
			// The challenge is spent either way; succeed without a receipt.
			log.Error("failed to sign receipt", slog.Any("error", err))
			v.Receipt, v.ReceiptExpiresAt = "", time.Time{}
		}
	}

	publish(ctx, s.Events, events.New(events.TypeVerified, c, at))
	log.Info("challenge verified")

	return v, nil
}

func (s *VerificationService) mismatch(ctx context.Context, handle string, at time.Time) error {
	remaining, err := s.Store.Challenges().MarkAttemptFailed(ctx, handle)
	switch {
	case errors.Is(err, store.ErrNotPending):
		return settle(ctx, s.Store, handle, at)
	case errors.Is(err, store.ErrNotFound):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("mark attempt failed: %w", err)
	}

	if remaining <= 0 {
		return domain.ErrAttemptsExhausted
	}
	return &domain.MismatchError{Remaining: remaining}
}

func (s *VerificationService) failed(ctx context.Context, c domain.Challenge, at time.Time, err error) {
	ev := events.New(events.TypeFailed, c, at).WithReason(domain.Reason(err))
	var me *domain.MismatchError
	if errors.As(err, &me) {
		ev = ev.WithRemaining(me.Remaining)
	}
	publish(ctx, s.Events, ev)
}

func (s *VerificationService) receipt(c domain.Challenge, at time.Time) (string, time.Time, error) {
	ttl := s.ReceiptTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultReceiptTTL
	}

	claims := jwtx.NewReceiptClaims(
		c.Target.Value, c.ID.String(), string(c.Target.Kind),
		s.ReceiptIssuer, s.ReceiptAudience,
		ttl, at,
	)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}
