package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/delivery"
	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/internal/otp/events"
	"github.com/aussiebroadwan/otpd/internal/otp/store"
	"github.com/aussiebroadwan/otpd/internal/otp/telemetry"
	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/aussiebroadwan/otpd/pkg/otpcode"
	"github.com/aussiebroadwan/otpd/pkg/slogx"
)

const defaultDeliveryTimeout = 10 * time.Second

// Issued is what the caller learns about a new or resent challenge. It never
// includes the code.
type Issued struct {
	Handle      string
	ChallengeID string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type IssuanceService struct {
	Store     store.Store
	Hasher    *cryptox.SecretHasher
	Channel   delivery.Channel
	Cooldown  Cooldown // nil disables the per-identifier interval
	Events    events.Publisher
	Telemetry *telemetry.Instruments

	Codes CodeGenerator    // defaults to six digit otpcode
	Now   func() time.Time // defaults to time.Now

	TTL             time.Duration
	MaxAttempts     int
	DeliveryTimeout time.Duration
}

// Issue creates a challenge for rawTarget and sends it a fresh code. Any
// pending challenge for the same identifier stops being verifiable.
//
// If delivery fails the challenge is kept: the returned Issued is populated
// and err is a *domain.DeliveryError, so the caller can Resend.
func (s *IssuanceService) Issue(ctx context.Context, rawTarget string) (issued Issued, err error) {
	ctx, span := s.Telemetry.Start(ctx, "otp.issue")
	defer func() { telemetry.End(span, err) }()

	log := slogx.FromContext(ctx)

	target, err := domain.ParseIdentifier(rawTarget)
	if err != nil {
		log.Info("rejected issue request", slog.Any("error", err))
		return Issued{}, err
	}
	log = log.With(slog.String("target", target.Masked()), slog.String("channel", string(target.Kind)))

	at := now(s.Now)
	if err := s.throttle(ctx, target, at); err != nil {
		log.Warn("issue throttled", slog.Any("error", err))
		return Issued{}, err
	}

	code, hash, err := s.newCode()
	if err != nil {
		log.Error("failed to prepare code", slog.Any("error", err))
		return Issued{}, err
	}

	c := domain.NewChallenge(target, hash, at, s.ttl(), s.maxAttempts())
	handle, err := s.Store.Challenges().PutChallenge(ctx, c)
	if err != nil {
		log.Error("failed to store challenge", slog.Any("error", err))
		return Issued{}, fmt.Errorf("store challenge: %w", err)
	}

	issued = Issued{Handle: handle, ChallengeID: c.ID.String(), IssuedAt: at, ExpiresAt: c.ExpiresAt}
	log = log.With(slog.String("challenge_id", issued.ChallengeID))
	s.Telemetry.Issued(ctx, string(target.Kind), "issue")

	ev := events.New(events.TypeIssued, c, at)
	if err := s.deliver(ctx, target, code); err != nil {
		log.Error("failed to deliver code", slog.Any("error", err))
		publish(ctx, s.Events, ev.WithReason(domain.ReasonDeliveryFailed))
		return issued, &domain.DeliveryError{Handle: handle, ExpiresAt: c.ExpiresAt, Err: err}
	}

	publish(ctx, s.Events, ev)
	log.Info("challenge issued", slog.Time("expires_at", c.ExpiresAt))

	return issued, nil
}

// Resend rotates a live challenge to a fresh code and sends it. The old code
// stops working, the validity window restarts and the remaining attempts
// carry over. The handle does not change.
func (s *IssuanceService) Resend(ctx context.Context, handle string) (issued Issued, err error) {
	ctx, span := s.Telemetry.Start(ctx, "otp.resend")
	defer func() { telemetry.End(span, err) }()

	log := slogx.FromContext(ctx)
	at := now(s.Now)

	c, err := getChallenge(ctx, s.Store, handle)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error("failed to load challenge", slog.Any("error", err))
		}
		return Issued{}, err
	}
	log = log.With(slog.String("challenge_id", c.ID.String()), slog.String("target", c.Target.Masked()))

	if err := c.TerminalError(at); err != nil {
		log.Info("resend refused", slog.String("state", string(c.StateAt(at))))
		return Issued{}, err
	}

	if err := s.throttle(ctx, c.Target, at); err != nil {
		log.Warn("resend throttled", slog.Any("error", err))
		return Issued{}, err
	}

	code, hash, err := s.newCode()
	if err != nil {
		log.Error("failed to prepare code", slog.Any("error", err))
		return Issued{}, err
	}

	expiresAt := at.Add(s.ttl())
	if err := s.Store.Challenges().RotateCode(ctx, handle, hash, at, expiresAt); err != nil {
		switch {
		case errors.Is(err, store.ErrNotPending):
			return Issued{}, settle(ctx, s.Store, handle, at)
		case errors.Is(err, store.ErrNotFound):
			return Issued{}, domain.ErrNotFound
		}
		log.Error("failed to rotate code", slog.Any("error", err))
		return Issued{}, fmt.Errorf("rotate code: %w", err)
	}

	c.CodeHash, c.SentAt, c.ExpiresAt = hash, at, expiresAt
	c.ResendCount++

	issued = Issued{Handle: handle, ChallengeID: c.ID.String(), IssuedAt: at, ExpiresAt: expiresAt}
	s.Telemetry.Issued(ctx, string(c.Target.Kind), "resend")

	ev := events.New(events.TypeResent, c, at)
	if err := s.deliver(ctx, c.Target, code); err != nil {
		log.Error("failed to deliver code", slog.Any("error", err))
		publish(ctx, s.Events, ev.WithReason(domain.ReasonDeliveryFailed))
		return issued, &domain.DeliveryError{Handle: handle, ExpiresAt: expiresAt, Err: err}
	}

	publish(ctx, s.Events, ev)
	log.Info("challenge resent", slog.Int("resend_count", c.ResendCount))

	return issued, nil
}

func (s *IssuanceService) throttle(ctx context.Context, target domain.Identifier, at time.Time) error {
	if s.Cooldown == nil {
		return nil
	}
	wait, err := s.Cooldown.Allow(ctx, target.Fingerprint(), at)
	if err != nil {
		return fmt.Errorf("cooldown: %w", err)
	}
	if wait > 0 {
		return &domain.RateLimitError{RetryAfter: wait}
	}
	return nil
}

func (s *IssuanceService) newCode() (code, hash string, err error) {
	gen := s.Codes
	if gen == nil {
		gen = otpcode.Generator{Digits: codeDigits}
	}
	code, err = gen.Generate()
	if err != nil {
		return "", "", fmt.Errorf("generate code: %w", err)
	}
	hash, err = s.Hasher.Hash(code)
	if err != nil {
		return "", "", fmt.Errorf("hash code: %w", err)
	}
	return code, hash, nil
}

func (s *IssuanceService) deliver(ctx context.Context, to domain.Identifier, code string) error {
	timeout := s.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := s.Channel.Send(dctx, to, code)
	s.Telemetry.Delivery(ctx, string(to.Kind), time.Since(start), err)

	return err
}

func (s *IssuanceService) ttl() time.Duration {
	if s.TTL <= 0 {
		return domain.DefaultTTL
	}
	return s.TTL
}

func (s *IssuanceService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return domain.DefaultMaxAttempts
	}
	return s.MaxAttempts
}
