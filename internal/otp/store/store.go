package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
)

var (
	ErrNotFound = errors.New("store: not found")

	// ErrNotPending is returned by mutations against a challenge that has
	// already left the pending state.
	ErrNotPending = errors.New("store: challenge not pending")
)

// Store is the root data access interface implemented by the sqlite and
// redis drivers.
type Store interface {
	Challenges() Challenges

	ApplyMigrations() error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Challenges persists OTP challenges. Handles are generated by the store and
// only their fingerprints are kept, so a handle cannot be recovered from
// stored data. Every mutation is atomic per handle.
type Challenges interface {
	// PutChallenge stores c, marks any pending challenge for the same target
	// as superseded and returns the new handle. Both happen atomically.
	PutChallenge(ctx context.Context, c domain.Challenge) (handle string, err error)

	// GetChallenge returns ErrNotFound for unknown or collected handles.
	GetChallenge(ctx context.Context, handle string) (domain.Challenge, error)

	// MarkAttemptFailed decrements the remaining attempts of a pending
	// challenge and returns the new count. At zero the challenge becomes
	// exhausted. Returns ErrNotPending if it is no longer pending.
	MarkAttemptFailed(ctx context.Context, handle string) (remaining int, err error)

	// ConsumeChallenge moves a pending, unexpired challenge to consumed. It
	// reports whether this call made the transition, so that of two
	// concurrent correct submissions only one wins.
	ConsumeChallenge(ctx context.Context, handle string, now time.Time) (bool, error)

	// RotateCode replaces the code of a pending challenge, resets its
	// validity window and bumps its resend count. Remaining attempts are
	// kept. Returns ErrNotPending if it is no longer pending.
	RotateCode(ctx context.Context, handle, codeHash string, sentAt, expiresAt time.Time) error

	// DeleteExpiredChallenges removes challenges that expired before the
	// given time and returns how many went.
	DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error)
}
