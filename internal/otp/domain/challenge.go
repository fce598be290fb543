package domain

import (
	"time"

	"github.com/aussiebroadwan/otpd/pkg/idx"
)

const (
	DefaultTTL         = 15 * time.Minute
	DefaultMaxAttempts = 5
)

// State is the persisted lifecycle state of a challenge. Expiry is not
// stored; it is derived from ExpiresAt.
type State string

const (
	StatePending    State = "pending"
	StateConsumed   State = "consumed"   // verified successfully
	StateExhausted  State = "exhausted"  // ran out of attempts
	StateSuperseded State = "superseded" // replaced by a newer issue for the same target
	StateExpired    State = "expired"    // derived only, never persisted
)

// Challenge is one issued code awaiting verification. It is addressed by an
// opaque handle which the store keeps only as a fingerprint, so the handle
// itself is not a field here.
type Challenge struct {
	ID                idx.ID
	Target            Identifier
	CodeHash          string // argon2id PHC string
	State             State
	RemainingAttempts int
	ResendCount       int
	CreatedAt         time.Time
	SentAt            time.Time // last time a code was generated for it
	ExpiresAt         time.Time
	UpdatedAt         time.Time
}

// NewChallenge returns a pending challenge for target created at now.
func NewChallenge(target Identifier, codeHash string, now time.Time, ttl time.Duration, maxAttempts int) Challenge {
	return Challenge{
		ID:                idx.NewAt(now),
		Target:            target,
		CodeHash:          codeHash,
		State:             StatePending,
		RemainingAttempts: maxAttempts,
		CreatedAt:         now,
		SentAt:            now,
		ExpiresAt:         now.Add(ttl),
		UpdatedAt:         now,
	}
}

// Expired reports whether the challenge is past its lifetime at now. A
// challenge is already expired at exactly ExpiresAt.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// StateAt returns the effective state at now, folding in expiry.
func (c Challenge) StateAt(now time.Time) State {
	if c.State == StatePending && c.Expired(now) {
		return StateExpired
	}
	return c.State
}

// Live reports whether the challenge can still be verified at now.
func (c Challenge) Live(now time.Time) bool {
	return c.StateAt(now) == StatePending && c.RemainingAttempts > 0
}

// TerminalError maps a non-pending state onto the error a verification
// attempt against it must return. It returns nil for a live challenge.
// Expiry is checked first, whatever the stored state.
func (c Challenge) TerminalError(now time.Time) error {
	if c.Expired(now) {
		return ErrExpired
	}
	switch c.State {
	case StateExpired:
		return ErrExpired
	case StateConsumed, StateSuperseded:
		return ErrAlreadyConsumed
	case StateExhausted:
		return ErrAttemptsExhausted
	}
	if c.RemainingAttempts <= 0 {
		return ErrAttemptsExhausted
	}
	return nil
}
