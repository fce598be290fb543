// Package events publishes challenge lifecycle events. Events never carry
// code material or the raw identifier, only its fingerprint.
package events

import (
	"context"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/pkg/idx"
)

type Type string

const (
	TypeIssued   Type = "challenge.issued"
	TypeResent   Type = "challenge.resent"
	TypeVerified Type = "challenge.verified"
	TypeFailed   Type = "challenge.failed"
)

type Event struct {
	ID          idx.ID      `json:"id"`
	Type        Type        `json:"type"`
	ChallengeID idx.ID      `json:"challenge_id"`
	TargetKind  domain.Kind `json:"target_kind"`
	TargetFP    string      `json:"target_fp"`
	// Reason is the failure reason code for challenge.failed, or
	// delivery_failed on issued/resent when the code could not be sent.
	Reason     string    `json:"reason,omitempty"`
	Remaining  *int      `json:"remaining_attempts,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event about c.
func New(t Type, c domain.Challenge, now time.Time) Event {
	return Event{
		ID:          idx.NewAt(now),
		Type:        t,
		ChallengeID: c.ID,
		TargetKind:  c.Target.Kind,
		TargetFP:    c.Target.Fingerprint(),
		OccurredAt:  now.UTC(),
	}
}

// WithReason sets the failure reason.
func (e Event) WithReason(reason string) Event {
	e.Reason = reason
	return e
}

// WithRemaining sets the remaining attempt count.
func (e Event) WithRemaining(n int) Event {
	e.Remaining = &n
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
