package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrRateLimited       = errors.New("rate limited")
	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrNotFound          = errors.New("challenge not found")
	ErrExpired           = errors.New("challenge expired")
	ErrAlreadyConsumed   = errors.New("challenge already consumed")
	ErrCodeMismatch      = errors.New("code mismatch")
	ErrAttemptsExhausted = errors.New("attempts exhausted")

	// ErrMalformedCode is a submitted code that cannot be a code at all. It
	// is rejected before the challenge is touched and spends no attempt.
	ErrMalformedCode = errors.New("malformed code")
)

// Reason codes as they appear on the wire and in metrics.
const (
	ReasonInvalidIdentifier = "invalid_identifier"
	ReasonRateLimited       = "rate_limited"
	ReasonDeliveryFailed    = "delivery_failed"
	ReasonNotFound          = "not_found"
	ReasonExpired           = "expired"
	ReasonAlreadyConsumed   = "already_consumed"
	ReasonCodeMismatch      = "code_mismatch"
	ReasonAttemptsExhausted = "attempts_exhausted"
	ReasonMalformedCode     = "malformed_code"
)

// Reason returns the reason code for err, or "" if err is not part of the
// taxonomy.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidIdentifier):
		return ReasonInvalidIdentifier
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrDeliveryFailed):
		return ReasonDeliveryFailed
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrExpired):
		return ReasonExpired
	case errors.Is(err, ErrAlreadyConsumed):
		return ReasonAlreadyConsumed
	case errors.Is(err, ErrCodeMismatch):
		return ReasonCodeMismatch
	case errors.Is(err, ErrAttemptsExhausted):
		return ReasonAttemptsExhausted
	case errors.Is(err, ErrMalformedCode):
		return ReasonMalformedCode
	default:
		return ""
	}
}

// MismatchError is a wrong code with attempts left.
type MismatchError struct {
	Remaining int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("code mismatch: %d attempts remaining", e.Remaining)
}

func (e *MismatchError) Is(target error) bool { return target == ErrCodeMismatch }

// DeliveryError means the challenge was stored but the code could not be
// sent. Handle is still valid and can be passed to resend.
type DeliveryError struct {
	Handle    string
	ExpiresAt time.Time
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *DeliveryError) Is(target error) bool { return target == ErrDeliveryFailed }
func (e *DeliveryError) Unwrap() error        { return e.Err }

// RateLimitError carries how long the caller must wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
