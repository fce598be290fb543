package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/pkg/otpsdk"
	"github.com/aussiebroadwan/otpd/pkg/slogx"
	"github.com/aussiebroadwan/otpd/pkg/validatex"
)

// writeError maps a service error onto its status and body. Errors outside
// the domain taxonomy become a 500 and are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		mismatch *domain.MismatchError
		delivery *domain.DeliveryError
		limited  *domain.RateLimitError
	)

	var e otpsdk.Error
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier):
		e = *otpsdk.ErrInvalidIdentifier
	case errors.Is(err, domain.ErrMalformedCode):
		e = *otpsdk.ErrInvalidRequest
		e.Description = err.Error()
	case errors.As(err, &limited):
		e = *otpsdk.ErrRateLimited
		e.RetryAfter = limited.RetryAfter
	case errors.As(err, &delivery):
		e = *otpsdk.ErrDeliveryFailed
		e.Handle = delivery.Handle
	case errors.Is(err, domain.ErrNotFound):
		e = *otpsdk.ErrNotFound
	case errors.Is(err, domain.ErrExpired):
		e = *otpsdk.ErrExpired
	case errors.Is(err, domain.ErrAlreadyConsumed):
		e = *otpsdk.ErrAlreadyConsumed
	case errors.As(err, &mismatch):
		e = *otpsdk.ErrCodeMismatch
		e.RemainingAttempts = mismatch.Remaining
	case errors.Is(err, domain.ErrAttemptsExhausted):
		e = *otpsdk.ErrAttemptsExhausted
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		e = *otpsdk.ErrServerError
	}

	e.WriteError(w)
}

// writeBadRequest reports an undecodable or invalid request body.
func writeBadRequest(w http.ResponseWriter, err error) {
	e := *otpsdk.ErrInvalidRequest

	var ve validatex.ValidationError
	if errors.As(err, &ve) {
		e.Description = "request validation failed"
		e.Details = ve
	} else {
		e.Description = err.Error()
	}

	e.WriteError(w)
}
