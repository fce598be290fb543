package otpsdk

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/otpd/pkg/httpx"
)

// Reason codes carried in the "error" field.
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeInvalidIdentifier = "invalid_identifier"
	ErrorCodeRateLimited       = "rate_limited"
	ErrorCodeDeliveryFailed    = "delivery_failed"
	ErrorCodeNotFound          = "not_found"
	ErrorCodeExpired           = "expired"
	ErrorCodeAlreadyConsumed   = "already_consumed"
	ErrorCodeCodeMismatch      = "code_mismatch"
	ErrorCodeAttemptsExhausted = "attempts_exhausted"
	ErrorCodeServerError       = "server_error"
)

// Error is a failed call. The server builds one to write a response; the
// client parses one out of every non-2xx response.
type Error struct {
	StatusCode  int
	Code        string
	Description string

	// Handle is set for delivery_failed.
	Handle string
	// RemainingAttempts is set for code_mismatch, otherwise -1.
	RemainingAttempts int
	// RetryAfter is set for rate_limited.
	RetryAfter time.Duration
	// Details is set for invalid_request with field errors.
	Details map[string]string
}

func (e *Error) Error() string {
	if e.Code == ErrorCodeCodeMismatch && e.RemainingAttempts >= 0 {
		return fmt.Sprintf("%s: %s (%d attempts remaining)", e.Code, e.Description, e.RemainingAttempts)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches another *Error by reason code, so callers can use
// errors.Is(err, otpsdk.ErrExpired).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WriteError writes e as a JSON error response.
func (e *Error) WriteError(w http.ResponseWriter) {
	if e.RetryAfter > 0 {
		secs := max(int(math.Ceil(e.RetryAfter.Seconds())), 1)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	body := ErrorResponse{
		Success:          false,
		Error:            e.Code,
		ErrorDescription: e.Description,
		Handle:           e.Handle,
		Details:          e.Details,
	}
	if e.Code == ErrorCodeCodeMismatch && e.RemainingAttempts >= 0 {
		n := e.RemainingAttempts
		body.RemainingAttempts = &n
	}

	httpx.WriteJSON(w, e.StatusCode, body)
}

// NewError builds an Error with no extra fields.
func NewError(statusCode int, code, description string) *Error {
	return &Error{
		StatusCode:        statusCode,
		Code:              code,
		Description:       description,
		RemainingAttempts: -1,
	}
}

// Predefined errors, usable with errors.Is.
var (
	ErrInvalidRequest    = NewError(http.StatusBadRequest, ErrorCodeInvalidRequest, "the request is malformed or missing required fields")
	ErrInvalidIdentifier = NewError(http.StatusBadRequest, ErrorCodeInvalidIdentifier, "target must be a 10 digit phone number or an email address")
	ErrRateLimited       = NewError(http.StatusTooManyRequests, ErrorCodeRateLimited, "too many codes requested for this identifier")
	ErrDeliveryFailed    = NewError(http.StatusBadGateway, ErrorCodeDeliveryFailed, "the code could not be delivered")
	ErrNotFound          = NewError(http.StatusNotFound, ErrorCodeNotFound, "unknown challenge")
	ErrExpired           = NewError(http.StatusGone, ErrorCodeExpired, "the code has expired")
	ErrAlreadyConsumed   = NewError(http.StatusConflict, ErrorCodeAlreadyConsumed, "the challenge is no longer usable")
	ErrCodeMismatch      = NewError(http.StatusForbidden, ErrorCodeCodeMismatch, "the code is incorrect")
	ErrAttemptsExhausted = NewError(http.StatusForbidden, ErrorCodeAttemptsExhausted, "too many incorrect attempts")
	ErrServerError       = NewError(http.StatusInternalServerError, ErrorCodeServerError, "internal server error")
)

// parseErrorResponse turns a non-2xx response into an *Error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	e := &Error{StatusCode: resp.StatusCode, RemainingAttempts: -1}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		e.Code = errResp.Error
		e.Description = errResp.ErrorDescription
		e.Handle = errResp.Handle
		e.Details = errResp.Details
		if errResp.RemainingAttempts != nil {
			e.RemainingAttempts = *errResp.RemainingAttempts
		}
	} else {
		e.Code = ErrorCodeServerError
		e.Description = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}

	return e
}
