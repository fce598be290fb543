package otpsdk

import (
	"time"

	"github.com/aussiebroadwan/otpd/pkg/jwtx"
)

// ============================================================================
// Challenge Types
// ============================================================================

// IssueRequest asks for a code to be sent to Target.
type IssueRequest struct {
	// Target is a 10 digit phone number or an email address.
	Target string `json:"target" validate:"required,max=254" example:"9876543210"`
}

// IssueResponse identifies the challenge a code was sent for. It is returned
// by both issue and resend. The code itself is never returned.
type IssueResponse struct {
	// Handle is the opaque reference to pass to verify and resend.
	Handle string `json:"handle"`

	// ChallengeID is a stable, non-secret id for correlating logs and events.
	ChallengeID string `json:"challenge_id"`

	// ExpiresAt is when the code stops being accepted.
	ExpiresAt time.Time `json:"expires_at"`

	// ExpiresIn is the remaining lifetime in seconds at response time.
	ExpiresIn int `json:"expires_in"`
}

// VerifyRequest submits a code for a challenge.
type VerifyRequest struct {
	Handle string `json:"handle" validate:"required,max=128"`
	Code   string `json:"code" validate:"required,numeric,len=6" example:"482913"`
}

// VerifyResponse is a successful verification.
type VerifyResponse struct {
	Success     bool   `json:"success"`
	ChallengeID string `json:"challenge_id"`

	// Receipt is a signed JWT proving the identifier was verified. Present
	// only when the server signs receipts.
	Receipt string `json:"receipt,omitempty"`

	// ReceiptExpiresIn is the receipt lifetime in seconds.
	ReceiptExpiresIn int `json:"receipt_expires_in,omitempty"`
}

// ResendRequest asks for a fresh code on an existing challenge.
type ResendRequest struct {
	Handle string `json:"handle" validate:"required,max=128"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Success is always false.
	Success bool `json:"success"`

	// Error is the reason code, e.g. "code_mismatch".
	Error string `json:"error"`

	// ErrorDescription is a human readable message.
	ErrorDescription string `json:"error_description"`

	// Handle is set on delivery_failed so the caller can resend.
	Handle string `json:"handle,omitempty"`

	// RemainingAttempts is set on code_mismatch.
	RemainingAttempts *int `json:"remaining_attempts,omitempty"`

	// Details maps request fields to validation messages on invalid_request.
	Details map[string]string `json:"details,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports readiness of each dependency (only for /readyz).
type HealthChecks struct {
	Store  string `json:"store"`
	Signer string `json:"signer"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse holds the public keys that verify receipts.
type JWKSResponse jwtx.JWKS
