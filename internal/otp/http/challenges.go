package http

import (
	"net/http"

	"github.com/aussiebroadwan/otpd/internal/otp/service"
	"github.com/aussiebroadwan/otpd/pkg/httpx"
	"github.com/aussiebroadwan/otpd/pkg/otpsdk"
	"github.com/aussiebroadwan/otpd/pkg/validatex"
)

type IssueHandler struct {
	IssuanceService *service.IssuanceService
	Validator       *validatex.Validator
}

// ServeHTTP godoc
//
//	@Summary		Issue a code
//	@Description	Sends a six digit code to a phone number or email address and returns an opaque handle for it.
//	@Description	Any pending challenge for the same identifier stops being verifiable.
//	@Tags			OTP
//	@Accept			json
//	@Produce		json
//	@Param			request	body		otpsdk.IssueRequest		true	"target identifier"
//	@Success		201		{object}	otpsdk.IssueResponse	"handle, expires_at"
//	@Failure		400		{object}	otpsdk.ErrorResponse	"invalid_request, invalid_identifier"
//	@Failure		429		{object}	otpsdk.ErrorResponse	"rate_limited"
//	@Failure		502		{object}	otpsdk.ErrorResponse	"delivery_failed, carries the handle"
//	@Router			/v1/otp/issue [post].
func (h *IssueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req otpsdk.IssueRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeBadRequest(w, err)
		return
	}

	issued, err := h.IssuanceService.Issue(r.Context(), req.Target)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, issueResponse(issued))
}

type ResendHandler struct {
	IssuanceService *service.IssuanceService
	Validator       *validatex.Validator
}

// ServeHTTP godoc
//
//	@Summary		Resend a code
//	@Description	Sends a fresh code for a live challenge. The previous code stops working and the expiry restarts.
//	@Tags			OTP
//	@Accept			json
//	@Produce		json
//	@Param			request	body		otpsdk.ResendRequest	true	"handle"
//	@Success		202		{object}	otpsdk.IssueResponse	"handle, expires_at"
//	@Failure		400		{object}	otpsdk.ErrorResponse	"invalid_request"
//	@Failure		403		{object}	otpsdk.ErrorResponse	"attempts_exhausted"
//	@Failure		404		{object}	otpsdk.ErrorResponse	"not_found"
//	@Failure		409		{object}	otpsdk.ErrorResponse	"already_consumed"
//	@Failure		410		{object}	otpsdk.ErrorResponse	"expired"
//	@Failure		429		{object}	otpsdk.ErrorResponse	"rate_limited"
//	@Failure		502		{object}	otpsdk.ErrorResponse	"delivery_failed"
//	@Router			/v1/otp/resend [post].
func (h *ResendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req otpsdk.ResendRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeBadRequest(w, err)
		return
	}

	issued, err := h.IssuanceService.Resend(r.Context(), req.Handle)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, issueResponse(issued))
}

type VerifyHandler struct {
	VerificationService *service.VerificationService
	Validator           *validatex.Validator
}

// ServeHTTP godoc
//
//	@Summary		Verify a code
//	@Description	Checks a code against a challenge. A challenge allows five attempts and can be verified once.
//	@Tags			OTP
//	@Accept			json
//	@Produce		json
//	@Param			request	body		otpsdk.VerifyRequest	true	"handle and code"
//	@Success		200		{object}	otpsdk.VerifyResponse	"success, optional receipt"
//	@Failure		400		{object}	otpsdk.ErrorResponse	"invalid_request"
//	@Failure		403		{object}	otpsdk.ErrorResponse	"code_mismatch with remaining_attempts, attempts_exhausted"
//	@Failure		404		{object}	otpsdk.ErrorResponse	"not_found"
//	@Failure		409		{object}	otpsdk.ErrorResponse	"already_consumed"
//	@Failure		410		{object}	otpsdk.ErrorResponse	"expired"
//	@Router			/v1/otp/verify [post].
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req otpsdk.VerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeBadRequest(w, err)
		return
	}

	v, err := h.VerificationService.Verify(r.Context(), req.Handle, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := otpsdk.VerifyResponse{
		Success:     true,
		ChallengeID: v.ChallengeID,
		Receipt:     v.Receipt,
	}
	if v.Receipt != "" {
		resp.ReceiptExpiresIn = max(int(v.ReceiptExpiresAt.Sub(v.VerifiedAt).Seconds()), 0)
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func issueResponse(issued service.Issued) otpsdk.IssueResponse {
	return otpsdk.IssueResponse{
		Handle:      issued.Handle,
		ChallengeID: issued.ChallengeID,
		ExpiresAt:   issued.ExpiresAt.UTC(),
		ExpiresIn:   max(int(issued.ExpiresAt.Sub(issued.IssuedAt).Seconds()), 0),
	}
}
