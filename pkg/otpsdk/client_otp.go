package otpsdk

import (
	"context"
	"net/http"
)

// Issue sends a code to target. On delivery_failed the returned *Error
// carries the handle, which can be passed to Resend.
func (c *Client) Issue(ctx context.Context, target string) (*IssueResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/otp/issue", IssueRequest{Target: target})
	if err != nil {
		return nil, err
	}

	var out IssueResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}

	return &out, nil
}

// Verify checks code against the challenge. A wrong code returns an *Error
// with Code code_mismatch and RemainingAttempts set.
func (c *Client) Verify(ctx context.Context, handle, code string) (*VerifyResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/otp/verify", VerifyRequest{Handle: handle, Code: code})
	if err != nil {
		return nil, err
	}

	var out VerifyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out, nil
}

// Resend sends a fresh code for a live challenge. The previous code stops
// working.
func (c *Client) Resend(ctx context.Context, handle string) (*IssueResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/otp/resend", ResendRequest{Handle: handle})
	if err != nil {
		return nil, err
	}

	var out IssueResponse
	if err := decodeJSON(resp, &out, http.StatusAccepted); err != nil {
		return nil, err
	}

	return &out, nil
}
