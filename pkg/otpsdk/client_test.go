package otpsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClientIssue(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, 4, 2, 10, 15, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/otp/issue", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var req IssueRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "9876543210", req.Target)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(IssueResponse{
			Handle:      "h-1",
			ChallengeID: "01JQ0000000000000000000000",
			ExpiresAt:   expires,
			ExpiresIn:   900,
		})
	})
	client.APIKey = "anon"

	res, err := client.Issue(context.Background(), "9876543210")
	require.NoError(t, err)
	require.Equal(t, "h-1", res.Handle)
	require.Equal(t, 900, res.ExpiresIn)
	require.True(t, expires.Equal(res.ExpiresAt))
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	t.Run("code mismatch carries remaining attempts", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			e := NewError(http.StatusForbidden, ErrorCodeCodeMismatch, "the code is incorrect")
			e.RemainingAttempts = 3
			e.WriteError(w)
		})

		_, err := client.Verify(context.Background(), "h-1", "000000")
		require.ErrorIs(t, err, ErrCodeMismatch)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		require.Equal(t, 3, apiErr.RemainingAttempts)
		require.Contains(t, apiErr.Error(), "3 attempts remaining")
	})

	t.Run("rate limited carries retry after", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			e := *ErrRateLimited
			e.RetryAfter = 42 * time.Second
			e.WriteError(w)
		})

		_, err := client.Issue(context.Background(), "user@example.com")
		require.ErrorIs(t, err, ErrRateLimited)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, 42*time.Second, apiErr.RetryAfter)
		require.Equal(t, -1, apiErr.RemainingAttempts)
	})

	t.Run("delivery failure carries handle", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			e := *ErrDeliveryFailed
			e.Handle = "h-2"
			e.WriteError(w)
		})

		_, err := client.Issue(context.Background(), "user@example.com")
		require.ErrorIs(t, err, ErrDeliveryFailed)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "h-2", apiErr.Handle)
	})

	t.Run("validation details", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			e := *ErrInvalidRequest
			e.Details = map[string]string{"code": "code must be 6 characters in length"}
			e.WriteError(w)
		})

		_, err := client.Verify(context.Background(), "h-1", "12")
		require.ErrorIs(t, err, ErrInvalidRequest)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		require.Contains(t, apiErr.Details, "code")
	})

	t.Run("non json body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		})

		_, err := client.Resend(context.Background(), "h-1")

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, ErrorCodeServerError, apiErr.Code)
		require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		require.False(t, errors.Is(err, ErrDeliveryFailed))
	})
}

func TestClientVerifyAndResend(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/otp/verify":
			var req VerifyRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "h-1", req.Handle)
			assert.Equal(t, "123456", req.Code)
			_ = json.NewEncoder(w).Encode(VerifyResponse{Success: true, ChallengeID: "c-1", Receipt: "jwt", ReceiptExpiresIn: 300})
		case "/v1/otp/resend":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(IssueResponse{Handle: "h-1", ChallengeID: "c-1", ExpiresIn: 900})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	v, err := client.Verify(context.Background(), "h-1", "123456")
	require.NoError(t, err)
	require.True(t, v.Success)
	require.Equal(t, "jwt", v.Receipt)
	require.Equal(t, 300, v.ReceiptExpiresIn)

	r, err := client.Resend(context.Background(), "h-1")
	require.NoError(t, err)
	require.Equal(t, "c-1", r.ChallengeID)
}

func TestClientHealthAndJWKS(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/livez", "/readyz":
			_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
		case "/.well-known/jwks.json":
			_, _ = w.Write([]byte(`{"keys":[{"kty":"OKP","crv":"Ed25519","kid":"k1","use":"sig","alg":"EdDSA","x":"AA"}]}`))
		}
	})

	live, err := client.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)

	jwks, err := client.GetJWKS(context.Background())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "k1", jwks.Keys[0].Kid)
}
