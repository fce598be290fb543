package otp_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	svc := startService(t, nil)

	live, err := svc.client.GetLiveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := svc.client.GetReadiness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Store)
}

// TestRateLimitIssueEndpoint uses the default per-IP limits: issuance
// allows 5 requests a minute.
func TestRateLimitIssueEndpoint(t *testing.T) {
	svc := startService(t, map[string]string{"OTP_MIN_INTERVAL": "0s"})

	for i := range 5 {
		_, err := svc.client.Issue(t.Context(), "limit@example.com")
		require.NoError(t, err, "request %d", i+1)
	}

	_, err := svc.client.Issue(t.Context(), "limit@example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate_limited")
}
