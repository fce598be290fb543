package otp_test

import (
	"errors"
	"testing"

	"github.com/aussiebroadwan/otpd/pkg/jwtx"
	"github.com/aussiebroadwan/otpd/pkg/otpsdk"
	"github.com/stretchr/testify/require"
)

// TestIssueAndVerify runs the happy path and checks the receipt against the
// published JWKS.
func TestIssueAndVerify(t *testing.T) {
	svc := startService(t, relaxedLimits)
	ctx := t.Context()

	issued, err := svc.client.Issue(ctx, "e2e@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Handle)
	require.Positive(t, issued.ExpiresIn)

	code := svc.firstCode(t, "e2e@example.com")

	verified, err := svc.client.Verify(ctx, issued.Handle, code)
	require.NoError(t, err)
	require.True(t, verified.Success)
	require.Equal(t, issued.ChallengeID, verified.ChallengeID)
	require.NotEmpty(t, verified.Receipt)

	jwks, err := svc.client.GetJWKS(ctx)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.ResetFromJWKS(jwtx.JWKS(*jwks)))

	claims, err := jwtx.NewVerifierEdDSA(keys, "otpd-e2e", "e2e").Verify(verified.Receipt)
	require.NoError(t, err)
	require.Equal(t, "e2e@example.com", claims.Subject)

	// A consumed challenge never verifies again.
	_, err = svc.client.Verify(ctx, issued.Handle, code)
	require.ErrorIs(t, err, otpsdk.ErrAlreadyConsumed)
}

// TestWrongCodesExhaust checks the attempt budget is enforced server side.
func TestWrongCodesExhaust(t *testing.T) {
	svc := startService(t, relaxedLimits)
	ctx := t.Context()

	issued, err := svc.client.Issue(ctx, "0412345678")
	require.NoError(t, err)
	code := svc.firstCode(t, "0412345678")

	for want := 2; want >= 1; want-- {
		_, err := svc.client.Verify(ctx, issued.Handle, wrongCode(code))
		require.ErrorIs(t, err, otpsdk.ErrCodeMismatch)

		var apiErr *otpsdk.Error
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, want, apiErr.RemainingAttempts)
	}

	_, err = svc.client.Verify(ctx, issued.Handle, wrongCode(code))
	require.ErrorIs(t, err, otpsdk.ErrAttemptsExhausted)

	// The correct code no longer helps.
	_, err = svc.client.Verify(ctx, issued.Handle, code)
	require.ErrorIs(t, err, otpsdk.ErrAttemptsExhausted)
}

// TestCooldown checks a second code for the same identifier is refused
// until the interval passes.
func TestCooldown(t *testing.T) {
	svc := startService(t, relaxedLimits)
	ctx := t.Context()

	issued, err := svc.client.Issue(ctx, "cooldown@example.com")
	require.NoError(t, err)

	_, err = svc.client.Issue(ctx, "cooldown@example.com")
	require.ErrorIs(t, err, otpsdk.ErrRateLimited)

	var apiErr *otpsdk.Error
	require.True(t, errors.As(err, &apiErr))
	require.Positive(t, apiErr.RetryAfter)

	_, err = svc.client.Resend(ctx, issued.Handle)
	require.ErrorIs(t, err, otpsdk.ErrRateLimited)
}

// TestResend checks a resent code replaces the previous one.
func TestResend(t *testing.T) {
	env := map[string]string{"OTP_MIN_INTERVAL": "0s"}
	for k, v := range relaxedLimits {
		env[k] = v
	}
	svc := startService(t, env)
	ctx := t.Context()

	issued, err := svc.client.Issue(ctx, "resend@example.com")
	require.NoError(t, err)
	first := svc.firstCode(t, "resend@example.com")

	resent, err := svc.client.Resend(ctx, issued.Handle)
	require.NoError(t, err)
	require.Equal(t, issued.Handle, resent.Handle)

	// Codes can repeat by chance; only check rotation when they differ.
	second := svc.waitCodes(t, "resend@example.com", 2)[1]
	if second != first {
		_, err = svc.client.Verify(ctx, issued.Handle, first)
		require.ErrorIs(t, err, otpsdk.ErrCodeMismatch)
	}

	_, err = svc.client.Verify(ctx, issued.Handle, second)
	require.NoError(t, err)
}

func TestUnknownHandle(t *testing.T) {
	svc := startService(t, relaxedLimits)

	_, err := svc.client.Verify(t.Context(), "does-not-exist", "123456")
	require.ErrorIs(t, err, otpsdk.ErrNotFound)
}
