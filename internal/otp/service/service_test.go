package service_test

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
	"github.com/aussiebroadwan/otpd/internal/otp/events"
	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/aussiebroadwan/otpd/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyOnce(t *testing.T) {
	h := newHarness(t)

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)
	require.NotEmpty(t, issued.Handle)
	require.Equal(t, h.clock.Now().Add(domain.DefaultTTL), issued.ExpiresAt)

	code := h.outbox.Last(t, "9876543210")

	v, err := h.verify.Verify(h.ctx, issued.Handle, code)
	require.NoError(t, err)
	require.Equal(t, issued.ChallengeID, v.ChallengeID)
	require.Equal(t, "9876543210", v.Target.Value)
	require.Empty(t, v.Receipt)

	_, err = h.verify.Verify(h.ctx, issued.Handle, code)
	require.ErrorIs(t, err, domain.ErrAlreadyConsumed)

	require.Equal(t, []events.Type{events.TypeIssued, events.TypeVerified, events.TypeFailed}, h.events.Types())
}

func TestMismatchThenSuccess(t *testing.T) {
	h := newHarness(t)
	h.issuance.Codes = &codes{"482913"}

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)

	_, err = h.verify.Verify(h.ctx, issued.Handle, "000000")
	require.ErrorIs(t, err, domain.ErrCodeMismatch)

	var me *domain.MismatchError
	require.ErrorAs(t, err, &me)
	require.Equal(t, 4, me.Remaining)

	_, err = h.verify.Verify(h.ctx, issued.Handle, "482913")
	require.NoError(t, err)
}

func TestMalformedCodeSpendsNoAttempt(t *testing.T) {
	h := newHarness(t)
	h.issuance.Codes = &codes{"482913"}

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)

	for _, code := range []string{"12ab56", "12345", "1234567", ""} {
		_, err = h.verify.Verify(h.ctx, issued.Handle, code)
		require.ErrorIs(t, err, domain.ErrMalformedCode, "code %q", code)
		require.Equal(t, domain.ReasonMalformedCode, domain.Reason(err))
	}

	_, err = h.verify.Verify(h.ctx, issued.Handle, "000000")
	var me *domain.MismatchError
	require.ErrorAs(t, err, &me)
	require.Equal(t, 4, me.Remaining)
}

func TestAttemptsExhaust(t *testing.T) {
	h := newHarness(t)
	h.issuance.Codes = &codes{"482913"}

	issued, err := h.issuance.Issue(h.ctx, "user@example.com")
	require.NoError(t, err)

	for want := 4; want >= 1; want-- {
		_, err := h.verify.Verify(h.ctx, issued.Handle, "111111")
		var me *domain.MismatchError
		require.ErrorAs(t, err, &me)
		require.Equal(t, want, me.Remaining)
	}

	_, err = h.verify.Verify(h.ctx, issued.Handle, "111111")
	require.ErrorIs(t, err, domain.ErrAttemptsExhausted)

	// Even the right code is refused now.
	_, err = h.verify.Verify(h.ctx, issued.Handle, "482913")
	require.ErrorIs(t, err, domain.ErrAttemptsExhausted)
}

func TestExpiry(t *testing.T) {
	h := newHarness(t)

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)
	code := h.outbox.Last(t, "9876543210")

	h.clock.Advance(domain.DefaultTTL - time.Millisecond)
	c, err := h.store.Challenges().GetChallenge(h.ctx, issued.Handle)
	require.NoError(t, err)
	require.True(t, c.Live(h.clock.Now()))

	h.clock.Advance(time.Millisecond)
	_, err = h.verify.Verify(h.ctx, issued.Handle, code)
	require.ErrorIs(t, err, domain.ErrExpired)

	h.clock.Advance(time.Hour)
	_, err = h.verify.Verify(h.ctx, issued.Handle, code)
	require.ErrorIs(t, err, domain.ErrExpired)
}

func TestReissueInvalidatesPrevious(t *testing.T) {
	h := newHarness(t)

	first, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)
	firstCode := h.outbox.Last(t, "9876543210")

	h.clock.Advance(time.Minute)
	second, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)
	require.NotEqual(t, first.Handle, second.Handle)

	_, err = h.verify.Verify(h.ctx, first.Handle, firstCode)
	require.ErrorIs(t, err, domain.ErrAlreadyConsumed)

	_, err = h.verify.Verify(h.ctx, second.Handle, h.outbox.Last(t, "9876543210"))
	require.NoError(t, err)
}

func TestUnknownHandle(t *testing.T) {
	h := newHarness(t)

	for _, handle := range []string{"", "nope"} {
		_, err := h.verify.Verify(h.ctx, handle, "123456")
		require.ErrorIs(t, err, domain.ErrNotFound)

		_, err = h.issuance.Resend(h.ctx, handle)
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func TestInvalidIdentifier(t *testing.T) {
	h := newHarness(t)

	for _, raw := range []string{"", "12345", "98765432100", "not an email@", "+19876543210"} {
		_, err := h.issuance.Issue(h.ctx, raw)
		require.ErrorIs(t, err, domain.ErrInvalidIdentifier, "input %q", raw)
	}
	require.Empty(t, h.events.Types())
}

func TestIssueRateLimited(t *testing.T) {
	h := newHarness(t)

	_, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)

	h.clock.Advance(20 * time.Second)
	_, err = h.issuance.Issue(h.ctx, "9876543210")
	require.ErrorIs(t, err, domain.ErrRateLimited)

	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	require.InDelta(t, float64(40*time.Second), float64(rl.RetryAfter), float64(time.Second))

	// Other identifiers are unaffected.
	_, err = h.issuance.Issue(h.ctx, "0123456789")
	require.NoError(t, err)

	h.clock.Advance(41 * time.Second)
	_, err = h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)
	require.Equal(t, 2, h.outbox.Count("9876543210"))
}

func TestDeliveryFailureKeepsChallenge(t *testing.T) {
	h := newHarness(t)
	h.outbox.Fail(errors.New("gateway down"))

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)
	require.ErrorContains(t, err, "gateway down")

	var de *domain.DeliveryError
	require.ErrorAs(t, err, &de)
	require.Equal(t, issued.Handle, de.Handle)
	require.NotEmpty(t, issued.Handle)

	c, err := h.store.Challenges().GetChallenge(h.ctx, issued.Handle)
	require.NoError(t, err)
	require.Equal(t, domain.StatePending, c.State)

	require.Equal(t, domain.ReasonDeliveryFailed, h.events.events[0].Reason)

	// Recovered through resend once the gateway is back.
	h.outbox.Fail(nil)
	h.clock.Advance(time.Minute)
	resent, err := h.issuance.Resend(h.ctx, issued.Handle)
	require.NoError(t, err)
	require.Equal(t, issued.Handle, resent.Handle)

	_, err = h.verify.Verify(h.ctx, issued.Handle, h.outbox.Last(t, "9876543210"))
	require.NoError(t, err)
}

func TestDeliveryTimeout(t *testing.T) {
	h := newHarness(t)
	h.issuance.DeliveryTimeout = 10 * time.Millisecond
	h.issuance.Channel = slowChannel{}

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.ErrorIs(t, err, domain.ErrDeliveryFailed)
	require.NotEmpty(t, issued.Handle)
}

func TestResendRotatesCode(t *testing.T) {
	h := newHarness(t)
	h.issuance.Codes = &codes{"111111", "222222"}

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)

	_, err = h.verify.Verify(h.ctx, issued.Handle, "999999")
	require.ErrorIs(t, err, domain.ErrCodeMismatch)

	h.clock.Advance(10 * time.Minute)
	resent, err := h.issuance.Resend(h.ctx, issued.Handle)
	require.NoError(t, err)
	require.Equal(t, h.clock.Now().Add(domain.DefaultTTL), resent.ExpiresAt)

	c, err := h.store.Challenges().GetChallenge(h.ctx, issued.Handle)
	require.NoError(t, err)
	require.Equal(t, 1, c.ResendCount)
	require.Equal(t, 4, c.RemainingAttempts, "attempts carry over")

	// The old code is dead and costs an attempt.
	_, err = h.verify.Verify(h.ctx, issued.Handle, "111111")
	var me *domain.MismatchError
	require.ErrorAs(t, err, &me)
	require.Equal(t, 3, me.Remaining)

	// Past the original expiry but inside the new window.
	h.clock.Advance(10 * time.Minute)
	_, err = h.verify.Verify(h.ctx, issued.Handle, "222222")
	require.NoError(t, err)
}

func TestResendRules(t *testing.T) {
	t.Run("cooldown applies", func(t *testing.T) {
		h := newHarness(t)
		issued, err := h.issuance.Issue(h.ctx, "9876543210")
		require.NoError(t, err)

		_, err = h.issuance.Resend(h.ctx, issued.Handle)
		require.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("consumed", func(t *testing.T) {
		h := newHarness(t)
		issued, err := h.issuance.Issue(h.ctx, "9876543210")
		require.NoError(t, err)
		_, err = h.verify.Verify(h.ctx, issued.Handle, h.outbox.Last(t, "9876543210"))
		require.NoError(t, err)

		h.clock.Advance(time.Minute)
		_, err = h.issuance.Resend(h.ctx, issued.Handle)
		require.ErrorIs(t, err, domain.ErrAlreadyConsumed)
	})

	t.Run("expired", func(t *testing.T) {
		h := newHarness(t)
		issued, err := h.issuance.Issue(h.ctx, "9876543210")
		require.NoError(t, err)

		h.clock.Advance(domain.DefaultTTL)
		_, err = h.issuance.Resend(h.ctx, issued.Handle)
		require.ErrorIs(t, err, domain.ErrExpired)
	})

	t.Run("exhausted", func(t *testing.T) {
		h := newHarness(t)
		h.issuance.Codes = &codes{"482913"}
		issued, err := h.issuance.Issue(h.ctx, "9876543210")
		require.NoError(t, err)
		for range domain.DefaultMaxAttempts {
			_, _ = h.verify.Verify(h.ctx, issued.Handle, "000000")
		}

		h.clock.Advance(time.Minute)
		_, err = h.issuance.Resend(h.ctx, issued.Handle)
		require.ErrorIs(t, err, domain.ErrAttemptsExhausted)
	})
}

func TestConcurrentWrongCodes(t *testing.T) {
	h := newHarness(t)
	h.issuance.Codes = &codes{"482913"}

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)

	const callers = 12
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.verify.Verify(h.ctx, issued.Handle, "000000")
		}()
	}
	wg.Wait()

	var remaining []int
	exhausted := 0
	for _, err := range errs {
		var me *domain.MismatchError
		switch {
		case errors.As(err, &me):
			remaining = append(remaining, me.Remaining)
		case errors.Is(err, domain.ErrAttemptsExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	sort.Ints(remaining)
	require.Equal(t, []int{1, 2, 3, 4}, remaining)
	require.Equal(t, callers-4, exhausted)

	c, err := h.store.Challenges().GetChallenge(h.ctx, issued.Handle)
	require.NoError(t, err)
	require.Equal(t, 0, c.RemainingAttempts)
	require.Equal(t, domain.StateExhausted, c.State)
}

func TestConcurrentCorrectCodes(t *testing.T) {
	h := newHarness(t)
	h.issuance.Codes = &codes{"482913"}

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.verify.Verify(h.ctx, issued.Handle, "482913")
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, domain.ErrAlreadyConsumed)
	}
	require.Equal(t, 1, wins)
}

func TestCodeNeverLeaks(t *testing.T) {
	h := newHarness(t)
	h.issuance.Codes = &codes{"482913"}

	issued, err := h.issuance.Issue(h.ctx, "9876543210")
	require.NoError(t, err)
	code := h.outbox.Last(t, "9876543210")

	_, _ = h.verify.Verify(h.ctx, issued.Handle, "000000")
	_, err = h.verify.Verify(h.ctx, issued.Handle, code)
	require.NoError(t, err)

	require.NotContains(t, h.logs.String(), code)
	require.NotContains(t, issued.Handle, code)

	c, err := h.store.Challenges().GetChallenge(h.ctx, issued.Handle)
	require.NoError(t, err)
	require.NotContains(t, c.CodeHash, code)
	require.True(t, strings.HasPrefix(c.CodeHash, "$argon2id$"))

	for _, e := range h.events.events {
		require.NotEqual(t, "9876543210", e.TargetFP)
	}
}

func TestVerifyReceipt(t *testing.T) {
	h := newHarness(t)

	pem, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("receipt-1", pem)
	require.NoError(t, err)

	h.verify.Signer = signer
	h.verify.ReceiptIssuer = "otpd"
	h.verify.ReceiptAudience = "registration"

	issued, err := h.issuance.Issue(h.ctx, "User@Example.com")
	require.NoError(t, err)

	v, err := h.verify.Verify(h.ctx, issued.Handle, h.outbox.Last(t, "user@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, v.Receipt)
	require.Equal(t, h.clock.Now().Add(jwtx.DefaultReceiptTTL).Unix(), v.ReceiptExpiresAt.Unix())

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	claims, err := jwtx.NewVerifierEdDSA(keys, "otpd", "registration").WithClock(h.clock.Now).Verify(v.Receipt)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", claims.Subject)
	require.Equal(t, []string{jwtx.AMROTP}, claims.AMR)
	require.Equal(t, issued.ChallengeID, claims.CID)
	require.Equal(t, "email", claims.Channel)
}
