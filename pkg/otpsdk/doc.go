/*
Package otpsdk is a client for the otpd one-time code service.

# Flow

A caller issues a challenge for an identifier, the user receives a six
digit code out of band, and the caller verifies it:

	client := otpsdk.NewClient("https://otp.example.com")

	issued, err := client.Issue(ctx, "9876543210")
	if err != nil {
		return err
	}

	// later, with the code the user typed
	res, err := client.Verify(ctx, issued.Handle, code)

The handle is opaque and the code is never returned by the API.

# Errors

Every failed call returns an *Error carrying the HTTP status and a reason
code. The predefined errors match by reason code:

	_, err := client.Verify(ctx, handle, code)
	var e *otpsdk.Error
	switch {
	case errors.Is(err, otpsdk.ErrCodeMismatch):
		errors.As(err, &e)
		fmt.Printf("wrong code, %d attempts left\n", e.RemainingAttempts)
	case errors.Is(err, otpsdk.ErrExpired), errors.Is(err, otpsdk.ErrAttemptsExhausted):
		// issue a new challenge
	}

When delivery fails on Issue, the challenge still exists: the *Error has
Code delivery_failed and Handle set, and Resend retries delivery.

# Receipts

When the server signs receipts, VerifyResponse.Receipt is an EdDSA JWT with
sub set to the identifier and amr ["otp"]. Verify it with the keys from
GetJWKS.
*/
package otpsdk
