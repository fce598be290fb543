package jwtx

import (
	"time"

	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultReceiptTTL is how long a verification receipt stays valid. Receipts
// are exchanged immediately by the caller, so this is short.
const DefaultReceiptTTL = 5 * time.Minute

// AMROTP is the amr value asserted by a receipt.
const AMROTP = "otp"

// Claims are the claims of a verification receipt: proof that the subject
// identifier completed an OTP challenge.
type Claims struct {
	jwt.RegisteredClaims

	// Authentication Methods Reference, always ["otp"] for receipts.
	AMR []string `json:"amr,omitempty"`

	// CID is the id of the challenge that was consumed.
	CID string `json:"cid,omitempty"`

	// Channel the code was delivered over: "phone" or "email".
	Channel string `json:"chn,omitempty"`
}

// NewReceiptClaims builds receipt claims for target.
func NewReceiptClaims(
	target, challengeID, channel string,
	issuer, audience string,
	ttl time.Duration,
	now time.Time,
) Claims {
	var aud jwt.ClaimStrings
	if audience != "" {
		aud = jwt.ClaimStrings{audience}
	}

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   target,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		AMR:     []string{AMROTP},
		CID:     challengeID,
		Channel: channel,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	jti, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		panic(err)
	}
	return jti
}
