// Package otpcode generates numeric one-time codes.
package otpcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/pquerna/otp"
)

// Generator draws codes uniformly from [0, 10^Digits) and renders them
// zero-padded, so "004217" is as likely as "914302". The zero value
// produces six digit codes from crypto/rand.
type Generator struct {
	Digits otp.Digits
	Rand   io.Reader
}

// Generate returns a fresh code.
func (g Generator) Generate() (string, error) {
	digits := g.Digits
	if digits == 0 {
		digits = otp.DigitsSix
	}
	if digits.Length() < 4 || digits.Length() > 9 {
		return "", fmt.Errorf("otpcode: unsupported length %d", digits.Length())
	}

	src := g.Rand
	if src == nil {
		src = rand.Reader
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits.Length())), nil)
	n, err := rand.Int(src, limit)
	if err != nil {
		return "", fmt.Errorf("otpcode: read random: %w", err)
	}

	return digits.Format(int32(n.Int64())), nil // #nosec G115 bounded by 10^9
}

// Generate returns a six digit code from the default generator.
func Generate() (string, error) {
	return Generator{}.Generate()
}

// Valid reports whether s has the shape of a code of the given length.
func Valid(s string, digits otp.Digits) bool {
	if len(s) != digits.Length() {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
