package domain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/aussiebroadwan/otpd/pkg/validatex"
)

// Kind is the delivery class of an identifier.
type Kind string

const (
	KindPhone Kind = "phone"
	KindEmail Kind = "email"
)

// Identifier is a validated, normalised delivery target.
type Identifier struct {
	Kind  Kind
	Value string
}

var validate = sync.OnceValue(validatex.MustNew)

// ParseIdentifier validates raw as a 10 digit phone number or an email
// address. Emails are lower-cased; surrounding whitespace is ignored.
func ParseIdentifier(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}

	if strings.Contains(s, "@") {
		s = strings.ToLower(s)
		if len(s) > 254 || validate().Var(s, "email") != nil {
			return Identifier{}, fmt.Errorf("%w: not a valid email address", ErrInvalidIdentifier)
		}
		return Identifier{Kind: KindEmail, Value: s}, nil
	}

	if validate().Var(s, "phone10") != nil {
		return Identifier{}, fmt.Errorf("%w: phone number must be exactly 10 digits", ErrInvalidIdentifier)
	}
	return Identifier{Kind: KindPhone, Value: s}, nil
}

// MustParseIdentifier is ParseIdentifier for tests and constants.
func MustParseIdentifier(raw string) Identifier {
	id, err := ParseIdentifier(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func (i Identifier) String() string { return i.Value }

// IsZero reports whether i is the zero Identifier.
func (i Identifier) IsZero() bool { return i.Value == "" }

// Fingerprint is a stable non-reversible reference to the identifier for
// events and cooldown keys.
func (i Identifier) Fingerprint() string {
	return cryptox.FingerprintToken(string(i.Kind) + ":" + i.Value)
}

// Masked renders the identifier for logs: "******3210", "j***@example.com".
func (i Identifier) Masked() string {
	switch i.Kind {
	case KindPhone:
		if len(i.Value) <= 4 {
			return strings.Repeat("*", len(i.Value))
		}
		return strings.Repeat("*", len(i.Value)-4) + i.Value[len(i.Value)-4:]
	case KindEmail:
		local, host, ok := strings.Cut(i.Value, "@")
		if !ok || local == "" {
			return "***"
		}
		return local[:1] + "***@" + host
	default:
		return ""
	}
}
