// Package delivery sends codes to their targets.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
)

var ErrNoChannel = errors.New("delivery: no channel for identifier kind")

// Channel delivers a code to a target. Implementations must not log the
// code.
type Channel interface {
	Send(ctx context.Context, to domain.Identifier, code string) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, to domain.Identifier, code string) error

func (f ChannelFunc) Send(ctx context.Context, to domain.Identifier, code string) error {
	return f(ctx, to, code)
}

// Router picks a channel by identifier kind.
type Router struct {
	Phone Channel
	Email Channel
}

func (r Router) Send(ctx context.Context, to domain.Identifier, code string) error {
	var ch Channel
	switch to.Kind {
	case domain.KindPhone:
		ch = r.Phone
	case domain.KindEmail:
		ch = r.Email
	}
	if ch == nil {
		return fmt.Errorf("%w: %q", ErrNoChannel, to.Kind)
	}
	return ch.Send(ctx, to, code)
}

// Message is the human readable text of a code.
type Message struct {
	Subject string
	Body    string
}

// Render builds the message for code, valid for ttl.
func Render(code string, ttl time.Duration) Message {
	return Message{
		Subject: "Your verification code",
		Body: fmt.Sprintf("Your verification code is %s. It expires in %d minutes. "+
			"If you did not request it, you can ignore this message.", code, int(ttl.Minutes())),
	}
}
