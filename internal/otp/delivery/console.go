package delivery

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
)

// Console writes codes to W instead of sending them. Development only; the
// app refuses to configure it when ENV=prod.
type Console struct {
	W   io.Writer
	TTL time.Duration

	mu sync.Mutex
}

func NewConsole(w io.Writer, ttl time.Duration) *Console {
	return &Console{W: w, TTL: ttl}
}

func (c *Console) Send(ctx context.Context, to domain.Identifier, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := Render(code, c.TTL)
	_, err := fmt.Fprintf(c.W, "[otp %s] to=%s %s\n", to.Kind, to.Value, msg.Body)
	return err
}
