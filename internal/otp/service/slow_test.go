package service_test

import (
	"context"

	"github.com/aussiebroadwan/otpd/internal/otp/domain"
)

type slowChannel struct{}

func (slowChannel) Send(ctx context.Context, _ domain.Identifier, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}
