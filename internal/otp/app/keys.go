package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/aussiebroadwan/otpd/pkg/idx"
	"github.com/aussiebroadwan/otpd/pkg/jwtx"
)

// InitReceiptKeys generates an Ed25519 key for signing receipts. The key
// lives in memory only, so receipts stop verifying after a restart.
func InitReceiptKeys(logger *slog.Logger) (jwtx.Signer, *jwtx.KeySet, error) {
	pem, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, nil, fmt.Errorf("generate receipt key: %w", err)
	}

	kid := idx.New().String()
	signer, err := jwtx.NewSignerEdDSA(kid, pem)
	if err != nil {
		return nil, nil, fmt.Errorf("load receipt key: %w", err)
	}
	if err := signer.Validate(); err != nil {
		return nil, nil, err
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, nil, err
	}

	logger.Info("receipt signing key generated", "kid", kid, "alg", signer.Alg())
	return signer, keys, nil
}
