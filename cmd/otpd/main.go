package main

import (
	"log"

	"github.com/aussiebroadwan/otpd/internal/otp/app"
)

// @title           otpd API
// @version         0.1.0
// @description     One-time passcode issuance and verification.
// @BasePath        /
func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
