package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/store"
	"github.com/aussiebroadwan/otpd/pkg/httpx"
	"github.com/aussiebroadwan/otpd/pkg/jwtx"
	"github.com/aussiebroadwan/otpd/pkg/otpsdk"
)

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process is serving, with uptime and version.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	otpsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, otpsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the challenge store and, when receipts are enabled, the signing key.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	otpsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	otpsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &otpsdk.HealthChecks{Store: "ok", Signer: "disabled"}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Store = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		if keys != nil {
			checks.Signer = "ok"
			if !keys.IsReady() {
				checks.Signer = "error: no keys loaded"
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, code, otpsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

// JWKSHandler exposes the keys that verify receipts.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify verification receipts.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	otpsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks := jwtx.JWKS{Keys: []jwtx.JWK{}}
		if keys != nil {
			jwks = keys.PublicJWKS()
		}
		httpx.WriteJSON(w, http.StatusOK, otpsdk.JWKSResponse(jwks))
	}
}
