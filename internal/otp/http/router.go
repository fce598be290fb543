// Package http exposes the OTP services over JSON HTTP.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/service"
	"github.com/aussiebroadwan/otpd/internal/otp/store"
	"github.com/aussiebroadwan/otpd/pkg/httpx"
	"github.com/aussiebroadwan/otpd/pkg/jwtx"
	"github.com/aussiebroadwan/otpd/pkg/slogx"
	"github.com/aussiebroadwan/otpd/pkg/validatex"

	_ "github.com/aussiebroadwan/otpd/api/otpd" // Swagger docs
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet // nil when receipts are disabled
	validator    *validatex.Validator
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store               store.Store
	IssuanceService     *service.IssuanceService
	VerificationService *service.VerificationService
}

// NewRouter builds a router with request logging and CORS for
// allowedOrigins. An empty list allows any origin.
func NewRouter(
	keys *jwtx.KeySet,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	allowedOrigins []string,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		validator:    validatex.MustNew(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		cors.New(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
			ExposedHeaders: []string{"Retry-After", "X-Request-ID"},
			MaxAge:         600,
		}).Handler,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOTP()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			otpd One-Time Code Service API
//	@version		0.1.0
//	@description	Issues six digit verification codes to phone numbers and email addresses and verifies them.
//	@description
//	@description	Codes are never returned by the API. Successful verifications can carry an EdDSA receipt, verifiable with the JWKS endpoint.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/otpd
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOTP() {
	// issue and resend cost a message each: strict, by IP
	r.Mux.Handle("POST /v1/otp/issue",
		httpx.Chain(&IssueHandler{IssuanceService: r.IssuanceService, Validator: r.validator},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/otp/resend",
		httpx.Chain(&ResendHandler{IssuanceService: r.IssuanceService, Validator: r.validator},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// attempts are already capped per challenge
	r.Mux.Handle("POST /v1/otp/verify",
		httpx.Chain(&VerifyHandler{VerificationService: r.VerificationService, Validator: r.validator},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
