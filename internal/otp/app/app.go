package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/otpd/internal/otp/delivery"
	"github.com/aussiebroadwan/otpd/internal/otp/events"
	httpapi "github.com/aussiebroadwan/otpd/internal/otp/http"
	"github.com/aussiebroadwan/otpd/internal/otp/service"
	"github.com/aussiebroadwan/otpd/internal/otp/store"
	"github.com/aussiebroadwan/otpd/internal/otp/store/drivers/redis"
	"github.com/aussiebroadwan/otpd/internal/otp/store/drivers/sqlite"
	"github.com/aussiebroadwan/otpd/internal/otp/telemetry"
	"github.com/aussiebroadwan/otpd/pkg/cryptox"
	"github.com/aussiebroadwan/otpd/pkg/jwtx"
	"github.com/aussiebroadwan/otpd/pkg/slogx"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	serviceName = "otpd"
)

// Application owns the OTP service and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	telemetry   *telemetry.Providers
	instruments *telemetry.Instruments

	db       store.Store
	cooldown service.Cooldown
	channel  delivery.Channel
	events   events.Publisher
	hasher   *cryptox.SecretHasher

	signer jwtx.Signer  // nil when receipts are disabled
	keys   *jwtx.KeySet // nil when receipts are disabled

	issuanceService     *service.IssuanceService
	verificationService *service.VerificationService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialised.
func New(cfg Config) (*Application, error) {
	app := &Application{cfg: cfg}

	ctx := context.Background()

	if err := app.initTelemetry(ctx); err != nil {
		return nil, err
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		app.closeTelemetry()
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewSecretHasher(pepper, cryptox.DefaultArgon2Params)

	if err := app.initDatabase(ctx); err != nil {
		app.closeTelemetry()
		return nil, err
	}

	if err := app.initDelivery(); err != nil {
		app.closeAll()
		return nil, err
	}

	if err := app.initEvents(); err != nil {
		app.closeAll()
		return nil, err
	}

	if cfg.ReceiptsEnabled {
		signer, keys, err := InitReceiptKeys(app.logger)
		if err != nil {
			app.closeAll()
			return nil, fmt.Errorf("failed to initialize receipt keys: %w", err)
		}
		app.signer, app.keys = signer, keys
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("otp service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains requests, stops background work and closes every
// backend. Housekeeping must have been started.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down otp service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	var errs []error
	if err := app.events.Close(); err != nil {
		app.logger.Error("error closing event publisher", "error", err)
		errs = append(errs, err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		errs = append(errs, err)
	}

	app.logger.Info("otp service stopped")

	if err := app.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// initTelemetry sets up OpenTelemetry and the logger. Logs are bridged to
// OTLP when an exporter endpoint is configured.
func (app *Application) initTelemetry(ctx context.Context) error {
	providers, err := telemetry.Setup(ctx, app.cfg.OTELEndpoint, serviceName, app.cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	providers.SetGlobal()
	app.telemetry = providers

	logCfg := slogx.Config{
		Service: serviceName,
		Version: BuildVersion,
		Env:     app.cfg.Env,
		Level:   app.cfg.LogLevel,
		Format:  app.cfg.LogFormat,
	}
	if providers.Enabled {
		logCfg.Handlers = []slog.Handler{
			otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(providers.LoggerProvider)),
		}
	}
	app.logger = slogx.New(logCfg)

	app.instruments, err = telemetry.NewInstruments(providers.MeterProvider, providers.TracerProvider)
	if err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	if providers.Enabled {
		app.logger.Info("telemetry export enabled", "endpoint", app.cfg.OTELEndpoint)
	}
	return nil
}

// initDatabase opens the configured store and the matching cooldown.
func (app *Application) initDatabase(ctx context.Context) error {
	switch app.cfg.StoreDriver {
	case "redis":
		db, err := redis.Open(ctx, app.cfg.RedisURL, redis.Options{Grace: app.cfg.OTPGracePeriod})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.db = db
		if app.cfg.OTPMinInterval > 0 {
			app.cooldown = redis.NewCooldown(db.Client(), redis.DefaultPrefix, app.cfg.OTPMinInterval)
		}
		app.logger.Info("redis store connected")

	default:
		db, err := sqlite.NewStore(app.cfg.DatabaseFile)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		app.db = db

		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		if app.cfg.OTPMinInterval > 0 {
			app.cooldown = service.NewMemoryCooldown(app.cfg.OTPMinInterval)
		}
		app.logger.Info("database migrations applied successfully")
	}

	return nil
}

func (app *Application) initDelivery() error {
	if app.cfg.DeliveryMode == "console" {
		app.logger.Warn("console delivery enabled, codes are printed to stdout")
		app.channel = delivery.NewConsole(os.Stdout, app.cfg.OTPTTL)
		return nil
	}

	var router delivery.Router
	if app.cfg.SMSGatewayURL != "" {
		router.Phone = delivery.NewSMSGateway(app.cfg.SMSGatewayAPIKey, app.cfg.SMSGatewayURL, app.cfg.SMSSender)
	}
	if app.cfg.SMTPHost != "" {
		mailer, err := delivery.NewSMTP(delivery.SMTPConfig{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.SMTPFrom,
			TTL:      app.cfg.OTPTTL,
		})
		if err != nil {
			return fmt.Errorf("failed to configure smtp: %w", err)
		}
		router.Email = mailer
	}

	app.logger.Info("delivery channels configured",
		"sms", router.Phone != nil,
		"email", router.Email != nil,
	)
	app.channel = router
	return nil
}

func (app *Application) initEvents() error {
	brokers := app.cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		app.events = events.Nop{}
		return nil
	}

	publisher, err := events.NewKafkaPublisher(brokers, app.cfg.KafkaTopic)
	if err != nil {
		return fmt.Errorf("failed to configure kafka: %w", err)
	}
	app.events = publisher
	app.logger.Info("publishing events to kafka", "topic", app.cfg.KafkaTopic, "brokers", len(brokers))
	return nil
}

func (app *Application) initServices() {
	app.issuanceService = &service.IssuanceService{
		Store:           app.db,
		Hasher:          app.hasher,
		Channel:         app.channel,
		Cooldown:        app.cooldown,
		Events:          app.events,
		Telemetry:       app.instruments,
		TTL:             app.cfg.OTPTTL,
		MaxAttempts:     app.cfg.OTPMaxAttempts,
		DeliveryTimeout: app.cfg.DeliveryTimeout,
	}

	app.verificationService = &service.VerificationService{
		Store:     app.db,
		Hasher:    app.hasher,
		Events:    app.events,
		Telemetry: app.instruments,
	}
	if app.signer != nil {
		app.verificationService.Signer = app.signer
		app.verificationService.ReceiptIssuer = app.cfg.ReceiptIssuer
		app.verificationService.ReceiptAudience = app.cfg.ReceiptAudience
		app.verificationService.ReceiptTTL = app.cfg.ReceiptTTL
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.OTPGracePeriod,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		BuildVersion,
		app.db,
		app.logger,
		app.cfg.CORSOrigins(),
	)

	router.IssuanceService = app.issuanceService
	router.VerificationService = app.verificationService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

func (app *Application) closeAll() {
	if app.events != nil {
		_ = app.events.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
	app.closeTelemetry()
}

func (app *Application) closeTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.telemetry.Shutdown(ctx)
}
