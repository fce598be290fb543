package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                 string        `mapstructure:"ENV"`        // dev, staging, prod
	LogLevel            string        `mapstructure:"LOG_LEVEL"`  // debug, info, warn, error
	LogFormat           string        `mapstructure:"LOG_FORMAT"` // json, text
	Port                int           `mapstructure:"PORT"`
	ShutdownGracePeriod time.Duration `mapstructure:"SHUTDOWN_GRACE_PERIOD"`

	StoreDriver  string `mapstructure:"STORE_DRIVER"` // sqlite, redis
	DatabaseFile string `mapstructure:"DATABASE_FILE"`
	RedisURL     string `mapstructure:"REDIS_URL"`
	PepperFile   string `mapstructure:"PEPPER_FILE"`

	OTPTTL          time.Duration `mapstructure:"OTP_TTL"`
	OTPMaxAttempts  int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	OTPMinInterval  time.Duration `mapstructure:"OTP_MIN_INTERVAL"` // per identifier, 0 disables
	OTPGracePeriod  time.Duration `mapstructure:"OTP_GRACE_PERIOD"` // kept after expiry before cleanup
	DeliveryTimeout time.Duration `mapstructure:"DELIVERY_TIMEOUT"`

	// DeliveryMode "console" prints codes to stdout instead of sending them.
	DeliveryMode     string `mapstructure:"DELIVERY_MODE"` // gateway, console
	SMSGatewayURL    string `mapstructure:"SMS_GATEWAY_URL"`
	SMSGatewayAPIKey string `mapstructure:"SMS_GATEWAY_API_KEY"`
	SMSSender        string `mapstructure:"SMS_SENDER"`
	SMTPHost         string `mapstructure:"SMTP_HOST"`
	SMTPPort         int    `mapstructure:"SMTP_PORT"`
	SMTPUsername     string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword     string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom         string `mapstructure:"SMTP_FROM"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"` // comma separated, empty disables events
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	OTELEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	ReceiptsEnabled bool          `mapstructure:"RECEIPTS_ENABLED"`
	ReceiptIssuer   string        `mapstructure:"RECEIPT_ISSUER"`
	ReceiptAudience string        `mapstructure:"RECEIPT_AUDIENCE"`
	ReceiptTTL      time.Duration `mapstructure:"RECEIPT_TTL"`

	CORSAllowedOrigins   string        `mapstructure:"CORS_ALLOWED_ORIGINS"` // comma separated, empty allows any
	HousekeepingInterval time.Duration `mapstructure:"HOUSEKEEPING_INTERVAL"`
}

// LoadConfig reads .env if present, then the environment, over defaults.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("PORT", 8080)
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second)
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_FILE", "otp.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("PEPPER_FILE", "pepper")
	v.SetDefault("OTP_TTL", 15*time.Minute)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_MIN_INTERVAL", 60*time.Second)
	v.SetDefault("OTP_GRACE_PERIOD", 24*time.Hour)
	v.SetDefault("DELIVERY_TIMEOUT", 10*time.Second)
	v.SetDefault("DELIVERY_MODE", "gateway")
	v.SetDefault("SMS_GATEWAY_URL", "")
	v.SetDefault("SMS_GATEWAY_API_KEY", "")
	v.SetDefault("SMS_SENDER", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "otp-events")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("RECEIPTS_ENABLED", true)
	v.SetDefault("RECEIPT_ISSUER", "otpd")
	v.SetDefault("RECEIPT_AUDIENCE", "")
	v.SetDefault("RECEIPT_TTL", 5*time.Minute)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("HOUSEKEEPING_INTERVAL", time.Hour)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, errors.New("config: PORT must be between 1 and 65535"))
	}

	switch c.StoreDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("config: DATABASE_FILE must be set for the sqlite driver"))
		}
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("config: REDIS_URL must be set for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("config: OTP_TTL must be positive"))
	}
	if c.OTPMaxAttempts <= 0 {
		errs = append(errs, errors.New("config: OTP_MAX_ATTEMPTS must be positive"))
	}
	if c.OTPMinInterval < 0 {
		errs = append(errs, errors.New("config: OTP_MIN_INTERVAL must not be negative"))
	}
	if c.DeliveryTimeout <= 0 {
		errs = append(errs, errors.New("config: DELIVERY_TIMEOUT must be positive"))
	}

	switch c.DeliveryMode {
	case "console":
		if c.Env == "prod" {
			errs = append(errs, errors.New("config: DELIVERY_MODE=console must not be used when ENV=prod"))
		}
	case "gateway":
		if c.SMSGatewayURL == "" && c.SMTPHost == "" {
			errs = append(errs, errors.New("config: DELIVERY_MODE=gateway needs SMS_GATEWAY_URL or SMTP_HOST"))
		}
		if c.SMTPHost != "" && c.SMTPFrom == "" {
			errs = append(errs, errors.New("config: SMTP_FROM must be set with SMTP_HOST"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown DELIVERY_MODE %q", c.DeliveryMode))
	}

	return errors.Join(errs...)
}

// KafkaBrokersList splits KafkaBrokers on commas.
func (c Config) KafkaBrokersList() []string { return splitList(c.KafkaBrokers) }

// CORSOrigins splits CORSAllowedOrigins on commas.
func (c Config) CORSOrigins() []string { return splitList(c.CORSAllowedOrigins) }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
