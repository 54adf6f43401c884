package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	GatewayStripe = "stripe"
	GatewayMock   = "mock"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int    `env:"PORT" env-default:"4001"`
	JWTSecret   string `env:"JWT_SECRET" env-required:"true"`
	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
	CORSOrigins string `env:"CORS_ORIGINS" env-default:"http://localhost:3000,https://app.cohere.live"`

	MongoURI      string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" env-default:"cohere"`
	RedisURL      string `env:"REDIS_URL"`

	// PaymentGateway selects "stripe" or the in-memory "mock" gateway.
	PaymentGateway      string `env:"PAYMENT_GATEWAY" env-default:"stripe"`
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	GatewayMaxRetries   uint64 `env:"GATEWAY_MAX_RETRIES" env-default:"2"`

	StatusCacheTTL        time.Duration `env:"STATUS_CACHE_TTL" env-default:"72h"`
	PendingStatusCacheTTL time.Duration `env:"PENDING_STATUS_CACHE_TTL" env-default:"30s"`
	SubscriptionCacheTTL  time.Duration `env:"SUBSCRIPTION_CACHE_TTL" env-default:"24h"`
	RefreshConcurrency    int           `env:"REFRESH_CONCURRENCY" env-default:"4"`

	ReconcileSchedule string        `env:"RECONCILE_SCHEDULE" env-default:"@every 10m"`
	ReconcileLookback time.Duration `env:"RECONCILE_LOOKBACK" env-default:"72h"`

	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// env-required only checks that the variable is present.
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}

	switch cfg.PaymentGateway {
	case GatewayStripe:
		if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required for the stripe gateway")
		}
	case GatewayMock:
	default:
		return nil, fmt.Errorf("PAYMENT_GATEWAY must be %q or %q, got %q", GatewayStripe, GatewayMock, cfg.PaymentGateway)
	}
	if cfg.RefreshConcurrency < 1 {
		return nil, fmt.Errorf("REFRESH_CONCURRENCY must be positive, got %d", cfg.RefreshConcurrency)
	}
	return &cfg, nil
}

// Origins splits CORS_ORIGINS into trimmed entries.
func (c *Config) Origins() []string {
	origins := strings.Split(c.CORSOrigins, ",")
	out := origins[:0]
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
