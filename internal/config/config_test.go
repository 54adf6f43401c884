package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/cohere")
	unsetenv(t, "PAYMENT_GATEWAY")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4001, cfg.Port)
	assert.Equal(t, 72*time.Hour, cfg.StatusCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.PendingStatusCacheTTL)
	assert.Equal(t, 4, cfg.RefreshConcurrency)
	assert.Equal(t, "@every 10m", cfg.ReconcileSchedule)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, GatewayStripe, cfg.PaymentGateway)
}

func TestLoadRequiresSecrets(t *testing.T) {
	setRequired(t)
	unsetenv(t, "JWT_SECRET")

	_, err := Load()
	assert.ErrorContains(t, err, "required")

	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err = Load()
	assert.ErrorContains(t, err, "JWT")

	setRequired(t)
	unsetenv(t, "DATABASE_URL")

	_, err = Load()
	assert.ErrorContains(t, err, "required")
}

func TestLoadStripeRequiresWebhookSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "STRIPE_WEBHOOK_SECRET")

	setRequired(t)
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err = Load()
	assert.ErrorContains(t, err, "STRIPE_SECRET_KEY")
}

func TestLoadMockGatewayIsExplicit(t *testing.T) {
	setRequired(t)
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("PAYMENT_GATEWAY", "mock")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, GatewayMock, cfg.PaymentGateway)

	t.Setenv("PAYMENT_GATEWAY", "paypal")
	_, err = Load()
	assert.ErrorContains(t, err, "PAYMENT_GATEWAY")
}

func TestOrigins(t *testing.T) {
	cfg := &Config{CORSOrigins: " http://a.test , ,https://b.test"}
	assert.Equal(t, []string{"http://a.test", "https://b.test"}, cfg.Origins())
}
