// Package app wires configuration, storage, cache and gateway into the
// services shared by the server and cron processes.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cohere/backend/internal/cache"
	"github.com/cohere/backend/internal/config"
	"github.com/cohere/backend/internal/repository"
	"github.com/cohere/backend/internal/service"
	"github.com/cohere/backend/pkg/payment"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config  *config.Config
	Log     *logrus.Entry
	Mongo   *mongo.Database
	DB      *pgxpool.Pool
	Cache   cache.Store
	Gateway payment.Gateway

	Contributions *service.ContributionService
	Purchases     *service.PurchaseService
	PaidTier      *service.PaidTierService
	Coupons       *service.CouponService
	Slots         *service.SlotService
	Auth          *service.AuthService

	closers []func()
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
	}
	return log, nil
}

// New connects to every backing store and builds the services.
// Close must be called when the returned App is no longer needed.
func New(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*App, error) {
	a := &App{Config: cfg, Log: log}

	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	contributions := repository.NewContributionRepository(a.Mongo)
	purchases := repository.NewPurchaseRepository(a.Mongo)
	coupons := repository.NewCouponRepository(a.Mongo)
	availability := repository.NewAvailabilityRepository(a.Mongo)
	paidTiers := repository.NewPaidTierRepository(a.DB)

	statuses := service.NewStatusResolver(a.Gateway, a.Cache, service.StatusTTLs{
		Settled:      cfg.StatusCacheTTL,
		Pending:      cfg.PendingStatusCacheTTL,
		Subscription: cfg.SubscriptionCacheTTL,
	}, log)

	a.Contributions = service.NewContributionService(contributions)
	a.Purchases = service.NewPurchaseService(purchases, contributions, statuses, cfg.RefreshConcurrency, log)
	a.PaidTier = service.NewPaidTierService(paidTiers, log)
	a.Coupons = service.NewCouponService(coupons, contributions, a.PaidTier, a.Gateway, log)
	a.Slots = service.NewSlotService(contributions, availability, a.Purchases, log)
	a.Auth = service.NewAuthService(cfg.JWTSecret)
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	mdb, err := repository.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	a.Mongo = mdb
	a.closers = append(a.closers, func() {
		_ = mdb.Client().Disconnect(context.Background())
	})
	if err := repository.EnsureIndexes(ctx, mdb); err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	if err := repository.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	a.Log.Info("databases connected & migrated")

	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.Cache = rs
		a.closers = append(a.closers, func() { _ = rs.Close() })
		a.Log.Info("using redis status cache")
	} else {
		ms := cache.NewMemoryStore()
		a.Cache = ms
		a.closers = append(a.closers, ms.Close)
		a.Log.Warn("REDIS_URL not set, using in-process status cache")
	}

	gw, err := NewGateway(cfg)
	if err != nil {
		return err
	}
	if cfg.PaymentGateway == config.GatewayMock {
		a.Log.Warn("PAYMENT_GATEWAY=mock, webhook signatures are not verified")
	}
	a.Gateway = gw
	return nil
}

// NewGateway builds the payment gateway named by PAYMENT_GATEWAY. The mock
// gateway is only returned when asked for by name.
func NewGateway(cfg *config.Config) (payment.Gateway, error) {
	switch cfg.PaymentGateway {
	case config.GatewayStripe:
		if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
			return nil, fmt.Errorf("stripe gateway needs STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET")
		}
		return payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.GatewayMaxRetries), nil
	case config.GatewayMock:
		return payment.NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.PaymentGateway)
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
