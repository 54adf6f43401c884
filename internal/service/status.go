package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cohere/backend/internal/cache"
	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/metrics"
	"github.com/cohere/backend/pkg/payment"
)

// StatusTTLs controls how long looked-up gateway statuses are reused.
type StatusTTLs struct {
	Settled      time.Duration
	Pending      time.Duration
	Subscription time.Duration
}

func PaymentIntentKey(id string) string { return "pi:" + id }
func InvoiceKey(id string) string       { return "inv:" + id }
func SubscriptionKey(id string) string  { return "sub:" + id }

// StatusResolver looks up payment and subscription statuses on the gateway
// through a shared cache. A failed lookup never changes what is stored.
type StatusResolver struct {
	gateway payment.Gateway
	cache   cache.Store
	ttl     StatusTTLs
	log     *logrus.Entry
}

func NewStatusResolver(gateway payment.Gateway, store cache.Store, ttl StatusTTLs, log *logrus.Entry) *StatusResolver {
	return &StatusResolver{
		gateway: gateway,
		cache:   store,
		ttl:     ttl,
		log:     log.WithField("component", "status_resolver"),
	}
}

// PaymentStatus returns the current gateway status of p. Payments that cannot
// change any more are answered from the stored status.
func (r *StatusResolver) PaymentStatus(ctx context.Context, p *domain.PurchasePayment) domain.StatusLookup {
	if !p.NeedsRefresh() {
		return domain.Fresh(string(p.Status))
	}

	var (
		status string
		err    error
	)
	if p.TransactionID != "" {
		status, err = r.lookup(ctx, "payment_intent", PaymentIntentKey(p.TransactionID), r.paymentTTL, func(ctx context.Context) (string, error) {
			return r.gateway.PaymentIntentStatus(ctx, p.TransactionID)
		})
	} else {
		status, err = r.lookup(ctx, "invoice", InvoiceKey(p.InvoiceID), r.paymentTTL, func(ctx context.Context) (string, error) {
			return r.gateway.InvoiceStatus(ctx, p.InvoiceID)
		})
	}
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"payment_id":     p.ID,
			"transaction_id": p.TransactionID,
			"invoice_id":     p.InvoiceID,
		}).Warn("payment status lookup failed, keeping stored status")
		if p.StatusCheckedAt != nil {
			return domain.Stale(string(p.Status))
		}
		return domain.Unavailable()
	}
	return domain.Fresh(status)
}

// SubscriptionStatus returns the gateway status of a subscription.
func (r *StatusResolver) SubscriptionStatus(ctx context.Context, id string) domain.StatusLookup {
	status, err := r.lookup(ctx, "subscription", SubscriptionKey(id), func(string) time.Duration { return r.ttl.Subscription },
		func(ctx context.Context) (string, error) {
			return r.gateway.SubscriptionStatus(ctx, id)
		})
	if err != nil {
		r.log.WithError(err).WithField("subscription_id", id).Warn("subscription status lookup failed")
		return domain.Unavailable()
	}
	return domain.Fresh(status)
}

// Invalidate drops cached statuses so the next lookup goes to the gateway.
func (r *StatusResolver) Invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.log.WithError(err).WithField("keys", keys).Warn("failed to invalidate status cache")
	}
}

func (r *StatusResolver) paymentTTL(status string) time.Duration {
	if domain.PaymentStatus(status).IsSettled() {
		return r.ttl.Settled
	}
	return r.ttl.Pending
}

func (r *StatusResolver) lookup(
	ctx context.Context,
	kind, key string,
	ttl func(status string) time.Duration,
	fetch func(ctx context.Context) (string, error),
) (string, error) {
	var cached string
	hit, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("status cache read failed")
	}
	if hit {
		metrics.CacheResults.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.CacheResults.WithLabelValues("miss").Inc()

	start := time.Now()
	status, err := fetch(ctx)
	metrics.GatewayLookupDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		result := "error"
		if errors.Is(err, payment.ErrNotFound) {
			result = "not_found"
		}
		metrics.GatewayLookups.WithLabelValues(kind, result).Inc()
		return "", err
	}
	metrics.GatewayLookups.WithLabelValues(kind, "ok").Inc()

	if err := r.cache.Set(ctx, key, status, ttl(status)); err != nil {
		r.log.WithError(err).WithField("key", key).Warn("status cache write failed")
	}
	return status, nil
}
