package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeGateway implements Gateway on top of the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	maxRetries    uint64
}

// NewStripeGateway creates a gateway for the given secret key.
func NewStripeGateway(secretKey, webhookSecret string, maxRetries uint64) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret, maxRetries: maxRetries}
}

func (g *StripeGateway) PaymentIntentStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := g.retry(ctx, func() error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		pi, err := g.api.PaymentIntents.Get(id, params)
		if err != nil {
			return err
		}
		status = string(pi.Status)
		return nil
	})
	return status, err
}

func (g *StripeGateway) InvoiceStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := g.retry(ctx, func() error {
		params := &stripe.InvoiceParams{}
		params.Context = ctx
		inv, err := g.api.Invoices.Get(id, params)
		if err != nil {
			return err
		}
		status = string(inv.Status)
		return nil
	})
	return status, err
}

func (g *StripeGateway) SubscriptionStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := g.retry(ctx, func() error {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx
		sub, err := g.api.Subscriptions.Get(id, params)
		if err != nil {
			return err
		}
		status = string(sub.Status)
		return nil
	})
	return status, err
}

func (g *StripeGateway) CreateCoupon(ctx context.Context, p CouponParams) (*Coupon, error) {
	params := &stripe.CouponParams{
		Name:     stripe.String(p.Name),
		Duration: stripe.String(p.Duration),
	}
	params.Context = ctx
	if p.PercentOff > 0 {
		params.PercentOff = stripe.Float64(p.PercentOff)
	}
	if p.AmountOff > 0 {
		params.AmountOff = stripe.Int64(p.AmountOff)
		params.Currency = stripe.String(strings.ToLower(p.Currency))
	}
	if p.DurationInMonths > 0 {
		params.DurationInMonths = stripe.Int64(p.DurationInMonths)
	}
	if p.MaxRedemptions > 0 {
		params.MaxRedemptions = stripe.Int64(p.MaxRedemptions)
	}
	if p.RedeemBy != nil {
		params.RedeemBy = stripe.Int64(p.RedeemBy.Unix())
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	// Creation is not idempotent, so it is not retried.
	c, err := g.api.Coupons.New(params)
	if err != nil {
		return nil, translateError(err)
	}
	return fromStripeCoupon(c), nil
}

func (g *StripeGateway) GetCoupon(ctx context.Context, id string) (*Coupon, error) {
	var out *Coupon
	err := g.retry(ctx, func() error {
		params := &stripe.CouponParams{}
		params.Context = ctx
		c, err := g.api.Coupons.Get(id, params)
		if err != nil {
			return err
		}
		out = fromStripeCoupon(c)
		return nil
	})
	return out, err
}

func (g *StripeGateway) UpdateCoupon(ctx context.Context, id, name string) (*Coupon, error) {
	params := &stripe.CouponParams{Name: stripe.String(name)}
	params.Context = ctx
	c, err := g.api.Coupons.Update(id, params)
	if err != nil {
		return nil, translateError(err)
	}
	return fromStripeCoupon(c), nil
}

func (g *StripeGateway) DeleteCoupon(ctx context.Context, id string) error {
	params := &stripe.CouponParams{}
	params.Context = ctx
	_, err := g.api.Coupons.Del(id, params)
	return translateError(err)
}

func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: no webhook secret configured", ErrInvalidSignature)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if evt.Data == nil {
		return nil, fmt.Errorf("payment: event %s has no data", evt.ID)
	}
	return decodeEvent(string(evt.Type), evt.Data.Raw)
}

func (g *StripeGateway) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.maxRetries), ctx)
	err := backoff.Retry(func() error {
		err := op()
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	return translateError(err)
}

// isTransient reports whether a failed call is worth repeating. Network
// failures surface as non-Stripe errors.
func isTransient(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return se.HTTPStatusCode >= http.StatusInternalServerError || se.HTTPStatusCode == http.StatusTooManyRequests
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if errors.As(err, &se) && (se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing) {
		return fmt.Errorf("%w: %s", ErrNotFound, se.Msg)
	}
	return err
}

func fromStripeCoupon(c *stripe.Coupon) *Coupon {
	out := &Coupon{
		ID:               c.ID,
		Name:             c.Name,
		PercentOff:       c.PercentOff,
		AmountOff:        c.AmountOff,
		Currency:         strings.ToUpper(string(c.Currency)),
		Duration:         string(c.Duration),
		DurationInMonths: c.DurationInMonths,
		MaxRedemptions:   c.MaxRedemptions,
		TimesRedeemed:    c.TimesRedeemed,
		Valid:            c.Valid && !c.Deleted,
		Metadata:         c.Metadata,
	}
	if c.RedeemBy > 0 {
		t := time.Unix(c.RedeemBy, 0).UTC()
		out.RedeemBy = &t
	}
	return out
}

// decodeEvent maps the data object of a webhook event onto Event.
func decodeEvent(eventType string, raw json.RawMessage) (*Event, error) {
	evt := &Event{Type: eventType, Kind: KindOther}

	switch {
	case strings.HasPrefix(eventType, "payment_intent."):
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, fmt.Errorf("payment: decode payment intent: %w", err)
		}
		evt.Kind = KindPaymentIntent
		evt.ObjectID = pi.ID
		evt.Status = string(pi.Status)
		evt.Amount = pi.Amount
		evt.Currency = string(pi.Currency)
		evt.Metadata = pi.Metadata
		evt.Created = unixTime(pi.Created)
		if pi.Invoice != nil {
			evt.InvoiceID = pi.Invoice.ID
		}

	case strings.HasPrefix(eventType, "invoice."):
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("payment: decode invoice: %w", err)
		}
		evt.Kind = KindInvoice
		evt.ObjectID = inv.ID
		evt.InvoiceID = inv.ID
		evt.Status = string(inv.Status)
		evt.Amount = inv.AmountPaid
		evt.Currency = string(inv.Currency)
		evt.Metadata = inv.Metadata
		evt.Created = unixTime(inv.Created)
		if inv.Subscription != nil {
			evt.SubscriptionID = inv.Subscription.ID
		}

	case strings.HasPrefix(eventType, "customer.subscription."):
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("payment: decode subscription: %w", err)
		}
		evt.Kind = KindSubscription
		evt.ObjectID = sub.ID
		evt.SubscriptionID = sub.ID
		evt.Status = string(sub.Status)
		evt.Metadata = sub.Metadata
		evt.Created = unixTime(sub.Created)
	}
	return evt, nil
}

// unixTime leaves t zero when the gateway omitted the timestamp.
func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
