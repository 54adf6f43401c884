package payment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the gateway has no such object.
	ErrNotFound = errors.New("payment: object not found")
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
)

// Gateway defines what the backend needs from the payment provider. The
// backend reads status fields and builds coupon requests; it never moves
// money itself.
type Gateway interface {
	PaymentIntentStatus(ctx context.Context, id string) (string, error)
	InvoiceStatus(ctx context.Context, id string) (string, error)
	SubscriptionStatus(ctx context.Context, id string) (string, error)

	CreateCoupon(ctx context.Context, params CouponParams) (*Coupon, error)
	GetCoupon(ctx context.Context, id string) (*Coupon, error)
	UpdateCoupon(ctx context.Context, id, name string) (*Coupon, error)
	DeleteCoupon(ctx context.Context, id string) error

	// ParseEvent verifies and decodes a webhook payload.
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// CouponParams describes a coupon to create.
type CouponParams struct {
	Name             string
	PercentOff       float64
	AmountOff        int64
	Currency         string
	Duration         string
	DurationInMonths int64
	MaxRedemptions   int64
	RedeemBy         *time.Time
	Metadata         map[string]string
}

// Coupon is the gateway's view of a discount.
type Coupon struct {
	ID               string
	Name             string
	PercentOff       float64
	AmountOff        int64
	Currency         string
	Duration         string
	DurationInMonths int64
	MaxRedemptions   int64
	TimesRedeemed    int64
	RedeemBy         *time.Time
	Valid            bool
	Metadata         map[string]string
}

// Redeemable reports whether the coupon can still be applied at t.
func (c *Coupon) Redeemable(t time.Time) bool {
	if c == nil || !c.Valid {
		return false
	}
	if c.RedeemBy != nil && t.After(*c.RedeemBy) {
		return false
	}
	if c.MaxRedemptions > 0 && c.TimesRedeemed >= c.MaxRedemptions {
		return false
	}
	return true
}

// ObjectKind tags which gateway object an event carries.
type ObjectKind string

const (
	KindPaymentIntent ObjectKind = "payment_intent"
	KindInvoice       ObjectKind = "invoice"
	KindSubscription  ObjectKind = "subscription"
	KindOther         ObjectKind = "other"
)

// Event is a decoded webhook notification.
type Event struct {
	Type           string
	Kind           ObjectKind
	ObjectID       string
	Status         string
	Amount         int64
	Currency       string
	Metadata       map[string]string
	SubscriptionID string
	InvoiceID      string
	Created        time.Time
}
