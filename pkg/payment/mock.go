package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MockGateway is an in-memory Gateway for tests and local development.
type MockGateway struct {
	mu            sync.RWMutex
	intents       map[string]string
	invoices      map[string]string
	subscriptions map[string]string
	coupons       map[string]*Coupon
	failure       error

	calls atomic.Int64
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		intents:       make(map[string]string),
		invoices:      make(map[string]string),
		subscriptions: make(map[string]string),
		coupons:       make(map[string]*Coupon),
	}
}

// SetPaymentIntent stores the status returned for a payment intent.
func (g *MockGateway) SetPaymentIntent(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id] = status
}

func (g *MockGateway) SetInvoice(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invoices[id] = status
}

func (g *MockGateway) SetSubscription(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptions[id] = status
}

// PutCoupon stores c as if it had been created on the gateway.
func (g *MockGateway) PutCoupon(c Coupon) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.coupons[c.ID] = &c
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (g *MockGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failure = err
}

// Calls returns the number of gateway calls made so far.
func (g *MockGateway) Calls() int64 {
	return g.calls.Load()
}

func (g *MockGateway) PaymentIntentStatus(ctx context.Context, id string) (string, error) {
	return g.lookup(ctx, g.intents, id)
}

func (g *MockGateway) InvoiceStatus(ctx context.Context, id string) (string, error) {
	return g.lookup(ctx, g.invoices, id)
}

func (g *MockGateway) SubscriptionStatus(ctx context.Context, id string) (string, error) {
	return g.lookup(ctx, g.subscriptions, id)
}

func (g *MockGateway) CreateCoupon(ctx context.Context, p CouponParams) (*Coupon, error) {
	if err := g.begin(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	c := &Coupon{
		ID:               strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Name:             p.Name,
		PercentOff:       p.PercentOff,
		AmountOff:        p.AmountOff,
		Currency:         strings.ToUpper(p.Currency),
		Duration:         p.Duration,
		DurationInMonths: p.DurationInMonths,
		MaxRedemptions:   p.MaxRedemptions,
		RedeemBy:         p.RedeemBy,
		Valid:            true,
		Metadata:         p.Metadata,
	}
	g.coupons[c.ID] = c
	out := *c
	return &out, nil
}

func (g *MockGateway) GetCoupon(ctx context.Context, id string) (*Coupon, error) {
	if err := g.begin(ctx); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.coupons[id]
	if !ok {
		return nil, fmt.Errorf("%w: coupon %s", ErrNotFound, id)
	}
	out := *c
	return &out, nil
}

func (g *MockGateway) UpdateCoupon(ctx context.Context, id, name string) (*Coupon, error) {
	if err := g.begin(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.coupons[id]
	if !ok {
		return nil, fmt.Errorf("%w: coupon %s", ErrNotFound, id)
	}
	c.Name = name
	out := *c
	return &out, nil
}

func (g *MockGateway) DeleteCoupon(ctx context.Context, id string) error {
	if err := g.begin(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.coupons[id]; !ok {
		return fmt.Errorf("%w: coupon %s", ErrNotFound, id)
	}
	delete(g.coupons, id)
	return nil
}

// ParseEvent accepts gateway-shaped event JSON without checking the signature.
func (g *MockGateway) ParseEvent(payload []byte, _ string) (*Event, error) {
	var envelope struct {
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(envelope.Type, envelope.Data.Object)
}

func (g *MockGateway) begin(ctx context.Context) error {
	g.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.failure
}

func (g *MockGateway) lookup(ctx context.Context, m map[string]string, id string) (string, error) {
	if err := g.begin(ctx); err != nil {
		return "", err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	status, ok := m[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return status, nil
}

// MockEvent builds a webhook payload accepted by MockGateway.ParseEvent.
func MockEvent(eventType string, object map[string]interface{}) []byte {
	if _, ok := object["created"]; !ok {
		object["created"] = time.Now().Unix()
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	return raw
}
