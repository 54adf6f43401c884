package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/pkg/payment"
)

var charged = time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)

type purchaseFixture struct {
	svc       *PurchaseService
	gateway   *payment.MockGateway
	purchases *fakePurchases
	statuses  *StatusResolver
	cache     interface {
		Get(ctx context.Context, key string, dst interface{}) (bool, error)
	}
}

func newPurchaseFixture(t *testing.T, contributions []domain.Contribution, purchases ...*domain.Purchase) *purchaseFixture {
	t.Helper()
	gw := payment.NewMockGateway()
	store := newMemoryCache(t)
	statuses := NewStatusResolver(gw, store, testTTLs, testLogger())
	repo := newFakePurchases(purchases...)
	svc := NewPurchaseService(repo, newFakeContributions(contributions...), statuses, 4, testLogger())
	return &purchaseFixture{svc: svc, gateway: gw, purchases: repo, statuses: statuses, cache: store}
}

func course(id string) domain.Contribution {
	return domain.Contribution{ID: id, UserID: "coach-1", Type: domain.ContributionCourse}
}

func membership(id string) domain.Contribution {
	return domain.Contribution{ID: id, UserID: "coach-1", Type: domain.ContributionMembership}
}

func TestResolveAccessRefreshesSucceededPayment(t *testing.T) {
	p := &domain.Purchase{
		ID: "p1", ClientID: "client-1", ContributionID: "c1", ContributionType: domain.ContributionCourse,
		Payments: []domain.PurchasePayment{{
			ID: "pay-1", PaymentOption: domain.EntireCourse, Status: domain.StatusProcessing,
			DateTimeCharged: charged, TransactionID: "pi_1",
		}},
	}
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")}, p)
	f.gateway.SetPaymentIntent("pi_1", "succeeded")

	got, err := f.svc.ResolveAccess(context.Background(), "client-1", "c1")

	require.NoError(t, err)
	assert.True(t, got.HasAccess)
	assert.Equal(t, domain.StatusSucceeded, got.ActualPaymentStatus)
	assert.Equal(t, domain.EntireCourse, got.PaymentOption)
	require.Len(t, got.Payments, 1)
	assert.Equal(t, domain.CheckFresh, got.Payments[0].Check)

	stored := f.purchases.get("p1").Payments[0]
	assert.Equal(t, domain.StatusSucceeded, stored.Status)
	assert.NotNil(t, stored.StatusCheckedAt)
}

func TestResolveAccessGatewayDownKeepsStoredStatus(t *testing.T) {
	p := &domain.Purchase{
		ID: "p1", ClientID: "client-1", ContributionID: "c1",
		Payments: []domain.PurchasePayment{{
			ID: "pay-1", PaymentOption: domain.EntireCourse, Status: domain.StatusProcessing,
			DateTimeCharged: charged, TransactionID: "pi_1",
		}},
	}
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")}, p)
	f.gateway.FailWith(errors.New("gateway timeout"))

	got, err := f.svc.ResolveAccess(context.Background(), "client-1", "c1")

	require.NoError(t, err)
	assert.False(t, got.HasAccess)
	assert.Equal(t, domain.StatusProcessing, got.ActualPaymentStatus)
	assert.Equal(t, domain.CheckUnavailable, got.Payments[0].Check)
	assert.Equal(t, domain.StatusProcessing, f.purchases.get("p1").Payments[0].Status)
	assert.Zero(t, f.purchases.updates)
}

func TestResolveAccessStaleWhenPreviouslyConfirmed(t *testing.T) {
	checked := charged.Add(time.Minute)
	p := &domain.Purchase{
		ID: "p1", ClientID: "client-1", ContributionID: "c1",
		Payments: []domain.PurchasePayment{{
			ID: "pay-1", PaymentOption: domain.EntireCourse, Status: domain.StatusRequiresAction,
			DateTimeCharged: charged, TransactionID: "pi_1", StatusCheckedAt: &checked,
		}},
	}
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")}, p)
	f.gateway.FailWith(errors.New("gateway timeout"))

	got, err := f.svc.ResolveAccess(context.Background(), "client-1", "c1")

	require.NoError(t, err)
	assert.Equal(t, domain.CheckStale, got.Payments[0].Check)
	assert.Equal(t, domain.StatusRequiresAction, got.Payments[0].Status)
}

func TestResolveAccessReusesCachedPendingStatus(t *testing.T) {
	p := &domain.Purchase{
		ID: "p1", ClientID: "client-1", ContributionID: "c1",
		Payments: []domain.PurchasePayment{{
			ID: "pay-1", PaymentOption: domain.SplitPayments, Status: domain.StatusOpen,
			DateTimeCharged: charged, InvoiceID: "in_1",
		}},
	}
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")}, p)
	f.gateway.SetInvoice("in_1", "open")
	ctx := context.Background()

	_, err := f.svc.ResolveAccess(ctx, "client-1", "c1")
	require.NoError(t, err)
	_, err = f.svc.ResolveAccess(ctx, "client-1", "c1")
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.gateway.Calls())
}

func TestResolveAccessManualGrant(t *testing.T) {
	p := &domain.Purchase{ID: "p1", ClientID: "client-1", ContributionID: "m1", SubscriptionID: "-2"}
	f := newPurchaseFixture(t, []domain.Contribution{membership("m1")}, p)

	got, err := f.svc.ResolveAccess(context.Background(), "client-1", "m1")

	require.NoError(t, err)
	assert.True(t, got.HasAccess)
	assert.Equal(t, domain.GrantManual, got.Grant)
	assert.Equal(t, "active", got.SubscriptionStatus)
	assert.Zero(t, f.gateway.Calls())
}

func TestResolveAccessMembershipFollowsSubscription(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"active", true},
		{"trialing", true},
		{"past_due", false},
		{"canceled", false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			p := &domain.Purchase{
				ID: "p1", ClientID: "client-1", ContributionID: "m1", SubscriptionID: "sub_1",
				Payments: []domain.PurchasePayment{{
					ID: "pay-1", PaymentOption: domain.MonthlyMembership, Status: domain.StatusSucceeded, DateTimeCharged: charged,
				}},
			}
			f := newPurchaseFixture(t, []domain.Contribution{membership("m1")}, p)
			f.gateway.SetSubscription("sub_1", tt.status)

			got, err := f.svc.ResolveAccess(context.Background(), "client-1", "m1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.HasAccess)
			assert.Equal(t, tt.status, got.SubscriptionStatus)
			assert.Equal(t, domain.CheckFresh, got.SubscriptionCheck)
		})
	}
}

func TestResolveAccessMembershipGatewayDown(t *testing.T) {
	p := &domain.Purchase{ID: "p1", ClientID: "client-1", ContributionID: "m1", SubscriptionID: "sub_1"}
	f := newPurchaseFixture(t, []domain.Contribution{membership("m1")}, p)
	f.gateway.FailWith(errors.New("gateway timeout"))

	got, err := f.svc.ResolveAccess(context.Background(), "client-1", "m1")

	require.NoError(t, err)
	assert.False(t, got.HasAccess)
	assert.Equal(t, domain.StatusProcessing, got.ActualPaymentStatus)
	assert.Equal(t, domain.CheckUnavailable, got.SubscriptionCheck)
}

func TestResolveAccessWithoutPurchase(t *testing.T) {
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")})

	got, err := f.svc.ResolveAccess(context.Background(), "client-1", "c1")

	require.NoError(t, err)
	assert.False(t, got.HasAccess)
	assert.Equal(t, domain.GrantNone, got.Grant)
}

func TestResolveAccessUnknownContribution(t *testing.T) {
	f := newPurchaseFixture(t, nil)

	_, err := f.svc.ResolveAccess(context.Background(), "client-1", "missing")

	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestApplyGatewayEventUpdatesPaymentAndInvalidatesCache(t *testing.T) {
	p := &domain.Purchase{
		ID: "p1", ClientID: "client-1", ContributionID: "c1",
		Payments: []domain.PurchasePayment{{
			ID: "pay-1", PaymentOption: domain.EntireCourse, Status: domain.StatusProcessing,
			DateTimeCharged: charged, TransactionID: "pi_1",
		}},
	}
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")}, p)
	ctx := context.Background()

	f.gateway.SetPaymentIntent("pi_1", "processing")
	_, err := f.svc.ResolveAccess(ctx, "client-1", "c1")
	require.NoError(t, err)
	var cached string
	hit, _ := f.cache.Get(ctx, PaymentIntentKey("pi_1"), &cached)
	require.True(t, hit)

	f.gateway.SetPaymentIntent("pi_1", "succeeded")
	evt, err := f.gateway.ParseEvent(payment.MockEvent("payment_intent.succeeded", map[string]interface{}{
		"id": "pi_1", "status": "succeeded", "amount": 9900, "currency": "usd",
	}), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyGatewayEvent(ctx, evt))

	hit, _ = f.cache.Get(ctx, PaymentIntentKey("pi_1"), &cached)
	assert.False(t, hit)
	assert.Equal(t, domain.StatusSucceeded, f.purchases.get("p1").Payments[0].Status)

	got, err := f.svc.ResolveAccess(ctx, "client-1", "c1")
	require.NoError(t, err)
	assert.True(t, got.HasAccess)
}

func TestApplyGatewayEventRecordsNewPayment(t *testing.T) {
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")})
	ctx := context.Background()

	evt, err := f.gateway.ParseEvent(payment.MockEvent("payment_intent.succeeded", map[string]interface{}{
		"id": "pi_9", "status": "succeeded", "amount": 4500, "currency": "usd",
		"metadata": map[string]string{"clientId": "client-1", "contributionId": "c1", "paymentOption": "EntireCourse"},
	}), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyGatewayEvent(ctx, evt))

	got, err := f.svc.ResolveAccess(ctx, "client-1", "c1")
	require.NoError(t, err)
	assert.True(t, got.HasAccess)
	assert.Equal(t, domain.EntireCourse, got.PaymentOption)
	assert.Zero(t, f.gateway.Calls())
}

func TestApplyGatewayEventWithoutCreatedUsesReceiptTime(t *testing.T) {
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")})
	f.svc.now = func() time.Time { return charged }
	ctx := context.Background()

	evt, err := f.gateway.ParseEvent([]byte(`{"type":"payment_intent.succeeded","data":{"object":{
		"id":"pi_7","status":"succeeded","amount":4500,"currency":"usd",
		"metadata":{"clientId":"client-1","contributionId":"c1","paymentOption":"EntireCourse"}}}}`), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyGatewayEvent(ctx, evt))

	p, err := f.purchases.FindByClientAndContribution(ctx, "client-1", "c1")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Len(t, p.Payments, 1)
	assert.Equal(t, charged, p.Payments[0].DateTimeCharged)
}

func TestApplyGatewayEventKeepsSettledStatus(t *testing.T) {
	p := &domain.Purchase{
		ID: "p1", ClientID: "client-1", ContributionID: "c1",
		Payments: []domain.PurchasePayment{{
			ID: "pay-1", PaymentOption: domain.EntireCourse, Status: domain.StatusSucceeded,
			DateTimeCharged: charged, TransactionID: "pi_1",
		}},
	}
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")}, p)
	ctx := context.Background()

	evt, err := f.gateway.ParseEvent(payment.MockEvent("payment_intent.processing", map[string]interface{}{
		"id": "pi_1", "status": "processing",
	}), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyGatewayEvent(ctx, evt))

	assert.Equal(t, domain.StatusSucceeded, f.purchases.get("p1").Payments[0].Status)
	got, err := f.svc.ResolveAccess(ctx, "client-1", "c1")
	require.NoError(t, err)
	assert.True(t, got.HasAccess)
}

func TestApplyGatewayEventInvoiceBySubscription(t *testing.T) {
	p := &domain.Purchase{
		ID: "p1", ClientID: "client-1", ContributionID: "c1", SubscriptionID: "sub_7",
		Payments: []domain.PurchasePayment{{
			ID: "pay-1", PaymentOption: domain.SplitPayments, Status: domain.StatusPaid, DateTimeCharged: charged, InvoiceID: "in_1",
		}},
	}
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")}, p)

	evt, err := f.gateway.ParseEvent(payment.MockEvent("invoice.payment_failed", map[string]interface{}{
		"id": "in_2", "status": "open", "amount_paid": 0, "subscription": "sub_7",
	}), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyGatewayEvent(context.Background(), evt))

	stored := f.purchases.get("p1")
	require.Len(t, stored.Payments, 2)
	assert.Equal(t, "in_2", stored.Payments[1].InvoiceID)
	assert.Equal(t, domain.SplitPayments, stored.Payments[1].PaymentOption)
	assert.Equal(t, domain.StatusOpen, stored.Payments[1].Status)
}

func TestApplyGatewayEventIgnoresUnknownPurchase(t *testing.T) {
	f := newPurchaseFixture(t, nil)

	evt, err := f.gateway.ParseEvent(payment.MockEvent("payment_intent.processing", map[string]interface{}{
		"id": "pi_x", "status": "processing",
	}), "")
	require.NoError(t, err)

	assert.NoError(t, f.svc.ApplyGatewayEvent(context.Background(), evt))
}

func TestReconcilePending(t *testing.T) {
	old := charged.AddDate(0, -1, 0)
	purchases := []*domain.Purchase{
		{ID: "p1", ClientID: "a", ContributionID: "c1", Payments: []domain.PurchasePayment{
			{ID: "pay-1", Status: domain.StatusProcessing, DateTimeCharged: charged, TransactionID: "pi_1"},
		}},
		{ID: "p2", ClientID: "b", ContributionID: "c1", Payments: []domain.PurchasePayment{
			{ID: "pay-2", Status: domain.StatusRequiresAction, DateTimeCharged: charged, TransactionID: "pi_2"},
		}},
		{ID: "p3", ClientID: "c", ContributionID: "c1", Payments: []domain.PurchasePayment{
			{ID: "pay-3", Status: domain.StatusProcessing, DateTimeCharged: old, TransactionID: "pi_3"},
		}},
	}
	f := newPurchaseFixture(t, []domain.Contribution{course("c1")}, purchases...)
	f.gateway.SetPaymentIntent("pi_1", "succeeded")
	f.gateway.SetPaymentIntent("pi_2", "requires_action")
	f.gateway.SetPaymentIntent("pi_3", "succeeded")

	changed, err := f.svc.ReconcilePending(context.Background(), charged.Add(-time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, domain.StatusSucceeded, f.purchases.get("p1").Payments[0].Status)
	assert.NotNil(t, f.purchases.get("p2").Payments[0].StatusCheckedAt)
	assert.Equal(t, domain.StatusProcessing, f.purchases.get("p3").Payments[0].Status)
}
