package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cohere/backend/internal/cache"
	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/repository"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newMemoryCache(t *testing.T) *cache.MemoryStore {
	t.Helper()
	store := cache.NewMemoryStore()
	t.Cleanup(store.Close)
	return store
}

var testTTLs = StatusTTLs{Settled: time.Hour, Pending: time.Minute, Subscription: time.Hour}

type fakeContributions struct {
	mu    sync.Mutex
	items map[string]domain.Contribution
}

func newFakeContributions(cs ...domain.Contribution) *fakeContributions {
	f := &fakeContributions{items: make(map[string]domain.Contribution)}
	for _, c := range cs {
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeContributions) Create(_ context.Context, c *domain.Contribution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[c.ID] = *c
	return nil
}

func (f *fakeContributions) FindByID(_ context.Context, id string) (*domain.Contribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeContributions) UpdateSchedule(_ context.Context, id string, schedule *domain.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.items[id]
	c.Schedule = schedule
	f.items[id] = c
	return nil
}

type fakePurchases struct {
	mu      sync.Mutex
	items   map[string]*domain.Purchase
	updates int
}

func newFakePurchases(ps ...*domain.Purchase) *fakePurchases {
	f := &fakePurchases{items: make(map[string]*domain.Purchase)}
	for _, p := range ps {
		f.items[p.ID] = clonePurchase(p)
	}
	return f
}

func clonePurchase(p *domain.Purchase) *domain.Purchase {
	out := *p
	out.Payments = append([]domain.PurchasePayment(nil), p.Payments...)
	return &out
}

func (f *fakePurchases) get(id string) *domain.Purchase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clonePurchase(f.items[id])
}

func (f *fakePurchases) find(match func(*domain.Purchase) bool) *domain.Purchase {
	for _, p := range f.items {
		if match(p) {
			return clonePurchase(p)
		}
	}
	return nil
}

func (f *fakePurchases) FindByClientAndContribution(_ context.Context, clientID, contributionID string) (*domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(p *domain.Purchase) bool {
		return p.ClientID == clientID && p.ContributionID == contributionID
	}), nil
}

func (f *fakePurchases) FindBySubscriptionID(_ context.Context, subscriptionID string) (*domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(p *domain.Purchase) bool { return p.SubscriptionID == subscriptionID }), nil
}

func (f *fakePurchases) FindByPaymentRef(_ context.Context, transactionID, invoiceID string) (*domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(p *domain.Purchase) bool { return p.FindPayment(transactionID, invoiceID) != nil }), nil
}

func (f *fakePurchases) AppendPayment(_ context.Context, p *domain.Purchase, payment domain.PurchasePayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.ClientID == p.ClientID && existing.ContributionID == p.ContributionID {
			existing.Payments = append(existing.Payments, payment)
			if p.SubscriptionID != "" {
				existing.SubscriptionID = p.SubscriptionID
			}
			return nil
		}
	}
	created := clonePurchase(p)
	created.ID = domain.NewID()
	created.Payments = []domain.PurchasePayment{payment}
	f.items[created.ID] = created
	return nil
}

func (f *fakePurchases) UpdatePaymentStatus(_ context.Context, purchaseID, paymentID string, status domain.PaymentStatus, checkedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	p := f.items[purchaseID]
	for i := range p.Payments {
		if p.Payments[i].ID == paymentID {
			p.Payments[i].Status = status
			p.Payments[i].StatusCheckedAt = &checkedAt
		}
	}
	return nil
}

func (f *fakePurchases) FindWithPendingPayments(_ context.Context, since time.Time) ([]*domain.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Purchase
	for _, p := range f.items {
		for _, pay := range p.Payments {
			if !pay.Status.IsSettled() && !pay.DateTimeCharged.Before(since) {
				out = append(out, clonePurchase(p))
				break
			}
		}
	}
	return out, nil
}

type fakeCoupons struct {
	mu    sync.Mutex
	items map[string]domain.Coupon
}

func newFakeCoupons(cs ...domain.Coupon) *fakeCoupons {
	f := &fakeCoupons{items: make(map[string]domain.Coupon)}
	for _, c := range cs {
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeCoupons) Create(_ context.Context, c *domain.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.CoachID == c.CoachID && existing.Name == c.Name {
			return repository.ErrDuplicate
		}
	}
	f.items[c.ID] = *c
	return nil
}

func (f *fakeCoupons) FindByID(_ context.Context, id string) (*domain.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCoupons) FindByNameAndCoach(_ context.Context, name, coachID string) (*domain.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.items {
		if c.Name == name && c.CoachID == coachID {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeCoupons) ListByCoach(_ context.Context, coachID string) ([]*domain.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Coupon{}
	for _, c := range f.items {
		if c.CoachID == coachID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCoupons) UpdateName(_ context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.items[id]
	c.Name = name
	f.items[id] = c
	return nil
}

func (f *fakeCoupons) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

type fakeAvailability struct {
	mu      sync.Mutex
	windows map[string]*domain.AvailabilityTime
}

func newFakeAvailability() *fakeAvailability {
	return &fakeAvailability{windows: make(map[string]*domain.AvailabilityTime)}
}

func (f *fakeAvailability) FindBookedBetween(_ context.Context, contributionID string, from, to time.Time) ([]domain.BookedTime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BookedTime
	for _, w := range f.windows {
		if w.ContributionID == contributionID && w.StartTime.Before(to) && w.EndTime.After(from) {
			out = append(out, w.BookedTimes...)
		}
	}
	return out, nil
}

func (f *fakeAvailability) Book(_ context.Context, contributionID string, windowStart, windowEnd time.Time, b domain.BookedTime) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := contributionID + "|" + windowStart.UTC().Format(time.RFC3339)
	w, ok := f.windows[key]
	if !ok {
		w = &domain.AvailabilityTime{ID: domain.NewID(), ContributionID: contributionID, StartTime: windowStart, EndTime: windowEnd}
		f.windows[key] = w
	}
	for _, existing := range w.BookedTimes {
		if existing.StartTime.Before(b.EndTime) && b.StartTime.Before(existing.EndTime) {
			return false, nil
		}
	}
	w.BookedTimes = append(w.BookedTimes, b)
	return true, nil
}

type fakePaidTiers struct {
	mu    sync.Mutex
	items []domain.PaidTierSubscription
}

func (f *fakePaidTiers) Create(_ context.Context, sub *domain.PaidTierSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, *sub)
	return nil
}

func (f *fakePaidTiers) FindLatestByCoach(_ context.Context, coachID string) (*domain.PaidTierSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.PaidTierSubscription
	for i := range f.items {
		s := f.items[i]
		if s.CoachID == coachID && (latest == nil || s.CreatedAt.After(latest.CreatedAt)) {
			latest = &s
		}
	}
	return latest, nil
}
