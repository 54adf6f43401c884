package service

import (
	"context"
	"time"

	"github.com/cohere/backend/internal/domain"
)

// The interfaces below are satisfied by the repository package. Services
// depend on them so they can be exercised with in-memory fakes.

type ContributionStore interface {
	Create(ctx context.Context, c *domain.Contribution) error
	FindByID(ctx context.Context, id string) (*domain.Contribution, error)
	UpdateSchedule(ctx context.Context, id string, schedule *domain.Schedule) error
}

type PurchaseStore interface {
	FindByClientAndContribution(ctx context.Context, clientID, contributionID string) (*domain.Purchase, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Purchase, error)
	FindByPaymentRef(ctx context.Context, transactionID, invoiceID string) (*domain.Purchase, error)
	AppendPayment(ctx context.Context, p *domain.Purchase, payment domain.PurchasePayment) error
	UpdatePaymentStatus(ctx context.Context, purchaseID, paymentID string, status domain.PaymentStatus, checkedAt time.Time) error
	FindWithPendingPayments(ctx context.Context, since time.Time) ([]*domain.Purchase, error)
}

type CouponStore interface {
	Create(ctx context.Context, c *domain.Coupon) error
	FindByID(ctx context.Context, id string) (*domain.Coupon, error)
	FindByNameAndCoach(ctx context.Context, name, coachID string) (*domain.Coupon, error)
	ListByCoach(ctx context.Context, coachID string) ([]*domain.Coupon, error)
	UpdateName(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

type AvailabilityStore interface {
	FindBookedBetween(ctx context.Context, contributionID string, from, to time.Time) ([]domain.BookedTime, error)
	Book(ctx context.Context, contributionID string, windowStart, windowEnd time.Time, b domain.BookedTime) (bool, error)
}

type PaidTierStore interface {
	Create(ctx context.Context, sub *domain.PaidTierSubscription) error
	FindLatestByCoach(ctx context.Context, coachID string) (*domain.PaidTierSubscription, error)
}
