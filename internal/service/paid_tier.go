package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/cohere/backend/internal/domain"
)

// PaidTierService manages the coach's own platform plan.
type PaidTierService struct {
	repo     PaidTierStore
	validate *validator.Validate
	log      *logrus.Entry
	now      func() time.Time
}

func NewPaidTierService(repo PaidTierStore, log *logrus.Entry) *PaidTierService {
	return &PaidTierService{
		repo:     repo,
		validate: validator.New(),
		log:      log.WithField("component", "paid_tier_service"),
		now:      time.Now,
	}
}

// Current returns the coach's most recent plan, or nil if they never had one.
func (s *PaidTierService) Current(ctx context.Context, coachID string) (*domain.PaidTierSubscription, error) {
	sub, err := s.repo.FindLatestByCoach(ctx, coachID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load paid tier", err)
	}
	return sub, nil
}

// HasActivePaidTier reports whether the coach's latest plan is paid and its
// period has not ended at t.
func (s *PaidTierService) HasActivePaidTier(ctx context.Context, coachID string, t time.Time) (bool, error) {
	sub, err := s.Current(ctx, coachID)
	if err != nil {
		return false, err
	}
	return sub.IsActiveAt(t), nil
}

// Grant gives a coach a paid plan for a number of months without payment.
func (s *PaidTierService) Grant(ctx context.Context, req *domain.GrantPaidTierRequest) (*domain.PaidTierSubscription, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrFromValidation(err)
	}

	now := s.now().UTC()
	sub := &domain.PaidTierSubscription{
		ID:                 domain.NewID(),
		CoachID:            req.CoachID,
		Plan:               req.Plan,
		Status:             "active",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, req.Months, 0),
		PaymentProviderID:  "manual",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to grant paid tier", err)
	}

	s.log.WithFields(logrus.Fields{"coach_id": req.CoachID, "plan": req.Plan, "months": req.Months}).Info("paid tier granted")
	return sub, nil
}

func (s *PaidTierService) Plans() []domain.PaidTierPlan {
	return domain.AvailablePaidTierPlans()
}
