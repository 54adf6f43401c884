package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/repository"
	"github.com/cohere/backend/pkg/payment"
)

// PaidTierChecker reports whether a coach currently holds a paid plan.
type PaidTierChecker interface {
	HasActivePaidTier(ctx context.Context, coachID string, t time.Time) (bool, error)
}

// CouponService manages coach coupons and decides whether one applies to a
// purchase.
type CouponService struct {
	coupons       CouponStore
	contributions ContributionStore
	paidTier      PaidTierChecker
	gateway       payment.Gateway
	validate      *validator.Validate
	log           *logrus.Entry
	now           func() time.Time
}

func NewCouponService(
	coupons CouponStore,
	contributions ContributionStore,
	paidTier PaidTierChecker,
	gateway payment.Gateway,
	log *logrus.Entry,
) *CouponService {
	return &CouponService{
		coupons:       coupons,
		contributions: contributions,
		paidTier:      paidTier,
		gateway:       gateway,
		validate:      validator.New(),
		log:           log.WithField("component", "coupon_service"),
		now:           time.Now,
	}
}

// Validate returns the discount a coupon grants on a contribution, or an
// invalid response when it does not apply.
func (s *CouponService) Validate(ctx context.Context, req *domain.ValidateCouponRequest) (*domain.CouponValidationResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrFromValidation(err)
	}

	discount, err := s.discountFor(ctx, req)
	if err != nil {
		return nil, err
	}
	if discount == nil {
		return &domain.CouponValidationResponse{Valid: false}, nil
	}
	return &domain.CouponValidationResponse{Valid: true, Discount: discount}, nil
}

func (s *CouponService) discountFor(ctx context.Context, req *domain.ValidateCouponRequest) (*domain.Discount, error) {
	contribution, err := s.contributions.FindByID(ctx, req.ContributionID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load contribution", err)
	}
	if contribution == nil {
		return nil, domain.ErrNotFound("contribution not found")
	}

	if !req.PaymentOption.IsPaid() || !contribution.Type.AcceptsOption(req.PaymentOption) {
		return nil, nil
	}

	ownerID := contribution.UserID
	var coupon *domain.Coupon
	if req.CouponID != "" {
		coupon, err = s.coupons.FindByID(ctx, req.CouponID)
	} else {
		coupon, err = s.coupons.FindByNameAndCoach(ctx, req.Name, ownerID)
	}
	if err != nil {
		return nil, domain.ErrInternal("failed to load coupon", err)
	}
	if coupon == nil || coupon.CoachID != ownerID {
		return nil, nil
	}

	now := s.now()
	active, err := s.paidTier.HasActivePaidTier(ctx, ownerID, now)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, nil
	}

	remote, err := s.gateway.GetCoupon(ctx, coupon.ID)
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			s.log.WithField("coupon_id", coupon.ID).Warn("coupon missing on gateway")
			return nil, nil
		}
		return nil, domain.ErrInternal("failed to look up coupon", err)
	}
	if !remote.Redeemable(now) {
		return nil, nil
	}

	d := &domain.Discount{
		CouponID:         coupon.ID,
		Name:             coupon.Name,
		Duration:         remote.Duration,
		DurationInMonths: remote.DurationInMonths,
	}
	if remote.PercentOff > 0 {
		d.PercentOff = remote.PercentOff
	} else {
		d.AmountOff = remote.AmountOff
		d.Currency = remote.Currency
	}
	return d, nil
}

// Create registers a coupon on the gateway and mirrors it locally.
func (s *CouponService) Create(ctx context.Context, coachID string, req *domain.CreateCouponRequest) (*domain.Coupon, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrFromValidation(err)
	}
	if (req.PercentOff > 0) == (req.AmountOff > 0) {
		return nil, domain.ErrValidation("exactly one of percentOff and amountOff is required")
	}
	if req.AmountOff > 0 && req.Currency == "" {
		return nil, domain.ErrValidation("currency is required with amountOff")
	}
	if req.Duration == "repeating" && req.DurationInMonths == 0 {
		return nil, domain.ErrValidation("durationInMonths is required for repeating coupons")
	}
	if err := s.requirePaidTier(ctx, coachID); err != nil {
		return nil, err
	}

	existing, err := s.coupons.FindByNameAndCoach(ctx, req.Name, coachID)
	if err != nil {
		return nil, domain.ErrInternal("failed to check coupon name", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("a coupon with this name already exists")
	}

	params := payment.CouponParams{
		Name:           req.Name,
		PercentOff:     req.PercentOff,
		AmountOff:      req.AmountOff,
		Currency:       req.Currency,
		Duration:       req.Duration,
		MaxRedemptions: req.MaxRedemptions,
		RedeemBy:       req.RedeemBy,
		Metadata:       map[string]string{"coachId": coachID},
	}
	if req.Duration == "repeating" {
		params.DurationInMonths = req.DurationInMonths
	}
	remote, err := s.gateway.CreateCoupon(ctx, params)
	if err != nil {
		return nil, domain.ErrInternal("failed to create coupon on gateway", err)
	}

	now := s.now().UTC()
	coupon := &domain.Coupon{
		ID:               remote.ID,
		Name:             req.Name,
		CoachID:          coachID,
		PercentOff:       remote.PercentOff,
		AmountOff:        remote.AmountOff,
		Currency:         remote.Currency,
		Duration:         remote.Duration,
		DurationInMonths: remote.DurationInMonths,
		MaxRedemptions:   remote.MaxRedemptions,
		RedeemBy:         remote.RedeemBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.coupons.Create(ctx, coupon); err != nil {
		if delErr := s.gateway.DeleteCoupon(ctx, remote.ID); delErr != nil {
			s.log.WithError(delErr).WithField("coupon_id", remote.ID).Error("failed to roll back gateway coupon")
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrConflict("a coupon with this name already exists")
		}
		return nil, domain.ErrInternal("failed to store coupon", err)
	}

	s.log.WithFields(logrus.Fields{"coupon_id": coupon.ID, "coach_id": coachID}).Info("coupon created")
	return coupon, nil
}

// Update renames a coupon. Discount terms are immutable on the gateway.
func (s *CouponService) Update(ctx context.Context, coachID, id string, req *domain.UpdateCouponRequest) (*domain.Coupon, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrFromValidation(err)
	}
	coupon, err := s.owned(ctx, coachID, id)
	if err != nil {
		return nil, err
	}
	if err := s.requirePaidTier(ctx, coachID); err != nil {
		return nil, err
	}
	if coupon.Name == req.Name {
		return coupon, nil
	}

	other, err := s.coupons.FindByNameAndCoach(ctx, req.Name, coachID)
	if err != nil {
		return nil, domain.ErrInternal("failed to check coupon name", err)
	}
	if other != nil && other.ID != id {
		return nil, domain.ErrConflict("a coupon with this name already exists")
	}

	if _, err := s.gateway.UpdateCoupon(ctx, id, req.Name); err != nil {
		return nil, domain.ErrInternal("failed to update coupon on gateway", err)
	}
	if err := s.coupons.UpdateName(ctx, id, req.Name); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrConflict("a coupon with this name already exists")
		}
		return nil, domain.ErrInternal("failed to update coupon", err)
	}

	coupon.Name = req.Name
	coupon.UpdatedAt = s.now().UTC()
	return coupon, nil
}

func (s *CouponService) Delete(ctx context.Context, coachID, id string) error {
	if _, err := s.owned(ctx, coachID, id); err != nil {
		return err
	}
	if err := s.requirePaidTier(ctx, coachID); err != nil {
		return err
	}
	if err := s.gateway.DeleteCoupon(ctx, id); err != nil && !errors.Is(err, payment.ErrNotFound) {
		return domain.ErrInternal("failed to delete coupon on gateway", err)
	}
	if err := s.coupons.Delete(ctx, id); err != nil {
		return domain.ErrInternal("failed to delete coupon", err)
	}
	return nil
}

func (s *CouponService) List(ctx context.Context, coachID string) ([]*domain.Coupon, error) {
	coupons, err := s.coupons.ListByCoach(ctx, coachID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list coupons", err)
	}
	return coupons, nil
}

func (s *CouponService) owned(ctx context.Context, coachID, id string) (*domain.Coupon, error) {
	coupon, err := s.coupons.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to load coupon", err)
	}
	if coupon == nil || coupon.CoachID != coachID {
		return nil, domain.ErrNotFound("coupon not found")
	}
	return coupon, nil
}

func (s *CouponService) requirePaidTier(ctx context.Context, coachID string) error {
	active, err := s.paidTier.HasActivePaidTier(ctx, coachID, s.now())
	if err != nil {
		return err
	}
	if !active {
		return domain.ErrForbidden("an active paid tier is required to manage coupons")
	}
	return nil
}
