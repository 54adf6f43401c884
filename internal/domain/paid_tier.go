package domain

import "time"

// PaidTierSubscription is a coach's own platform plan.
type PaidTierSubscription struct {
	ID                 string    `json:"id"`
	CoachID            string    `json:"coachId"`
	Plan               string    `json:"plan"`
	Status             string    `json:"status"` // active, trialing, past_due, canceled
	CurrentPeriodStart time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd"`
	PaymentProviderID  string    `json:"paymentProviderId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// IsActiveAt reports whether the coach holds a paid plan at t. A canceled
// plan stays usable until its period ends.
func (s *PaidTierSubscription) IsActiveAt(t time.Time) bool {
	if s == nil || !GetPaidTierPlan(s.Plan).Paid {
		return false
	}
	if s.CurrentPeriodEnd.Before(t) {
		return false
	}
	switch s.Status {
	case "active", "trialing", "past_due", "canceled":
		return true
	}
	return false
}

// GrantPaidTierRequest is the admin input for granting a plan.
type GrantPaidTierRequest struct {
	CoachID string `json:"coachId" validate:"required"`
	Plan    string `json:"plan" validate:"required,oneof=impact scale"`
	Months  int    `json:"months" validate:"required,gte=1,lte=24"`
}
