package domain

import "time"

// Coupon is the local mirror of a gateway discount definition.
type Coupon struct {
	ID               string     `json:"id" bson:"_id"`
	Name             string     `json:"name" bson:"name"`
	CoachID          string     `json:"coachId" bson:"coachId"`
	PercentOff       float64    `json:"percentOff,omitempty" bson:"percentOff,omitempty"`
	AmountOff        int64      `json:"amountOff,omitempty" bson:"amountOff,omitempty"`
	Currency         string     `json:"currency,omitempty" bson:"currency,omitempty"`
	Duration         string     `json:"duration" bson:"duration"`
	DurationInMonths int64      `json:"durationInMonths,omitempty" bson:"durationInMonths,omitempty"`
	MaxRedemptions   int64      `json:"maxRedemptions,omitempty" bson:"maxRedemptions,omitempty"`
	RedeemBy         *time.Time `json:"redeemBy,omitempty" bson:"redeemBy,omitempty"`
	CreatedAt        time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// CreateCouponRequest is the validated input for creating a coupon.
// Exactly one of PercentOff and AmountOff must be set.
type CreateCouponRequest struct {
	Name             string     `json:"name" validate:"required,min=2,max=40"`
	PercentOff       float64    `json:"percentOff" validate:"gte=0,lte=100"`
	AmountOff        int64      `json:"amountOff" validate:"gte=0"`
	Currency         string     `json:"currency" validate:"omitempty,len=3"`
	Duration         string     `json:"duration" validate:"required,oneof=once repeating forever"`
	DurationInMonths int64      `json:"durationInMonths" validate:"gte=0"`
	MaxRedemptions   int64      `json:"maxRedemptions" validate:"gte=0"`
	RedeemBy         *time.Time `json:"redeemBy"`
}

// UpdateCouponRequest only carries what the gateway allows to change.
type UpdateCouponRequest struct {
	Name string `json:"name" validate:"required,min=2,max=40"`
}

// ValidateCouponRequest asks whether a code applies to a purchase.
type ValidateCouponRequest struct {
	ContributionID string        `json:"contributionId" validate:"required"`
	CouponID       string        `json:"couponId" validate:"required_without=Name"`
	Name           string        `json:"name" validate:"required_without=CouponID"`
	PaymentOption  PaymentOption `json:"paymentOption" validate:"required"`
}

// Discount describes a redeemable coupon. Exactly one of PercentOff and
// AmountOff is non-zero.
type Discount struct {
	CouponID         string  `json:"couponId"`
	Name             string  `json:"name"`
	PercentOff       float64 `json:"percentOff,omitempty"`
	AmountOff        int64   `json:"amountOff,omitempty"`
	Currency         string  `json:"currency,omitempty"`
	Duration         string  `json:"duration"`
	DurationInMonths int64   `json:"durationInMonths,omitempty"`
}

// CouponValidationResponse is the API response for a validation request.
type CouponValidationResponse struct {
	Valid    bool      `json:"valid"`
	Discount *Discount `json:"discount,omitempty"`
}
