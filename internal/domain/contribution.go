package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContributionType is the kind of offering a coach sells.
type ContributionType string

const (
	ContributionCourse     ContributionType = "ContributionCourse"
	ContributionOneToOne   ContributionType = "ContributionOneToOne"
	ContributionMembership ContributionType = "ContributionMembership"
	ContributionCommunity  ContributionType = "ContributionCommunity"
)

// IsSubscriptionBased reports whether access follows a recurring subscription
// rather than individual payments.
func (t ContributionType) IsSubscriptionBased() bool {
	return t == ContributionMembership || t == ContributionCommunity
}

// Valid reports whether t is a known contribution type.
func (t ContributionType) Valid() bool {
	switch t {
	case ContributionCourse, ContributionOneToOne, ContributionMembership, ContributionCommunity:
		return true
	}
	return false
}

var relevantOptions = map[ContributionType][]PaymentOption{
	ContributionCourse:     {EntireCourse, SplitPayments, Free},
	ContributionOneToOne:   {PerSession, SessionsPackage, MonthlySessionSubscription, Free},
	ContributionMembership: {MonthlyMembership, YearlyMembership, MembershipPackage, Trial, Free},
	ContributionCommunity:  {MonthlyMembership, YearlyMembership, MembershipPackage, Trial, Free},
}

// AcceptsOption reports whether a payment made with option counts toward
// this contribution type.
func (t ContributionType) AcceptsOption(option PaymentOption) bool {
	for _, o := range relevantOptions[t] {
		if o == option {
			return true
		}
	}
	return false
}

// Contribution is a sellable offering created by a coach.
type Contribution struct {
	ID        string           `json:"id" bson:"_id"`
	UserID    string           `json:"userId" bson:"userId"`
	Title     string           `json:"title" bson:"title"`
	Type      ContributionType `json:"type" bson:"type"`
	Status    string           `json:"status" bson:"status"`
	Schedule  *Schedule        `json:"schedule,omitempty" bson:"schedule,omitempty"`
	CreatedAt time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// CreateContributionRequest is the validated input for creating a contribution.
type CreateContributionRequest struct {
	Title string           `json:"title" validate:"required,min=1,max=200"`
	Type  ContributionType `json:"type" validate:"required,oneof=ContributionCourse ContributionOneToOne ContributionMembership ContributionCommunity"`
}

// NewID generates a new document id.
func NewID() string {
	return uuid.New().String()
}
