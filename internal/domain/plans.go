package domain

// PaidTierPlan is a platform plan a coach can hold.
type PaidTierPlan struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PriceUSD int    `json:"priceUsd"` // Monthly price in USD cents
	Paid     bool   `json:"paid"`     // Unlocks coupons and other coach-side features
	Popular  bool   `json:"popular"`
}

// AvailablePaidTierPlans returns all platform plans.
func AvailablePaidTierPlans() []PaidTierPlan {
	return []PaidTierPlan{
		{ID: "launch", Name: "Launch", PriceUSD: 0},
		{ID: "impact", Name: "Impact", PriceUSD: 4900, Paid: true, Popular: true},
		{ID: "scale", Name: "Scale", PriceUSD: 14900, Paid: true},
	}
}

// GetPaidTierPlan returns the plan for a given ID, or the free plan if not found.
func GetPaidTierPlan(id string) PaidTierPlan {
	for _, p := range AvailablePaidTierPlans() {
		if p.ID == id {
			return p
		}
	}
	return AvailablePaidTierPlans()[0]
}
