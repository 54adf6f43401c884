// Package entitlement decides whether a purchase currently grants access to
// a contribution. It performs no I/O: gateway statuses are refreshed by the
// caller before Resolve runs.
package entitlement

import "github.com/cohere/backend/internal/domain"

// SubscriptionState is the looked-up status of the purchase's subscription.
type SubscriptionState struct {
	Status string
	Check  domain.StatusCheck
}

// Access is the effective access state of a client on a contribution.
type Access struct {
	HasAccess           bool
	ActualPaymentStatus domain.PaymentStatus
	PaymentOption       domain.PaymentOption
	Grant               domain.GrantKind
	SubscriptionStatus  string
}

// Resolve computes access for purchase on a contribution of type t.
// Membership and community access depends only on the subscription status;
// everything else depends only on payments.
func Resolve(purchase *domain.Purchase, t domain.ContributionType, sub SubscriptionState) Access {
	if purchase == nil {
		return Access{Grant: domain.GrantNone}
	}
	grant := purchase.Grant()

	if t.IsSubscriptionBased() {
		status := sub.Status
		switch grant.Kind {
		case domain.GrantManual:
			status = "active"
		case domain.GrantNone:
			return Access{Grant: grant.Kind}
		}
		return Access{
			HasAccess:           status == "active" || status == "trialing",
			ActualPaymentStatus: SubscriptionPaymentStatus(status),
			Grant:               grant.Kind,
			SubscriptionStatus:  status,
		}
	}

	access := Access{Grant: grant.Kind}
	if grant.Kind == domain.GrantManual {
		access.SubscriptionStatus = "active"
	} else if grant.Kind == domain.GrantSubscription {
		access.SubscriptionStatus = sub.Status
	}

	latest := latestPayment(purchase.Payments, t)
	if latest == nil {
		return access
	}
	access.PaymentOption = latest.PaymentOption
	access.ActualPaymentStatus = latest.Status.Normalize()

	for i := range purchase.Payments {
		p := &purchase.Payments[i]
		if p.PaymentOption == latest.PaymentOption && p.Status.IsSucceeded() {
			access.HasAccess = true
			access.ActualPaymentStatus = domain.StatusSucceeded
			break
		}
	}
	return access
}

// latestPayment returns the most recently charged payment whose option is
// relevant to t. On equal charge times a succeeded payment wins, then the
// later one in the list.
func latestPayment(payments []domain.PurchasePayment, t domain.ContributionType) *domain.PurchasePayment {
	var best *domain.PurchasePayment
	for i := range payments {
		p := &payments[i]
		if !t.AcceptsOption(p.PaymentOption) {
			continue
		}
		switch {
		case best == nil, p.DateTimeCharged.After(best.DateTimeCharged):
			best = p
		case p.DateTimeCharged.Equal(best.DateTimeCharged):
			if p.Status.IsSucceeded() || !best.Status.IsSucceeded() {
				best = p
			}
		}
	}
	return best
}

// SubscriptionPaymentStatus projects a gateway subscription status onto the
// payment status vocabulary.
func SubscriptionPaymentStatus(status string) domain.PaymentStatus {
	switch status {
	case "active":
		return domain.StatusSucceeded
	case "trialing":
		return domain.StatusTrialing
	case "past_due", "unpaid", "incomplete":
		return domain.StatusRequiresPaymentMethod
	case "canceled", "incomplete_expired":
		return domain.StatusCanceled
	default:
		return domain.StatusProcessing
	}
}
