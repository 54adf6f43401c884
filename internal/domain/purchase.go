package domain

import "time"

// PaymentOption is the pricing structure a client chose.
type PaymentOption string

const (
	EntireCourse               PaymentOption = "EntireCourse"
	PerSession                 PaymentOption = "PerSession"
	SplitPayments              PaymentOption = "SplitPayments"
	SessionsPackage            PaymentOption = "SessionsPackage"
	MonthlySessionSubscription PaymentOption = "MonthlySessionSubscription"
	MonthlyMembership          PaymentOption = "MonthlyMembership"
	YearlyMembership           PaymentOption = "YearlyMembership"
	MembershipPackage          PaymentOption = "MembershipPackage"
	Trial                      PaymentOption = "Trial"
	Free                       PaymentOption = "Free"
)

// IsPaid reports whether the option involves charging the client.
func (o PaymentOption) IsPaid() bool {
	return o != "" && o != Free && o != Trial
}

// PaymentStatus mirrors the gateway's payment intent and invoice statuses.
type PaymentStatus string

const (
	StatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	StatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	StatusRequiresAction        PaymentStatus = "requires_action"
	StatusProcessing            PaymentStatus = "processing"
	StatusRequiresCapture       PaymentStatus = "requires_capture"
	StatusCanceled              PaymentStatus = "canceled"
	StatusSucceeded             PaymentStatus = "succeeded"

	StatusDraft         PaymentStatus = "draft"
	StatusOpen          PaymentStatus = "open"
	StatusPaid          PaymentStatus = "paid"
	StatusUncollectible PaymentStatus = "uncollectible"
	StatusVoid          PaymentStatus = "void"

	// StatusTrialing only appears when a subscription status is projected
	// onto a payment status.
	StatusTrialing PaymentStatus = "trialing"
)

// IsSucceeded treats a paid invoice the same as a succeeded payment intent.
func (s PaymentStatus) IsSucceeded() bool {
	return s == StatusSucceeded || s == StatusPaid
}

// IsSettled reports whether the gateway will not change the status any more.
func (s PaymentStatus) IsSettled() bool {
	switch s {
	case StatusSucceeded, StatusPaid, StatusCanceled, StatusVoid, StatusUncollectible:
		return true
	}
	return false
}

// Normalize folds invoice vocabulary into the payment intent vocabulary.
func (s PaymentStatus) Normalize() PaymentStatus {
	if s == StatusPaid {
		return StatusSucceeded
	}
	return s
}

// PurchasePayment is a single charge attempt.
type PurchasePayment struct {
	ID              string        `json:"id" bson:"id"`
	Amount          int64         `json:"amount" bson:"amount"`
	Currency        string        `json:"currency" bson:"currency"`
	PaymentOption   PaymentOption `json:"paymentOption" bson:"paymentOption"`
	Status          PaymentStatus `json:"paymentStatus" bson:"paymentStatus"`
	DateTimeCharged time.Time     `json:"dateTimeCharged" bson:"dateTimeCharged"`
	TransactionID   string        `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	InvoiceID       string        `json:"invoiceId,omitempty" bson:"invoiceId,omitempty"`
	IsTrial         bool          `json:"isTrial,omitempty" bson:"isTrial,omitempty"`
	StatusCheckedAt *time.Time    `json:"statusCheckedAt,omitempty" bson:"statusCheckedAt,omitempty"`
}

// NeedsRefresh reports whether the gateway may still move this payment.
func (p *PurchasePayment) NeedsRefresh() bool {
	return !p.Status.IsSettled() && (p.TransactionID != "" || p.InvoiceID != "")
}

// legacyManualSubscriptionID marks purchases whose access was granted by hand.
const legacyManualSubscriptionID = "-2"

// GrantKind tags how a purchase obtains recurring access.
type GrantKind string

const (
	GrantNone         GrantKind = "none"
	GrantManual       GrantKind = "manual"
	GrantSubscription GrantKind = "subscription"
)

// AccessGrant is the source of recurring access on a purchase.
type AccessGrant struct {
	Kind           GrantKind
	SubscriptionID string
}

// Purchase is the single authoritative record of a client's payments
// against one contribution.
type Purchase struct {
	ID               string            `json:"id" bson:"_id"`
	ClientID         string            `json:"clientId" bson:"clientId"`
	ContributionID   string            `json:"contributionId" bson:"contributionId"`
	ContributionType ContributionType  `json:"contributionType" bson:"contributionType"`
	SubscriptionID   string            `json:"subscriptionId,omitempty" bson:"subscriptionId,omitempty"`
	SplitNumbers     int               `json:"splitNumbers,omitempty" bson:"splitNumbers,omitempty"`
	Payments         []PurchasePayment `json:"payments" bson:"payments"`
	CreatedAt        time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// Grant decodes the stored subscription reference.
func (p *Purchase) Grant() AccessGrant {
	switch p.SubscriptionID {
	case "":
		return AccessGrant{Kind: GrantNone}
	case legacyManualSubscriptionID:
		return AccessGrant{Kind: GrantManual}
	default:
		return AccessGrant{Kind: GrantSubscription, SubscriptionID: p.SubscriptionID}
	}
}

// FindPayment returns the payment carrying the given transaction or invoice id.
func (p *Purchase) FindPayment(transactionID, invoiceID string) *PurchasePayment {
	for i := range p.Payments {
		pay := &p.Payments[i]
		if transactionID != "" && pay.TransactionID == transactionID {
			return pay
		}
		if invoiceID != "" && pay.InvoiceID == invoiceID {
			return pay
		}
	}
	return nil
}

// StatusCheck tells callers how trustworthy a looked-up status is.
type StatusCheck string

const (
	CheckFresh       StatusCheck = "fresh"
	CheckStale       StatusCheck = "stale"
	CheckUnavailable StatusCheck = "unavailable"
)

// StatusLookup is the outcome of asking the gateway for a status.
type StatusLookup struct {
	Check  StatusCheck `json:"check"`
	Status string      `json:"status,omitempty"`
}

func Fresh(status string) StatusLookup { return StatusLookup{Check: CheckFresh, Status: status} }
func Stale(status string) StatusLookup { return StatusLookup{Check: CheckStale, Status: status} }
func Unavailable() StatusLookup        { return StatusLookup{Check: CheckUnavailable} }

// PaymentCheck reports the refresh result for one payment.
type PaymentCheck struct {
	PaymentID string        `json:"paymentId"`
	Status    PaymentStatus `json:"paymentStatus"`
	Check     StatusCheck   `json:"check"`
}

// AccessResponse is the API response for an access check.
type AccessResponse struct {
	ContributionID      string         `json:"contributionId"`
	HasAccess           bool           `json:"hasAccess"`
	ActualPaymentStatus PaymentStatus  `json:"actualPaymentStatus,omitempty"`
	PaymentOption       PaymentOption  `json:"paymentOption,omitempty"`
	Grant               GrantKind      `json:"grant"`
	SubscriptionStatus  string         `json:"subscriptionStatus,omitempty"`
	SubscriptionCheck   StatusCheck    `json:"subscriptionCheck,omitempty"`
	Payments            []PaymentCheck `json:"payments,omitempty"`
}
