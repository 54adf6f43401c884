package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/entitlement"
	"github.com/cohere/backend/internal/metrics"
	"github.com/cohere/backend/pkg/payment"
)

// Metadata keys attached to gateway objects at checkout.
const (
	metaClientID       = "clientId"
	metaContributionID = "contributionId"
	metaPaymentOption  = "paymentOption"
)

// PurchaseService resolves client access to contributions and keeps stored
// payment statuses in line with the gateway.
type PurchaseService struct {
	purchases     PurchaseStore
	contributions ContributionStore
	statuses      *StatusResolver
	concurrency   int
	log           *logrus.Entry
	now           func() time.Time
}

func NewPurchaseService(
	purchases PurchaseStore,
	contributions ContributionStore,
	statuses *StatusResolver,
	concurrency int,
	log *logrus.Entry,
) *PurchaseService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PurchaseService{
		purchases:     purchases,
		contributions: contributions,
		statuses:      statuses,
		concurrency:   concurrency,
		log:           log.WithField("component", "purchase_service"),
		now:           time.Now,
	}
}

// ResolveAccess refreshes the client's pending payments and reports whether
// they currently have access to the contribution.
func (s *PurchaseService) ResolveAccess(ctx context.Context, clientID, contributionID string) (*domain.AccessResponse, error) {
	contribution, err := s.contributions.FindByID(ctx, contributionID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load contribution", err)
	}
	if contribution == nil {
		return nil, domain.ErrNotFound("contribution not found")
	}

	purchase, err := s.purchases.FindByClientAndContribution(ctx, clientID, contributionID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load purchase", err)
	}

	checks, _, err := s.refresh(ctx, purchase)
	if err != nil {
		return nil, err
	}

	var sub entitlement.SubscriptionState
	if purchase != nil {
		switch grant := purchase.Grant(); grant.Kind {
		case domain.GrantManual:
			sub = entitlement.SubscriptionState{Status: "active", Check: domain.CheckFresh}
		case domain.GrantSubscription:
			lookup := s.statuses.SubscriptionStatus(ctx, grant.SubscriptionID)
			sub = entitlement.SubscriptionState{Status: lookup.Status, Check: lookup.Check}
		}
	}

	access := entitlement.Resolve(purchase, contribution.Type, sub)
	metrics.AccessResolutions.WithLabelValues(string(contribution.Type), strconv.FormatBool(access.HasAccess)).Inc()

	return &domain.AccessResponse{
		ContributionID:      contributionID,
		HasAccess:           access.HasAccess,
		ActualPaymentStatus: access.ActualPaymentStatus,
		PaymentOption:       access.PaymentOption,
		Grant:               access.Grant,
		SubscriptionStatus:  access.SubscriptionStatus,
		SubscriptionCheck:   sub.Check,
		Payments:            checks,
	}, nil
}

// RefreshPayments looks up every pending payment of purchase concurrently
// and persists the statuses the gateway confirmed. The purchase is updated
// in place.
func (s *PurchaseService) RefreshPayments(ctx context.Context, purchase *domain.Purchase) ([]domain.PaymentCheck, error) {
	checks, _, err := s.refresh(ctx, purchase)
	return checks, err
}

func (s *PurchaseService) refresh(ctx context.Context, purchase *domain.Purchase) ([]domain.PaymentCheck, int, error) {
	if purchase == nil || len(purchase.Payments) == 0 {
		return nil, 0, nil
	}

	var pending []int
	for i := range purchase.Payments {
		if purchase.Payments[i].NeedsRefresh() {
			pending = append(pending, i)
		}
	}

	lookups := make([]domain.StatusLookup, len(pending))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for n, idx := range pending {
		n, idx := n, idx
		g.Go(func() error {
			lookups[n] = s.statuses.PaymentStatus(ctx, &purchase.Payments[idx])
			return nil
		})
	}
	_ = g.Wait()

	checked := make(map[int]domain.StatusCheck, len(pending))
	changed := 0
	for n, idx := range pending {
		lookup := lookups[n]
		checked[idx] = lookup.Check
		if lookup.Check != domain.CheckFresh {
			continue
		}

		pay := &purchase.Payments[idx]
		status := domain.PaymentStatus(lookup.Status)
		if status == pay.Status && pay.StatusCheckedAt != nil {
			continue
		}
		now := s.now().UTC()
		if err := s.purchases.UpdatePaymentStatus(ctx, purchase.ID, pay.ID, status, now); err != nil {
			return nil, changed, domain.ErrInternal("failed to store payment status", err)
		}
		if status != pay.Status {
			s.log.WithFields(logrus.Fields{
				"purchase_id": purchase.ID,
				"payment_id":  pay.ID,
				"from":        pay.Status,
				"to":          status,
			}).Info("payment status updated")
			changed++
		}
		pay.Status = status
		pay.StatusCheckedAt = &now
	}

	checks := make([]domain.PaymentCheck, 0, len(purchase.Payments))
	for i, pay := range purchase.Payments {
		check, ok := checked[i]
		if !ok {
			check = domain.CheckFresh
		}
		checks = append(checks, domain.PaymentCheck{PaymentID: pay.ID, Status: pay.Status, Check: check})
	}
	return checks, changed, nil
}

// ApplyGatewayEvent records the status carried by a webhook event and drops
// the cached lookup for the object it describes.
func (s *PurchaseService) ApplyGatewayEvent(ctx context.Context, evt *payment.Event) error {
	metrics.WebhookEvents.WithLabelValues(string(evt.Kind)).Inc()
	log := s.log.WithFields(logrus.Fields{"event_type": evt.Type, "object_id": evt.ObjectID})

	switch evt.Kind {
	case payment.KindPaymentIntent:
		keys := []string{PaymentIntentKey(evt.ObjectID)}
		if evt.InvoiceID != "" {
			keys = append(keys, InvoiceKey(evt.InvoiceID))
		}
		s.statuses.Invalidate(ctx, keys...)
		return s.applyPaymentEvent(ctx, log, evt, evt.ObjectID, evt.InvoiceID)
	case payment.KindInvoice:
		s.statuses.Invalidate(ctx, InvoiceKey(evt.ObjectID))
		return s.applyPaymentEvent(ctx, log, evt, "", evt.ObjectID)
	case payment.KindSubscription:
		s.statuses.Invalidate(ctx, SubscriptionKey(evt.ObjectID))
		log.WithField("status", evt.Status).Info("subscription status changed")
		return nil
	default:
		log.Debug("ignoring gateway event")
		return nil
	}
}

func (s *PurchaseService) applyPaymentEvent(ctx context.Context, log *logrus.Entry, evt *payment.Event, transactionID, invoiceID string) error {
	if evt.Status == "" {
		return nil
	}
	status := domain.PaymentStatus(evt.Status)
	now := s.now().UTC()

	existing, err := s.purchases.FindByPaymentRef(ctx, transactionID, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to find purchase for event: %w", err)
	}
	if existing != nil {
		if pay := existing.FindPayment(transactionID, invoiceID); pay != nil {
			if pay.Status.IsSettled() && !status.IsSettled() {
				log.WithFields(logrus.Fields{"payment_id": pay.ID, "stored": pay.Status, "status": status}).
					Info("ignoring out-of-order event for settled payment")
				return nil
			}
			if err := s.purchases.UpdatePaymentStatus(ctx, existing.ID, pay.ID, status, now); err != nil {
				return fmt.Errorf("failed to apply event: %w", err)
			}
			log.WithFields(logrus.Fields{"payment_id": pay.ID, "status": status}).Info("payment status applied from event")
			return nil
		}
	}

	target, option, err := s.eventTarget(ctx, evt)
	if err != nil {
		return err
	}
	if target == nil {
		log.Warn("no purchase matches gateway event")
		return nil
	}

	pay := domain.PurchasePayment{
		ID:              domain.NewID(),
		Amount:          evt.Amount,
		Currency:        strings.ToUpper(evt.Currency),
		PaymentOption:   option,
		Status:          status,
		DateTimeCharged: evt.Created,
		TransactionID:   transactionID,
		InvoiceID:       invoiceID,
		StatusCheckedAt: &now,
	}
	if pay.DateTimeCharged.IsZero() {
		pay.DateTimeCharged = now
	}
	if err := s.purchases.AppendPayment(ctx, target, pay); err != nil {
		return fmt.Errorf("failed to record payment from event: %w", err)
	}
	log.WithFields(logrus.Fields{
		"client_id":       target.ClientID,
		"contribution_id": target.ContributionID,
		"status":          status,
	}).Info("payment recorded from event")
	return nil
}

// eventTarget finds the purchase an unseen payment belongs to, using the
// checkout metadata or, for subscription invoices, the subscription id.
func (s *PurchaseService) eventTarget(ctx context.Context, evt *payment.Event) (*domain.Purchase, domain.PaymentOption, error) {
	option := domain.PaymentOption(evt.Metadata[metaPaymentOption])

	if evt.SubscriptionID != "" {
		p, err := s.purchases.FindBySubscriptionID(ctx, evt.SubscriptionID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to find purchase by subscription: %w", err)
		}
		if p != nil {
			if option == "" && len(p.Payments) > 0 {
				option = p.Payments[len(p.Payments)-1].PaymentOption
			}
			return p, option, nil
		}
	}

	clientID, contributionID := evt.Metadata[metaClientID], evt.Metadata[metaContributionID]
	if clientID == "" || contributionID == "" {
		return nil, "", nil
	}
	contribution, err := s.contributions.FindByID(ctx, contributionID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load contribution for event: %w", err)
	}
	if contribution == nil {
		return nil, "", nil
	}
	return &domain.Purchase{
		ClientID:         clientID,
		ContributionID:   contributionID,
		ContributionType: contribution.Type,
		SubscriptionID:   evt.SubscriptionID,
	}, option, nil
}

// ReconcilePending refreshes every purchase with a pending payment charged
// after since and returns how many stored statuses changed.
func (s *PurchaseService) ReconcilePending(ctx context.Context, since time.Time) (int, error) {
	purchases, err := s.purchases.FindWithPendingPayments(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending purchases: %w", err)
	}

	total := 0
	for _, p := range purchases {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		_, changed, err := s.refresh(ctx, p)
		total += changed
		if err != nil {
			s.log.WithError(err).WithField("purchase_id", p.ID).Error("failed to reconcile purchase")
		}
	}
	metrics.ReconciledPayments.Add(float64(total))

	s.log.WithFields(logrus.Fields{"purchases": len(purchases), "changed": total}).Info("reconciliation finished")
	return total, nil
}
