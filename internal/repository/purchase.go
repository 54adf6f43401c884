package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cohere/backend/internal/domain"
)

// settledStatuses are never refreshed against the gateway.
var settledStatuses = bson.A{
	domain.StatusSucceeded, domain.StatusPaid, domain.StatusCanceled,
	domain.StatusVoid, domain.StatusUncollectible,
}

type PurchaseRepository struct {
	coll *mongo.Collection
}

func NewPurchaseRepository(db *mongo.Database) *PurchaseRepository {
	return &PurchaseRepository{coll: db.Collection(purchasesCollection)}
}

func (r *PurchaseRepository) FindByClientAndContribution(ctx context.Context, clientID, contributionID string) (*domain.Purchase, error) {
	return r.findOne(ctx, bson.M{"clientId": clientID, "contributionId": contributionID})
}

func (r *PurchaseRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Purchase, error) {
	return r.findOne(ctx, bson.M{"subscriptionId": subscriptionID})
}

// FindByPaymentRef returns the purchase holding a payment with the given
// payment intent or invoice id.
func (r *PurchaseRepository) FindByPaymentRef(ctx context.Context, transactionID, invoiceID string) (*domain.Purchase, error) {
	var or bson.A
	if transactionID != "" {
		or = append(or, bson.M{"payments.transactionId": transactionID})
	}
	if invoiceID != "" {
		or = append(or, bson.M{"payments.invoiceId": invoiceID})
	}
	if len(or) == 0 {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"$or": or})
}

// AppendPayment adds a payment to the client's purchase of a contribution,
// creating the purchase when it does not exist yet.
func (r *PurchaseRepository) AppendPayment(ctx context.Context, p *domain.Purchase, payment domain.PurchasePayment) error {
	now := time.Now().UTC()
	set := bson.M{"updatedAt": now}
	if p.SubscriptionID != "" {
		set["subscriptionId"] = p.SubscriptionID
	}
	update := bson.M{
		"$push": bson.M{"payments": payment},
		"$set":  set,
		"$setOnInsert": bson.M{
			"_id":              domain.NewID(),
			"contributionType": p.ContributionType,
			"splitNumbers":     p.SplitNumbers,
			"createdAt":        now,
		},
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"clientId": p.ClientID, "contributionId": p.ContributionID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

// UpdatePaymentStatus stores a confirmed gateway status on one payment.
func (r *PurchaseRepository) UpdatePaymentStatus(ctx context.Context, purchaseID, paymentID string, status domain.PaymentStatus, checkedAt time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": purchaseID, "payments.id": paymentID},
		bson.M{"$set": bson.M{
			"payments.$.paymentStatus":   status,
			"payments.$.statusCheckedAt": checkedAt,
			"updatedAt":                  time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// FindWithPendingPayments returns purchases holding a payment that is not
// settled and was charged after since.
func (r *PurchaseRepository) FindWithPendingPayments(ctx context.Context, since time.Time) ([]*domain.Purchase, error) {
	filter := bson.M{"payments": bson.M{"$elemMatch": bson.M{
		"paymentStatus":   bson.M{"$nin": settledStatuses},
		"dateTimeCharged": bson.M{"$gte": since},
	}}}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending purchases: %w", err)
	}
	defer cursor.Close(ctx)

	var purchases []*domain.Purchase
	if err := cursor.All(ctx, &purchases); err != nil {
		return nil, fmt.Errorf("failed to decode purchases: %w", err)
	}
	return purchases, nil
}

func (r *PurchaseRepository) findOne(ctx context.Context, filter bson.M) (*domain.Purchase, error) {
	var p domain.Purchase
	err := r.coll.FindOne(ctx, filter).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return &p, nil
}
