package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	contributionsCollection = "contributions"
	purchasesCollection     = "purchases"
	couponsCollection       = "coupons"
	availabilityCollection  = "availability_times"
)

// NewMongo connects to MongoDB and returns the application database.
func NewMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client.Database(database), nil
}

// EnsureIndexes creates the indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		contributionsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		purchasesCollection: {
			{
				Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "contributionId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "subscriptionId", Value: 1}}},
			{Keys: bson.D{{Key: "payments.transactionId", Value: 1}}},
			{Keys: bson.D{{Key: "payments.invoiceId", Value: 1}}},
			{Keys: bson.D{{Key: "payments.paymentStatus", Value: 1}, {Key: "payments.dateTimeCharged", Value: 1}}},
		},
		couponsCollection: {
			{
				Keys:    bson.D{{Key: "coachId", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		availabilityCollection: {
			{
				Keys:    bson.D{{Key: "contributionId", Value: 1}, {Key: "startTime", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}
