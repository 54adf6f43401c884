package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cohere/backend/internal/domain"
)

type AvailabilityRepository struct {
	coll *mongo.Collection
}

func NewAvailabilityRepository(db *mongo.Database) *AvailabilityRepository {
	return &AvailabilityRepository{coll: db.Collection(availabilityCollection)}
}

// FindBookedBetween returns every booked sub-slot of windows overlapping [from, to).
func (r *AvailabilityRepository) FindBookedBetween(ctx context.Context, contributionID string, from, to time.Time) ([]domain.BookedTime, error) {
	filter := bson.M{
		"contributionId": contributionID,
		"startTime":      bson.M{"$lt": to},
		"endTime":        bson.M{"$gt": from},
	}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find availability: %w", err)
	}
	defer cursor.Close(ctx)

	var windows []domain.AvailabilityTime
	if err := cursor.All(ctx, &windows); err != nil {
		return nil, fmt.Errorf("failed to decode availability: %w", err)
	}

	var booked []domain.BookedTime
	for _, w := range windows {
		booked = append(booked, w.BookedTimes...)
	}
	return booked, nil
}

// Book adds b to the window starting at windowStart. It reports false when a
// sub-slot overlapping b is already booked.
func (r *AvailabilityRepository) Book(ctx context.Context, contributionID string, windowStart, windowEnd time.Time, b domain.BookedTime) (bool, error) {
	filter := bson.M{
		"contributionId": contributionID,
		"startTime":      windowStart,
		"bookedTimes": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"startTime": bson.M{"$lt": b.EndTime},
			"endTime":   bson.M{"$gt": b.StartTime},
		}}},
	}
	update := bson.M{
		"$push": bson.M{"bookedTimes": b},
		"$setOnInsert": bson.M{
			"_id":     domain.NewID(),
			"endTime": windowEnd,
		},
	}

	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// The overlap guard failed to match an existing window, so the
		// upsert collided with the unique (contributionId, startTime) index.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to book slot: %w", err)
	}
	return true, nil
}
