package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cohere/backend/internal/domain"
)

type ContributionRepository struct {
	coll *mongo.Collection
}

func NewContributionRepository(db *mongo.Database) *ContributionRepository {
	return &ContributionRepository{coll: db.Collection(contributionsCollection)}
}

func (r *ContributionRepository) Create(ctx context.Context, c *domain.Contribution) error {
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to create contribution: %w", err)
	}
	return nil
}

func (r *ContributionRepository) FindByID(ctx context.Context, id string) (*domain.Contribution, error) {
	var c domain.Contribution
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find contribution: %w", err)
	}
	return &c, nil
}

func (r *ContributionRepository) UpdateSchedule(ctx context.Context, id string, schedule *domain.Schedule) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"schedule": schedule, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return nil
}
