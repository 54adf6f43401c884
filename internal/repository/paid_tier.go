package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cohere/backend/internal/domain"
)

type PaidTierRepository struct {
	db *pgxpool.Pool
}

func NewPaidTierRepository(db *pgxpool.Pool) *PaidTierRepository {
	return &PaidTierRepository{db: db}
}

func (r *PaidTierRepository) Create(ctx context.Context, sub *domain.PaidTierSubscription) error {
	query := `
		INSERT INTO paid_tier_subscriptions (id, coach_id, plan, status, current_period_start, current_period_end, payment_provider_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.CoachID, sub.Plan, sub.Status,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.PaymentProviderID,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create paid tier subscription: %w", err)
	}
	return nil
}

// FindLatestByCoach returns the coach's most recently created plan in any status.
func (r *PaidTierRepository) FindLatestByCoach(ctx context.Context, coachID string) (*domain.PaidTierSubscription, error) {
	query := `
		SELECT id, coach_id, plan, status, current_period_start, current_period_end, COALESCE(payment_provider_id, ''), created_at, updated_at
		FROM paid_tier_subscriptions WHERE coach_id = $1 ORDER BY created_at DESC LIMIT 1
	`
	row := r.db.QueryRow(ctx, query, coachID)
	var sub domain.PaidTierSubscription
	err := row.Scan(
		&sub.ID, &sub.CoachID, &sub.Plan, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.PaymentProviderID,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find paid tier subscription: %w", err)
	}
	return &sub, nil
}
