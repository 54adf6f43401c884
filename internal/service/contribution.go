package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cohere/backend/internal/domain"
)

type ContributionService struct {
	repo     ContributionStore
	validate *validator.Validate
}

func NewContributionService(repo ContributionStore) *ContributionService {
	return &ContributionService{repo: repo, validate: validator.New()}
}

func (s *ContributionService) Create(ctx context.Context, coachID string, req *domain.CreateContributionRequest) (*domain.Contribution, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrFromValidation(err)
	}

	now := time.Now().UTC()
	c := &domain.Contribution{
		ID:        domain.NewID(),
		UserID:    coachID,
		Title:     req.Title,
		Type:      req.Type,
		Status:    "Approved",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, domain.ErrInternal("failed to create contribution", err)
	}
	return c, nil
}

func (s *ContributionService) Get(ctx context.Context, id string) (*domain.Contribution, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to load contribution", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound("contribution not found")
	}
	return c, nil
}
