package services

import (
	"context"
	"errors"
	"strings"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/store"
	"github.com/natours/api/internal/validation"
	"github.com/natours/api/types"
)

const reviewNotFound = "No review found with that ID"

// ErrAlreadyReviewed is returned for a second review of the same tour.
var ErrAlreadyReviewed = apperr.Conflict("You have already reviewed this tour")

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	List(ctx context.Context, q apifeatures.Query, tourID int64) ([]types.Review, error)
	Get(ctx context.Context, id int64) (types.Review, error)
	Create(ctx context.Context, review types.Review) (types.Review, error)
	Delete(ctx context.Context, id int64) error
}

// ReviewService encapsulates review use-cases.
type ReviewService struct {
	repo ReviewRepository
}

func NewReviewService(repo ReviewRepository) *ReviewService {
	return &ReviewService{repo: repo}
}

// List returns reviews, all of them or those of tourID when non-zero.
func (s *ReviewService) List(ctx context.Context, q apifeatures.Query, tourID int64) ([]types.Review, error) {
	reviews, err := s.repo.List(ctx, q, tourID)
	return reviews, fromStore(err, reviewNotFound)
}

func (s *ReviewService) Get(ctx context.Context, id int64) (types.Review, error) {
	review, err := s.repo.Get(ctx, id)
	return review, fromStore(err, reviewNotFound)
}

func (s *ReviewService) Create(ctx context.Context, review types.Review) (types.Review, error) {
	review.Review = strings.TrimSpace(review.Review)
	if err := validation.Struct(&review); err != nil {
		return types.Review{}, err
	}
	created, err := s.repo.Create(ctx, review)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return types.Review{}, ErrAlreadyReviewed.Wrap(err)
	case errors.Is(err, store.ErrMissingReference):
		return types.Review{}, &apperr.Error{Kind: apperr.KindNotFound, Message: tourNotFound, Err: err}
	}
	return created, fromStore(err, reviewNotFound)
}

func (s *ReviewService) Delete(ctx context.Context, id int64) error {
	return fromStore(s.repo.Delete(ctx, id), reviewNotFound)
}
