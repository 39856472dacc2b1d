package services

import (
	"context"
	"fmt"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/store"
	"github.com/natours/api/internal/validation"
	"github.com/natours/api/types"
)

const (
	tourNotFound = "No tour found with that ID"

	// statsMinRating limits tour statistics to well rated tours.
	statsMinRating = 4.5
)

// TourRepository defines persistence operations for tours.
type TourRepository interface {
	List(ctx context.Context, q apifeatures.Query) ([]types.Tour, error)
	Get(ctx context.Context, id int64) (types.Tour, error)
	Create(ctx context.Context, tour types.Tour) (types.Tour, error)
	CreateMany(ctx context.Context, tours []types.Tour) (int, error)
	Update(ctx context.Context, tour types.Tour) (types.Tour, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context, minRating float64) ([]store.DifficultyStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]store.MonthPlan, error)
}

// TourService encapsulates tour use-cases.
type TourService struct {
	repo TourRepository
}

func NewTourService(repo TourRepository) *TourService {
	return &TourService{repo: repo}
}

func (s *TourService) List(ctx context.Context, q apifeatures.Query) ([]types.Tour, error) {
	tours, err := s.repo.List(ctx, q)
	return tours, fromStore(err, tourNotFound)
}

func (s *TourService) Get(ctx context.Context, id int64) (types.Tour, error) {
	tour, err := s.repo.Get(ctx, id)
	return tour, fromStore(err, tourNotFound)
}

func (s *TourService) Create(ctx context.Context, tour types.Tour) (types.Tour, error) {
	tour, err := prepareTour(tour)
	if err != nil {
		return types.Tour{}, err
	}
	created, err := s.repo.Create(ctx, tour)
	return created, fromStore(err, tourNotFound)
}

// Import validates every tour before inserting any of them.
func (s *TourService) Import(ctx context.Context, tours []types.Tour) (int, error) {
	prepared := make([]types.Tour, len(tours))
	for i, tour := range tours {
		p, err := prepareTour(tour)
		if err != nil {
			return 0, fmt.Errorf("tour %d (%s): %w", i, tour.Name, err)
		}
		prepared[i] = p
	}
	n, err := s.repo.CreateMany(ctx, prepared)
	return n, fromStore(err, tourNotFound)
}

// Update loads the tour, lets apply change it and stores the result. The
// id, creation time and version cannot be changed by apply.
func (s *TourService) Update(ctx context.Context, id int64, apply func(*types.Tour) error) (types.Tour, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return types.Tour{}, err
	}

	next := current
	if err := apply(&next); err != nil {
		return types.Tour{}, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version

	next, err = prepareTour(next)
	if err != nil {
		return types.Tour{}, err
	}
	updated, err := s.repo.Update(ctx, next)
	return updated, fromStore(err, tourNotFound)
}

func (s *TourService) Delete(ctx context.Context, id int64) error {
	return fromStore(s.repo.Delete(ctx, id), tourNotFound)
}

func (s *TourService) DeleteAll(ctx context.Context) (int64, error) {
	return s.repo.DeleteAll(ctx)
}

func (s *TourService) Stats(ctx context.Context) ([]store.DifficultyStats, error) {
	return s.repo.Stats(ctx, statsMinRating)
}

func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]store.MonthPlan, error) {
	if year < 1 || year > 9999 {
		return nil, apperr.Validationf("Invalid year: %d", year)
	}
	return s.repo.MonthlyPlan(ctx, year)
}

func prepareTour(tour types.Tour) (types.Tour, error) {
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = types.DefaultRatingsAverage
	}
	if err := validation.Struct(&tour); err != nil {
		return types.Tour{}, err
	}
	return tour, nil
}
