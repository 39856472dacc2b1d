package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/types"
)

var reviewResource = resource{
	from: "reviews r JOIN tours t ON t.id = r.tour_id JOIN users u ON u.id = r.user_id",
	fields: []string{
		"id", "review", "rating", "createdAt", "tourId", "userId",
		"tourName", "userName", "userPhoto", "version",
	},
	columns: map[string]column{
		"id":        {name: "r.id"},
		"review":    {name: "r.review"},
		"rating":    {name: "r.rating"},
		"createdAt": {name: "r.created_at"},
		"tourId":    {name: "r.tour_id"},
		"userId":    {name: "r.user_id"},
		"tourName":  {name: "t.name"},
		"userName":  {name: "u.name"},
		"userPhoto": {name: "u.photo"},
		"version":   {name: "r.version"},
	},
}

// refreshTourRatings recomputes a tour's rating summary from its reviews.
const refreshTourRatings = `
	UPDATE tours
	SET ratings_quantity = s.quantity,
		ratings_average = s.average
	FROM (
		SELECT COUNT(1) AS quantity,
			COALESCE(ROUND(AVG(rating)::numeric, 1)::float8, $2) AS average
		FROM reviews
		WHERE tour_id = $1
	) s
	WHERE tours.id = $1`

// ReviewRepository handles persistence for reviews. Writes keep the
// parent tour's ratingsAverage and ratingsQuantity current.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// List returns reviews matching q, scoped to tourID when it is non-zero.
func (r *ReviewRepository) List(ctx context.Context, q apifeatures.Query, tourID int64) ([]types.Review, error) {
	var preds []predicate
	if tourID != 0 {
		preds = append(preds, predicate{column: "r.tour_id", value: tourID})
	}
	stmt := buildSelect(reviewResource, q, preds...)
	rows, err := r.db.QueryContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	reviews := make([]types.Review, 0)
	for rows.Next() {
		var review types.Review
		dest := make([]any, len(stmt.fields))
		for i, field := range stmt.fields {
			dest[i] = reviewField(&review, field)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return reviews, nil
}

func (r *ReviewRepository) Get(ctx context.Context, id int64) (types.Review, error) {
	const query = `
		SELECT r.id, r.review, r.rating, r.created_at, r.tour_id, r.user_id, t.name, u.name, u.photo, r.version
		FROM reviews r
		JOIN tours t ON t.id = r.tour_id
		JOIN users u ON u.id = r.user_id
		WHERE r.id = $1`
	var review types.Review
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&review.ID,
		&review.Review,
		&review.Rating,
		&review.CreatedAt,
		&review.TourID,
		&review.UserID,
		&review.TourName,
		&review.UserName,
		&review.UserPhoto,
		&review.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	return review, nil
}

// Create inserts a review. A second review of the same tour by the same
// user fails with ErrDuplicate; an unknown tour with ErrMissingReference.
func (r *ReviewRepository) Create(ctx context.Context, review types.Review) (types.Review, error) {
	now := time.Now().UTC()
	review.CreatedAt = &now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Review{}, err
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO reviews (review, rating, created_at, tour_id, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, version`
	if err := tx.QueryRowContext(
		ctx,
		query,
		review.Review,
		review.Rating,
		review.CreatedAt,
		review.TourID,
		review.UserID,
	).Scan(&review.ID, &review.Version); err != nil {
		return types.Review{}, translateError(err)
	}

	if _, err := tx.ExecContext(ctx, refreshTourRatings, review.TourID, types.DefaultRatingsAverage); err != nil {
		return types.Review{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Review{}, err
	}
	return review, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var tourID int64
	err = tx.QueryRowContext(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING tour_id`, id).Scan(&tourID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, refreshTourRatings, tourID, types.DefaultRatingsAverage); err != nil {
		return err
	}
	return tx.Commit()
}

func reviewField(review *types.Review, field string) any {
	switch field {
	case "id":
		return &review.ID
	case "review":
		return &review.Review
	case "rating":
		return &review.Rating
	case "createdAt":
		return &review.CreatedAt
	case "tourId":
		return &review.TourID
	case "userId":
		return &review.UserID
	case "tourName":
		return &review.TourName
	case "userName":
		return &review.UserName
	case "userPhoto":
		return &review.UserPhoto
	case "version":
		return &review.Version
	default:
		return new(any)
	}
}
