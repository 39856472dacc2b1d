package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/types"
)

var tourResource = resource{
	from: "tours",
	fields: []string{
		"id", "name", "duration", "maxGroupSize", "difficulty", "ratingsAverage",
		"ratingsQuantity", "price", "priceDiscount", "summary", "description",
		"imageCover", "images", "startDates", "createdAt", "version",
	},
	columns: map[string]column{
		"id":              {name: "id"},
		"name":            {name: "name"},
		"duration":        {name: "duration"},
		"maxGroupSize":    {name: "max_group_size"},
		"difficulty":      {name: "difficulty"},
		"ratingsAverage":  {name: "ratings_average"},
		"ratingsQuantity": {name: "ratings_quantity"},
		"price":           {name: "price"},
		"priceDiscount":   {name: "price_discount"},
		"summary":         {name: "summary"},
		"description":     {name: "description"},
		"imageCover":      {name: "image_cover"},
		"images":          {name: "images", array: true},
		"startDates":      {name: "start_dates", expr: "to_json(start_dates)", array: true},
		"createdAt":       {name: "created_at"},
		"version":         {name: "version"},
	},
}

const tourColumns = `id, name, duration, max_group_size, difficulty, ratings_average, ratings_quantity,
	price, price_discount, summary, description, image_cover, images, to_json(start_dates), created_at, version`

// TourRepository handles persistence for tours.
type TourRepository struct {
	db *sql.DB
}

func NewTourRepository(db *sql.DB) *TourRepository {
	return &TourRepository{db: db}
}

// List returns the tours matching q, carrying only the projected fields.
func (r *TourRepository) List(ctx context.Context, q apifeatures.Query) ([]types.Tour, error) {
	stmt := buildSelect(tourResource, q)
	rows, err := r.db.QueryContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	tours := make([]types.Tour, 0)
	for rows.Next() {
		var tour types.Tour
		dest := make([]any, len(stmt.fields))
		for i, field := range stmt.fields {
			dest[i] = tourField(&tour, field)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		tours = append(tours, tour)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return tours, nil
}

func (r *TourRepository) Get(ctx context.Context, id int64) (types.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours WHERE id = $1`
	tour, err := scanTour(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Tour{}, ErrNotFound
		}
		return types.Tour{}, err
	}
	return tour, nil
}

func (r *TourRepository) Create(ctx context.Context, tour types.Tour) (types.Tour, error) {
	return createTour(ctx, r.db, tour)
}

// CreateMany inserts tours in one transaction.
func (r *TourRepository) CreateMany(ctx context.Context, tours []types.Tour) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for i, tour := range tours {
		if _, err := createTour(ctx, tx, tour); err != nil {
			return 0, fmt.Errorf("tour %d (%s): %w", i, tour.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(tours), nil
}

// Update overwrites the editable columns and bumps the version.
func (r *TourRepository) Update(ctx context.Context, tour types.Tour) (types.Tour, error) {
	const query = `
		UPDATE tours
		SET name = $1,
			duration = $2,
			max_group_size = $3,
			difficulty = $4,
			ratings_average = $5,
			ratings_quantity = $6,
			price = $7,
			price_discount = $8,
			summary = $9,
			description = $10,
			image_cover = $11,
			images = $12,
			start_dates = $13::timestamptz[],
			version = version + 1
		WHERE id = $14
		RETURNING version`
	err := r.db.QueryRowContext(
		ctx,
		query,
		tour.Name,
		tour.Duration,
		tour.MaxGroupSize,
		tour.Difficulty,
		tour.RatingsAverage,
		tour.RatingsQuantity,
		tour.Price,
		tour.PriceDiscount,
		tour.Summary,
		tour.Description,
		tour.ImageCover,
		pq.Array(nonNil(tour.Images)),
		pq.Array(formatTimes(tour.StartDates)),
		tour.ID,
	).Scan(&tour.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Tour{}, ErrNotFound
		}
		return types.Tour{}, translateError(err)
	}
	return tour, nil
}

func (r *TourRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM tours WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every tour, and with them their reviews.
func (r *TourRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tours`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DifficultyStats aggregates well rated tours per difficulty.
type DifficultyStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// Stats groups tours rated at least minRating by difficulty, cheapest
// average first.
func (r *TourRepository) Stats(ctx context.Context, minRating float64) ([]DifficultyStats, error) {
	const query = `
		SELECT upper(difficulty), COUNT(1), COALESCE(SUM(ratings_quantity), 0),
			AVG(ratings_average), AVG(price), MIN(price), MAX(price)
		FROM tours
		WHERE ratings_average >= $1
		GROUP BY difficulty
		ORDER BY AVG(price) ASC`
	rows, err := r.db.QueryContext(ctx, query, minRating)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]DifficultyStats, 0)
	for rows.Next() {
		var s DifficultyStats
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings, &s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// MonthPlan lists the tours starting in one month.
type MonthPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (r *TourRepository) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	const query = `
		SELECT EXTRACT(MONTH FROM d.start_date)::int AS month,
			COUNT(1) AS num_tour_starts,
			array_agg(t.name ORDER BY t.name)
		FROM tours t, unnest(t.start_dates) AS d(start_date)
		WHERE d.start_date >= $1 AND d.start_date < $2
		GROUP BY month
		ORDER BY num_tour_starts DESC, month ASC
		LIMIT 12`
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows, err := r.db.QueryContext(ctx, query, from, from.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plan := make([]MonthPlan, 0)
	for rows.Next() {
		var m MonthPlan
		if err := rows.Scan(&m.Month, &m.NumTourStarts, pq.Array(&m.Tours)); err != nil {
			return nil, err
		}
		plan = append(plan, m)
	}
	return plan, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func createTour(ctx context.Context, db queryRower, tour types.Tour) (types.Tour, error) {
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = types.DefaultRatingsAverage
	}
	now := time.Now().UTC()
	tour.CreatedAt = &now

	const query = `
		INSERT INTO tours (name, duration, max_group_size, difficulty, ratings_average, ratings_quantity,
			price, price_discount, summary, description, image_cover, images, start_dates, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::timestamptz[], $14)
		RETURNING id, version`
	if err := db.QueryRowContext(
		ctx,
		query,
		tour.Name,
		tour.Duration,
		tour.MaxGroupSize,
		tour.Difficulty,
		tour.RatingsAverage,
		tour.RatingsQuantity,
		tour.Price,
		tour.PriceDiscount,
		tour.Summary,
		tour.Description,
		tour.ImageCover,
		pq.Array(nonNil(tour.Images)),
		pq.Array(formatTimes(tour.StartDates)),
		tour.CreatedAt,
	).Scan(&tour.ID, &tour.Version); err != nil {
		return types.Tour{}, translateError(err)
	}
	return tour, nil
}

func scanTour(row *sql.Row) (types.Tour, error) {
	var tour types.Tour
	err := row.Scan(
		&tour.ID,
		&tour.Name,
		&tour.Duration,
		&tour.MaxGroupSize,
		&tour.Difficulty,
		&tour.RatingsAverage,
		&tour.RatingsQuantity,
		&tour.Price,
		&tour.PriceDiscount,
		&tour.Summary,
		&tour.Description,
		&tour.ImageCover,
		pq.Array(&tour.Images),
		timeList{dst: &tour.StartDates},
		&tour.CreatedAt,
		&tour.Version,
	)
	return tour, err
}

// tourField returns the scan destination for a projected field.
func tourField(tour *types.Tour, field string) any {
	switch field {
	case "id":
		return &tour.ID
	case "name":
		return &tour.Name
	case "duration":
		return &tour.Duration
	case "maxGroupSize":
		return &tour.MaxGroupSize
	case "difficulty":
		return &tour.Difficulty
	case "ratingsAverage":
		return &tour.RatingsAverage
	case "ratingsQuantity":
		return &tour.RatingsQuantity
	case "price":
		return &tour.Price
	case "priceDiscount":
		return &tour.PriceDiscount
	case "summary":
		return &tour.Summary
	case "description":
		return &tour.Description
	case "imageCover":
		return &tour.ImageCover
	case "images":
		return pq.Array(&tour.Images)
	case "startDates":
		return timeList{dst: &tour.StartDates}
	case "createdAt":
		return &tour.CreatedAt
	case "version":
		return &tour.Version
	default:
		return new(any)
	}
}

// timeList scans a JSON array of timestamps, as produced by to_json over
// a timestamptz[] column.
type timeList struct {
	dst *[]time.Time
}

func (l timeList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l.dst = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("timeList: unsupported source %T", src)
	}
	var times []time.Time
	if err := json.Unmarshal(raw, &times); err != nil {
		return err
	}
	if len(times) == 0 {
		times = nil
	}
	*l.dst = times
	return nil
}

func formatTimes(times []time.Time) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
