package types

import "time"

// Tour difficulty levels.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// DefaultRatingsAverage is the rating a tour starts with before any review.
const DefaultRatingsAverage = 4.5

// Tour is a bookable tour package.
//
// Fields are omitted from JSON when empty so that field-limited listings
// only carry the requested fields.
type Tour struct {
	ID              int64       `json:"id" db:"id"`
	Name            string      `json:"name,omitempty" db:"name" validate:"required,min=10,max=40"`
	Duration        int         `json:"duration,omitempty" db:"duration" validate:"required,gt=0"`
	MaxGroupSize    int         `json:"maxGroupSize,omitempty" db:"max_group_size" validate:"required,gt=0"`
	Difficulty      string      `json:"difficulty,omitempty" db:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64     `json:"ratingsAverage,omitempty" db:"ratings_average" validate:"min=1,max=5"`
	RatingsQuantity int         `json:"ratingsQuantity,omitempty" db:"ratings_quantity" validate:"gte=0"`
	Price           float64     `json:"price,omitempty" db:"price" validate:"required,gt=0"`
	PriceDiscount   float64     `json:"priceDiscount,omitempty" db:"price_discount" validate:"gte=0,ltfield=Price"`
	Summary         string      `json:"summary,omitempty" db:"summary" validate:"required"`
	Description     string      `json:"description,omitempty" db:"description"`
	ImageCover      string      `json:"imageCover,omitempty" db:"image_cover" validate:"required"`
	Images          []string    `json:"images,omitempty" db:"images"`
	StartDates      []time.Time `json:"startDates,omitempty" db:"start_dates"`
	CreatedAt       *time.Time  `json:"createdAt,omitempty" db:"created_at"`

	// Version counts updates to the row. It is internal and only returned
	// when explicitly requested through field limiting.
	Version int `json:"version,omitempty" db:"version"`
}
