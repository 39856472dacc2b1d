package types

import "time"

// Review is a user's rating of a tour.
type Review struct {
	ID        int64      `json:"id" db:"id"`
	Review    string     `json:"review,omitempty" db:"review" validate:"required"`
	Rating    int        `json:"rating,omitempty" db:"rating" validate:"required,min=1,max=5"`
	CreatedAt *time.Time `json:"createdAt,omitempty" db:"created_at"`
	TourID    int64      `json:"tourId,omitempty" db:"tour_id" validate:"required"`
	UserID    int64      `json:"userId,omitempty" db:"user_id" validate:"required"`

	// Populated from the joined tour and user rows.
	TourName  string `json:"tourName,omitempty" db:"tour_name"`
	UserName  string `json:"userName,omitempty" db:"user_name"`
	UserPhoto string `json:"userPhoto,omitempty" db:"user_photo"`

	Version int `json:"version,omitempty" db:"version"`
}
