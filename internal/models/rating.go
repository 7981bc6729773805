package models

import "time"

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Rating is one user's score for one resource.
type Rating struct {
	ID         string    `db:"id" json:"id"`
	ResourceID string    `db:"resource_id" json:"resource_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Rating     int       `db:"rating" json:"rating"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RatingSummary aggregates ratings for a resource.
type RatingSummary struct {
	ResourceID string  `db:"resource_id" json:"resource_id"`
	Average    float64 `db:"average" json:"average"`
	Count      int     `db:"count" json:"count"`
}
