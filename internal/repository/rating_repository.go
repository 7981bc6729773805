package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rootle-api/internal/models"
)

// RatingRepository stores per-user resource ratings.
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository constructs the repository.
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert keeps exactly one rating per (resource, user), overwriting the value.
func (r *RatingRepository) Upsert(ctx context.Context, rating *models.Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = now
	}
	rating.UpdatedAt = now

	const query = `INSERT INTO ratings (id, resource_id, user_id, rating, created_at, updated_at)
VALUES (:id, :resource_id, :user_id, :rating, :created_at, :updated_at)
ON CONFLICT (resource_id, user_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// Summary returns the mean and count of ratings; the mean is 0 without ratings.
func (r *RatingRepository) Summary(ctx context.Context, resourceID string) (*models.RatingSummary, error) {
	const query = `SELECT COALESCE(AVG(rating), 0)::float8 AS average, COUNT(*) AS count FROM ratings WHERE resource_id = $1`
	summary := models.RatingSummary{ResourceID: resourceID}
	if err := r.db.QueryRowxContext(ctx, query, resourceID).Scan(&summary.Average, &summary.Count); err != nil {
		return nil, fmt.Errorf("summarise ratings: %w", err)
	}
	return &summary, nil
}
