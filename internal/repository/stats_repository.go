package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rootle-api/internal/models"
)

// StatsRepository computes admin dashboard aggregates.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Totals counts users, resources, departments and pending uploads.
func (r *StatsRepository) Totals(ctx context.Context) (*models.PlatformTotals, error) {
	const query = `SELECT
    (SELECT COUNT(*) FROM users) AS users,
    (SELECT COUNT(*) FROM resources) AS resources,
    (SELECT COUNT(*) FROM departments) AS departments,
    (SELECT COUNT(*) FROM resources WHERE status = 'pending') AS pending`
	var totals models.PlatformTotals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("platform totals: %w", err)
	}
	return &totals, nil
}

// ResourcesByFaculty returns the resource count per faculty, including empty faculties.
func (r *StatsRepository) ResourcesByFaculty(ctx context.Context) ([]models.FacultyResourceCount, error) {
	const query = `SELECT f.name AS faculty, COUNT(r.id) AS total
FROM faculties f
LEFT JOIN departments d ON d.faculty_id = f.id
LEFT JOIN resources r ON r.department_id = d.id
GROUP BY f.name
ORDER BY total DESC, f.name`
	items := make([]models.FacultyResourceCount, 0)
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("resources by faculty: %w", err)
	}
	return items, nil
}

// RecentUploads returns the latest uploads with their uploader name.
func (r *StatsRepository) RecentUploads(ctx context.Context, limit int) ([]models.RecentUpload, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	const query = `SELECT r.id AS resource_id, r.title, u.full_name AS uploader, r.created_at
FROM resources r
JOIN users u ON u.id = r.uploader_id
ORDER BY r.created_at DESC
LIMIT $1`
	items := make([]models.RecentUpload, 0)
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("recent uploads: %w", err)
	}
	return items, nil
}
