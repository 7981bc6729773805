package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/rootle-api/internal/models"
)

const requestColumns = `id, requester_id, department_id, title, description, fulfilled, fulfilled_by, fulfilled_at, created_at`

// RequestRepository persists wishlist entries.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create stores an open wishlist entry.
func (r *RequestRepository) Create(ctx context.Context, req *models.ResourceRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.Fulfilled = false
	const query = `INSERT INTO resource_requests (` + requestColumns + `) VALUES (:id, :requester_id, :department_id, :title, :description, :fulfilled, :fulfilled_by, :fulfilled_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create resource request: %w", err)
	}
	return nil
}

// GetByID returns a wishlist entry.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.ResourceRequest, error) {
	const query = `SELECT ` + requestColumns + ` FROM resource_requests WHERE id = $1`
	var req models.ResourceRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get resource request: %w", err)
	}
	return &req, nil
}

// ListOpen returns unfulfilled entries, newest first, optionally scoped to a department.
func (r *RequestRepository) ListOpen(ctx context.Context, departmentID string) ([]models.ResourceRequestSummary, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT rr.id, rr.requester_id, rr.department_id, rr.title, rr.description, rr.fulfilled, rr.fulfilled_by, rr.fulfilled_at, rr.created_at,
       u.full_name AS requester_name, d.name AS department_name
FROM resource_requests rr
JOIN users u ON u.id = rr.requester_id
LEFT JOIN departments d ON d.id = rr.department_id
WHERE rr.fulfilled = FALSE`)
	args := make([]interface{}, 0, 1)
	if departmentID != "" {
		args = append(args, departmentID)
		builder.WriteString(fmt.Sprintf(" AND rr.department_id = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY rr.created_at DESC")

	items := make([]models.ResourceRequestSummary, 0)
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list open resource requests: %w", err)
	}
	return items, nil
}

// Fulfill marks an open entry fulfilled. It reports false when the entry was
// missing or already fulfilled so the caller can tell the two apart.
func (r *RequestRepository) Fulfill(ctx context.Context, id, fulfilledBy string, at time.Time) (bool, error) {
	const query = `UPDATE resource_requests SET fulfilled = TRUE, fulfilled_by = $2, fulfilled_at = $3 WHERE id = $1 AND fulfilled = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, fulfilledBy, at)
	if err != nil {
		return false, fmt.Errorf("fulfill resource request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}
