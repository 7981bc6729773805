package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/rootle-api/internal/models"
)

const resourceColumns = `id, uploader_id, department_id, title, description, category, file_path, file_hash, file_type, size_bytes, status, download_count, request_id, created_at, updated_at`

const resourceSummarySelect = `SELECT r.id, r.uploader_id, r.department_id, r.title, r.description, r.category, r.file_path, r.file_hash,
       r.file_type, r.size_bytes, r.status, r.download_count, r.request_id, r.created_at, r.updated_at,
       u.full_name AS uploader_name, d.name AS department_name,
       COALESCE(rt.average, 0) AS average_rating, COALESCE(rt.total, 0) AS rating_count
FROM resources r
JOIN users u ON u.id = r.uploader_id
JOIN departments d ON d.id = r.department_id
LEFT JOIN (SELECT resource_id, AVG(rating)::float8 AS average, COUNT(*) AS total FROM ratings GROUP BY resource_id) rt ON rt.resource_id = r.id`

const deletionRequestSelect = `SELECT dr.id, dr.resource_id, dr.requested_by, dr.reason, dr.created_at,
       r.title AS resource_title, r.department_id, r.status AS resource_status, u.full_name AS requester_name
FROM deletion_requests dr
JOIN resources r ON r.id = dr.resource_id
JOIN users u ON u.id = dr.requested_by`

// ResourceRepository persists resources, their moderation state and deletion requests.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a resource. The UNIQUE constraint on file_hash is the
// authoritative duplicate guard and surfaces as ErrDuplicateFingerprint.
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	const query = `INSERT INTO resources (` + resourceColumns + `)
VALUES (:id, :uploader_id, :department_id, :title, :description, :category, :file_path, :file_hash, :file_type, :size_bytes, :status, :download_count, :request_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, res); err != nil {
		if isUniqueViolation(err, "resources_file_hash_key") {
			return ErrDuplicateFingerprint
		}
		if isForeignKeyViolation(err, "resources_request_id_fkey") {
			return ErrUnknownRequest
		}
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// ExistsByFingerprint reports whether a live resource already carries hash.
func (r *ResourceRepository) ExistsByFingerprint(ctx context.Context, hash string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM resources WHERE file_hash = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, hash); err != nil {
		return false, fmt.Errorf("check resource fingerprint: %w", err)
	}
	return exists, nil
}

// GetByID returns a resource row.
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*models.Resource, error) {
	const query = `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`
	var res models.Resource
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return &res, nil
}

// GetSummary returns a resource with uploader, department and rating aggregates.
func (r *ResourceRepository) GetSummary(ctx context.Context, id string) (*models.ResourceSummary, error) {
	query := resourceSummarySelect + ` WHERE r.id = $1`
	var summary models.ResourceSummary
	if err := r.db.GetContext(ctx, &summary, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get resource summary: %w", err)
	}
	return &summary, nil
}

// List returns resource summaries matching filter together with the total count.
func (r *ResourceRepository) List(ctx context.Context, filter models.ResourceFilter) ([]models.ResourceSummary, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("r.uploader_id = $%d", len(args)))
	} else {
		statuses := filter.Statuses
		if len(statuses) == 0 {
			statuses = []models.ResourceStatus{models.StatusApproved}
		}
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		args = append(args, pq.Array(values))
		conditions = append(conditions, fmt.Sprintf("r.status = ANY($%d)", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		conditions = append(conditions, fmt.Sprintf("r.title ILIKE $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("r.category = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("r.department_id = $%d", len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")
	order := " ORDER BY r.created_at DESC"
	if filter.Trending {
		order = " ORDER BY r.download_count DESC, r.created_at DESC"
	}
	_, pageSize, offset := normalisePage(filter.Page, filter.PageSize)

	builder := strings.Builder{}
	builder.WriteString(resourceSummarySelect)
	builder.WriteString(where)
	builder.WriteString(order)
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, offset))

	items := make([]models.ResourceSummary, 0)
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM resources r"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}
	return items, total, nil
}

// IncrementDownloadCount bumps the counter in a single statement.
func (r *ResourceRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	const query = `UPDATE resources SET download_count = download_count + 1 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return requireAffected(result)
}

// TransitionStatus moves a resource between persisted states only when it is
// still in params.From and owned by params.DepartmentID.
func (r *ResourceRepository) TransitionStatus(ctx context.Context, params models.TransitionParams) error {
	const query = `UPDATE resources SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 AND department_id = $5`
	result, err := r.db.ExecContext(ctx, query, params.To, time.Now().UTC(), params.ID, params.From, params.DepartmentID)
	if err != nil {
		return fmt.Errorf("transition resource status: %w", err)
	}
	return requireAffected(result)
}

// RequestDeletion flags an approved resource owned by req.RequestedBy and
// records the deletion request in one transaction.
func (r *ResourceRepository) RequestDeletion(ctx context.Context, req *models.DeletionRequest) (err error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deletion request transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE resources SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 AND uploader_id = $5`
	result, err := tx.ExecContext(ctx, updateQuery, models.StatusDeletionRequested, req.CreatedAt, req.ResourceID, models.StatusApproved, req.RequestedBy)
	if err != nil {
		return fmt.Errorf("flag resource for deletion: %w", err)
	}
	if err = requireAffected(result); err != nil {
		return err
	}

	const insertQuery = `INSERT INTO deletion_requests (id, resource_id, requested_by, reason, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insertQuery, req.ID, req.ResourceID, req.RequestedBy, req.Reason, req.CreatedAt); err != nil {
		return fmt.Errorf("insert deletion request: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit deletion request: %w", err)
	}
	return nil
}

// RejectDeletion removes a deletion request and restores its resource in one transaction.
func (r *ResourceRepository) RejectDeletion(ctx context.Context, deletionRequestID string, params models.TransitionParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reject deletion transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const deleteQuery = `DELETE FROM deletion_requests WHERE id = $1 AND resource_id = $2`
	result, err := tx.ExecContext(ctx, deleteQuery, deletionRequestID, params.ID)
	if err != nil {
		return fmt.Errorf("delete deletion request: %w", err)
	}
	if err = requireAffected(result); err != nil {
		return err
	}

	const updateQuery = `UPDATE resources SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4 AND department_id = $5`
	result, err = tx.ExecContext(ctx, updateQuery, params.To, time.Now().UTC(), params.ID, params.From, params.DepartmentID)
	if err != nil {
		return fmt.Errorf("restore resource: %w", err)
	}
	if err = requireAffected(result); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reject deletion: %w", err)
	}
	return nil
}

// Purge deletes the resource row and its deletion requests, returning the
// stored file path so the caller can remove the file afterwards.
func (r *ResourceRepository) Purge(ctx context.Context, params models.PurgeParams) (filePath string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin purge transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const deleteRequests = `DELETE FROM deletion_requests WHERE resource_id = $1`
	if _, err = tx.ExecContext(ctx, deleteRequests, params.ID); err != nil {
		return "", fmt.Errorf("delete deletion requests: %w", err)
	}

	const deleteResource = `DELETE FROM resources WHERE id = $1 AND status = $2 AND department_id = $3 RETURNING file_path`
	if err = tx.GetContext(ctx, &filePath, deleteResource, params.ID, params.From, params.DepartmentID); err != nil {
		if err == sql.ErrNoRows {
			return "", err
		}
		return "", fmt.Errorf("delete resource: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit purge: %w", err)
	}
	return filePath, nil
}

// GetDeletionRequest returns one deletion request with its resource context.
func (r *ResourceRepository) GetDeletionRequest(ctx context.Context, id string) (*models.DeletionRequestSummary, error) {
	query := deletionRequestSelect + ` WHERE dr.id = $1`
	var item models.DeletionRequestSummary
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get deletion request: %w", err)
	}
	return &item, nil
}

// ListDeletionRequests returns open deletion requests in a department, oldest first.
func (r *ResourceRepository) ListDeletionRequests(ctx context.Context, departmentID string) ([]models.DeletionRequestSummary, error) {
	query := deletionRequestSelect + ` WHERE r.department_id = $1 ORDER BY dr.created_at ASC`
	items := make([]models.DeletionRequestSummary, 0)
	if err := r.db.SelectContext(ctx, &items, query, departmentID); err != nil {
		return nil, fmt.Errorf("list deletion requests: %w", err)
	}
	return items, nil
}

// FilePathsExist reports which of paths are referenced by a resource row.
func (r *ResourceRepository) FilePathsExist(ctx context.Context, paths []string) (map[string]bool, error) {
	found := make(map[string]bool, len(paths))
	if len(paths) == 0 {
		return found, nil
	}
	const query = `SELECT file_path FROM resources WHERE file_path = ANY($1)`
	var existing []string
	if err := r.db.SelectContext(ctx, &existing, query, pq.Array(paths)); err != nil {
		return nil, fmt.Errorf("lookup resource file paths: %w", err)
	}
	for _, path := range existing {
		found[path] = true
	}
	return found, nil
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
