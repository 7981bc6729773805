package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/rootle-api/internal/dto"
	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
	"github.com/noah-isme/rootle-api/pkg/jobs"
)

type moderationStore interface {
	GetByID(ctx context.Context, id string) (*models.Resource, error)
	List(ctx context.Context, filter models.ResourceFilter) ([]models.ResourceSummary, int, error)
	TransitionStatus(ctx context.Context, params models.TransitionParams) error
	RejectDeletion(ctx context.Context, deletionRequestID string, params models.TransitionParams) error
	Purge(ctx context.Context, params models.PurgeParams) (string, error)
	GetDeletionRequest(ctx context.Context, id string) (*models.DeletionRequestSummary, error)
	ListDeletionRequests(ctx context.Context, departmentID string) ([]models.DeletionRequestSummary, error)
}

// ModerationServiceDeps groups the collaborators of ModerationService.
type ModerationServiceDeps struct {
	Resources moderationStore
	Files     fileDeleter
	Jobs      jobEnqueuer
	Audit     auditLogger
	Cache     *CacheService
	Metrics   *MetricsService
	Logger    *zap.Logger
}

// ModerationService applies staff review decisions to resources.
type ModerationService struct {
	repo    moderationStore
	files   fileDeleter
	jobs    jobEnqueuer
	audit   auditLogger
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewModerationService constructs a ModerationService.
func NewModerationService(deps ModerationServiceDeps) *ModerationService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ModerationService{
		repo:    deps.Resources,
		files:   deps.Files,
		jobs:    deps.Jobs,
		audit:   deps.Audit,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Approve publishes a pending resource.
func (s *ModerationService) Approve(ctx context.Context, id string, actor *models.JWTClaims) (*models.Resource, error) {
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, res, ActionApprove); err != nil {
		return nil, err
	}
	next, _ := NextStatus(res.Status, ActionApprove)
	params := models.TransitionParams{ID: res.ID, DepartmentID: actor.DepartmentID, From: res.Status, To: next}
	if err := s.repo.TransitionStatus(ctx, params); err != nil {
		return nil, s.transitionError(err, "failed to approve resource")
	}
	previous := res.Status
	res.Status = next
	s.completed(ctx, actor, res.ID, ActionApprove, previous, next)
	return res, nil
}

// Reject purges a pending resource: the row and its file are removed.
func (s *ModerationService) Reject(ctx context.Context, id string, actor *models.JWTClaims) error {
	return s.purge(ctx, id, actor, ActionReject)
}

// ConfirmPurge removes a resource whose owner requested deletion.
func (s *ModerationService) ConfirmPurge(ctx context.Context, id string, actor *models.JWTClaims) error {
	return s.purge(ctx, id, actor, ActionConfirmPurge)
}

// RejectDeletion dismisses a deletion request and restores the resource to approved.
func (s *ModerationService) RejectDeletion(ctx context.Context, deletionRequestID string, actor *models.JWTClaims) (*models.Resource, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.repo.GetDeletionRequest(ctx, deletionRequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deletion request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deletion request")
	}
	res, err := s.load(ctx, request.ResourceID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, res, ActionRejectDeletion); err != nil {
		return nil, err
	}
	next, _ := NextStatus(res.Status, ActionRejectDeletion)
	params := models.TransitionParams{ID: res.ID, DepartmentID: actor.DepartmentID, From: res.Status, To: next}
	if err := s.repo.RejectDeletion(ctx, request.ID, params); err != nil {
		return nil, s.transitionError(err, "failed to reject deletion request")
	}
	previous := res.Status
	res.Status = next
	s.completed(ctx, actor, res.ID, ActionRejectDeletion, previous, next)
	return res, nil
}

// PendingQueue lists pending resources of the actor's department.
func (s *ModerationService) PendingQueue(ctx context.Context, query dto.PageQuery, actor *models.JWTClaims) ([]models.ResourceSummary, *models.Pagination, error) {
	if err := requireStaff(actor); err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.List(ctx, models.ResourceFilter{
		DepartmentID: actor.DepartmentID,
		Statuses:     []models.ResourceStatus{models.StatusPending},
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending resources")
	}
	page, size := pageBounds(query.Page, query.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// DeletionQueue lists open deletion requests of the actor's department.
func (s *ModerationService) DeletionQueue(ctx context.Context, actor *models.JWTClaims) ([]models.DeletionRequestSummary, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	items, err := s.repo.ListDeletionRequests(ctx, actor.DepartmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deletion requests")
	}
	return items, nil
}

// purge deletes the row first and the file last, so a storage failure never
// leaves a row pointing at a missing file.
func (s *ModerationService) purge(ctx context.Context, id string, actor *models.JWTClaims, action ModerationAction) error {
	res, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(actor, res, action); err != nil {
		return err
	}
	path, err := s.repo.Purge(ctx, models.PurgeParams{ID: res.ID, DepartmentID: actor.DepartmentID, From: res.Status})
	if err != nil {
		return s.transitionError(err, "failed to purge resource")
	}
	if path == "" {
		path = res.FilePath
	}
	s.removeFile(ctx, path)
	next, _ := NextStatus(res.Status, action)
	s.completed(ctx, actor, res.ID, action, res.Status, next)
	return nil
}

func (s *ModerationService) removeFile(ctx context.Context, key string) {
	if s.files == nil || key == "" {
		return
	}
	err := s.files.Delete(ctx, key)
	if err == nil {
		return
	}
	s.logger.Error("failed to delete purged resource file", zap.String("key", key), zap.Error(err))
	if s.jobs == nil {
		return
	}
	if qErr := s.jobs.TryEnqueue(jobs.Job{Type: JobTypeStorageDelete, Payload: StorageDeletePayload{Key: key}}); qErr != nil {
		s.logger.Warn("failed to queue file delete", zap.String("key", key), zap.Error(qErr))
	}
}

func (s *ModerationService) load(ctx context.Context, id string) (*models.Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return res, nil
}

// transitionError maps a guarded write that matched no row to a state conflict:
// another request moved the resource first.
func (s *ModerationService) transitionError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "resource changed state, try again")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ModerationService) completed(ctx context.Context, actor *models.JWTClaims, resourceID string, action ModerationAction, from, to models.ResourceStatus) {
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action.AuditAction(),
		Resource:   "resource",
		ResourceID: &resourceID,
		OldValues:  auditValues(map[string]interface{}{"status": from}),
		NewValues:  auditValues(map[string]interface{}{"status": to}),
	})
	s.metrics.RecordModeration(action)
	_ = s.cache.Invalidate(ctx, cachePatternStats)
	s.logger.Info("moderation action applied",
		zap.String("action", string(action)),
		zap.String("resource_id", resourceID),
		zap.String("actor_id", actor.UserID),
		zap.String("to", string(to)))
}

func requireStaff(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.IsStaff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only lecturers and admins can moderate resources")
	}
	return nil
}
