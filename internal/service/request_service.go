package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/rootle-api/internal/dto"
	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
	"github.com/noah-isme/rootle-api/pkg/sanitize"
)

type requestStore interface {
	Create(ctx context.Context, req *models.ResourceRequest) error
	GetByID(ctx context.Context, id string) (*models.ResourceRequest, error)
	ListOpen(ctx context.Context, departmentID string) ([]models.ResourceRequestSummary, error)
	Fulfill(ctx context.Context, id, fulfilledBy string, at time.Time) (bool, error)
}

// RequestService manages the wishlist of requested resources.
type RequestService struct {
	repo      requestStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRequestService constructs a RequestService.
func NewRequestService(repo requestStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{repo: repo, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// Create posts a new open wishlist entry.
func (s *RequestService) Create(ctx context.Context, req dto.CreateWishlistRequest, actor *models.JWTClaims) (*models.ResourceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Title = sanitize.Text(req.Title)
	req.Description = sanitize.Text(req.Description)
	req.DepartmentID = normalizeRef(req.DepartmentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	item := &models.ResourceRequest{
		RequesterID:  actor.UserID,
		DepartmentID: req.DepartmentID,
		Title:        req.Title,
		Description:  req.Description,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	return item, nil
}

// ListOpen returns unfulfilled requests, optionally for one department.
func (s *RequestService) ListOpen(ctx context.Context, query dto.WishlistQuery, actor *models.JWTClaims) ([]models.ResourceRequestSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	departmentID, err := departmentFilter(query.DepartmentID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListOpen(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return items, nil
}

// Fulfill marks a request fulfilled by actor. Fulfilling an already fulfilled
// request is a logged no-op.
func (s *RequestService) Fulfill(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	changed, err := s.repo.Fulfill(ctx, id, actor.UserID, s.now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fulfil request")
	}
	if !changed {
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "request not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
		}
		s.logger.Warn("request already fulfilled",
			zap.String("request_id", existing.ID),
			zap.Stringp("fulfilled_by", existing.FulfilledBy),
			zap.String("actor_id", actor.UserID))
		return nil
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionRequestFulfil,
		Resource:   "resource_request",
		ResourceID: &id,
	})
	return nil
}
