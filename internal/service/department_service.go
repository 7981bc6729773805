package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
)

const departmentsCacheTTL = time.Hour

type departmentLister interface {
	List(ctx context.Context) ([]models.Department, error)
}

// DepartmentService serves department reference data for registration forms.
type DepartmentService struct {
	repo   departmentLister
	cache  *CacheService
	logger *zap.Logger
}

// NewDepartmentService constructs the service.
func NewDepartmentService(repo departmentLister, cache *CacheService, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, cache: cache, logger: logger}
}

// List returns all departments and whether they were served from cache.
func (s *DepartmentService) List(ctx context.Context) ([]models.Department, bool, error) {
	items, hit, err := Remember(ctx, s.cache, cacheKeyDepartments, departmentsCacheTTL, s.repo.List)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	if items == nil {
		items = []models.Department{}
	}
	return items, hit, nil
}
