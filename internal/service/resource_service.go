package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/rootle-api/internal/dto"
	"github.com/noah-isme/rootle-api/internal/models"
	"github.com/noah-isme/rootle-api/internal/repository"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
	"github.com/noah-isme/rootle-api/pkg/fingerprint"
	"github.com/noah-isme/rootle-api/pkg/jobs"
	"github.com/noah-isme/rootle-api/pkg/sanitize"
	"github.com/noah-isme/rootle-api/pkg/storage"
)

type resourceStore interface {
	Create(ctx context.Context, res *models.Resource) error
	ExistsByFingerprint(ctx context.Context, hash string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Resource, error)
	GetSummary(ctx context.Context, id string) (*models.ResourceSummary, error)
	List(ctx context.Context, filter models.ResourceFilter) ([]models.ResourceSummary, int, error)
	IncrementDownloadCount(ctx context.Context, id string) error
	RequestDeletion(ctx context.Context, req *models.DeletionRequest) error
}

type ratingStore interface {
	Upsert(ctx context.Context, rating *models.Rating) error
	Summary(ctx context.Context, resourceID string) (*models.RatingSummary, error)
}

type wishlistFulfiller interface {
	Fulfill(ctx context.Context, requestID string, actor *models.JWTClaims) error
}

type resourceFileStore interface {
	SaveStream(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type downloadSigner interface {
	Generate(resourceID, key string) (string, time.Time, error)
	Verify(token, resourceID, key string) error
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// ResourceUpload carries the uploaded stream and its client supplied metadata.
type ResourceUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// UploadResult is the created resource plus non fatal warnings.
type UploadResult struct {
	Resource *models.Resource
	Warnings []string
}

// ResourceDownload bundles an open file stream with response metadata.
type ResourceDownload struct {
	Reader    io.ReadCloser
	Filename  string
	MimeType  string
	SizeBytes int64
}

// DownloadLink is a signed URL for a resource file.
type DownloadLink struct {
	URL       string
	ExpiresAt time.Time
}

// ResourceServiceConfig holds upload validation parameters.
type ResourceServiceConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
	APIPrefix         string
}

// ResourceServiceDeps groups the collaborators of ResourceService.
type ResourceServiceDeps struct {
	Resources resourceStore
	Ratings   ratingStore
	Wishlist  wishlistFulfiller
	Files     resourceFileStore
	Signer    downloadSigner
	Jobs      jobEnqueuer
	Audit     auditLogger
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// ResourceService implements upload, discovery, download and rating of resources.
type ResourceService struct {
	repo      resourceStore
	ratings   ratingStore
	wishlist  wishlistFulfiller
	files     resourceFileStore
	signer    downloadSigner
	jobs      jobEnqueuer
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ResourceServiceConfig
	extSet    map[string]struct{}
}

// NewResourceService constructs the service with defaults.
func NewResourceService(deps ResourceServiceDeps, cfg ResourceServiceConfig) *ResourceService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{"pdf", "doc", "docx", "ppt", "pptx", "xls", "xlsx", "png", "jpg", "jpeg", "zip", "rar"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	extSet := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		extSet[strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")] = struct{}{}
	}
	return &ResourceService{
		repo:      deps.Resources,
		ratings:   deps.Ratings,
		wishlist:  deps.Wishlist,
		files:     deps.Files,
		signer:    deps.Signer,
		jobs:      deps.Jobs,
		audit:     deps.Audit,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		cfg:       cfg,
		extSet:    extSet,
	}
}

// Upload fingerprints the file, rejects exact duplicates, stores the bytes and
// records the resource. Staff uploads are approved immediately; student uploads
// wait for moderation. When meta.RequestID is set the linked wishlist entry is
// fulfilled; a failure there is reported as a warning, not an error.
func (s *ResourceService) Upload(ctx context.Context, meta dto.CreateResourceRequest, upload ResourceUpload, actor *models.JWTClaims) (*UploadResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	meta.Title = sanitize.Text(meta.Title)
	meta.Description = sanitize.Text(meta.Description)
	if err := s.validateUploadMeta(meta); err != nil {
		s.metrics.RecordUpload(UploadResultRejected)
		return nil, err
	}
	ext, err := s.validateFile(upload)
	if err != nil {
		s.metrics.RecordUpload(UploadResultRejected)
		return nil, err
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}

	hash, err := fingerprint.ComputeSeeker(upload.Content)
	if err != nil {
		s.metrics.RecordUpload(UploadResultFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint upload")
	}
	exists, err := s.repo.ExistsByFingerprint(ctx, hash)
	if err != nil {
		s.metrics.RecordUpload(UploadResultFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for duplicates")
	}
	if exists {
		s.metrics.RecordUpload(UploadResultDuplicate)
		return nil, appErrors.ErrDuplicateContent
	}

	key := fmt.Sprintf("resources/%s.%s", uuid.NewString(), ext)
	path, err := s.files.SaveStream(ctx, key, upload.Content, upload.Size, mimeType)
	if err != nil {
		s.metrics.RecordUpload(UploadResultFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store resource file")
	}

	status := models.StatusPending
	if actor.Role.IsStaff() {
		status = models.StatusApproved
	}
	res := &models.Resource{
		UploaderID:   actor.UserID,
		DepartmentID: actor.DepartmentID,
		Title:        meta.Title,
		Description:  meta.Description,
		Category:     models.ResourceCategory(meta.Category),
		FilePath:     path,
		FileHash:     hash,
		FileType:     mimeType,
		SizeBytes:    upload.Size,
		Status:       status,
		RequestID:    normalizeRef(meta.RequestID),
	}
	if err := s.repo.Create(ctx, res); err != nil {
		s.discardFile(ctx, path)
		if errors.Is(err, repository.ErrDuplicateFingerprint) {
			s.metrics.RecordUpload(UploadResultDuplicate)
			return nil, appErrors.ErrDuplicateContent
		}
		if errors.Is(err, repository.ErrUnknownRequest) {
			s.metrics.RecordUpload(UploadResultRejected)
			return nil, appErrors.Clone(appErrors.ErrValidation, "requestId does not match an existing request")
		}
		s.metrics.RecordUpload(UploadResultFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resource")
	}

	result := &UploadResult{Resource: res}
	if res.RequestID != nil && s.wishlist != nil {
		if err := s.wishlist.Fulfill(ctx, *res.RequestID, actor); err != nil {
			s.logger.Warn("resource uploaded but request not fulfilled",
				zap.String("resource_id", res.ID),
				zap.String("request_id", *res.RequestID),
				zap.Error(err))
			result.Warnings = append(result.Warnings, "resource uploaded but the linked request could not be marked fulfilled")
		}
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionResourceUpload,
		Resource:   "resource",
		ResourceID: &res.ID,
		NewValues: auditValues(map[string]interface{}{
			"title":     res.Title,
			"category":  res.Category,
			"status":    res.Status,
			"file_hash": res.FileHash,
		}),
	})
	s.metrics.RecordUpload(UploadResultAccepted)
	_ = s.cache.Invalidate(ctx, cachePatternStats)
	return result, nil
}

// List returns resources visible to the actor. Non staff may only browse
// approved resources (or their own via Mine); staff listing other statuses are
// confined to their department.
func (s *ResourceService) List(ctx context.Context, query dto.ResourceQuery, actor *models.JWTClaims) ([]models.ResourceSummary, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	departmentID, err := departmentFilter(query.DepartmentID)
	if err != nil {
		return nil, nil, err
	}
	filter := models.ResourceFilter{
		Search:       strings.TrimSpace(query.Search),
		DepartmentID: departmentID,
		Trending:     query.Trending,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if query.Category != "" {
		category := models.ResourceCategory(query.Category)
		if !category.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
		filter.Category = category
	}
	if query.Mine {
		filter.OwnerID = actor.UserID
	} else {
		statuses, err := parseStatuses(query.Status)
		if err != nil {
			return nil, nil, err
		}
		if !onlyApproved(statuses) {
			if !actor.Role.IsStaff() {
				return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can list unapproved resources")
			}
			filter.DepartmentID = actor.DepartmentID
		}
		filter.Statuses = statuses
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	page, size := pageBounds(query.Page, query.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a resource summary. Unapproved resources are only visible to
// their uploader and to staff of the owning department.
func (s *ResourceService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ResourceSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	summary, err := s.repo.GetSummary(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if !canView(actor, &summary.Resource) {
		return nil, appErrors.ErrNotFound
	}
	return summary, nil
}

// RequestDownload counts the download and returns a signed file URL.
func (s *ResourceService) RequestDownload(ctx context.Context, id string, actor *models.JWTClaims) (*DownloadLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	summary, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(summary.ID, summary.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	if summary.Status == models.StatusApproved {
		s.countDownload(ctx, summary.ID)
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	link := fmt.Sprintf("%s/resources/%s/file?token=%s", base, summary.ID, url.QueryEscape(token))
	return &DownloadLink{URL: link, ExpiresAt: expiresAt}, nil
}

// OpenFile validates a signed token and opens the resource file.
func (s *ResourceService) OpenFile(ctx context.Context, id, token string, actor *models.JWTClaims) (*ResourceDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	summary, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.signer.Verify(token, summary.ID, summary.FilePath); err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	reader, err := s.files.Open(ctx, summary.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource file missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open resource file")
	}
	return &ResourceDownload{
		Reader:    reader,
		Filename:  downloadFilename(summary.Title, summary.FilePath),
		MimeType:  summary.FileType,
		SizeBytes: summary.SizeBytes,
	}, nil
}

// IncrementDownloads applies a queued download count. A resource purged in the
// meantime is ignored.
func (s *ResourceService) IncrementDownloads(ctx context.Context, id string) error {
	if err := s.repo.IncrementDownloadCount(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	return nil
}

// RequestDeletion moves an approved resource owned by the actor to
// deletion_requested and files a deletion request for staff.
func (s *ResourceService) RequestDeletion(ctx context.Context, id string, req dto.DeletionReasonRequest, actor *models.JWTClaims) (*models.DeletionRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Reason = sanitize.Text(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deletion request")
	}
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if err := Authorize(actor, res, ActionRequestDeletion); err != nil {
		return nil, err
	}
	deletion := &models.DeletionRequest{ResourceID: res.ID, RequestedBy: actor.UserID, Reason: req.Reason}
	if err := s.repo.RequestDeletion(ctx, deletion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "resource changed state, deletion not requested")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to request deletion")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     ActionRequestDeletion.AuditAction(),
		Resource:   "resource",
		ResourceID: &res.ID,
		OldValues:  auditValues(map[string]interface{}{"status": res.Status}),
		NewValues:  auditValues(map[string]interface{}{"status": models.StatusDeletionRequested, "reason": req.Reason}),
	})
	s.metrics.RecordModeration(ActionRequestDeletion)
	_ = s.cache.Invalidate(ctx, cachePatternStats)
	return deletion, nil
}

// Rate records the actor's score for an approved resource and returns the new
// aggregate. Rating again replaces the previous score.
func (s *ResourceService) Rate(ctx context.Context, req dto.RateResourceRequest, actor *models.JWTClaims) (*models.RatingSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Rating < models.MinRating || req.Rating > models.MaxRating {
		return nil, appErrors.ErrInvalidRating
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}
	res, err := s.repo.GetByID(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	if res.Status != models.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved resources can be rated")
	}
	if err := s.ratings.Upsert(ctx, &models.Rating{ResourceID: res.ID, UserID: actor.UserID, Rating: req.Rating}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save rating")
	}
	return s.Average(ctx, res.ID)
}

// Average returns the rating aggregate; resources without ratings average 0.
func (s *ResourceService) Average(ctx context.Context, resourceID string) (*models.RatingSummary, error) {
	summary, err := s.ratings.Summary(ctx, resourceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rating summary")
	}
	return summary, nil
}

func (s *ResourceService) countDownload(ctx context.Context, id string) {
	s.metrics.RecordDownload()
	if s.jobs != nil {
		err := s.jobs.TryEnqueue(jobs.Job{Type: JobTypeDownloadIncrement, Payload: DownloadIncrementPayload{ResourceID: id}})
		if err == nil {
			return
		}
		s.logger.Debug("download counter queue unavailable, counting inline", zap.Error(err))
	}
	if err := s.IncrementDownloads(ctx, id); err != nil {
		s.logger.Warn("failed to increment download count", zap.String("resource_id", id), zap.Error(err))
	}
}

// discardFile removes a stored upload that has no row. When the delete fails
// the key is queued for another attempt; the orphan sweeper is the last resort.
func (s *ResourceService) discardFile(ctx context.Context, key string) {
	err := s.files.Delete(ctx, key)
	if err == nil {
		return
	}
	s.logger.Error("failed to remove orphaned upload", zap.String("key", key), zap.Error(err))
	if s.jobs != nil {
		if qErr := s.jobs.TryEnqueue(jobs.Job{Type: JobTypeStorageDelete, Payload: StorageDeletePayload{Key: key}}); qErr != nil {
			s.logger.Warn("failed to queue upload cleanup", zap.String("key", key), zap.Error(qErr))
		}
	}
}

func (s *ResourceService) validateUploadMeta(meta dto.CreateResourceRequest) error {
	if err := s.validator.Struct(meta); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource metadata")
	}
	if !models.ResourceCategory(meta.Category).Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}
	return nil
}

func (s *ResourceService) validateFile(upload ResourceUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(upload.Filename)), ".")
	if _, ok := s.extSet[ext]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
	}
	return ext, nil
}

func (s *ResourceService) detectMime(upload ResourceUpload) (string, error) {
	if upload.MimeType != "" && upload.MimeType != "application/octet-stream" {
		return upload.MimeType, nil
	}
	detected, err := mimetype.DetectReader(upload.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	return detected.String(), nil
}

func (s *ResourceService) emitAudit(ctx context.Context, entry *models.AuditLog) {
	recordAudit(ctx, s.audit, s.logger, entry)
}

func canView(actor *models.JWTClaims, res *models.Resource) bool {
	if res.Status == models.StatusApproved || res.UploaderID == actor.UserID {
		return true
	}
	return actor.Role.IsStaff() && actor.DepartmentID == res.DepartmentID
}

func parseStatuses(raw string) ([]models.ResourceStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return []models.ResourceStatus{models.StatusApproved}, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]models.ResourceStatus, 0, len(parts))
	for _, part := range parts {
		status := models.ResourceStatus(strings.ToLower(strings.TrimSpace(part)))
		if status == "" {
			continue
		}
		if !status.Persisted() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", part))
		}
		statuses = append(statuses, status)
	}
	if len(statuses) == 0 {
		return []models.ResourceStatus{models.StatusApproved}, nil
	}
	return statuses, nil
}

func onlyApproved(statuses []models.ResourceStatus) bool {
	for _, status := range statuses {
		if status != models.StatusApproved {
			return false
		}
	}
	return true
}

func pageBounds(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func normalizeRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*ref)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func downloadFilename(title, key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "resource"
	}
	return name + strings.ToLower(filepath.Ext(key))
}

func departmentFilter(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "departmentId must be a uuid")
	}
	return raw, nil
}
