package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
	"github.com/noah-isme/rootle-api/pkg/export"
)

const recentUploadsLimit = 5

type statsStore interface {
	Totals(ctx context.Context) (*models.PlatformTotals, error)
	ResourcesByFaculty(ctx context.Context) ([]models.FacultyResourceCount, error)
	RecentUploads(ctx context.Context, limit int) ([]models.RecentUpload, error)
}

// StatsExport is a rendered stats document.
type StatsExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// StatsService aggregates platform statistics for administrators.
type StatsService struct {
	repo    statsStore
	cache   *CacheService
	metrics *MetricsService
	audit   auditLogger
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewStatsService constructs a StatsService.
func NewStatsService(repo statsStore, cache *CacheService, metrics *MetricsService, audit auditLogger, ttl time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsService{repo: repo, cache: cache, metrics: metrics, audit: audit, ttl: ttl, logger: logger, now: time.Now}
}

// Platform returns totals, the per faculty distribution and recent uploads.
// The aggregate is cached; the system snapshot is always live.
func (s *StatsService) Platform(ctx context.Context) (*models.PlatformStats, bool, error) {
	stats, hit, err := Remember(ctx, s.cache, cacheKeyPlatformStats, s.ttl, s.load)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load platform stats")
	}
	if s.metrics != nil {
		snapshot := s.metrics.Snapshot()
		stats.System = &snapshot
	}
	return stats, hit, nil
}

// Export renders the platform stats as CSV or PDF.
func (s *StatsService) Export(ctx context.Context, rawFormat string, actor *models.JWTClaims) (*StatsExport, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	stats, _, err := s.Platform(ctx)
	if err != nil {
		return nil, err
	}
	body, err := export.Render(format, statsDataset(stats), "Rootle platform statistics")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render stats export")
	}
	if actor != nil {
		recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
			UserID:    &actor.UserID,
			Action:    models.AuditActionStatsExport,
			Resource:  "stats",
			NewValues: auditValues(map[string]interface{}{"format": format}),
		})
	}
	return &StatsExport{
		Filename:    format.Filename("platform-stats-" + s.now().UTC().Format("20060102")),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (s *StatsService) load(ctx context.Context) (*models.PlatformStats, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("platform_stats", time.Since(start)) }()

	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	byFaculty, err := s.repo.ResourcesByFaculty(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentUploads(ctx, recentUploadsLimit)
	if err != nil {
		return nil, err
	}
	if byFaculty == nil {
		byFaculty = []models.FacultyResourceCount{}
	}
	if recent == nil {
		recent = []models.RecentUpload{}
	}
	return &models.PlatformStats{
		Totals:        *totals,
		ByFaculty:     byFaculty,
		RecentUploads: recent,
		GeneratedAt:   s.now().UTC(),
	}, nil
}

func statsDataset(stats *models.PlatformStats) export.Dataset {
	data := export.Dataset{Headers: []string{"Section", "Label", "Value"}}
	add := func(section, label, value string) {
		data.Rows = append(data.Rows, map[string]string{"Section": section, "Label": label, "Value": value})
	}
	add("Totals", "Users", strconv.Itoa(stats.Totals.Users))
	add("Totals", "Resources", strconv.Itoa(stats.Totals.Resources))
	add("Totals", "Departments", strconv.Itoa(stats.Totals.Departments))
	add("Totals", "Pending review", strconv.Itoa(stats.Totals.Pending))
	for _, row := range stats.ByFaculty {
		add("By faculty", row.Faculty, strconv.Itoa(row.Total))
	}
	for _, upload := range stats.RecentUploads {
		add("Recent uploads", upload.Title, upload.Uploader+" "+upload.CreatedAt.UTC().Format(time.RFC3339))
	}
	return data
}
