package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rootle-api/internal/middleware"
	"github.com/noah-isme/rootle-api/internal/models"
	"github.com/noah-isme/rootle-api/internal/service"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
)

type fakeStatsService struct {
	hit       bool
	format    string
	exportErr error
}

func (f *fakeStatsService) Platform(context.Context) (*models.PlatformStats, bool, error) {
	return &models.PlatformStats{Totals: models.PlatformTotals{Users: 3}}, f.hit, nil
}

func (f *fakeStatsService) Export(_ context.Context, format string, _ *models.JWTClaims) (*service.StatsExport, error) {
	f.format = format
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return &service.StatsExport{Filename: "platform-stats-20260101.csv", ContentType: "text/csv", Body: []byte("Section,Label,Value\n")}, nil
}

func statsRouter(svc *fakeStatsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStatsHandler(svc)
	router := gin.New()
	router.Use(middleware.WithResponseMeta(), withClaims(&models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}))
	router.GET("/admin/stats", h.Platform)
	router.GET("/admin/stats/export", h.Export)
	return router
}

func TestStatsPlatformReportsCacheHit(t *testing.T) {
	router := statsRouter(&fakeStatsService{hit: true})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, true, decodeEnvelope(t, rec).Meta["cache_hit"])
}

func TestStatsExportDefaultsToCSV(t *testing.T) {
	svc := &fakeStatsService{}
	router := statsRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", svc.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=platform-stats-20260101.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Section,Label,Value\n", rec.Body.String())
}

func TestStatsExportUnknownFormat(t *testing.T) {
	router := statsRouter(&fakeStatsService{exportErr: appErrors.Clone(appErrors.ErrValidation, "unsupported format")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats/export?format=xlsx", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
