package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rootle-api/internal/dto"
	"github.com/noah-isme/rootle-api/internal/middleware"
	"github.com/noah-isme/rootle-api/internal/models"
	"github.com/noah-isme/rootle-api/internal/service"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
)

const testResourceID = "8d3c1c5e-8f0e-4c65-9a55-3f1f2b9d2a10"

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	}
}

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, DepartmentID: "dept-1"}
}

type fakeResourceService struct {
	uploadMeta   dto.CreateResourceRequest
	uploadBody   string
	uploadName   string
	uploadResult *service.UploadResult
	listQuery    dto.ResourceQuery
	getCalls     int
	download     *service.ResourceDownload
	deletionReq  dto.DeletionReasonRequest
	rateErr      error
	err          error
}

func (f *fakeResourceService) Upload(_ context.Context, meta dto.CreateResourceRequest, upload service.ResourceUpload, _ *models.JWTClaims) (*service.UploadResult, error) {
	f.uploadMeta = meta
	f.uploadName = upload.Filename
	body, _ := io.ReadAll(upload.Content)
	f.uploadBody = string(body)
	if f.err != nil {
		return nil, f.err
	}
	return f.uploadResult, nil
}

func (f *fakeResourceService) List(_ context.Context, query dto.ResourceQuery, _ *models.JWTClaims) ([]models.ResourceSummary, *models.Pagination, error) {
	f.listQuery = query
	return []models.ResourceSummary{}, &models.Pagination{Page: 1, PageSize: 20}, f.err
}

func (f *fakeResourceService) Get(_ context.Context, id string, _ *models.JWTClaims) (*models.ResourceSummary, error) {
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.ResourceSummary{Resource: models.Resource{ID: id}}, nil
}

func (f *fakeResourceService) RequestDownload(_ context.Context, id string, _ *models.JWTClaims) (*service.DownloadLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.DownloadLink{URL: "/api/resources/" + id + "/file?token=abc", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeResourceService) OpenFile(context.Context, string, string, *models.JWTClaims) (*service.ResourceDownload, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.download, nil
}

func (f *fakeResourceService) RequestDeletion(_ context.Context, id string, req dto.DeletionReasonRequest, _ *models.JWTClaims) (*models.DeletionRequest, error) {
	f.deletionReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.DeletionRequest{ID: "del-1", ResourceID: id, Reason: req.Reason}, nil
}

func (f *fakeResourceService) Rate(_ context.Context, req dto.RateResourceRequest, _ *models.JWTClaims) (*models.RatingSummary, error) {
	if f.rateErr != nil {
		return nil, f.rateErr
	}
	return &models.RatingSummary{ResourceID: req.ResourceID, Average: float64(req.Rating), Count: 1}, nil
}

func resourceRouter(svc *fakeResourceService, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewResourceHandler(svc, 1024)
	router := gin.New()
	router.Use(middleware.WithResponseMeta(), withClaims(claims))
	router.POST("/resources", h.Upload)
	router.GET("/resources", h.List)
	router.POST("/resources/rate", h.Rate)
	router.GET("/resources/:id", h.Get)
	router.POST("/resources/:id/download", h.Download)
	router.GET("/resources/:id/file", h.File)
	router.DELETE("/resources/:id", h.Delete)
	return router
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/resources", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadPassesFileAndWarnings(t *testing.T) {
	svc := &fakeResourceService{uploadResult: &service.UploadResult{
		Resource: &models.Resource{ID: testResourceID, Title: "Lecture notes", Status: models.StatusPending},
		Warnings: []string{"request could not be marked fulfilled"},
	}}
	router := resourceRouter(svc, studentClaims())

	req := multipartUpload(t, map[string]string{"title": "Lecture notes", "category": "Notes", "requestId": testResourceID}, "notes.pdf", "%PDF-1.4 body")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Lecture notes", svc.uploadMeta.Title)
	require.NotNil(t, svc.uploadMeta.RequestID)
	assert.Equal(t, testResourceID, *svc.uploadMeta.RequestID)
	assert.Equal(t, "notes.pdf", svc.uploadName)
	assert.Equal(t, "%PDF-1.4 body", svc.uploadBody)

	env := decodeEnvelope(t, rec)
	assert.Contains(t, string(env.Data), "awaiting review")
	assert.Equal(t, []interface{}{"request could not be marked fulfilled"}, env.Meta["warnings"])
}

func TestUploadRequiresFile(t *testing.T) {
	router := resourceRouter(&fakeResourceService{}, studentClaims())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, map[string]string{"title": "x", "category": "Notes"}, "", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	router := resourceRouter(&fakeResourceService{}, studentClaims())

	rec := httptest.NewRecorder()
	big := strings.Repeat("a", 1024+multipartOverhead+1)
	router.ServeHTTP(rec, multipartUpload(t, map[string]string{"title": "x", "category": "Notes"}, "big.pdf", big))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAnonymous(t *testing.T) {
	router := resourceRouter(&fakeResourceService{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, map[string]string{"title": "x"}, "a.pdf", "a"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDuplicateUploadIsBadRequest(t *testing.T) {
	router := resourceRouter(&fakeResourceService{err: appErrors.ErrDuplicateContent}, studentClaims())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, map[string]string{"title": "x", "category": "Notes"}, "a.pdf", "a"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrDuplicateContent.Code, env.Error.Code)
}

func TestListBindsQuery(t *testing.T) {
	svc := &fakeResourceService{}
	router := resourceRouter(svc, studentClaims())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resources?search=calc&mine=true&trending=true&page=2&pageSize=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.ResourceQuery{Search: "calc", Mine: true, Trending: true, Page: 2, PageSize: 5}, svc.listQuery)
	assert.NotNil(t, decodeEnvelope(t, rec).Pagination)
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc := &fakeResourceService{}
	router := resourceRouter(svc, studentClaims())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resources/not-a-uuid", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, svc.getCalls)
}

func TestDownloadReturnsSignedURL(t *testing.T) {
	router := resourceRouter(&fakeResourceService{}, studentClaims())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resources/"+testResourceID+"/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var link dto.DownloadLinkResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &link))
	assert.Equal(t, testResourceID, link.ResourceID)
	assert.Contains(t, link.DownloadURL, "token=")
}

func TestFileStreamsAttachment(t *testing.T) {
	svc := &fakeResourceService{download: &service.ResourceDownload{
		Reader:    io.NopCloser(strings.NewReader("file-bytes")),
		Filename:  "lecture-notes.pdf",
		MimeType:  "application/pdf",
		SizeBytes: int64(len("file-bytes")),
	}}
	router := resourceRouter(svc, studentClaims())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resources/"+testResourceID+"/file?token=abc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "file-bytes", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=lecture-notes.pdf`, rec.Header().Get("Content-Disposition"))
}

func TestFileRequiresToken(t *testing.T) {
	router := resourceRouter(&fakeResourceService{}, studentClaims())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resources/"+testResourceID+"/file", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteFilesDeletionRequest(t *testing.T) {
	svc := &fakeResourceService{}
	router := resourceRouter(svc, studentClaims())

	req := httptest.NewRequest(http.MethodDelete, "/resources/"+testResourceID, strings.NewReader(`{"reason":"outdated"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "outdated", svc.deletionReq.Reason)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/resources/"+testResourceID, nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRateMapsDomainErrors(t *testing.T) {
	svc := &fakeResourceService{rateErr: appErrors.ErrInvalidRating}
	router := resourceRouter(svc, studentClaims())

	req := httptest.NewRequest(http.MethodPost, "/resources/rate", strings.NewReader(`{"resourceId":"`+testResourceID+`","rating":9}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, appErrors.ErrInvalidRating.Code, decodeEnvelope(t, rec).Error.Code)
}
