package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rootle-api/internal/dto"
	"github.com/noah-isme/rootle-api/internal/models"
	"github.com/noah-isme/rootle-api/internal/service"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
	"github.com/noah-isme/rootle-api/pkg/response"
)

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

type resourceService interface {
	Upload(ctx context.Context, meta dto.CreateResourceRequest, upload service.ResourceUpload, actor *models.JWTClaims) (*service.UploadResult, error)
	List(ctx context.Context, query dto.ResourceQuery, actor *models.JWTClaims) ([]models.ResourceSummary, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ResourceSummary, error)
	RequestDownload(ctx context.Context, id string, actor *models.JWTClaims) (*service.DownloadLink, error)
	OpenFile(ctx context.Context, id, token string, actor *models.JWTClaims) (*service.ResourceDownload, error)
	RequestDeletion(ctx context.Context, id string, req dto.DeletionReasonRequest, actor *models.JWTClaims) (*models.DeletionRequest, error)
	Rate(ctx context.Context, req dto.RateResourceRequest, actor *models.JWTClaims) (*models.RatingSummary, error)
}

// ResourceHandler exposes resource upload, discovery and download endpoints.
type ResourceHandler struct {
	service        resourceService
	maxUploadBytes int64
}

// NewResourceHandler constructs the handler. maxFileSize bounds the request
// body; the service applies the precise per file limit.
func NewResourceHandler(svc resourceService, maxFileSize int64) *ResourceHandler {
	return &ResourceHandler{service: svc, maxUploadBytes: maxFileSize + multipartOverhead}
}

// Upload godoc
// @Summary Upload a resource
// @Description Students' uploads wait for review; staff uploads are published immediately.
// @Tags Resources
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Resource file"
// @Param title formData string true "Title"
// @Param category formData string true "Category"
// @Param description formData string false "Description"
// @Param requestId formData string false "Wishlist request fulfilled by this upload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Upload(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if h.maxUploadBytes > multipartOverhead {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	var meta dto.CreateResourceRequest
	if err := c.ShouldBind(&meta); err != nil {
		response.Error(c, uploadBindError(err, "invalid upload form"))
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, uploadBindError(err, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.service.Upload(c.Request.Context(), meta, service.ResourceUpload{
		Filename: filepath.Base(header.Filename),
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "resource uploaded and awaiting review"
	if result.Resource.Status == models.StatusApproved {
		message = "resource uploaded and published"
	}
	response.Created(c, dto.UploadResponse{Resource: *result.Resource, Message: message}, metaWithWarnings(c, result.Warnings))
}

// List godoc
// @Summary List resources
// @Description Approved resources by default; mine=true lists the caller's uploads in every state.
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param search query string false "Case-insensitive title search"
// @Param category query string false "Category"
// @Param departmentId query string false "Department"
// @Param mine query bool false "Only my uploads"
// @Param trending query bool false "Order by downloads"
// @Param status query string false "Comma separated statuses (staff)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.ResourceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get resource
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Download godoc
// @Summary Request a download link
// @Description Counts the download and returns a short lived signed URL for the file.
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/download [post]
func (h *ResourceHandler) Download(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	link, err := h.service.RequestDownload(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DownloadLinkResponse{
		ResourceID:  id,
		DownloadURL: link.URL,
		ExpiresAt:   link.ExpiresAt,
	}, nil)
}

// File godoc
// @Summary Stream a resource file
// @Tags Resources
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/file [get]
func (h *ResourceHandler) File(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.OpenFile(c.Request.Context(), id, token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Reader.Close()

	contentType := download.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": download.Filename})
	c.DataFromReader(http.StatusOK, download.SizeBytes, contentType, download.Reader, map[string]string{
		"Content-Disposition": disposition,
		"Cache-Control":       "private, no-store",
	})
}

// Delete godoc
// @Summary Request deletion of my resource
// @Description Flags an approved resource for staff review; staff confirm the purge.
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Param payload body dto.DeletionReasonRequest false "Reason"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.DeletionReasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	deletion, err := h.service.RequestDeletion(c.Request.Context(), id, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, deletion)
}

// Rate godoc
// @Summary Rate a resource
// @Description Creates or replaces the caller's rating (1-5) and returns the new average.
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RateResourceRequest true "Rating"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources/rate [post]
func (h *ResourceHandler) Rate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.RateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rating payload"))
		return
	}
	summary, err := h.service.Rate(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

func uploadBindError(err error, message string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum upload size")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
