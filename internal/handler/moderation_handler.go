package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rootle-api/internal/dto"
	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
	"github.com/noah-isme/rootle-api/pkg/response"
)

type moderationService interface {
	Approve(ctx context.Context, id string, actor *models.JWTClaims) (*models.Resource, error)
	Reject(ctx context.Context, id string, actor *models.JWTClaims) error
	ConfirmPurge(ctx context.Context, id string, actor *models.JWTClaims) error
	RejectDeletion(ctx context.Context, deletionRequestID string, actor *models.JWTClaims) (*models.Resource, error)
	PendingQueue(ctx context.Context, query dto.PageQuery, actor *models.JWTClaims) ([]models.ResourceSummary, *models.Pagination, error)
	DeletionQueue(ctx context.Context, actor *models.JWTClaims) ([]models.DeletionRequestSummary, error)
}

// ModerationHandler exposes the staff review queue.
type ModerationHandler struct {
	service moderationService
}

// NewModerationHandler constructs the handler.
func NewModerationHandler(svc moderationService) *ModerationHandler {
	return &ModerationHandler{service: svc}
}

// Pending godoc
// @Summary Pending resources of my department
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/resources/pending [get]
func (h *ModerationHandler) Pending(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.PendingQueue(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Approve godoc
// @Summary Approve a pending resource
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/resources/{id}/approve [put]
func (h *ModerationHandler) Approve(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.service.Approve(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Reject godoc
// @Summary Reject a pending resource
// @Description The resource row and its file are removed.
// @Tags Moderation
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/resources/{id}/reject [delete]
func (h *ModerationHandler) Reject(c *gin.Context) {
	h.purge(c, h.service.Reject)
}

// Purge godoc
// @Summary Confirm a deletion request
// @Description Permanently removes a resource whose owner asked for deletion.
// @Tags Moderation
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/resources/{id}/permanent [delete]
func (h *ModerationHandler) Purge(c *gin.Context) {
	h.purge(c, h.service.ConfirmPurge)
}

// DeletionRequests godoc
// @Summary Open deletion requests of my department
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/deletion-requests [get]
func (h *ModerationHandler) DeletionRequests(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, err := h.service.DeletionQueue(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// RejectDeletion godoc
// @Summary Dismiss a deletion request
// @Description The resource returns to approved.
// @Tags Moderation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deletion request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/deletion-requests/{id} [delete]
func (h *ModerationHandler) RejectDeletion(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.service.RejectDeletion(c.Request.Context(), id, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

func (h *ModerationHandler) purge(c *gin.Context, action func(context.Context, string, *models.JWTClaims) error) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := action(c.Request.Context(), id, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
