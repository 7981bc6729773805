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

type requestService interface {
	Create(ctx context.Context, req dto.CreateWishlistRequest, actor *models.JWTClaims) (*models.ResourceRequest, error)
	ListOpen(ctx context.Context, query dto.WishlistQuery, actor *models.JWTClaims) ([]models.ResourceRequestSummary, error)
	Fulfill(ctx context.Context, id string, actor *models.JWTClaims) error
}

// RequestHandler exposes the wishlist.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(svc requestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// Create godoc
// @Summary Ask for a resource
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateWishlistRequest true "Request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateWishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary Open requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param departmentId query string false "Department"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.WishlistQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.ListOpen(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Fulfill godoc
// @Summary Mark a request fulfilled
// @Description Fulfilling an already fulfilled request succeeds without changes.
// @Tags Requests
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/fulfill [put]
func (h *RequestHandler) Fulfill(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Fulfill(c.Request.Context(), id, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
