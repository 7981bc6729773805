package dto

import (
	"time"

	"github.com/noah-isme/rootle-api/internal/models"
)

// CreateResourceRequest contains metadata submitted alongside a file upload.
type CreateResourceRequest struct {
	Title       string  `form:"title" json:"title" validate:"required,max=200"`
	Category    string  `form:"category" json:"category" validate:"required"`
	Description string  `form:"description" json:"description" validate:"max=2000"`
	RequestID   *string `form:"requestId" json:"requestId" validate:"omitempty,uuid"`
}

// ResourceQuery captures listing query parameters.
type ResourceQuery struct {
	Search       string `form:"search"`
	Category     string `form:"category"`
	DepartmentID string `form:"departmentId"`
	Mine         bool   `form:"mine"`
	Trending     bool   `form:"trending"`
	Status       string `form:"status"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}

// RateResourceRequest is the body of POST /resources/rate.
type RateResourceRequest struct {
	ResourceID string `json:"resourceId" validate:"required,uuid"`
	Rating     int    `json:"rating"`
}

// DeletionReasonRequest optionally explains an owner deletion request.
type DeletionReasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// UploadResponse wraps a freshly created resource.
type UploadResponse struct {
	models.Resource
	Message string `json:"message"`
}

// DownloadLinkResponse carries a signed, short lived file URL.
type DownloadLinkResponse struct {
	ResourceID  string    `json:"resourceId"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
