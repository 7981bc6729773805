package models

import "time"

// ResourceStatus is the moderation state of a resource. Only pending,
// approved and deletion_requested are ever persisted; rejected and purged
// resources have their row deleted.
type ResourceStatus string

const (
	StatusPending           ResourceStatus = "pending"
	StatusApproved          ResourceStatus = "approved"
	StatusDeletionRequested ResourceStatus = "deletion_requested"
	StatusRejected          ResourceStatus = "rejected"
	StatusPurged            ResourceStatus = "purged"
)

// ResourceStatuses lists every status in lifecycle order.
var ResourceStatuses = []ResourceStatus{
	StatusPending,
	StatusApproved,
	StatusDeletionRequested,
	StatusRejected,
	StatusPurged,
}

// Valid reports whether s is a known status.
func (s ResourceStatus) Valid() bool {
	for _, known := range ResourceStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the lifecycle.
func (s ResourceStatus) Terminal() bool {
	return s == StatusRejected || s == StatusPurged
}

// Persisted reports whether a row can hold s.
func (s ResourceStatus) Persisted() bool {
	return s.Valid() && !s.Terminal()
}

// ResourceCategory classifies uploaded material.
type ResourceCategory string

const (
	CategoryNotes        ResourceCategory = "Notes"
	CategoryPastQuestion ResourceCategory = "Past Question"
	CategoryResearch     ResourceCategory = "Research"
	CategoryTextbook     ResourceCategory = "Textbook"
	CategoryAssignment   ResourceCategory = "Assignment"
	CategoryOther        ResourceCategory = "Other"
)

// ResourceCategories lists accepted categories.
var ResourceCategories = []ResourceCategory{
	CategoryNotes,
	CategoryPastQuestion,
	CategoryResearch,
	CategoryTextbook,
	CategoryAssignment,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c ResourceCategory) Valid() bool {
	for _, known := range ResourceCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Resource is an uploaded file and its moderation state.
type Resource struct {
	ID            string           `db:"id" json:"id"`
	UploaderID    string           `db:"uploader_id" json:"uploader_id"`
	DepartmentID  string           `db:"department_id" json:"department_id"`
	Title         string           `db:"title" json:"title"`
	Description   string           `db:"description" json:"description"`
	Category      ResourceCategory `db:"category" json:"category"`
	FilePath      string           `db:"file_path" json:"-"`
	FileHash      string           `db:"file_hash" json:"file_hash"`
	FileType      string           `db:"file_type" json:"file_type"`
	SizeBytes     int64            `db:"size_bytes" json:"size_bytes"`
	Status        ResourceStatus   `db:"status" json:"status"`
	DownloadCount int64            `db:"download_count" json:"download_count"`
	RequestID     *string          `db:"request_id" json:"request_id,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// ResourceSummary is a resource enriched for listings.
type ResourceSummary struct {
	Resource
	UploaderName   string  `db:"uploader_name" json:"uploader_name"`
	DepartmentName string  `db:"department_name" json:"department_name"`
	AverageRating  float64 `db:"average_rating" json:"average_rating"`
	RatingCount    int     `db:"rating_count" json:"rating_count"`
}

// ResourceFilter captures listing criteria. OwnerID selects the caller's own
// resources in every persisted status and ignores Statuses.
type ResourceFilter struct {
	Search       string
	Category     ResourceCategory
	DepartmentID string
	OwnerID      string
	Trending     bool
	Statuses     []ResourceStatus
	Page         int
	PageSize     int
}

// TransitionParams describes a conditional status update.
type TransitionParams struct {
	ID           string
	DepartmentID string
	From         ResourceStatus
	To           ResourceStatus
}

// PurgeParams describes a conditional resource deletion.
type PurgeParams struct {
	ID           string
	DepartmentID string
	From         ResourceStatus
}

// DeletionRequest flags a resource for staff review of its removal.
type DeletionRequest struct {
	ID          string    `db:"id" json:"id"`
	ResourceID  string    `db:"resource_id" json:"resource_id"`
	RequestedBy string    `db:"requested_by" json:"requested_by"`
	Reason      string    `db:"reason" json:"reason"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DeletionRequestSummary joins a deletion request with its resource.
type DeletionRequestSummary struct {
	DeletionRequest
	ResourceTitle  string `db:"resource_title" json:"resource_title"`
	DepartmentID   string `db:"department_id" json:"department_id"`
	RequesterName  string `db:"requester_name" json:"requester_name"`
	ResourceStatus string `db:"resource_status" json:"resource_status"`
}
