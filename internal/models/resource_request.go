package models

import "time"

// ResourceRequest is a wishlist entry for material not yet uploaded.
type ResourceRequest struct {
	ID           string     `db:"id" json:"id"`
	RequesterID  string     `db:"requester_id" json:"requester_id"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Fulfilled    bool       `db:"fulfilled" json:"fulfilled"`
	FulfilledBy  *string    `db:"fulfilled_by" json:"fulfilled_by,omitempty"`
	FulfilledAt  *time.Time `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// ResourceRequestSummary adds display names for listings.
type ResourceRequestSummary struct {
	ResourceRequest
	RequesterName  string  `db:"requester_name" json:"requester_name"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
}
