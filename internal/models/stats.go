package models

import "time"

// PlatformTotals counts top-level entities.
type PlatformTotals struct {
	Users       int `db:"users" json:"users"`
	Resources   int `db:"resources" json:"resources"`
	Departments int `db:"departments" json:"departments"`
	Pending     int `db:"pending" json:"pending"`
}

// FacultyResourceCount is one bar of the per-faculty distribution.
type FacultyResourceCount struct {
	Faculty string `db:"faculty" json:"faculty"`
	Total   int    `db:"total" json:"total"`
}

// RecentUpload is a row of the recent activity feed.
type RecentUpload struct {
	ResourceID string    `db:"resource_id" json:"resource_id"`
	Title      string    `db:"title" json:"title"`
	Uploader   string    `db:"uploader" json:"uploader"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// PlatformStats powers the admin dashboard.
type PlatformStats struct {
	Totals        PlatformTotals         `json:"totals"`
	ByFaculty     []FacultyResourceCount `json:"by_faculty"`
	RecentUploads []RecentUpload         `json:"recent_uploads"`
	System        *SystemMetrics         `json:"system,omitempty"`
	GeneratedAt   time.Time              `json:"generated_at"`
}

// SystemMetrics is an in-process snapshot of request and cache behaviour.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	UploadsAccepted          uint64    `json:"uploads_accepted"`
	UploadsRejected          uint64    `json:"uploads_rejected"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
