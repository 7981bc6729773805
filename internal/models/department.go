package models

// Faculty groups departments.
type Faculty struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Department is static reference data that scopes users and resources.
type Department struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	FacultyID   string `db:"faculty_id" json:"faculty_id"`
	FacultyName string `db:"faculty_name" json:"faculty_name"`
}
