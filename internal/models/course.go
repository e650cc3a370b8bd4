package models

import (
	"time"

	"github.com/lib/pq"
)

// Course is an offering students enroll in. Prerequisites live in the
// course_prerequisites adjacency table.
type Course struct {
	ID          int64     `db:"id" json:"id"`
	CourseCode  string    `db:"course_code" json:"course_code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreditHours int       `db:"credit_hours" json:"credit_hours"`
	MaxCapacity int       `db:"max_capacity" json:"max_capacity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with its prerequisite codes and the number of
// ENROLLED students.
type CourseDetail struct {
	Course
	CurrentEnrollment int            `db:"current_enrollment" json:"current_enrollment"`
	PrerequisiteCodes pq.StringArray `db:"prerequisite_codes" json:"prerequisite_codes"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
