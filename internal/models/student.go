package models

import "time"

// Student is a learner who may enroll in courses. StudentNumber is the
// institution-issued natural key (e.g. "S001"); ID is the surrogate key.
type Student struct {
	ID            int64     `db:"id" json:"id"`
	StudentNumber string    `db:"student_id" json:"student_id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Email         string    `db:"email" json:"email"`
	PhoneNumber   string    `db:"phone_number" json:"phone_number,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
