package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. WAITLISTED is accepted by the store but no
// operation produces it.
const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusEnrolled, EnrollmentStatusDropped, EnrollmentStatusCompleted, EnrollmentStatusWaitlisted:
		return true
	}
	return false
}

// Enrollment links a student to a course. At most one row exists per pair.
type Enrollment struct {
	ID             int64            `db:"id" json:"id"`
	StudentID      int64            `db:"student_id" json:"-"`
	CourseID       int64            `db:"course_id" json:"-"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Notes          string           `db:"notes" json:"notes,omitempty"`
}

// EnrollmentDetail enriches Enrollment with the natural keys of both sides.
type EnrollmentDetail struct {
	Enrollment
	StudentNumber string `db:"student_number" json:"student_id"`
	StudentName   string `db:"student_name" json:"student_name"`
	CourseCode    string `db:"course_code" json:"course_code"`
	CourseName    string `db:"course_name" json:"course_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentNumber string
	CourseCode    string
	Status        EnrollmentStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
