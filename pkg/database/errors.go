package database

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation pq.ErrorCode = "23505"

// Unique constraint names declared by the schema migrations.
const (
	ConstraintEnrollmentPair = "enrollments_student_course_key"
	ConstraintStudentNumber  = "students_student_id_key"
	ConstraintStudentEmail   = "students_email_key"
	ConstraintCourseCode     = "courses_course_code_key"
)

// IsUniqueViolation reports whether err is a Postgres unique violation. An
// empty constraint matches any unique index.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
