package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

type prerequisiteReader interface {
	ListPrerequisiteIDs(ctx context.Context, exec sqlx.ExtContext, courseID int64) ([]int64, error)
}

type enrolledCourseReader interface {
	ListEnrolledCourseIDs(ctx context.Context, exec sqlx.ExtContext, studentID int64) ([]int64, error)
}

type activeEnrollmentCounter interface {
	CountActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) (int, error)
}

type scheduleReader interface {
	ListByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) ([]models.Schedule, error)
	ListActiveForStudentInSemester(ctx context.Context, exec sqlx.ExtContext, studentID int64, semester string) ([]models.ScheduleDetail, error)
}

// PrerequisiteChecker decides whether a student holds every prerequisite of a
// course. Only ENROLLED enrollments count as held.
type PrerequisiteChecker struct {
	courses     prerequisiteReader
	enrollments enrolledCourseReader
}

// NewPrerequisiteChecker builds the checker.
func NewPrerequisiteChecker(courses prerequisiteReader, enrollments enrolledCourseReader) *PrerequisiteChecker {
	return &PrerequisiteChecker{courses: courses, enrollments: enrollments}
}

// Satisfied reports whether studentID holds all prerequisites of courseID.
// A nil exec reads outside any transaction.
func (c *PrerequisiteChecker) Satisfied(ctx context.Context, exec sqlx.ExtContext, studentID, courseID int64) (bool, error) {
	required, err := c.courses.ListPrerequisiteIDs(ctx, exec, courseID)
	if err != nil {
		return false, err
	}
	if len(required) == 0 {
		return true, nil
	}
	held, err := c.enrollments.ListEnrolledCourseIDs(ctx, exec, studentID)
	if err != nil {
		return false, err
	}
	return prerequisitesMet(required, held), nil
}

func prerequisitesMet(required, held []int64) bool {
	have := make(map[int64]struct{}, len(held))
	for _, id := range held {
		have[id] = struct{}{}
	}
	for _, id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// CapacityChecker decides whether a course still has a free seat.
type CapacityChecker struct {
	enrollments activeEnrollmentCounter
}

// NewCapacityChecker builds the checker.
func NewCapacityChecker(enrollments activeEnrollmentCounter) *CapacityChecker {
	return &CapacityChecker{enrollments: enrollments}
}

// HasCapacity reports whether the ENROLLED count is below the course maximum.
func (c *CapacityChecker) HasCapacity(ctx context.Context, exec sqlx.ExtContext, course *models.Course) (bool, error) {
	active, err := c.enrollments.CountActiveByCourse(ctx, exec, course.ID)
	if err != nil {
		return false, err
	}
	return hasCapacity(active, course.MaxCapacity), nil
}

func hasCapacity(active, max int) bool {
	return active < max
}

// ScheduleConflict names the existing slot a candidate slot collides with.
type ScheduleConflict struct {
	Candidate models.Schedule
	Existing  models.ScheduleDetail
}

// TimeConflictDetector decides whether a course's meeting slots collide with
// the slots of courses the student is ENROLLED in for a semester.
type TimeConflictDetector struct {
	schedules scheduleReader
}

// NewTimeConflictDetector builds the detector.
func NewTimeConflictDetector(schedules scheduleReader) *TimeConflictDetector {
	return &TimeConflictDetector{schedules: schedules}
}

// NoConflict reports true when none of courseID's slots overlaps the
// student's active slots in semester. A course without slots never conflicts.
func (d *TimeConflictDetector) NoConflict(ctx context.Context, exec sqlx.ExtContext, studentID, courseID int64, semester string) (bool, error) {
	candidates, err := d.schedules.ListByCourse(ctx, exec, courseID)
	if err != nil {
		return false, err
	}
	conflict, err := d.Detect(ctx, exec, studentID, candidates, semester)
	if err != nil {
		return false, err
	}
	return conflict == nil, nil
}

// Detect returns the first collision between candidates and the student's
// active slots in semester, or nil.
func (d *TimeConflictDetector) Detect(ctx context.Context, exec sqlx.ExtContext, studentID int64, candidates []models.Schedule, semester string) (*ScheduleConflict, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	existing, err := d.schedules.ListActiveForStudentInSemester(ctx, exec, studentID, semester)
	if err != nil {
		return nil, err
	}
	return firstConflict(candidates, existing), nil
}

func firstConflict(candidates []models.Schedule, existing []models.ScheduleDetail) *ScheduleConflict {
	for _, candidate := range candidates {
		for _, slot := range existing {
			if candidate.Overlaps(slot.Schedule) {
				return &ScheduleConflict{Candidate: candidate, Existing: slot}
			}
		}
	}
	return nil
}
