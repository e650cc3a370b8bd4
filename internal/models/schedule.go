package models

import "time"

// Schedule is one weekly meeting slot of a course within a semester.
type Schedule struct {
	ID        int64     `db:"id" json:"id"`
	CourseID  int64     `db:"course_id" json:"-"`
	DayOfWeek DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime ClockTime `db:"start_time" json:"start_time"`
	EndTime   ClockTime `db:"end_time" json:"end_time"`
	Room      string    `db:"room" json:"room"`
	Semester  string    `db:"semester" json:"semester"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether two slots share a day and their closed intervals
// intersect. Touching endpoints count as a conflict.
func (s Schedule) Overlaps(other Schedule) bool {
	return s.DayOfWeek == other.DayOfWeek &&
		other.StartTime <= s.EndTime &&
		other.EndTime >= s.StartTime
}

// ScheduleDetail adds the owning course's code and name.
type ScheduleDetail struct {
	Schedule
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
}

// ScheduleFilter provides filters for listing schedules.
type ScheduleFilter struct {
	Semester  string
	DayOfWeek DayOfWeek
	Page      int
	PageSize  int
}
