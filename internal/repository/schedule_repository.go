package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const scheduleColumns = "sc.id, sc.course_id, sc.day_of_week, sc.start_time, sc.end_time, sc.room, sc.semester, sc.created_at, sc.updated_at"

const scheduleDetailSelect = `SELECT ` + scheduleColumns + `, c.course_code, c.name AS course_name
        FROM schedules sc JOIN courses c ON c.id = sc.course_id`

// scheduleWeekOrder sorts slots Monday first instead of alphabetically.
const scheduleWeekOrder = `array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY']::text[], sc.day_of_week::text), sc.start_time, sc.id`

// ScheduleRepository manages weekly course slots.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns schedules matching the filter.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("sc.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("sc.day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY sc.id LIMIT %d OFFSET %d", scheduleDetailSelect, where, limit, offset)
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schedules sc"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return schedules, total, nil
}

// FindByID returns a schedule with its course code.
func (r *ScheduleRepository) FindByID(ctx context.Context, id int64) (*models.ScheduleDetail, error) {
	var schedule models.ScheduleDetail
	if err := r.db.GetContext(ctx, &schedule, scheduleDetailSelect+" WHERE sc.id = $1", id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListByCourse returns every slot of a course in insertion order, so the
// first element is the course's first schedule.
func (r *ScheduleRepository) ListByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules sc WHERE sc.course_id = $1 ORDER BY sc.id", scheduleColumns)
	var schedules []models.Schedule
	if err := sqlx.SelectContext(ctx, r.exec(exec), &schedules, query, courseID); err != nil {
		return nil, fmt.Errorf("list course schedules: %w", err)
	}
	return schedules, nil
}

// ListBySemester returns all slots offered in a semester.
func (r *ScheduleRepository) ListBySemester(ctx context.Context, semester string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailSelect + " WHERE sc.semester = $1 ORDER BY " + scheduleWeekOrder
	var schedules []models.ScheduleDetail
	if err := r.db.SelectContext(ctx, &schedules, query, semester); err != nil {
		return nil, fmt.Errorf("list semester schedules: %w", err)
	}
	return schedules, nil
}

// ListActiveForStudentInSemester returns the slots, within a semester, of
// every course the student holds an ENROLLED enrollment in.
func (r *ScheduleRepository) ListActiveForStudentInSemester(ctx context.Context, exec sqlx.ExtContext, studentID int64, semester string) ([]models.ScheduleDetail, error) {
	query := scheduleDetailSelect + `
        JOIN enrollments e ON e.course_id = sc.course_id
        WHERE e.student_id = $1 AND e.status = $2 AND sc.semester = $3
        ORDER BY ` + scheduleWeekOrder
	var schedules []models.ScheduleDetail
	if err := sqlx.SelectContext(ctx, r.exec(exec), &schedules, query, studentID, models.EnrollmentStatusEnrolled, semester); err != nil {
		return nil, fmt.Errorf("list student schedules: %w", err)
	}
	return schedules, nil
}

// Create inserts a new slot and fills in the generated id.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO schedules (course_id, day_of_week, start_time, end_time, room, semester, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		schedule.CourseID, schedule.DayOfWeek, schedule.StartTime, schedule.EndTime, schedule.Room, schedule.Semester,
		schedule.CreatedAt, schedule.UpdatedAt,
	).Scan(&schedule.ID); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update persists changes to a slot.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET course_id = $2, day_of_week = $3, start_time = $4, end_time = $5, room = $6, semester = $7, updated_at = $8
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		schedule.ID, schedule.CourseID, schedule.DayOfWeek, schedule.StartTime, schedule.EndTime, schedule.Room, schedule.Semester,
		schedule.UpdatedAt,
	); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a slot.
func (r *ScheduleRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
