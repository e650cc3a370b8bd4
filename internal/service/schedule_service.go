package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type scheduleRepository interface {
	scheduleReader
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error)
	FindByID(ctx context.Context, id int64) (*models.ScheduleDetail, error)
	ListBySemester(ctx context.Context, semester string) ([]models.ScheduleDetail, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id int64) error
}

type scheduleCourseReader interface {
	FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Course, error)
}

// ScheduleRequest describes a weekly time slot of a course.
type ScheduleRequest struct {
	CourseCode string           `json:"course_code" validate:"required,max=32"`
	DayOfWeek  models.DayOfWeek `json:"day_of_week" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	StartTime  string           `json:"start_time" validate:"required"`
	EndTime    string           `json:"end_time" validate:"required"`
	Room       string           `json:"room" validate:"required,max=100"`
	Semester   string           `json:"semester" validate:"required,max=50"`
}

// ScheduleService manages course time slots.
type ScheduleService struct {
	repo      scheduleRepository
	courses   scheduleCourseReader
	students  studentNumberReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(repo scheduleRepository, courses scheduleCourseReader, students studentNumberReader, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, courses: courses, students: students, validator: validate, logger: logger}
}

// List returns slots filtered by semester and day.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error) {
	if filter.DayOfWeek != "" && !filter.DayOfWeek.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_of_week")
	}
	schedules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list schedules")
	}
	return schedules, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a slot by id.
func (s *ScheduleService) Get(ctx context.Context, id int64) (*models.ScheduleDetail, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Internal(err, "failed to load schedule")
	}
	return schedule, nil
}

// ListByCourse returns the slots of a course ordered by id.
func (s *ScheduleService) ListByCourse(ctx context.Context, courseCode string) ([]models.ScheduleDetail, error) {
	course, err := s.courses.FindByCode(ctx, nil, courseCode)
	if err != nil {
		return nil, courseLookupError(err, courseCode)
	}
	schedules, err := s.repo.ListByCourse(ctx, nil, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list course schedules")
	}
	details := make([]models.ScheduleDetail, 0, len(schedules))
	for _, sc := range schedules {
		details = append(details, models.ScheduleDetail{Schedule: sc, CourseCode: course.CourseCode, CourseName: course.Name})
	}
	return details, nil
}

// ListBySemester returns all slots offered in a semester.
func (s *ScheduleService) ListBySemester(ctx context.Context, semester string) ([]models.ScheduleDetail, error) {
	schedules, err := s.repo.ListBySemester(ctx, semester)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list semester schedules")
	}
	return schedules, nil
}

// ListForStudent returns the weekly timetable of a student's ENROLLED courses
// in a semester.
func (s *ScheduleService) ListForStudent(ctx context.Context, studentNumber, semester string) ([]models.ScheduleDetail, error) {
	if semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester is required")
	}
	student, err := s.students.FindByNumber(ctx, nil, studentNumber)
	if err != nil {
		return nil, studentLookupError(err, studentNumber)
	}
	schedules, err := s.repo.ListActiveForStudentInSemester(ctx, nil, student.ID, semester)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list student schedule")
	}
	return schedules, nil
}

// Create adds a slot to a course.
func (s *ScheduleService) Create(ctx context.Context, req ScheduleRequest) (*models.ScheduleDetail, error) {
	schedule, course, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Internal(err, "failed to create schedule")
	}
	s.logger.Info("schedule created",
		zap.String("course_code", course.CourseCode),
		zap.String("day_of_week", string(schedule.DayOfWeek)),
		zap.Stringer("start_time", schedule.StartTime),
	)
	return &models.ScheduleDetail{Schedule: *schedule, CourseCode: course.CourseCode, CourseName: course.Name}, nil
}

// Update replaces a slot.
func (s *ScheduleService) Update(ctx context.Context, id int64, req ScheduleRequest) (*models.ScheduleDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	schedule, course, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	schedule.ID = existing.ID
	schedule.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Internal(err, "failed to update schedule")
	}
	return &models.ScheduleDetail{Schedule: *schedule, CourseCode: course.CourseCode, CourseName: course.Name}, nil
}

// Delete removes a slot.
func (s *ScheduleService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete schedule")
	}
	return nil
}

func (s *ScheduleService) build(ctx context.Context, req ScheduleRequest) (*models.Schedule, *models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	start, err := models.ParseClockTime(req.StartTime)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start_time")
	}
	end, err := models.ParseClockTime(req.EndTime)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end_time")
	}
	if start >= end {
		return nil, nil, appErrors.Clone(appErrors.ErrRuleViolation, "start time must be before end time")
	}
	course, err := s.courses.FindByCode(ctx, nil, req.CourseCode)
	if err != nil {
		return nil, nil, courseLookupError(err, req.CourseCode)
	}
	return &models.Schedule{
		CourseID:  course.ID,
		DayOfWeek: req.DayOfWeek,
		StartTime: start,
		EndTime:   end,
		Room:      req.Room,
		Semester:  req.Semester,
	}, course, nil
}
