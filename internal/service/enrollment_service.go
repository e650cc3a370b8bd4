package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type enrollmentStudentReader interface {
	FindByNumber(ctx context.Context, exec sqlx.ExtContext, number string) (*models.Student, error)
	FindByNumberForUpdate(ctx context.Context, tx sqlx.ExtContext, number string) (*models.Student, error)
}

type enrollmentCourseReader interface {
	prerequisiteReader
	FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Course, error)
	FindByCodeForUpdate(ctx context.Context, tx sqlx.ExtContext, code string) (*models.Course, error)
}

type enrollmentRepository interface {
	enrolledCourseReader
	activeEnrollmentCounter
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error)
	FindByStudentAndCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID int64) (*models.Enrollment, error)
	ExistsByStudentAndCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID int64) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id int64, status models.EnrollmentStatus) error
}

// catalogInvalidator is notified after a committed enroll or drop changes a
// course's enrollment count.
type catalogInvalidator interface {
	Invalidate(courseCode string)
}

// EnrollmentRequest identifies a student and a course by natural keys.
type EnrollmentRequest struct {
	StudentID  string `json:"student_id" validate:"required,max=32"`
	CourseCode string `json:"course_code" validate:"required,max=32"`
}

// EnrollmentService runs admission control and the enroll/drop lifecycle.
type EnrollmentService struct {
	tx            txProvider
	students      enrollmentStudentReader
	courses       enrollmentCourseReader
	schedules     scheduleReader
	enrollments   enrollmentRepository
	prerequisites *PrerequisiteChecker
	capacity      *CapacityChecker
	conflicts     *TimeConflictDetector
	catalog       catalogInvalidator
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewEnrollmentService wires the lifecycle manager and its three checkers.
// metrics and catalog may be nil.
func NewEnrollmentService(
	tx txProvider,
	students enrollmentStudentReader,
	courses enrollmentCourseReader,
	schedules scheduleReader,
	enrollments enrollmentRepository,
	catalog catalogInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		tx:            tx,
		students:      students,
		courses:       courses,
		schedules:     schedules,
		enrollments:   enrollments,
		prerequisites: NewPrerequisiteChecker(courses, enrollments),
		capacity:      NewCapacityChecker(enrollments),
		conflicts:     NewTimeConflictDetector(schedules),
		catalog:       catalog,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// Enroll admits the student into the course. Every check and the insert run
// in one transaction holding row locks on the student and the course.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollmentRequest) (result *models.EnrollmentDetail, err error) {
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	started := time.Now()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin enrollment transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	student, course, err := s.lockPair(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("student_id", student.StudentNumber), zap.String("course_code", course.CourseCode))

	exists, err := s.enrollments.ExistsByStudentAndCourse(ctx, tx, student.ID, course.ID)
	if err != nil {
		err = appErrors.Internal(err, "failed to check existing enrollment")
		return nil, err
	}
	if exists {
		err = s.reject(log, OutcomeDuplicate, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course"))
		return nil, err
	}

	ok, err := s.prerequisites.Satisfied(ctx, tx, student.ID, course.ID)
	if err != nil {
		err = appErrors.Internal(err, "failed to check prerequisites")
		return nil, err
	}
	if !ok {
		err = s.reject(log, OutcomePrerequisites, appErrors.Clone(appErrors.ErrRuleViolation, "student does not meet prerequisites for this course"))
		return nil, err
	}

	ok, err = s.capacity.HasCapacity(ctx, tx, course)
	if err != nil {
		err = appErrors.Internal(err, "failed to check course capacity")
		return nil, err
	}
	if !ok {
		err = s.reject(log, OutcomeCapacity, appErrors.Clone(appErrors.ErrRuleViolation, "course has reached maximum capacity"))
		return nil, err
	}

	slots, err := s.schedules.ListByCourse(ctx, tx, course.ID)
	if err != nil {
		err = appErrors.Internal(err, "failed to load course schedules")
		return nil, err
	}
	if len(slots) > 0 {
		semester := slots[0].Semester
		conflict, detectErr := s.conflicts.Detect(ctx, tx, student.ID, slots, semester)
		if detectErr != nil {
			err = appErrors.Internal(detectErr, "failed to check schedule conflicts")
			return nil, err
		}
		if conflict != nil {
			log.Info("schedule conflict",
				zap.String("semester", semester),
				zap.String("conflicts_with", conflict.Existing.CourseCode),
				zap.String("day_of_week", string(conflict.Candidate.DayOfWeek)),
			)
			err = s.reject(log, OutcomeTimeConflict, appErrors.Clone(appErrors.ErrRuleViolation, "course has time conflict with student's schedule"))
			return nil, err
		}
	}

	enrollment := &models.Enrollment{
		StudentID:      student.ID,
		CourseID:       course.ID,
		EnrollmentDate: s.now().UTC(),
		Status:         models.EnrollmentStatusEnrolled,
	}
	if err = s.enrollments.Create(ctx, tx, enrollment); err != nil {
		if database.IsUniqueViolation(err, database.ConstraintEnrollmentPair) {
			err = s.reject(log, OutcomeDuplicate, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course"))
			return nil, err
		}
		err = appErrors.Internal(err, "failed to create enrollment")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit enrollment")
		return nil, err
	}

	s.metrics.ObserveTransaction("enroll", time.Since(started))
	s.metrics.ObserveAdmission(OutcomeEnrolled)
	s.notifyCatalog(course.CourseCode)
	log.Info("student enrolled", zap.Int64("enrollment_id", enrollment.ID))
	return toEnrollmentDetail(*enrollment, student, course), nil
}

// Drop marks the pair's enrollment DROPPED whatever its current status.
func (s *EnrollmentService) Drop(ctx context.Context, req EnrollmentRequest) (result *models.EnrollmentDetail, err error) {
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	started := time.Now()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to begin drop transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	student, course, err := s.lockPair(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, tx, student.ID, course.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrRuleViolation, "student is not enrolled in this course")
			return nil, err
		}
		err = appErrors.Internal(err, "failed to load enrollment")
		return nil, err
	}

	if err = s.enrollments.UpdateStatus(ctx, tx, enrollment.ID, models.EnrollmentStatusDropped); err != nil {
		err = appErrors.Internal(err, "failed to drop enrollment")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Internal(err, "failed to commit drop")
		return nil, err
	}

	enrollment.Status = models.EnrollmentStatusDropped
	s.metrics.ObserveTransaction("drop", time.Since(started))
	s.metrics.ObserveAdmission(OutcomeDropped)
	s.notifyCatalog(course.CourseCode)
	s.logger.Info("enrollment dropped",
		zap.String("student_id", student.StudentNumber),
		zap.String("course_code", course.CourseCode),
		zap.Int64("enrollment_id", enrollment.ID),
	)
	return toEnrollmentDetail(*enrollment, student, course), nil
}

// CheckPrerequisites reports whether the student holds every prerequisite.
func (s *EnrollmentService) CheckPrerequisites(ctx context.Context, studentNumber, courseCode string) (bool, error) {
	student, course, err := s.resolvePair(ctx, studentNumber, courseCode)
	if err != nil {
		return false, err
	}
	ok, err := s.prerequisites.Satisfied(ctx, nil, student.ID, course.ID)
	if err != nil {
		return false, appErrors.Internal(err, "failed to check prerequisites")
	}
	return ok, nil
}

// CheckTimeConflict reports true when the course fits the student's
// timetable for the given semester.
func (s *EnrollmentService) CheckTimeConflict(ctx context.Context, studentNumber, courseCode, semester string) (bool, error) {
	student, course, err := s.resolvePair(ctx, studentNumber, courseCode)
	if err != nil {
		return false, err
	}
	ok, err := s.conflicts.NoConflict(ctx, nil, student.ID, course.ID, semester)
	if err != nil {
		return false, appErrors.Internal(err, "failed to check schedule conflicts")
	}
	return ok, nil
}

// CheckCapacity reports whether the course has a free seat.
func (s *EnrollmentService) CheckCapacity(ctx context.Context, courseCode string) (bool, error) {
	course, err := s.findCourse(ctx, courseCode)
	if err != nil {
		return false, err
	}
	ok, err := s.capacity.HasCapacity(ctx, nil, course)
	if err != nil {
		return false, appErrors.Internal(err, "failed to check course capacity")
	}
	return ok, nil
}

// List returns enrollments and pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status")
	}
	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	enrollment, err := s.enrollments.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// ListByStudent returns all enrollments of a student.
func (s *EnrollmentService) ListByStudent(ctx context.Context, studentNumber string) ([]models.EnrollmentDetail, error) {
	student, err := s.findStudent(ctx, studentNumber)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list student enrollments")
	}
	return enrollments, nil
}

// ListByCourse returns all enrollments of a course.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseCode string) ([]models.EnrollmentDetail, error) {
	course, err := s.findCourse(ctx, courseCode)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list course enrollments")
	}
	return enrollments, nil
}

// lockPair locks the student row before the course row. All writers use the
// same order.
func (s *EnrollmentService) lockPair(ctx context.Context, tx *sqlx.Tx, req EnrollmentRequest) (*models.Student, *models.Course, error) {
	student, err := s.students.FindByNumberForUpdate(ctx, tx, req.StudentID)
	if err != nil {
		return nil, nil, studentLookupError(err, req.StudentID)
	}
	course, err := s.courses.FindByCodeForUpdate(ctx, tx, req.CourseCode)
	if err != nil {
		return nil, nil, courseLookupError(err, req.CourseCode)
	}
	return student, course, nil
}

func (s *EnrollmentService) resolvePair(ctx context.Context, studentNumber, courseCode string) (*models.Student, *models.Course, error) {
	student, err := s.findStudent(ctx, studentNumber)
	if err != nil {
		return nil, nil, err
	}
	course, err := s.findCourse(ctx, courseCode)
	if err != nil {
		return nil, nil, err
	}
	return student, course, nil
}

func (s *EnrollmentService) findStudent(ctx context.Context, number string) (*models.Student, error) {
	student, err := s.students.FindByNumber(ctx, nil, number)
	if err != nil {
		return nil, studentLookupError(err, number)
	}
	return student, nil
}

func (s *EnrollmentService) findCourse(ctx context.Context, code string) (*models.Course, error) {
	course, err := s.courses.FindByCode(ctx, nil, code)
	if err != nil {
		return nil, courseLookupError(err, code)
	}
	return course, nil
}

func (s *EnrollmentService) reject(log *zap.Logger, outcome string, err *appErrors.Error) error {
	s.metrics.ObserveAdmission(outcome)
	log.Info("enrollment rejected", zap.String("reason", outcome))
	return err
}

func (s *EnrollmentService) notifyCatalog(courseCode string) {
	if s.catalog != nil {
		s.catalog.Invalidate(courseCode)
	}
}

func studentLookupError(err error, number string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found with student ID: "+number)
	}
	return appErrors.Internal(err, "failed to load student")
}

func courseLookupError(err error, code string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found with course code: "+code)
	}
	return appErrors.Internal(err, "failed to load course")
}

func toEnrollmentDetail(enrollment models.Enrollment, student *models.Student, course *models.Course) *models.EnrollmentDetail {
	return &models.EnrollmentDetail{
		Enrollment:    enrollment,
		StudentNumber: student.StudentNumber,
		StudentName:   student.FullName(),
		CourseCode:    course.CourseCode,
		CourseName:    course.Name,
	}
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
