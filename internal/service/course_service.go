package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// CatalogCachePattern matches every cached course listing and detail.
const CatalogCachePattern = "catalog:courses:*"

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindDetailByID(ctx context.Context, id int64) (*models.CourseDetail, error)
	FindDetailByCode(ctx context.Context, code string) (*models.CourseDetail, error)
	FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Course, error)
	FindByCodes(ctx context.Context, codes []string) ([]models.Course, error)
	ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error)
	AddPrerequisite(ctx context.Context, exec sqlx.ExtContext, courseID, prerequisiteID int64) error
	RemovePrerequisite(ctx context.Context, courseID, prerequisiteID int64) (bool, error)
	ReplacePrerequisites(ctx context.Context, exec sqlx.ExtContext, courseID int64, prerequisiteIDs []int64) error
	ListEnrolledForStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error)
	ListAvailableForStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error)
	Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	Delete(ctx context.Context, id int64) error
}

type courseCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// CourseRequest holds payload for creating or updating courses.
type CourseRequest struct {
	CourseCode        string   `json:"course_code" validate:"required,max=32"`
	Name              string   `json:"name" validate:"required,max=255"`
	Description       string   `json:"description" validate:"max=1000"`
	CreditHours       int      `json:"credit_hours" validate:"required,min=1"`
	MaxCapacity       int      `json:"max_capacity" validate:"required,min=1"`
	PrerequisiteCodes []string `json:"prerequisite_codes" validate:"omitempty,dive,required"`
}

type courseListPage struct {
	Items      []models.CourseDetail `json:"items"`
	Pagination models.Pagination     `json:"pagination"`
}

// CourseService manages the course catalog and its prerequisite graph.
type CourseService struct {
	tx        txProvider
	repo      courseRepository
	students  studentNumberReader
	cache     courseCache
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service. cache may be nil.
func NewCourseService(tx txProvider, repo courseRepository, students studentNumberReader, cache courseCache, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{tx: tx, repo: repo, students: students, cache: cache, validator: validate, logger: logger}
}

// List returns courses with enrollment counts. Results are served from the
// catalog cache when enabled.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	key := fmt.Sprintf("catalog:courses:list:%s:%d:%d:%s:%s",
		strings.ToLower(filter.Search), filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)

	var cached courseListPage
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached.Items, &cached.Pagination, nil
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	pagination := paginationFor(filter.Page, filter.PageSize, total)

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, courseListPage{Items: courses, Pagination: *pagination}, 0)
	}
	return courses, pagination, nil
}

// Get returns a course by surrogate id.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.CourseDetail, error) {
	course, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

// GetByCode returns a course by code.
func (s *CourseService) GetByCode(ctx context.Context, code string) (*models.CourseDetail, error) {
	key := "catalog:courses:code:" + code
	var cached models.CourseDetail
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	course, err := s.repo.FindDetailByCode(ctx, code)
	if err != nil {
		return nil, courseLookupError(err, code)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, course, 0)
	}
	return course, nil
}

// Create adds a course and links its prerequisites in one transaction.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	exists, err := s.repo.ExistsByCode(ctx, req.CourseCode, 0)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}
	prerequisiteIDs, err := s.resolvePrerequisites(ctx, req.PrerequisiteCodes)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		CourseCode:  req.CourseCode,
		Name:        req.Name,
		Description: req.Description,
		CreditHours: req.CreditHours,
		MaxCapacity: req.MaxCapacity,
	}
	if err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, course); err != nil {
			return err
		}
		return s.repo.ReplacePrerequisites(ctx, tx, course.ID, prerequisiteIDs)
	}); err != nil {
		return nil, s.writeError(err, "failed to create course")
	}

	s.invalidate(ctx)
	s.logger.Info("course created", zap.String("course_code", course.CourseCode))
	return s.Get(ctx, course.ID)
}

// Update replaces course attributes and its prerequisite set.
func (s *CourseService) Update(ctx context.Context, id int64, req CourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, req.CourseCode, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}
	prerequisiteIDs, err := s.resolvePrerequisites(ctx, req.PrerequisiteCodes)
	if err != nil {
		return nil, err
	}

	course := existing.Course
	course.CourseCode = req.CourseCode
	course.Name = req.Name
	course.Description = req.Description
	course.CreditHours = req.CreditHours
	course.MaxCapacity = req.MaxCapacity
	if err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.Update(ctx, tx, &course); err != nil {
			return err
		}
		return s.repo.ReplacePrerequisites(ctx, tx, course.ID, prerequisiteIDs)
	}); err != nil {
		return nil, s.writeError(err, "failed to update course")
	}

	s.invalidate(ctx)
	return s.Get(ctx, id)
}

// Delete removes a course with its schedules, enrollments and edges.
func (s *CourseService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete course")
	}
	s.invalidate(ctx)
	return nil
}

// AddPrerequisite links prerequisiteCode as required before courseCode.
// Self-references and cycles are accepted.
func (s *CourseService) AddPrerequisite(ctx context.Context, courseCode, prerequisiteCode string) (*models.CourseDetail, error) {
	course, prerequisite, err := s.resolveEdge(ctx, courseCode, prerequisiteCode)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddPrerequisite(ctx, nil, course.ID, prerequisite.ID); err != nil {
		return nil, appErrors.Internal(err, "failed to add prerequisite")
	}
	s.invalidate(ctx)
	return s.Get(ctx, course.ID)
}

// RemovePrerequisite unlinks a prerequisite edge.
func (s *CourseService) RemovePrerequisite(ctx context.Context, courseCode, prerequisiteCode string) (*models.CourseDetail, error) {
	course, prerequisite, err := s.resolveEdge(ctx, courseCode, prerequisiteCode)
	if err != nil {
		return nil, err
	}
	removed, err := s.repo.RemovePrerequisite(ctx, course.ID, prerequisite.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to remove prerequisite")
	}
	if !removed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s is not a prerequisite of %s", prerequisiteCode, courseCode))
	}
	s.invalidate(ctx)
	return s.Get(ctx, course.ID)
}

// EnrolledCourses lists the courses a student is ENROLLED in.
func (s *CourseService) EnrolledCourses(ctx context.Context, studentNumber string) ([]models.CourseDetail, error) {
	student, err := s.students.FindByNumber(ctx, nil, studentNumber)
	if err != nil {
		return nil, studentLookupError(err, studentNumber)
	}
	courses, err := s.repo.ListEnrolledForStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrolled courses")
	}
	return courses, nil
}

// AvailableCourses lists courses the student has never enrolled in.
func (s *CourseService) AvailableCourses(ctx context.Context, studentNumber string) ([]models.CourseDetail, error) {
	student, err := s.students.FindByNumber(ctx, nil, studentNumber)
	if err != nil {
		return nil, studentLookupError(err, studentNumber)
	}
	courses, err := s.repo.ListAvailableForStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list available courses")
	}
	return courses, nil
}

func (s *CourseService) resolvePrerequisites(ctx context.Context, codes []string) ([]int64, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	courses, err := s.repo.FindByCodes(ctx, codes)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load prerequisites")
	}
	byCode := make(map[string]int64, len(courses))
	for _, c := range courses {
		byCode[c.CourseCode] = c.ID
	}
	ids := make([]int64, 0, len(codes))
	seen := make(map[int64]struct{}, len(codes))
	for _, code := range codes {
		id, ok := byCode[code]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "prerequisite course not found with course code: "+code)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *CourseService) resolveEdge(ctx context.Context, courseCode, prerequisiteCode string) (*models.Course, *models.Course, error) {
	course, err := s.repo.FindByCode(ctx, nil, courseCode)
	if err != nil {
		return nil, nil, courseLookupError(err, courseCode)
	}
	prerequisite, err := s.repo.FindByCode(ctx, nil, prerequisiteCode)
	if err != nil {
		return nil, nil, courseLookupError(err, prerequisiteCode)
	}
	return course, prerequisite, nil
}

func (s *CourseService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *CourseService) writeError(err error, message string) error {
	if database.IsUniqueViolation(err, database.ConstraintCourseCode) {
		return appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}
	return appErrors.Internal(err, message)
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, CatalogCachePattern); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}
