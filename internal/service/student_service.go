package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	ExistsByNumber(ctx context.Context, number string, excludeID int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int64) error
}

type studentNumberReader interface {
	FindByNumber(ctx context.Context, exec sqlx.ExtContext, number string) (*models.Student, error)
}

// StudentRequest holds payload for creating or updating students.
type StudentRequest struct {
	StudentID   string `json:"student_id" validate:"required,max=32"`
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,len=10,numeric"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	numbers   studentNumberReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, numbers studentNumberReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, numbers: numbers, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by surrogate id.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Internal(err, "failed to load student")
	}
	return student, nil
}

// GetByNumber returns a student by natural key.
func (s *StudentService) GetByNumber(ctx context.Context, number string) (*models.Student, error) {
	student, err := s.numbers.FindByNumber(ctx, nil, number)
	if err != nil {
		return nil, studentLookupError(err, number)
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if err := s.ensureUnique(ctx, req, 0); err != nil {
		return nil, err
	}
	student := &models.Student{
		StudentNumber: req.StudentID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PhoneNumber:   req.PhoneNumber,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, s.writeError(err, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.StudentNumber))
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id int64, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, req, id); err != nil {
		return nil, err
	}
	student.StudentNumber = req.StudentID
	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Email = req.Email
	student.PhoneNumber = req.PhoneNumber
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, s.writeError(err, "failed to update student")
	}
	return student, nil
}

// Delete removes a student together with their enrollments.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete student")
	}
	return nil
}

func (s *StudentService) ensureUnique(ctx context.Context, req StudentRequest, excludeID int64) error {
	exists, err := s.repo.ExistsByNumber(ctx, req.StudentID, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to validate student ID")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "student ID already exists")
	}
	exists, err = s.repo.ExistsByEmail(ctx, req.Email, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to validate email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	return nil
}

func (s *StudentService) writeError(err error, message string) error {
	switch {
	case database.IsUniqueViolation(err, database.ConstraintStudentNumber):
		return appErrors.Clone(appErrors.ErrConflict, "student ID already exists")
	case database.IsUniqueViolation(err, database.ConstraintStudentEmail):
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	return appErrors.Internal(err, message)
}
