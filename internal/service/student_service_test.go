package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type mockStudentRepo struct {
	students  map[int64]models.Student
	nextID    int64
	deleted   []int64
	createErr error
	err       error
}

func newMockStudentRepo(seed ...models.Student) *mockStudentRepo {
	m := &mockStudentRepo{students: map[int64]models.Student{}}
	for _, s := range seed {
		m.students[s.ID] = s
		if s.ID > m.nextID {
			m.nextID = s.ID
		}
	}
	return m
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByNumber(ctx context.Context, exec sqlx.ExtContext, number string) (*models.Student, error) {
	for _, s := range m.students {
		if s.StudentNumber == number {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByNumber(ctx context.Context, number string, excludeID int64) (bool, error) {
	for id, s := range m.students {
		if s.StudentNumber == number && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	for id, s := range m.students {
		if s.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	student.ID = m.nextID
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id int64) error {
	delete(m.students, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func seededStudentService() (*StudentService, *mockStudentRepo) {
	repo := newMockStudentRepo(
		models.Student{ID: 1, StudentNumber: "S001", FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"},
		models.Student{ID: 2, StudentNumber: "S002", FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com"},
	)
	return NewStudentService(repo, repo, nil, nil), repo
}

func validStudentRequest() StudentRequest {
	return StudentRequest{
		StudentID:   "S003",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		PhoneNumber: "0812345678",
	}
}

func TestStudentServiceCreate(t *testing.T) {
	svc, repo := seededStudentService()

	student, err := svc.Create(context.Background(), validStudentRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(3), student.ID)
	assert.Equal(t, "S003", repo.students[3].StudentNumber)
	assert.Equal(t, "Ada Lovelace", student.FullName())
}

func TestStudentServiceCreateConflicts(t *testing.T) {
	svc, _ := seededStudentService()

	req := validStudentRequest()
	req.StudentID = "S001"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "student ID already exists", err.Error())

	req = validStudentRequest()
	req.Email = "jane.smith@example.com"
	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "email already exists", err.Error())
}

func TestStudentServiceCreateMapsUniqueViolation(t *testing.T) {
	svc, repo := seededStudentService()
	repo.createErr = &pq.Error{Code: "23505", Constraint: database.ConstraintStudentEmail}

	_, err := svc.Create(context.Background(), validStudentRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "email already exists", err.Error())
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc, _ := seededStudentService()

	req := validStudentRequest()
	req.PhoneNumber = "12345"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req = validStudentRequest()
	req.Email = "not-an-email"
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStudentServiceUpdateAllowsOwnValues(t *testing.T) {
	svc, repo := seededStudentService()

	req := StudentRequest{StudentID: "S001", FirstName: "Johnny", LastName: "Doe", Email: "john.doe@example.com"}
	student, err := svc.Update(context.Background(), 1, req)
	require.NoError(t, err)
	assert.Equal(t, "Johnny", student.FirstName)
	assert.Equal(t, "Johnny", repo.students[1].FirstName)

	req.StudentID = "S002"
	_, err = svc.Update(context.Background(), 1, req)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestStudentServiceLookups(t *testing.T) {
	svc, _ := seededStudentService()

	student, err := svc.GetByNumber(context.Background(), "S002")
	require.NoError(t, err)
	assert.Equal(t, int64(2), student.ID)

	_, err = svc.GetByNumber(context.Background(), "S999")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "student not found with student ID: S999", err.Error())

	_, err = svc.Get(context.Background(), 42)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentServiceListAndDelete(t *testing.T) {
	svc, repo := seededStudentService()

	students, pagination, err := svc.List(context.Background(), models.StudentFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, students, 2)
	assert.Equal(t, 2, pagination.TotalCount)

	require.NoError(t, svc.Delete(context.Background(), 2))
	assert.Equal(t, []int64{2}, repo.deleted)
	assert.ErrorIs(t, svc.Delete(context.Background(), 2), appErrors.ErrNotFound)

	repo.err = errors.New("db down")
	_, _, err = svc.List(context.Background(), models.StudentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
