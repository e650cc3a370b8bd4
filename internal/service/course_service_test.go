package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// fakeCourseRepo serves the full course repository surface from a
// catalogFixture.
type fakeCourseRepo struct {
	fakeCourses
	listCalls int
	createErr error
	deleted   []int64
}

func (c *fakeCourseRepo) detail(course *models.Course) models.CourseDetail {
	d := models.CourseDetail{Course: *course, PrerequisiteCodes: pq.StringArray{}}
	for _, id := range c.f.prerequisites[course.ID] {
		d.PrerequisiteCodes = append(d.PrerequisiteCodes, c.f.courseByID(id).CourseCode)
	}
	for _, e := range c.f.enrollments {
		if e.CourseID == course.ID && e.Status == models.EnrollmentStatusEnrolled {
			d.CurrentEnrollment++
		}
	}
	return d
}

func (c *fakeCourseRepo) sorted(keep func(*models.Course) bool) []models.CourseDetail {
	var out []models.CourseDetail
	for _, course := range c.f.courses {
		if keep(course) {
			out = append(out, c.detail(course))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseCode < out[j].CourseCode })
	return out
}

func (c *fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	c.listCalls++
	out := c.sorted(func(*models.Course) bool { return true })
	return out, len(out), nil
}

func (c *fakeCourseRepo) FindDetailByID(ctx context.Context, id int64) (*models.CourseDetail, error) {
	if course := c.f.courseByID(id); course != nil {
		d := c.detail(course)
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (c *fakeCourseRepo) FindDetailByCode(ctx context.Context, code string) (*models.CourseDetail, error) {
	if course, ok := c.f.courses[code]; ok {
		d := c.detail(course)
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (c *fakeCourseRepo) FindByCodes(ctx context.Context, codes []string) ([]models.Course, error) {
	var out []models.Course
	for _, code := range codes {
		if course, ok := c.f.courses[code]; ok {
			out = append(out, *course)
		}
	}
	return out, nil
}

func (c *fakeCourseRepo) ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error) {
	course, ok := c.f.courses[code]
	return ok && course.ID != excludeID, nil
}

func (c *fakeCourseRepo) AddPrerequisite(ctx context.Context, exec sqlx.ExtContext, courseID, prerequisiteID int64) error {
	for _, id := range c.f.prerequisites[courseID] {
		if id == prerequisiteID {
			return nil
		}
	}
	c.f.prerequisites[courseID] = append(c.f.prerequisites[courseID], prerequisiteID)
	return nil
}

func (c *fakeCourseRepo) RemovePrerequisite(ctx context.Context, courseID, prerequisiteID int64) (bool, error) {
	ids := c.f.prerequisites[courseID]
	for i, id := range ids {
		if id == prerequisiteID {
			c.f.prerequisites[courseID] = append(ids[:i:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (c *fakeCourseRepo) ReplacePrerequisites(ctx context.Context, exec sqlx.ExtContext, courseID int64, prerequisiteIDs []int64) error {
	c.f.prerequisites[courseID] = append([]int64(nil), prerequisiteIDs...)
	return nil
}

func (c *fakeCourseRepo) ListEnrolledForStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error) {
	return c.sorted(func(course *models.Course) bool {
		for _, e := range c.f.enrollments {
			if e.StudentID == studentID && e.CourseID == course.ID && e.Status == models.EnrollmentStatusEnrolled {
				return true
			}
		}
		return false
	}), nil
}

func (c *fakeCourseRepo) ListAvailableForStudent(ctx context.Context, studentID int64) ([]models.CourseDetail, error) {
	return c.sorted(func(course *models.Course) bool {
		for _, e := range c.f.enrollments {
			if e.StudentID == studentID && e.CourseID == course.ID {
				return false
			}
		}
		return true
	}), nil
}

func (c *fakeCourseRepo) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if c.createErr != nil {
		return c.createErr
	}
	course.ID = c.f.id()
	clone := *course
	c.f.courses[course.CourseCode] = &clone
	return nil
}

func (c *fakeCourseRepo) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	for code, existing := range c.f.courses {
		if existing.ID == course.ID {
			delete(c.f.courses, code)
		}
	}
	clone := *course
	c.f.courses[course.CourseCode] = &clone
	return nil
}

func (c *fakeCourseRepo) Delete(ctx context.Context, id int64) error {
	c.deleted = append(c.deleted, id)
	for code, course := range c.f.courses {
		if course.ID == id {
			delete(c.f.courses, code)
		}
	}
	return nil
}

type memoryCache struct {
	entries     map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) Invalidate(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.entries = map[string][]byte{}
	return nil
}

func newCourseServiceFixture(t *testing.T) (*CourseService, *catalogFixture, *fakeCourseRepo, *memoryCache, sqlmock.Sqlmock) {
	f := newCatalogFixture()
	repo := &fakeCourseRepo{fakeCourses: fakeCourses{f: f}}
	cache := newMemoryCache()
	tx, mock := newTxProviderMock(t)
	return NewCourseService(tx, repo, fakeStudents{f: f}, cache, nil, nil), f, repo, cache, mock
}

func TestCourseServiceListUsesCache(t *testing.T) {
	svc, _, repo, _, _ := newCourseServiceFixture(t)
	filter := models.CourseFilter{Page: 1, PageSize: 10}

	courses, pagination, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.Equal(t, "CS101", courses[0].CourseCode)

	cached, _, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, []string{"CS101"}, []string(cached[1].PrerequisiteCodes))
}

func TestCourseServiceGetByCode(t *testing.T) {
	svc, f, _, _, _ := newCourseServiceFixture(t)
	f.addEnrollment("S001", "CS101", models.EnrollmentStatusEnrolled)
	f.addEnrollment("S002", "CS101", models.EnrollmentStatusDropped)

	course, err := svc.GetByCode(context.Background(), "CS101")
	require.NoError(t, err)
	assert.Equal(t, 1, course.CurrentEnrollment)

	_, err = svc.GetByCode(context.Background(), "CS999")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "course not found with course code: CS999", err.Error())
}

func TestCourseServiceCreateLinksPrerequisites(t *testing.T) {
	svc, _, _, cache, mock := newCourseServiceFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	course, err := svc.Create(context.Background(), CourseRequest{
		CourseCode:        "CS301",
		Name:              "Algorithms",
		CreditHours:       4,
		MaxCapacity:       15,
		PrerequisiteCodes: []string{"CS102", "CS201", "CS102"},
	})
	require.NoError(t, err)
	assert.Equal(t, "CS301", course.CourseCode)
	assert.ElementsMatch(t, []string{"CS102", "CS201"}, []string(course.PrerequisiteCodes))
	assert.Equal(t, []string{CatalogCachePattern}, cache.invalidated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseServiceCreateRejections(t *testing.T) {
	svc, _, repo, _, mock := newCourseServiceFixture(t)

	_, err := svc.Create(context.Background(), CourseRequest{CourseCode: "CS101", Name: "Dup", CreditHours: 3, MaxCapacity: 10})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(context.Background(), CourseRequest{CourseCode: "CS301", Name: "X", CreditHours: 3, MaxCapacity: 10, PrerequisiteCodes: []string{"CS999"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "prerequisite course not found with course code: CS999", err.Error())

	_, err = svc.Create(context.Background(), CourseRequest{CourseCode: "CS301", Name: "X", CreditHours: 0, MaxCapacity: 10})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	mock.ExpectBegin()
	mock.ExpectRollback()
	repo.createErr = &pq.Error{Code: "23505", Constraint: database.ConstraintCourseCode}
	_, err = svc.Create(context.Background(), CourseRequest{CourseCode: "CS301", Name: "X", CreditHours: 3, MaxCapacity: 10})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseServiceUpdateReplacesPrerequisites(t *testing.T) {
	svc, f, _, _, mock := newCourseServiceFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	cs102 := f.courses["CS102"]

	course, err := svc.Update(context.Background(), cs102.ID, CourseRequest{
		CourseCode:        "CS102",
		Name:              "Data Structures II",
		CreditHours:       3,
		MaxCapacity:       40,
		PrerequisiteCodes: []string{"CS201"},
	})
	require.NoError(t, err)
	assert.Equal(t, 40, course.MaxCapacity)
	assert.Equal(t, []string{"CS201"}, []string(course.PrerequisiteCodes))
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = svc.Update(context.Background(), cs102.ID, CourseRequest{CourseCode: "CS101", Name: "X", CreditHours: 3, MaxCapacity: 10})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCourseServicePrerequisiteEdges(t *testing.T) {
	svc, f, _, _, _ := newCourseServiceFixture(t)

	course, err := svc.AddPrerequisite(context.Background(), "CS201", "CS102")
	require.NoError(t, err)
	assert.Equal(t, []string{"CS102"}, []string(course.PrerequisiteCodes))

	// Cycles and self-loops are stored as given.
	_, err = svc.AddPrerequisite(context.Background(), "CS101", "CS101")
	require.NoError(t, err)
	assert.Equal(t, []int64{f.courses["CS101"].ID}, f.prerequisites[f.courses["CS101"].ID])

	course, err = svc.RemovePrerequisite(context.Background(), "CS102", "CS101")
	require.NoError(t, err)
	assert.Empty(t, course.PrerequisiteCodes)

	_, err = svc.RemovePrerequisite(context.Background(), "CS102", "CS101")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.AddPrerequisite(context.Background(), "CS999", "CS101")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCourseServiceStudentViews(t *testing.T) {
	svc, f, _, _, _ := newCourseServiceFixture(t)
	f.addEnrollment("S001", "CS101", models.EnrollmentStatusEnrolled)
	f.addEnrollment("S001", "CS201", models.EnrollmentStatusDropped)

	enrolled, err := svc.EnrolledCourses(context.Background(), "S001")
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	assert.Equal(t, "CS101", enrolled[0].CourseCode)

	available, err := svc.AvailableCourses(context.Background(), "S001")
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "CS102", available[0].CourseCode)

	_, err = svc.AvailableCourses(context.Background(), "S404")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCourseServiceDelete(t *testing.T) {
	svc, f, repo, cache, _ := newCourseServiceFixture(t)
	id := f.courses["CS201"].ID

	require.NoError(t, svc.Delete(context.Background(), id))
	assert.Equal(t, []int64{id}, repo.deleted)
	assert.Len(t, cache.invalidated, 1)
	assert.ErrorIs(t, svc.Delete(context.Background(), id), appErrors.ErrNotFound)
}
