package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// storeCall records which executor a fake repository method received.
type storeCall struct {
	op   string
	exec sqlx.ExtContext
}

// catalogFixture is an in-memory store shared by the fake repositories
// below. Calls taking an executor are recorded in calls.
type catalogFixture struct {
	calls         []storeCall
	students      map[string]*models.Student
	courses       map[string]*models.Course
	prerequisites map[int64][]int64
	schedules     []models.Schedule
	enrollments   []models.Enrollment
	createErr     error
	nextID        int64
}

func newCatalogFixture() *catalogFixture {
	f := &catalogFixture{
		students:      map[string]*models.Student{},
		courses:       map[string]*models.Course{},
		prerequisites: map[int64][]int64{},
	}
	f.addStudent("S001", "John", "Doe")
	f.addStudent("S002", "Jane", "Smith")
	cs101 := f.addCourse("CS101", 30)
	cs102 := f.addCourse("CS102", 25)
	f.addCourse("CS201", 20)
	f.prerequisites[cs102.ID] = []int64{cs101.ID}
	f.addSlot("CS101", slot(models.Monday, "09:00", "10:30"))
	f.addSlot("CS101", slot(models.Wednesday, "09:00", "10:30"))
	f.addSlot("CS102", slot(models.Tuesday, "13:00", "14:30"))
	return f
}

func (f *catalogFixture) record(op string, exec sqlx.ExtContext) {
	f.calls = append(f.calls, storeCall{op: op, exec: exec})
}

func (f *catalogFixture) ops() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

func (f *catalogFixture) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *catalogFixture) addStudent(number, first, last string) *models.Student {
	s := &models.Student{ID: f.id(), StudentNumber: number, FirstName: first, LastName: last, Email: number + "@example.com"}
	f.students[number] = s
	return s
}

func (f *catalogFixture) addCourse(code string, capacity int) *models.Course {
	c := &models.Course{ID: f.id(), CourseCode: code, Name: code + " course", CreditHours: 3, MaxCapacity: capacity}
	f.courses[code] = c
	return c
}

func (f *catalogFixture) addSlot(code string, s models.Schedule) {
	s.ID = f.id()
	s.CourseID = f.courses[code].ID
	f.schedules = append(f.schedules, s)
}

func (f *catalogFixture) addEnrollment(number, code string, status models.EnrollmentStatus) {
	f.enrollments = append(f.enrollments, models.Enrollment{
		ID:        f.id(),
		StudentID: f.students[number].ID,
		CourseID:  f.courses[code].ID,
		Status:    status,
	})
}

func (f *catalogFixture) courseByID(id int64) *models.Course {
	for _, c := range f.courses {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *catalogFixture) studentByID(id int64) *models.Student {
	for _, s := range f.students {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (f *catalogFixture) detail(e models.Enrollment) models.EnrollmentDetail {
	return *toEnrollmentDetail(e, f.studentByID(e.StudentID), f.courseByID(e.CourseID))
}

func (f *catalogFixture) statusOf(number, code string) models.EnrollmentStatus {
	for _, e := range f.enrollments {
		if e.StudentID == f.students[number].ID && e.CourseID == f.courses[code].ID {
			return e.Status
		}
	}
	return ""
}

type fakeStudents struct{ f *catalogFixture }

func (s fakeStudents) FindByNumber(ctx context.Context, exec sqlx.ExtContext, number string) (*models.Student, error) {
	s.f.record("FindByNumber", exec)
	return s.lookup(number)
}

func (s fakeStudents) FindByNumberForUpdate(ctx context.Context, tx sqlx.ExtContext, number string) (*models.Student, error) {
	s.f.record("FindByNumberForUpdate", tx)
	return s.lookup(number)
}

func (s fakeStudents) lookup(number string) (*models.Student, error) {
	if st, ok := s.f.students[number]; ok {
		clone := *st
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

type fakeCourses struct{ f *catalogFixture }

func (c fakeCourses) FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Course, error) {
	c.f.record("FindByCode", exec)
	return c.lookup(code)
}

func (c fakeCourses) FindByCodeForUpdate(ctx context.Context, tx sqlx.ExtContext, code string) (*models.Course, error) {
	c.f.record("FindByCodeForUpdate", tx)
	return c.lookup(code)
}

func (c fakeCourses) lookup(code string) (*models.Course, error) {
	if course, ok := c.f.courses[code]; ok {
		clone := *course
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}


func (c fakeCourses) ListPrerequisiteIDs(ctx context.Context, exec sqlx.ExtContext, courseID int64) ([]int64, error) {
	c.f.record("ListPrerequisiteIDs", exec)
	return c.f.prerequisites[courseID], nil
}

type fakeSchedules struct{ f *catalogFixture }

func (s fakeSchedules) ListByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) ([]models.Schedule, error) {
	s.f.record("ListByCourse", exec)
	var out []models.Schedule
	for _, sc := range s.f.schedules {
		if sc.CourseID == courseID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s fakeSchedules) ListActiveForStudentInSemester(ctx context.Context, exec sqlx.ExtContext, studentID int64, semester string) ([]models.ScheduleDetail, error) {
	s.f.record("ListActiveForStudentInSemester", exec)
	var out []models.ScheduleDetail
	for _, e := range s.f.enrollments {
		if e.StudentID != studentID || e.Status != models.EnrollmentStatusEnrolled {
			continue
		}
		for _, sc := range s.f.schedules {
			if sc.CourseID == e.CourseID && sc.Semester == semester {
				out = append(out, models.ScheduleDetail{Schedule: sc, CourseCode: s.f.courseByID(sc.CourseID).CourseCode})
			}
		}
	}
	return out, nil
}

type fakeEnrollments struct{ f *catalogFixture }

func (r fakeEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range r.f.enrollments {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, r.f.detail(e))
	}
	return out, len(out), nil
}

func (r fakeEnrollments) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	for _, e := range r.f.enrollments {
		if e.ID == id {
			d := r.f.detail(e)
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r fakeEnrollments) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range r.f.enrollments {
		if e.StudentID == studentID {
			out = append(out, r.f.detail(e))
		}
	}
	return out, nil
}

func (r fakeEnrollments) ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range r.f.enrollments {
		if e.CourseID == courseID {
			out = append(out, r.f.detail(e))
		}
	}
	return out, nil
}

func (r fakeEnrollments) FindByStudentAndCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID int64) (*models.Enrollment, error) {
	r.f.record("FindByStudentAndCourse", exec)
	for _, e := range r.f.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			clone := e
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r fakeEnrollments) ExistsByStudentAndCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID int64) (bool, error) {
	r.f.record("ExistsByStudentAndCourse", exec)
	for _, e := range r.f.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeEnrollments) CountActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID int64) (int, error) {
	r.f.record("CountActiveByCourse", exec)
	count := 0
	for _, e := range r.f.enrollments {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusEnrolled {
			count++
		}
	}
	return count, nil
}

func (r fakeEnrollments) ListEnrolledCourseIDs(ctx context.Context, exec sqlx.ExtContext, studentID int64) ([]int64, error) {
	r.f.record("ListEnrolledCourseIDs", exec)
	var ids []int64
	for _, e := range r.f.enrollments {
		if e.StudentID == studentID && e.Status == models.EnrollmentStatusEnrolled {
			ids = append(ids, e.CourseID)
		}
	}
	return ids, nil
}

func (r fakeEnrollments) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	r.f.record("Create", exec)
	if r.f.createErr != nil {
		return r.f.createErr
	}
	enrollment.ID = r.f.id()
	r.f.enrollments = append(r.f.enrollments, *enrollment)
	return nil
}

func (r fakeEnrollments) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id int64, status models.EnrollmentStatus) error {
	r.f.record("UpdateStatus", exec)
	for i := range r.f.enrollments {
		if r.f.enrollments[i].ID == id {
			r.f.enrollments[i].Status = status
		}
	}
	return nil
}

type recordingCatalog struct {
	codes []string
}

func (r *recordingCatalog) Invalidate(courseCode string) {
	r.codes = append(r.codes, courseCode)
}
