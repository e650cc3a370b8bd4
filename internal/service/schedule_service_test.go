package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type fakeScheduleRepo struct {
	fakeSchedules
	deleted []int64
}

func (r *fakeScheduleRepo) detail(sc models.Schedule) models.ScheduleDetail {
	course := r.f.courseByID(sc.CourseID)
	return models.ScheduleDetail{Schedule: sc, CourseCode: course.CourseCode, CourseName: course.Name}
}

func (r *fakeScheduleRepo) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, int, error) {
	var out []models.ScheduleDetail
	for _, sc := range r.f.schedules {
		if filter.DayOfWeek != "" && sc.DayOfWeek != filter.DayOfWeek {
			continue
		}
		out = append(out, r.detail(sc))
	}
	return out, len(out), nil
}

func (r *fakeScheduleRepo) FindByID(ctx context.Context, id int64) (*models.ScheduleDetail, error) {
	for _, sc := range r.f.schedules {
		if sc.ID == id {
			d := r.detail(sc)
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeScheduleRepo) ListBySemester(ctx context.Context, semester string) ([]models.ScheduleDetail, error) {
	var out []models.ScheduleDetail
	for _, sc := range r.f.schedules {
		if sc.Semester == semester {
			out = append(out, r.detail(sc))
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) Create(ctx context.Context, schedule *models.Schedule) error {
	schedule.ID = r.f.id()
	r.f.schedules = append(r.f.schedules, *schedule)
	return nil
}

func (r *fakeScheduleRepo) Update(ctx context.Context, schedule *models.Schedule) error {
	for i := range r.f.schedules {
		if r.f.schedules[i].ID == schedule.ID {
			r.f.schedules[i] = *schedule
		}
	}
	return nil
}

func (r *fakeScheduleRepo) Delete(ctx context.Context, id int64) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func newScheduleServiceFixture() (*ScheduleService, *catalogFixture, *fakeScheduleRepo) {
	f := newCatalogFixture()
	repo := &fakeScheduleRepo{fakeSchedules: fakeSchedules{f: f}}
	return NewScheduleService(repo, fakeCourses{f: f}, fakeStudents{f: f}, nil, nil), f, repo
}

func scheduleRequest(start, end string) ScheduleRequest {
	return ScheduleRequest{
		CourseCode: "CS201",
		DayOfWeek:  models.Thursday,
		StartTime:  start,
		EndTime:    end,
		Room:       "Room 301",
		Semester:   "Fall 2023",
	}
}

func TestScheduleServiceCreate(t *testing.T) {
	svc, f, _ := newScheduleServiceFixture()

	created, err := svc.Create(context.Background(), scheduleRequest("14:00", "15:30"))
	require.NoError(t, err)
	assert.Equal(t, "CS201", created.CourseCode)
	assert.Equal(t, models.NewClockTime(14, 0), created.StartTime)
	assert.Equal(t, f.courses["CS201"].ID, created.CourseID)
	assert.Len(t, f.schedules, 4)
}

func TestScheduleServiceCreateKeepsSeconds(t *testing.T) {
	svc, _, _ := newScheduleServiceFixture()

	created, err := svc.Create(context.Background(), scheduleRequest("10:00:10", "10:00:50"))
	require.NoError(t, err)
	assert.Equal(t, models.NewClockTimeSeconds(10, 0, 10), created.StartTime)
	assert.Equal(t, models.NewClockTimeSeconds(10, 0, 50), created.EndTime)
}

func TestScheduleServiceCreateRejections(t *testing.T) {
	svc, _, _ := newScheduleServiceFixture()

	_, err := svc.Create(context.Background(), scheduleRequest("15:30", "15:30"))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRuleViolation)
	assert.Equal(t, "start time must be before end time", err.Error())

	_, err = svc.Create(context.Background(), scheduleRequest("16:00", "15:00"))
	assert.ErrorIs(t, err, appErrors.ErrRuleViolation)

	_, err = svc.Create(context.Background(), scheduleRequest("25:00", "26:00"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req := scheduleRequest("09:00", "10:00")
	req.DayOfWeek = "FUNDAY"
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req = scheduleRequest("09:00", "10:00")
	req.CourseCode = "CS999"
	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestScheduleServiceUpdateAndDelete(t *testing.T) {
	svc, f, repo := newScheduleServiceFixture()
	id := f.schedules[0].ID

	req := scheduleRequest("08:00", "09:00")
	req.CourseCode = "CS101"
	updated, err := svc.Update(context.Background(), id, req)
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, models.Thursday, f.schedules[0].DayOfWeek)

	_, err = svc.Update(context.Background(), 999, req)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), id))
	assert.Equal(t, []int64{id}, repo.deleted)
}

func TestScheduleServiceListings(t *testing.T) {
	svc, f, _ := newScheduleServiceFixture()
	for i := range f.schedules {
		f.schedules[i].Semester = "Fall 2023"
	}
	f.addEnrollment("S001", "CS101", models.EnrollmentStatusEnrolled)

	byCourse, err := svc.ListByCourse(context.Background(), "CS101")
	require.NoError(t, err)
	require.Len(t, byCourse, 2)
	assert.Equal(t, "CS101", byCourse[0].CourseCode)

	bySemester, err := svc.ListBySemester(context.Background(), "Fall 2023")
	require.NoError(t, err)
	assert.Len(t, bySemester, 3)

	timetable, err := svc.ListForStudent(context.Background(), "S001", "Fall 2023")
	require.NoError(t, err)
	assert.Len(t, timetable, 2)

	_, err = svc.ListForStudent(context.Background(), "S001", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	listed, pagination, err := svc.List(context.Background(), models.ScheduleFilter{DayOfWeek: models.Tuesday})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = svc.List(context.Background(), models.ScheduleFilter{DayOfWeek: "someday"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ListByCourse(context.Background(), "CS999")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
