package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

func slot(day models.DayOfWeek, start, end string) models.Schedule {
	s, _ := models.ParseClockTime(start)
	e, _ := models.ParseClockTime(end)
	return models.Schedule{DayOfWeek: day, StartTime: s, EndTime: e, Semester: "Fall 2023"}
}

func TestPrerequisitesMet(t *testing.T) {
	assert.True(t, prerequisitesMet(nil, nil))
	assert.True(t, prerequisitesMet([]int64{1}, []int64{3, 1}))
	assert.True(t, prerequisitesMet([]int64{1, 2}, []int64{2, 1, 5}))
	assert.False(t, prerequisitesMet([]int64{1, 2}, []int64{1}))
	assert.False(t, prerequisitesMet([]int64{1}, nil))
}

func TestHasCapacityBoundary(t *testing.T) {
	assert.True(t, hasCapacity(0, 1))
	assert.True(t, hasCapacity(29, 30))
	assert.False(t, hasCapacity(30, 30))
	assert.False(t, hasCapacity(31, 30))
}

func TestFirstConflict(t *testing.T) {
	existing := []models.ScheduleDetail{{Schedule: slot(models.Monday, "09:00", "10:30"), CourseCode: "CS101"}}

	cases := []struct {
		name      string
		candidate models.Schedule
		conflict  bool
	}{
		{"overlapping interval", slot(models.Monday, "10:00", "11:00"), true},
		{"touching at end boundary", slot(models.Monday, "10:30", "12:00"), true},
		{"touching at start boundary", slot(models.Monday, "08:00", "09:00"), true},
		{"contained", slot(models.Monday, "09:15", "09:45"), true},
		{"after", slot(models.Monday, "10:31", "12:00"), false},
		{"after by seconds", slot(models.Monday, "10:30:30", "12:00"), false},
		{"touching with seconds", slot(models.Monday, "10:30:00", "12:00:00"), true},
		{"other day", slot(models.Tuesday, "09:00", "10:30"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := firstConflict([]models.Schedule{tc.candidate}, existing)
			assert.Equal(t, tc.conflict, got != nil)
			if got != nil {
				assert.Equal(t, "CS101", got.Existing.CourseCode)
			}
		})
	}

	assert.Nil(t, firstConflict(nil, existing))
	assert.Nil(t, firstConflict([]models.Schedule{slot(models.Monday, "09:00", "10:00")}, nil))
}
