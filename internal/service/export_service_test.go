package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

func newExportServiceForTest() (*ExportService, *catalogFixture) {
	f := newCatalogFixture()
	f.addEnrollment("S001", "CS101", models.EnrollmentStatusEnrolled)
	f.addEnrollment("S002", "CS101", models.EnrollmentStatusDropped)
	for i := range f.enrollments {
		f.enrollments[i].EnrollmentDate = time.Date(2023, 9, 1, 8, 0, 0, 0, time.UTC)
	}
	svc := NewExportService(fakeCourses{f: f}, fakeEnrollments{f: f}, nil)
	svc.now = func() time.Time { return time.Date(2023, 9, 2, 10, 30, 0, 0, time.UTC) }
	return svc, f
}

func TestExportRosterCSV(t *testing.T) {
	svc, _ := newExportServiceForTest()

	result, err := svc.ExportRoster(context.Background(), "CS101", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "CS101_roster_20230902_103000.csv", result.Filename)

	lines := strings.Split(strings.TrimSpace(string(result.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student ID,Student Name,Status,Enrollment Date,Notes", lines[0])
	assert.Equal(t, "S001,John Doe,ENROLLED,2023-09-01T08:00:00Z,", lines[1])
	assert.Equal(t, "S002,Jane Smith,DROPPED,2023-09-01T08:00:00Z,", lines[2])
}

func TestExportRosterPDF(t *testing.T) {
	svc, _ := newExportServiceForTest()

	result, err := svc.ExportRoster(context.Background(), "CS101", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Body), "%PDF-"))
	assert.True(t, strings.HasSuffix(result.Filename, ".pdf"))
}

func TestExportRosterRejections(t *testing.T) {
	svc, _ := newExportServiceForTest()

	_, err := svc.ExportRoster(context.Background(), "CS101", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ExportRoster(context.Background(), "CS999", "csv")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "Fall_2023-CS101", sanitizeFilename("Fall 2023/CS101"))
}
