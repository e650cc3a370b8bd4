package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/export"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type rosterCourseReader interface {
	FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.Course, error)
}

type rosterEnrollmentReader interface {
	ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error)
}

// ExportResult is a rendered roster ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

var rosterHeaders = []string{"Student ID", "Student Name", "Status", "Enrollment Date", "Notes"}

// ExportService renders course rosters in the supported formats.
type ExportService struct {
	courses     rosterCourseReader
	enrollments rosterEnrollmentReader
	renderers   map[string]export.Renderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService. With no renderers it falls
// back to CSV and PDF.
func NewExportService(courses rosterCourseReader, enrollments rosterEnrollmentReader, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter()}
	}
	byFormat := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[r.Extension()] = r
	}
	return &ExportService{courses: courses, enrollments: enrollments, renderers: byFormat, logger: logger, now: time.Now}
}

// ExportRoster renders every enrollment of a course, whatever its status.
func (s *ExportService) ExportRoster(ctx context.Context, courseCode, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	course, err := s.courses.FindByCode(ctx, nil, courseCode)
	if err != nil {
		return nil, courseLookupError(err, courseCode)
	}
	enrollments, err := s.enrollments.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load roster")
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("%s %s roster", course.CourseCode, course.Name),
		Headers: rosterHeaders,
		Rows:    make([]map[string]string, 0, len(enrollments)),
	}
	for _, e := range enrollments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student ID":      e.StudentNumber,
			"Student Name":    e.StudentName,
			"Status":          string(e.Status),
			"Enrollment Date": e.EnrollmentDate.UTC().Format(time.RFC3339),
			"Notes":           e.Notes,
		})
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render roster")
	}
	s.logger.Debug("roster exported",
		zap.String("course_code", course.CourseCode),
		zap.String("format", format),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &ExportResult{
		Filename:    fmt.Sprintf("%s_roster_%s.%s", sanitizeFilename(course.CourseCode), s.now().UTC().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
