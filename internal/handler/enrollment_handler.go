package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, req service.EnrollmentRequest) (*models.EnrollmentDetail, error)
	Drop(ctx context.Context, req service.EnrollmentRequest) (*models.EnrollmentDetail, error)
	CheckPrerequisites(ctx context.Context, studentNumber, courseCode string) (bool, error)
	CheckTimeConflict(ctx context.Context, studentNumber, courseCode, semester string) (bool, error)
	CheckCapacity(ctx context.Context, courseCode string) (bool, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentNumber string) ([]models.EnrollmentDetail, error)
	ListByCourse(ctx context.Context, courseCode string) ([]models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student ID"
// @Param courseCode query string false "Filter by course code"
// @Param status query string false "ENROLLED, DROPPED, COMPLETED or WAITLISTED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentNumber: trimmedQuery(c, "studentId"),
		CourseCode:    trimmedQuery(c, "courseCode"),
		Status:        models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
		SortBy:        c.Query("sort"),
		SortOrder:     c.Query("order"),
	}
	filter.Page, filter.PageSize = pageQuery(c)

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ListByStudent godoc
// @Summary Enrollments of a student
// @Tags Enrollments
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/student/{studentId} [get]
func (h *EnrollmentHandler) ListByStudent(c *gin.Context) {
	enrollments, err := h.enrollments.ListByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// ListByCourse godoc
// @Summary Enrollments of a course
// @Tags Enrollments
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /enrollments/course/{code} [get]
func (h *EnrollmentHandler) ListByCourse(c *gin.Context) {
	enrollments, err := h.enrollments.ListByCourse(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Enroll godoc
// @Summary Enroll a student in a course
// @Description Runs duplicate, prerequisite, capacity and time-conflict checks atomically.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EnrollmentRequest true "Student and course"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	req, ok := h.bindForCaller(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Drop godoc
// @Summary Drop a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EnrollmentRequest true "Student and course"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	req, ok := h.bindForCaller(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Drop(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// CheckPrerequisites godoc
// @Summary Check whether a student meets a course's prerequisites
// @Tags Enrollments
// @Produce json
// @Param studentId query string true "Student ID"
// @Param courseCode query string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /enrollments/check-prerequisites [get]
func (h *EnrollmentHandler) CheckPrerequisites(c *gin.Context) {
	studentID, courseCode, ok := pairQuery(c)
	if !ok {
		return
	}
	met, err := h.enrollments.CheckPrerequisites(c.Request.Context(), studentID, courseCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": studentID, "course_code": courseCode, "satisfied": met}, nil)
}

// CheckTimeConflict godoc
// @Summary Check whether a course fits a student's timetable
// @Tags Enrollments
// @Produce json
// @Param studentId query string true "Student ID"
// @Param courseCode query string true "Course code"
// @Param semester query string true "Semester label"
// @Success 200 {object} response.Envelope
// @Router /enrollments/check-time-conflict [get]
func (h *EnrollmentHandler) CheckTimeConflict(c *gin.Context) {
	studentID, courseCode, ok := pairQuery(c)
	if !ok {
		return
	}
	semester := trimmedQuery(c, "semester")
	if semester == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester is required"))
		return
	}
	free, err := h.enrollments.CheckTimeConflict(c.Request.Context(), studentID, courseCode, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"student_id": studentID, "course_code": courseCode, "semester": semester, "no_conflict": free}, nil)
}

// CheckCapacity godoc
// @Summary Check whether a course has a free seat
// @Tags Enrollments
// @Produce json
// @Param courseCode query string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /enrollments/check-capacity [get]
func (h *EnrollmentHandler) CheckCapacity(c *gin.Context) {
	courseCode := trimmedQuery(c, "courseCode")
	if courseCode == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseCode is required"))
		return
	}
	available, err := h.enrollments.CheckCapacity(c.Request.Context(), courseCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"course_code": courseCode, "has_capacity": available}, nil)
}

// bindForCaller decodes the request and rejects students acting for someone
// else.
func (h *EnrollmentHandler) bindForCaller(c *gin.Context) (service.EnrollmentRequest, bool) {
	var req service.EnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return req, false
	}
	if !middleware.ActsForStudent(middleware.Claims(c), req.StudentID) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only change their own enrollments"))
		return req, false
	}
	return req, true
}

func pairQuery(c *gin.Context) (studentID, courseCode string, ok bool) {
	studentID = trimmedQuery(c, "studentId")
	courseCode = trimmedQuery(c, "courseCode")
	if studentID == "" || courseCode == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId and courseCode are required"))
		return "", "", false
	}
	return studentID, courseCode, true
}
