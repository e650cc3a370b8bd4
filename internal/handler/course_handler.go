package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.CourseDetail, error)
	GetByCode(ctx context.Context, code string) (*models.CourseDetail, error)
	Create(ctx context.Context, req service.CourseRequest) (*models.CourseDetail, error)
	Update(ctx context.Context, id int64, req service.CourseRequest) (*models.CourseDetail, error)
	Delete(ctx context.Context, id int64) error
	AddPrerequisite(ctx context.Context, courseCode, prerequisiteCode string) (*models.CourseDetail, error)
	RemovePrerequisite(ctx context.Context, courseCode, prerequisiteCode string) (*models.CourseDetail, error)
	EnrolledCourses(ctx context.Context, studentNumber string) ([]models.CourseDetail, error)
	AvailableCourses(ctx context.Context, studentNumber string) ([]models.CourseDetail, error)
}

type rosterExporter interface {
	ExportRoster(ctx context.Context, courseCode, format string) (*service.ExportResult, error)
}

// CourseHandler exposes the course catalog.
type CourseHandler struct {
	courses courseService
	rosters rosterExporter
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseService, rosters rosterExporter) *CourseHandler {
	return &CourseHandler{courses: courses, rosters: rosters}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Search by code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	filter := models.CourseFilter{
		Search:    trimmedQuery(c, "search"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageQuery(c)

	courses, pagination, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course detail
// @Tags Courses
// @Produce json
// @Param id path int true "Course surrogate ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	course, err := h.courses.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// GetByCode godoc
// @Summary Get course by code
// @Tags Courses
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /courses/by-code/{code} [get]
func (h *CourseHandler) GetByCode(c *gin.Context) {
	course, err := h.courses.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Enrolled godoc
// @Summary Courses a student is enrolled in
// @Tags Courses
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/enrolled/{studentId} [get]
func (h *CourseHandler) Enrolled(c *gin.Context) {
	courses, err := h.courses.EnrolledCourses(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Available godoc
// @Summary Courses a student has never enrolled in
// @Tags Courses
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /courses/available/{studentId} [get]
func (h *CourseHandler) Available(c *gin.Context) {
	courses, err := h.courses.AvailableCourses(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course surrogate ID"
// @Param payload body service.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Security BearerAuth
// @Param id path int true "Course surrogate ID"
// @Success 204
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.courses.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddPrerequisite godoc
// @Summary Add a prerequisite edge
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param code path string true "Course code"
// @Param prereq path string true "Prerequisite course code"
// @Success 200 {object} response.Envelope
// @Router /courses/by-code/{code}/prerequisites/{prereq} [post]
func (h *CourseHandler) AddPrerequisite(c *gin.Context) {
	course, err := h.courses.AddPrerequisite(c.Request.Context(), c.Param("code"), c.Param("prereq"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// RemovePrerequisite godoc
// @Summary Remove a prerequisite edge
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param code path string true "Course code"
// @Param prereq path string true "Prerequisite course code"
// @Success 200 {object} response.Envelope
// @Router /courses/by-code/{code}/prerequisites/{prereq} [delete]
func (h *CourseHandler) RemovePrerequisite(c *gin.Context) {
	course, err := h.courses.RemovePrerequisite(c.Request.Context(), c.Param("code"), c.Param("prereq"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Roster godoc
// @Summary Download the course roster
// @Tags Courses
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param code path string true "Course code"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /courses/by-code/{code}/roster [get]
func (h *CourseHandler) Roster(c *gin.Context) {
	result, err := h.rosters.ExportRoster(c.Request.Context(), c.Param("code"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
