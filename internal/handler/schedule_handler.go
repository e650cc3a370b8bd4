package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleDetail, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.ScheduleDetail, error)
	ListByCourse(ctx context.Context, courseCode string) ([]models.ScheduleDetail, error)
	ListBySemester(ctx context.Context, semester string) ([]models.ScheduleDetail, error)
	ListForStudent(ctx context.Context, studentNumber, semester string) ([]models.ScheduleDetail, error)
	Create(ctx context.Context, req service.ScheduleRequest) (*models.ScheduleDetail, error)
	Update(ctx context.Context, id int64, req service.ScheduleRequest) (*models.ScheduleDetail, error)
	Delete(ctx context.Context, id int64) error
}

// ScheduleHandler exposes course time slots.
type ScheduleHandler struct {
	schedules scheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules scheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param semester query string false "Semester label"
// @Param day query string false "MONDAY..SUNDAY"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := models.ScheduleFilter{
		Semester:  trimmedQuery(c, "semester"),
		DayOfWeek: models.DayOfWeek(strings.ToUpper(trimmedQuery(c, "day"))),
	}
	filter.Page, filter.PageSize = pageQuery(c)

	schedules, pagination, err := h.schedules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule
// @Tags Schedules
// @Produce json
// @Param id path int true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	schedule, err := h.schedules.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// ListByCourse godoc
// @Summary Slots of a course
// @Tags Schedules
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /schedules/course/{code} [get]
func (h *ScheduleHandler) ListByCourse(c *gin.Context) {
	schedules, err := h.schedules.ListByCourse(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// ListBySemester godoc
// @Summary Slots offered in a semester
// @Tags Schedules
// @Produce json
// @Param semester path string true "Semester label"
// @Success 200 {object} response.Envelope
// @Router /schedules/semester/{semester} [get]
func (h *ScheduleHandler) ListBySemester(c *gin.Context) {
	schedules, err := h.schedules.ListBySemester(c.Request.Context(), c.Param("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// ListForStudent godoc
// @Summary Weekly timetable of a student
// @Tags Schedules
// @Produce json
// @Param studentId path string true "Student ID"
// @Param semester query string true "Semester label"
// @Success 200 {object} response.Envelope
// @Router /schedules/student/{studentId} [get]
func (h *ScheduleHandler) ListForStudent(c *gin.Context) {
	schedules, err := h.schedules.ListForStudent(c.Request.Context(), c.Param("studentId"), trimmedQuery(c, "semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// Create godoc
// @Summary Create schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	schedule, err := h.schedules.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Schedule ID"
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	schedule, err := h.schedules.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete schedule
// @Tags Schedules
// @Security BearerAuth
// @Param id path int true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.schedules.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
