package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Students    *StudentHandler
	Courses     *CourseHandler
	Schedules   *ScheduleHandler
	Enrollments *EnrollmentHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the API. Reads are public; catalog mutations need a
// staff role, enroll and drop also accept a student acting for themselves.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	auth := middleware.JWT(tokens)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleStudent)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.GET("/:id", h.Students.Get)
	students.GET("/by-code/:studentId", h.Students.GetByNumber)
	students.POST("", auth, staff, h.Students.Create)
	students.PUT("/:id", auth, staff, h.Students.Update)
	students.DELETE("/:id", auth, staff, h.Students.Delete)

	courses := api.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.GET("/:id", h.Courses.Get)
	courses.GET("/by-code/:code", h.Courses.GetByCode)
	courses.GET("/enrolled/:studentId", h.Courses.Enrolled)
	courses.GET("/available/:studentId", h.Courses.Available)
	courses.POST("", auth, staff, h.Courses.Create)
	courses.PUT("/:id", auth, staff, h.Courses.Update)
	courses.DELETE("/:id", auth, staff, h.Courses.Delete)
	courses.POST("/by-code/:code/prerequisites/:prereq", auth, staff, h.Courses.AddPrerequisite)
	courses.DELETE("/by-code/:code/prerequisites/:prereq", auth, staff, h.Courses.RemovePrerequisite)
	courses.GET("/by-code/:code/roster", auth, staff, h.Courses.Roster)

	schedules := api.Group("/schedules")
	schedules.GET("", h.Schedules.List)
	schedules.GET("/:id", h.Schedules.Get)
	schedules.GET("/course/:code", h.Schedules.ListByCourse)
	schedules.GET("/semester/:semester", h.Schedules.ListBySemester)
	schedules.GET("/student/:studentId", h.Schedules.ListForStudent)
	schedules.POST("", auth, staff, h.Schedules.Create)
	schedules.PUT("/:id", auth, staff, h.Schedules.Update)
	schedules.DELETE("/:id", auth, staff, h.Schedules.Delete)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", h.Enrollments.List)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.GET("/student/:studentId", h.Enrollments.ListByStudent)
	enrollments.GET("/course/:code", h.Enrollments.ListByCourse)
	enrollments.GET("/check-prerequisites", h.Enrollments.CheckPrerequisites)
	enrollments.GET("/check-time-conflict", h.Enrollments.CheckTimeConflict)
	enrollments.GET("/check-capacity", h.Enrollments.CheckCapacity)
	enrollments.POST("/enroll", auth, anyRole, h.Enrollments.Enroll)
	enrollments.POST("/drop", auth, anyRole, h.Enrollments.Drop)

	if h.Metrics != nil {
		api.GET("/metrics/summary", h.Metrics.Snapshot)
	}
}
