package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekolahku/roster-api/internal/service"
	appErrors "github.com/sekolahku/roster-api/pkg/errors"
	"github.com/sekolahku/roster-api/pkg/response"
)

// TimetableHandler serves weekly schedule views.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// ClassTimetable godoc
// @Summary Weekly timetable for a class
// @Tags Timetables
// @Produce json
// @Param id path string true "Class ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/timetable [get]
func (h *TimetableHandler) ClassTimetable(c *gin.Context) {
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId query parameter is required"))
		return
	}
	timetable, err := h.service.ClassTimetable(c.Request.Context(), termID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// TeacherTimetable godoc
// @Summary Weekly timetable for a teacher
// @Tags Timetables
// @Produce json
// @Param id path string true "Teacher ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/timetable [get]
func (h *TimetableHandler) TeacherTimetable(c *gin.Context) {
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId query parameter is required"))
		return
	}
	timetable, err := h.service.TeacherTimetable(c.Request.Context(), termID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}
