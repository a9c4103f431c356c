package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sekolahku/roster-api/internal/models"
	"github.com/sekolahku/roster-api/internal/service"
	appErrors "github.com/sekolahku/roster-api/pkg/errors"
	"github.com/sekolahku/roster-api/pkg/response"
)

// RosterHandler manages lesson assignment endpoints.
type RosterHandler struct {
	service *service.RosterService
}

// NewRosterHandler constructs handler.
func NewRosterHandler(svc *service.RosterService) *RosterHandler {
	return &RosterHandler{service: svc}
}

// respond maps conflict errors onto an envelope that carries the full clash
// list; everything else goes through the standard error path.
func (h *RosterHandler) respond(c *gin.Context, err error) {
	var conflictErr *models.RosterConflictError
	if errors.As(err, &conflictErr) {
		response.ErrorWithData(c, err, gin.H{"conflicts": conflictErr.Conflicts})
		return
	}
	response.Error(c, err)
}

// List godoc
// @Summary List roster entries
// @Tags Rosters
// @Produce json
// @Param termId query string false "Filter by term"
// @Param classId query string false "Filter by class"
// @Param teacherId query string false "Filter by teacher"
// @Param classroomId query string false "Filter by classroom"
// @Param dayOfWeek query string false "Filter by day"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /rosters [get]
func (h *RosterHandler) List(c *gin.Context) {
	var filter models.RosterFilter
	filter.TermID = c.Query("termId")
	filter.ClassID = c.Query("classId")
	filter.TeacherID = c.Query("teacherId")
	filter.ClassroomID = c.Query("classroomId")
	filter.DayOfWeek = strings.ToUpper(c.Query("dayOfWeek"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	rosters, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rosters, pagination)
}

// Get godoc
// @Summary Get roster entry
// @Tags Rosters
// @Produce json
// @Param id path string true "Roster ID"
// @Success 200 {object} response.Envelope
// @Router /rosters/{id} [get]
func (h *RosterHandler) Get(c *gin.Context) {
	roster, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Create godoc
// @Summary Create roster entry
// @Tags Rosters
// @Accept json
// @Produce json
// @Param payload body service.RosterEntryRequest true "Roster payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rosters [post]
func (h *RosterHandler) Create(c *gin.Context) {
	var req service.RosterEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	roster, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.respond(c, err)
		return
	}
	response.Created(c, roster)
}

// Update godoc
// @Summary Update roster entry
// @Tags Rosters
// @Accept json
// @Produce json
// @Param id path string true "Roster ID"
// @Param payload body service.RosterEntryRequest true "Roster payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rosters/{id} [put]
func (h *RosterHandler) Update(c *gin.Context) {
	var req service.RosterEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	roster, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respond(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Delete godoc
// @Summary Delete roster entry
// @Tags Rosters
// @Produce json
// @Param id path string true "Roster ID"
// @Success 204
// @Router /rosters/{id} [delete]
func (h *RosterHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkCreate godoc
// @Summary Bulk create roster entries
// @Tags Rosters
// @Accept json
// @Produce json
// @Param payload body service.BulkCreateRostersRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rosters/bulk [post]
func (h *RosterHandler) BulkCreate(c *gin.Context) {
	var req service.BulkCreateRostersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.BulkCreate(c.Request.Context(), req)
	if err != nil {
		h.respond(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Check godoc
// @Summary Dry-run conflict check
// @Tags Rosters
// @Accept json
// @Produce json
// @Param payload body service.RosterEntryRequest true "Candidate payload"
// @Success 200 {object} response.Envelope
// @Router /rosters/check [post]
func (h *RosterHandler) Check(c *gin.Context) {
	var req service.RosterEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
