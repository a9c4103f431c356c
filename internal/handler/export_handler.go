package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/sekolahku/roster-api/internal/service"
	appErrors "github.com/sekolahku/roster-api/pkg/errors"
	"github.com/sekolahku/roster-api/pkg/response"
)

// ExportHandler manages asynchronous timetable exports.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Enqueue godoc
// @Summary Request a timetable export
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body service.ExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /timetables/export [post]
func (h *ExportHandler) Enqueue(c *gin.Context) {
	var req service.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.service.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/export/jobs/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.service.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a rendered export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /timetables/export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, job, err := h.service.OpenDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	contentType := "text/csv"
	if job.Format == "pdf" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(job.FilePath)))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
