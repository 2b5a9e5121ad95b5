package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-adp-api/internal/service"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
	"github.com/noah-isme/sma-adp-api/pkg/response"
)

// TimetableExportHandler exposes rendered-timetable download endpoints.
type TimetableExportHandler struct {
	service *service.TimetableExportService
}

// NewTimetableExportHandler constructs the handler.
func NewTimetableExportHandler(svc *service.TimetableExportService) *TimetableExportHandler {
	return &TimetableExportHandler{service: svc}
}

// Export godoc
// @Summary Render a saved semester schedule as a downloadable timetable
// @Tags Scheduler
// @Produce json
// @Param id path string true "Semester schedule ID"
// @Param format query string false "csv or pdf (default pdf)"
// @Success 200 {object} response.Envelope
// @Router /semester-schedule/{id}/export [post]
func (h *TimetableExportHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "pdf")
	result, err := h.service.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable"))
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a previously rendered timetable via its signed token
// @Tags Scheduler
// @Param token path string true "Signed export token"
// @Success 200 {file} byte
// @Router /export/{token} [get]
func (h *TimetableExportHandler) Download(c *gin.Context) {
	file, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found or expired"))
		return
	}
	defer file.Close()
	modTime := time.Now()
	if info, statErr := file.Stat(); statErr == nil {
		modTime = info.ModTime()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name()))
	http.ServeContent(c.Writer, c.Request, file.Name(), modTime, file)
}
