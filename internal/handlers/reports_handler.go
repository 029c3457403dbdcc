package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Joello61/candi-tracker-api/internal/services"
)

type ReportHandler struct {
	Service services.ReportService
}

func NewReportHandler(service services.ReportService) *ReportHandler {
	return &ReportHandler{Service: service}
}

// @Summary      Weekly activity summary
// @Tags         Reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.WeeklyStats
// @Router       /reports/weekly [get]
func (h *ReportHandler) Weekly(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	stats, err := h.Service.Weekly(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary      Weekly activity summary as PDF
// @Tags         Reports
// @Produce      application/pdf
// @Security     BearerAuth
// @Success      200  {file}  file
// @Router       /reports/weekly.pdf [get]
func (h *ReportHandler) WeeklyPDF(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	// rendered to memory first so an error can still produce a JSON response
	var buf bytes.Buffer
	if err := h.Service.WeeklyPDF(c.Request.Context(), userID, &buf); err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("weekly-report-%s.pdf", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
