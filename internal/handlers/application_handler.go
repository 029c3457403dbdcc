package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/services"
)

type ApplicationHandler struct {
	apps services.ApplicationService
}

func NewApplicationHandler(apps services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{apps: apps}
}

type applicationRequest struct {
	Company   string                   `json:"company" binding:"required"`
	Position  string                   `json:"position" binding:"required"`
	Status    models.ApplicationStatus `json:"status"`
	AppliedAt *time.Time               `json:"applied_at"`
	Notes     string                   `json:"notes"`
}

// @Summary      List applications
// @Tags         Applications
// @Produce      json
// @Security     BearerAuth
// @Param        status  query  string  false  "Filter by status"
// @Success      200  {array}  models.Application
// @Router       /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var status *models.ApplicationStatus
	if s := c.Query("status"); s != "" {
		st := models.ApplicationStatus(s)
		status = &st
	}
	list, err := h.apps.List(c.Request.Context(), userID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Application{}
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Create an application
// @Tags         Applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  models.Application
// @Failure      400  {object}  map[string]string
// @Router       /applications [post]
func (h *ApplicationHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req applicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a := &models.Application{
		UserID:   userID,
		Company:  req.Company,
		Position: req.Position,
		Status:   req.Status,
		Notes:    req.Notes,
	}
	if req.AppliedAt != nil {
		a.AppliedAt = req.AppliedAt.UTC()
	}
	if err := h.apps.Create(c.Request.Context(), a); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.apps.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.apps.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Change application status
// @Tags         Applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.Application
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /applications/{id}/status [post]
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.ApplicationStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.apps.UpdateStatus(c.Request.Context(), userID, id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *ApplicationHandler) ListInterviews(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.apps.ListInterviews(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Interview{}
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Schedule an interview
// @Tags         Applications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  models.Interview
// @Failure      400  {object}  map[string]string
// @Router       /applications/{id}/interviews [post]
func (h *ApplicationHandler) AddInterview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Type            string    `json:"type"`
		ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
		DurationMinutes int       `json:"duration_minutes"`
		Location        string    `json:"location"`
		Notes           string    `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body (scheduled_at must be RFC3339): " + err.Error()})
		return
	}
	iv := &models.Interview{
		ApplicationID:   id,
		Type:            req.Type,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Notes:           req.Notes,
	}
	if err := h.apps.AddInterview(c.Request.Context(), userID, iv); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, iv)
}

func (h *ApplicationHandler) DeleteInterview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.apps.DeleteInterview(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
