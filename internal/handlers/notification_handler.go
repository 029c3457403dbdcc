package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/realtime"
	"github.com/Joello61/candi-tracker-api/internal/services"
)

const maxNotificationPage = 100

type NotificationHandler struct {
	notifications services.NotificationService
	settings      services.NotificationSettingsService
	hub           *realtime.NotificationHub
}

func NewNotificationHandler(n services.NotificationService, s services.NotificationSettingsService, hub *realtime.NotificationHub) *NotificationHandler {
	return &NotificationHandler{notifications: n, settings: s, hub: hub}
}

// @Summary      List notifications
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Param        unread  query  bool  false  "Only unread"
// @Param        limit   query  int   false  "Page size (max 100)"
// @Param        offset  query  int   false  "Offset"
// @Success      200  {array}  models.Notification
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 50)
	if limit <= 0 || limit > maxNotificationPage {
		limit = 50
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	list, err := h.notifications.List(c.Request.Context(), userID, models.NotificationFilter{
		UnreadOnly: c.Query("unread") == "true",
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Delete several notifications
// @Tags         Notifications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]int64
// @Router       /notifications/delete [post]
func (h *NotificationHandler) DeleteMany(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		IDs []int64 `json:"ids" binding:"required,min=1,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.notifications.DeleteMany(c.Request.Context(), userID, req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// Stream upgrades to a websocket that receives every new in-app notification of the user.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	unread, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	_ = conn.WriteJSON(realtime.Event{Type: "hello", UnreadCount: &unread})
	for {
		var incoming map[string]interface{}
		if err := conn.ReadJSON(&incoming); err != nil {
			return
		}
	}
}

// @Summary      Notification settings
// @Tags         Settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.NotificationSetting
// @Router       /settings/notifications [get]
func (h *NotificationHandler) GetSettings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	s, err := h.settings.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary      Replace notification settings
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      models.NotificationSetting  true  "Settings"
// @Success      200   {object}  models.NotificationSetting
// @Failure      400   {object}  map[string]string
// @Router       /settings/notifications [put]
func (h *NotificationHandler) UpdateSettings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	current, err := h.settings.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	// fields absent from the body keep their current value
	if err := c.ShouldBindJSON(current); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	current.UserID = userID
	if err := h.settings.Update(c.Request.Context(), current); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, current)
}
