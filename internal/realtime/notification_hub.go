package realtime

import (
	"sync"

	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/models"
)

// NotificationHub fans newly stored in-app notifications out to the user's open sockets.
type NotificationHub struct {
	mu    sync.RWMutex
	users map[int64]map[*Conn]struct{}
	log   logger.Logger
}

func NewNotificationHub(log logger.Logger) *NotificationHub {
	return &NotificationHub{
		users: make(map[int64]map[*Conn]struct{}),
		log:   log,
	}
}

func (h *NotificationHub) Register(userID int64, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Conn]struct{})
	}
	h.users[userID][conn] = struct{}{}
}

func (h *NotificationHub) Unregister(userID int64, conn *Conn) {
	h.mu.Lock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *NotificationHub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Publish writes n to every socket of userID. Sockets that fail the write are dropped.
func (h *NotificationHub) Publish(userID int64, n *models.Notification) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.users[userID]))
	for conn := range h.users[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	msg := Event{Type: "notification", Notification: n}
	for _, conn := range conns {
		if err := conn.WriteJSON(msg); err != nil {
			h.log.WithError(err).Debug("drop notification socket", map[string]interface{}{"user_id": userID})
			h.Unregister(userID, conn)
		}
	}
}

// Event is the envelope sent over the socket.
type Event struct {
	Type         string               `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
	UnreadCount  *int                 `json:"unread_count,omitempty"`
}
