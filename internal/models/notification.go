package models

import "time"

type NotificationType string

const (
	NotificationInterviewReminder   NotificationType = "INTERVIEW_REMINDER"
	NotificationApplicationFollowUp NotificationType = "APPLICATION_FOLLOW_UP"
	NotificationWeeklyReport        NotificationType = "WEEKLY_REPORT"
	NotificationDeadlineAlert       NotificationType = "DEADLINE_ALERT"
	NotificationStatusUpdate        NotificationType = "STATUS_UPDATE"
	NotificationSystem              NotificationType = "SYSTEM_NOTIFICATION"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "LOW"
	PriorityNormal NotificationPriority = "NORMAL"
	PriorityHigh   NotificationPriority = "HIGH"
	PriorityUrgent NotificationPriority = "URGENT"
)

type Notification struct {
	ID        int64                  `json:"id"`
	UserID    int64                  `json:"user_id"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  NotificationPriority   `json:"priority"`
	IsRead    bool                   `json:"is_read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	ActionURL *string                `json:"action_url,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationSetting holds per-user channel and category preferences.
type NotificationSetting struct {
	UserID int64 `json:"user_id"`

	EmailEnabled bool `json:"email_enabled"`
	SMSEnabled   bool `json:"sms_enabled"`
	PushEnabled  bool `json:"push_enabled"`

	InterviewReminders   bool `json:"interview_reminders"`
	ApplicationFollowUps bool `json:"application_follow_ups"`
	WeeklyReports        bool `json:"weekly_reports"`
	DeadlineAlerts       bool `json:"deadline_alerts"`
	StatusUpdates        bool `json:"status_updates"`

	ReminderMinutes1 int `json:"reminder_minutes_1"`
	ReminderMinutes2 int `json:"reminder_minutes_2"`
	ReminderMinutes3 int `json:"reminder_minutes_3"`

	PhoneNumber *string   `json:"phone_number,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func DefaultNotificationSetting(userID int64) *NotificationSetting {
	return &NotificationSetting{
		UserID:               userID,
		EmailEnabled:         true,
		SMSEnabled:           false,
		PushEnabled:          true,
		InterviewReminders:   true,
		ApplicationFollowUps: true,
		WeeklyReports:        true,
		DeadlineAlerts:       true,
		StatusUpdates:        true,
		ReminderMinutes1:     1440,
		ReminderMinutes2:     60,
		ReminderMinutes3:     15,
	}
}

// ReminderOffsets returns the configured minutes-before values, skipping non-positive ones.
func (s *NotificationSetting) ReminderOffsets() []int {
	out := make([]int, 0, 3)
	for _, m := range []int{s.ReminderMinutes1, s.ReminderMinutes2, s.ReminderMinutes3} {
		if m > 0 {
			out = append(out, m)
		}
	}
	return out
}
