package services

import "github.com/Joello61/candi-tracker-api/internal/models"

type notificationCategory int

const (
	categoryNone notificationCategory = iota
	categoryInterviewReminders
	categoryApplicationFollowUps
	categoryWeeklyReports
	categoryDeadlineAlerts
	categoryStatusUpdates
)

// ChannelPolicy is the fixed routing decision for one notification type.
type ChannelPolicy struct {
	category   notificationCategory
	AllowEmail bool
	AllowSMS   bool
}

var notificationPolicies = map[models.NotificationType]ChannelPolicy{
	models.NotificationInterviewReminder:   {category: categoryInterviewReminders, AllowEmail: true, AllowSMS: true},
	models.NotificationApplicationFollowUp: {category: categoryApplicationFollowUps, AllowEmail: true},
	models.NotificationWeeklyReport:        {category: categoryWeeklyReports, AllowEmail: true},
	models.NotificationDeadlineAlert:       {category: categoryDeadlineAlerts, AllowEmail: true, AllowSMS: true},
	models.NotificationStatusUpdate:        {category: categoryStatusUpdates, AllowEmail: true},
	models.NotificationSystem:              {category: categoryNone, AllowEmail: true},
}

// PolicyFor returns the routing for t. Unknown types are in-app only and never gated by a category.
func PolicyFor(t models.NotificationType) ChannelPolicy {
	if p, ok := notificationPolicies[t]; ok {
		return p
	}
	return ChannelPolicy{category: categoryNone}
}

// CategoryEnabled applies the user's per-category toggle; types without a category are always enabled.
func (p ChannelPolicy) CategoryEnabled(s *models.NotificationSetting) bool {
	if s == nil {
		return true
	}
	switch p.category {
	case categoryInterviewReminders:
		return s.InterviewReminders
	case categoryApplicationFollowUps:
		return s.ApplicationFollowUps
	case categoryWeeklyReports:
		return s.WeeklyReports
	case categoryDeadlineAlerts:
		return s.DeadlineAlerts
	case categoryStatusUpdates:
		return s.StatusUpdates
	}
	return true
}
