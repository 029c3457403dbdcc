package models

import "time"

type ApplicationStatus string

const (
	ApplicationApplied     ApplicationStatus = "APPLIED"
	ApplicationUnderReview ApplicationStatus = "UNDER_REVIEW"
	ApplicationInterview   ApplicationStatus = "INTERVIEW"
	ApplicationOffer       ApplicationStatus = "OFFER"
	ApplicationRejected    ApplicationStatus = "REJECTED"
	ApplicationAccepted    ApplicationStatus = "ACCEPTED"
	ApplicationWithdrawn   ApplicationStatus = "WITHDRAWN"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationApplied, ApplicationUnderReview, ApplicationInterview, ApplicationOffer,
		ApplicationRejected, ApplicationAccepted, ApplicationWithdrawn:
		return true
	}
	return false
}

type Application struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"user_id"`
	Company   string            `json:"company"`
	Position  string            `json:"position"`
	Status    ApplicationStatus `json:"status"`
	AppliedAt time.Time         `json:"applied_at"`
	Notes     string            `json:"notes,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type InterviewStatus string

const (
	InterviewScheduled InterviewStatus = "SCHEDULED"
	InterviewCompleted InterviewStatus = "COMPLETED"
	InterviewCancelled InterviewStatus = "CANCELLED"
)

type Interview struct {
	ID              int64           `json:"id"`
	ApplicationID   int64           `json:"application_id"`
	UserID          int64           `json:"user_id"`
	Type            string          `json:"type"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	DurationMinutes int             `json:"duration_minutes"`
	Location        string          `json:"location,omitempty"`
	Status          InterviewStatus `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// UpcomingInterview is an interview joined with the application it belongs to.
type UpcomingInterview struct {
	Interview
	Company  string
	Position string
}

// WeeklyStats aggregates one user's activity over a reporting window.
type WeeklyStats struct {
	UserID             int64     `json:"user_id"`
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	ApplicationsSent   int       `json:"applications_sent"`
	InterviewsHeld     int       `json:"interviews_held"`
	InterviewsUpcoming int       `json:"interviews_upcoming"`
	Offers             int       `json:"offers"`
	Rejections         int       `json:"rejections"`
	ActiveApplications int       `json:"active_applications"`
}
