package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/pdf"
	"github.com/Joello61/candi-tracker-api/internal/repositories"
)

const reportWindow = 7 * 24 * time.Hour

type ReportService interface {
	// Weekly covers the seven days ending now.
	Weekly(ctx context.Context, userID int64) (*models.WeeklyStats, error)
	WeeklyPDF(ctx context.Context, userID int64, w io.Writer) error
}

type reportService struct {
	apps       repositories.ApplicationRepository
	interviews repositories.InterviewRepository
	users      UserLookup
	gen        pdf.Generator
	now        func() time.Time
}

func NewReportService(
	apps repositories.ApplicationRepository,
	interviews repositories.InterviewRepository,
	users UserLookup,
	gen pdf.Generator,
	now func() time.Time,
) ReportService {
	if now == nil {
		now = time.Now
	}
	return &reportService{apps: apps, interviews: interviews, users: users, gen: gen, now: now}
}

func (s *reportService) Weekly(ctx context.Context, userID int64) (*models.WeeklyStats, error) {
	now := s.now()
	return s.apps.WeeklyStats(ctx, userID, now.Add(-reportWindow), now)
}

func (s *reportService) WeeklyPDF(ctx context.Context, userID int64, w io.Writer) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotFound
	}
	stats, err := s.Weekly(ctx, userID)
	if err != nil {
		return err
	}
	upcoming, err := s.interviews.ListScheduledForUser(ctx, userID, stats.To, stats.To.Add(reportWindow))
	if err != nil {
		return err
	}
	return s.gen.WeeklyReport(w, pdf.WeeklyReportData{
		Name:     strings.TrimSpace(user.FirstName + " " + user.LastName),
		Stats:    *stats,
		Upcoming: upcoming,
	})
}

// WeeklyStatsData flattens stats into the notification payload the weekly email template reads.
func WeeklyStatsData(s *models.WeeklyStats) map[string]interface{} {
	return map[string]interface{}{
		"from":                s.From.Format(time.RFC3339),
		"to":                  s.To.Format(time.RFC3339),
		"applications_sent":   s.ApplicationsSent,
		"interviews_held":     s.InterviewsHeld,
		"interviews_upcoming": s.InterviewsUpcoming,
		"offers":              s.Offers,
		"rejections":          s.Rejections,
		"active_applications": s.ActiveApplications,
	}
}
