package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Joello61/candi-tracker-api/internal/config"
	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/services"
)

const (
	JobInterviewReminders = "interview_reminders"
	JobFollowUps          = "application_follow_ups"
	JobWeeklyReports      = "weekly_reports"
	JobCleanup            = "cleanup"

	// reminderTolerance is half the 15 minute tick, so each offset matches on exactly one run.
	reminderTolerance = 7
	maxReminderOffset = 7 * 24 * 60

	followUpEvery = 7
	userPageSize  = 200
)

var followUpStatuses = []models.ApplicationStatus{models.ApplicationApplied, models.ApplicationUnderReview}

type InterviewSource interface {
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]models.UpcomingInterview, error)
}

type ApplicationSource interface {
	ListStale(ctx context.Context, statuses []models.ApplicationStatus, before time.Time) ([]models.Application, error)
	WeeklyStats(ctx context.Context, userID int64, from, to time.Time) (*models.WeeklyStats, error)
}

type UserPager interface {
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

type CodeCleaner interface {
	CleanupExpiredCodes(ctx context.Context) (int64, error)
}

type Deps struct {
	Interviews    InterviewSource
	Applications  ApplicationSource
	Users         UserPager
	Settings      services.NotificationSettingsService
	Notifications services.NotificationService
	Codes         CodeCleaner
}

// Jobs holds the periodic work of the service. Every method is safe to call by hand.
type Jobs struct {
	deps       Deps
	log        logger.Logger
	appURL     string
	readMaxAge int
	now        func() time.Time
}

func NewJobs(deps Deps, cfg config.NotificationsConfig, log logger.Logger, now func() time.Time) *Jobs {
	if now == nil {
		now = time.Now
	}
	return &Jobs{
		deps:       deps,
		log:        log.WithFields(map[string]interface{}{"component": "scheduler"}),
		appURL:     strings.TrimRight(cfg.AppURL, "/"),
		readMaxAge: cfg.CleanupReadAfterDays,
		now:        now,
	}
}

// Register wires every job onto s using the cadences from cfg.
func (j *Jobs) Register(s *Scheduler, cfg config.SchedulerConfig) error {
	for _, job := range []struct {
		name string
		spec string
		fn   JobFunc
	}{
		{JobInterviewReminders, cfg.InterviewReminders, j.InterviewReminders},
		{JobFollowUps, cfg.FollowUps, j.FollowUps},
		{JobWeeklyReports, cfg.WeeklyReports, j.WeeklyReports},
		{JobCleanup, cfg.Cleanup, j.Cleanup},
	} {
		if err := s.Register(job.name, job.spec, job.fn); err != nil {
			return err
		}
	}
	return nil
}

// InterviewReminders matches every scheduled interview against its owner's reminder offsets.
// An offset fires when the rounded minutes left are within reminderTolerance of it.
func (j *Jobs) InterviewReminders(ctx context.Context) error {
	now := j.now()
	upcoming, err := j.deps.Interviews.ListScheduledBetween(ctx, now,
		now.Add(time.Duration(maxReminderOffset+reminderTolerance)*time.Minute))
	if err != nil {
		return fmt.Errorf("interview reminders: %w", err)
	}

	settings := map[int64]*models.NotificationSetting{}
	sent := 0
	for _, iv := range upcoming {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s, ok := settings[iv.UserID]
		if !ok {
			s, err = j.deps.Settings.Get(ctx, iv.UserID)
			if err != nil {
				j.log.WithError(err).Warn("load reminder settings", map[string]interface{}{"user_id": iv.UserID})
				continue
			}
			settings[iv.UserID] = s
		}

		left := int(math.Round(iv.ScheduledAt.Sub(now).Minutes()))
		for _, offset := range matchingOffsets(s.ReminderOffsets(), left) {
			j.deps.Notifications.Dispatch(ctx, j.reminderInput(iv, offset))
			sent++
		}
	}
	j.log.Info("interview reminders", map[string]interface{}{"interviews": len(upcoming), "sent": sent})
	return nil
}

func matchingOffsets(offsets []int, minutesLeft int) []int {
	var out []int
	seen := map[int]bool{}
	for _, o := range offsets {
		if seen[o] {
			continue
		}
		seen[o] = true
		d := minutesLeft - o
		if d < 0 {
			d = -d
		}
		if d <= reminderTolerance {
			out = append(out, o)
		}
	}
	return out
}

func (j *Jobs) reminderInput(iv models.UpcomingInterview, offset int) services.DispatchInput {
	priority := models.PriorityNormal
	if offset <= 60 {
		priority = models.PriorityHigh
	}
	return services.DispatchInput{
		UserID:   iv.UserID,
		Type:     models.NotificationInterviewReminder,
		Title:    fmt.Sprintf("Interview in %s", humanMinutes(offset)),
		Message:  fmt.Sprintf("Your interview for %s at %s starts at %s.", iv.Position, iv.Company, iv.ScheduledAt.UTC().Format("Mon 2 Jan 15:04 MST")),
		Priority: priority,
		Data: map[string]interface{}{
			"interview_id":   iv.ID,
			"application_id": iv.ApplicationID,
			"company":        iv.Company,
			"position":       iv.Position,
			"location":       iv.Location,
			"scheduled_at":   iv.ScheduledAt.UTC().Format(time.RFC3339),
			"minutes_before": offset,
		},
		ActionURL: j.link(fmt.Sprintf("/applications/%d", iv.ApplicationID)),
	}
}

func humanMinutes(m int) string {
	unit := func(n int, word string) string {
		if n == 1 {
			return "1 " + word
		}
		return fmt.Sprintf("%d %ss", n, word)
	}
	switch {
	case m%1440 == 0:
		return unit(m/1440, "day")
	case m%60 == 0:
		return unit(m/60, "hour")
	default:
		return unit(m, "minute")
	}
}

// FollowUps nudges on applications untouched for 7, 14, 21... whole days.
func (j *Jobs) FollowUps(ctx context.Context) error {
	now := j.now()
	stale, err := j.deps.Applications.ListStale(ctx, followUpStatuses, now.Add(-followUpEvery*24*time.Hour))
	if err != nil {
		return fmt.Errorf("follow-ups: %w", err)
	}

	sent := 0
	for _, a := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		days := int(now.Sub(a.UpdatedAt).Hours() / 24)
		if days < followUpEvery || days%followUpEvery != 0 {
			continue
		}
		j.deps.Notifications.Dispatch(ctx, services.DispatchInput{
			UserID:  a.UserID,
			Type:    models.NotificationApplicationFollowUp,
			Title:   fmt.Sprintf("Follow up with %s", a.Company),
			Message: fmt.Sprintf("Your application for %s at %s has had no update for %d days.", a.Position, a.Company, days),
			Data: map[string]interface{}{
				"application_id": a.ID,
				"company":        a.Company,
				"position":       a.Position,
				"status":         a.Status,
				"days_since":     days,
			},
			ActionURL: j.link(fmt.Sprintf("/applications/%d", a.ID)),
		})
		sent++
	}
	j.log.Info("follow-ups", map[string]interface{}{"stale": len(stale), "sent": sent})
	return nil
}

// WeeklyReports sends every verified user a summary of the last seven days.
// Users with no activity at all get nothing.
func (j *Jobs) WeeklyReports(ctx context.Context) error {
	now := j.now()
	from := now.Add(-7 * 24 * time.Hour)

	var afterID int64
	sent, failed := 0, 0
	for {
		ids, err := j.deps.Users.ListIDs(ctx, afterID, userPageSize)
		if err != nil {
			return fmt.Errorf("weekly reports: %w", err)
		}
		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats, err := j.deps.Applications.WeeklyStats(ctx, id, from, now)
			if err != nil {
				failed++
				j.log.WithError(err).Warn("weekly stats", map[string]interface{}{"user_id": id})
				continue
			}
			if idle(stats) {
				continue
			}
			j.deps.Notifications.Dispatch(ctx, services.DispatchInput{
				UserID:    id,
				Type:      models.NotificationWeeklyReport,
				Title:     "Your weekly report",
				Message:   fmt.Sprintf("This week: %d applications sent, %d interviews, %d offers.", stats.ApplicationsSent, stats.InterviewsHeld, stats.Offers),
				Data:      services.WeeklyStatsData(stats),
				Priority:  models.PriorityLow,
				ActionURL: j.link("/reports"),
			})
			sent++
		}
		if len(ids) < userPageSize {
			break
		}
		afterID = ids[len(ids)-1]
	}
	j.log.Info("weekly reports", map[string]interface{}{"sent": sent, "failed": failed})
	return nil
}

func idle(s *models.WeeklyStats) bool {
	return s.ApplicationsSent == 0 && s.InterviewsHeld == 0 && s.InterviewsUpcoming == 0 &&
		s.Offers == 0 && s.Rejections == 0 && s.ActiveApplications == 0
}

// Cleanup purges expired verification codes and old read notifications.
// Both halves always run; their errors are joined.
func (j *Jobs) Cleanup(ctx context.Context) error {
	codes, codesErr := j.deps.Codes.CleanupExpiredCodes(ctx)
	read, readErr := j.deps.Notifications.CleanupRead(ctx, j.readMaxAge)
	if err := errors.Join(codesErr, readErr); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	j.log.Info("cleanup", map[string]interface{}{"codes_deleted": codes, "notifications_deleted": read})
	return nil
}

func (j *Jobs) link(path string) *string {
	if j.appURL == "" {
		return nil
	}
	u := j.appURL + path
	return &u
}
