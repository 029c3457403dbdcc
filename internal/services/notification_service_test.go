package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/models"
)

type dispatchFixture struct {
	svc       NotificationService
	repo      *memNotifications
	settings  *memSettings
	users     *memUsers
	email     *recordingEmail
	sms       *recordingSMS
	publisher *recordingPublisher
	clock     *clock
}

func testUser() *models.User {
	return &models.User{ID: 1, Email: "ada@example.com", FirstName: "Ada", Phone: "+15550001"}
}

func newDispatchFixture(t *testing.T, settings ...*models.NotificationSetting) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		repo:      &memNotifications{},
		settings:  newMemSettings(settings...),
		users:     newMemUsers(testUser()),
		email:     &recordingEmail{},
		sms:       &recordingSMS{},
		publisher: &recordingPublisher{},
		clock:     newClock(),
	}
	f.svc = NewNotificationService(f.repo, f.settings, f.users, f.email, f.sms, f.publisher,
		logger.NewTestLogger(t), time.Second, f.clock.Now)
	return f
}

func allOn() *models.NotificationSetting {
	s := models.DefaultNotificationSetting(1)
	s.SMSEnabled = true
	return s
}

func TestDispatch_WeeklyReportNeverSendsSMS(t *testing.T) {
	f := newDispatchFixture(t, allOn())

	report := f.svc.Dispatch(context.Background(), DispatchInput{
		UserID:  1,
		Type:    models.NotificationWeeklyReport,
		Title:   "Your week",
		Message: "Here is your summary",
		Data:    map[string]interface{}{"applications_sent": 3},
	})

	assert.Equal(t, DispatchReport{InApp: true, Email: true, SMS: false}, report)
	assert.Equal(t, 0, f.sms.count())
	assert.Equal(t, 1, f.email.count())
	assert.Contains(t, f.email.sent[0].HTML, "Applications sent: 3")
}

func TestDispatch_DeadlineAlertUsesEveryChannel(t *testing.T) {
	for _, push := range []bool{true, false} {
		s := allOn()
		s.PushEnabled = push
		f := newDispatchFixture(t, s)

		report := f.svc.Dispatch(context.Background(), DispatchInput{
			UserID: 1, Type: models.NotificationDeadlineAlert, Title: "Deadline", Message: "Offer expires tomorrow",
			Priority: models.PriorityHigh,
		})

		assert.Equal(t, 1, f.sms.count())
		assert.Equal(t, "+15550001", f.sms.sent[0].To)
		assert.Equal(t, 1, f.email.count())
		assert.Equal(t, "ada@example.com", f.email.sent[0].To)
		if push {
			assert.Len(t, f.repo.rows, 1)
			assert.Equal(t, []int64{1}, f.publisher.got)
		} else {
			assert.Empty(t, f.repo.rows)
			assert.Empty(t, f.publisher.got)
		}
		assert.Equal(t, push, report.InApp)
	}
}

func TestDispatch_DefaultsWhenSettingsAbsent(t *testing.T) {
	f := newDispatchFixture(t)

	report := f.svc.Dispatch(context.Background(), DispatchInput{
		UserID: 1, Type: models.NotificationInterviewReminder, Title: "Interview soon", Message: "In 1 hour",
	})

	// push and email are on by default, sms is off
	assert.Equal(t, DispatchReport{InApp: true, Email: true}, report)
	require.Len(t, f.repo.rows, 1)
	assert.Equal(t, models.PriorityNormal, f.repo.rows[0].Priority)
	assert.Equal(t, t0, f.repo.rows[0].CreatedAt)
}

func TestDispatch_CategoryGateStopsEverything(t *testing.T) {
	s := allOn()
	s.StatusUpdates = false
	f := newDispatchFixture(t, s)

	report := f.svc.Dispatch(context.Background(), DispatchInput{
		UserID: 1, Type: models.NotificationStatusUpdate, Title: "Status", Message: "Moved",
	})

	assert.Equal(t, DispatchReport{}, report)
	assert.Empty(t, f.repo.rows)
	assert.Equal(t, 0, f.email.count())
	assert.Equal(t, 0, f.sms.count())
}

func TestDispatch_SMSNeedsPhone(t *testing.T) {
	f := newDispatchFixture(t, allOn())
	f.users = newMemUsers(&models.User{ID: 1, Email: "ada@example.com"})
	f.svc = NewNotificationService(f.repo, f.settings, f.users, f.email, f.sms, nil, logger.NewNoOpLogger(), time.Second, f.clock.Now)

	report := f.svc.Dispatch(context.Background(), DispatchInput{UserID: 1, Type: models.NotificationInterviewReminder, Title: "t", Message: "m"})

	assert.False(t, report.SMS)
	assert.Equal(t, 0, f.sms.count())
	assert.True(t, report.Email)
}

func TestDispatch_SettingsPhoneWins(t *testing.T) {
	s := allOn()
	phone := "+15559999"
	s.PhoneNumber = &phone
	f := newDispatchFixture(t, s)

	f.svc.Dispatch(context.Background(), DispatchInput{UserID: 1, Type: models.NotificationDeadlineAlert, Title: "t", Message: "m"})

	require.Equal(t, 1, f.sms.count())
	assert.Equal(t, "+15559999", f.sms.sent[0].To)
}

func TestDispatch_ChannelFailuresAreIsolated(t *testing.T) {
	f := newDispatchFixture(t, allOn())
	f.email.err = errors.New("smtp down")
	f.repo.err = errors.New("db down")

	report := f.svc.Dispatch(context.Background(), DispatchInput{UserID: 1, Type: models.NotificationDeadlineAlert, Title: "t", Message: "m"})

	assert.False(t, report.InApp)
	assert.False(t, report.Email)
	assert.True(t, report.SMS)
}

func TestDispatch_UnconfiguredChannelsAreSkipped(t *testing.T) {
	f := newDispatchFixture(t, allOn())
	f.svc = NewNotificationService(f.repo, f.settings, f.users, noopEmailSender{}, noopSMSSender{}, nil, logger.NewNoOpLogger(), time.Second, f.clock.Now)

	report := f.svc.Dispatch(context.Background(), DispatchInput{UserID: 1, Type: models.NotificationDeadlineAlert, Title: "t", Message: "m"})

	assert.Equal(t, DispatchReport{InApp: true}, report)
}

func TestDispatch_UnknownUserOrSettingsError(t *testing.T) {
	f := newDispatchFixture(t)
	report := f.svc.Dispatch(context.Background(), DispatchInput{UserID: 99, Type: models.NotificationSystem, Title: "t", Message: "m"})
	assert.Equal(t, DispatchReport{}, report)

	f.settings.err = errors.New("boom")
	report = f.svc.Dispatch(context.Background(), DispatchInput{UserID: 1, Type: models.NotificationSystem, Title: "t", Message: "m"})
	assert.Equal(t, DispatchReport{}, report)
	assert.Equal(t, 0, f.email.count())
}

func TestDispatch_EmailOnlyTypes(t *testing.T) {
	for _, typ := range []models.NotificationType{
		models.NotificationApplicationFollowUp,
		models.NotificationWeeklyReport,
		models.NotificationStatusUpdate,
		models.NotificationSystem,
	} {
		f := newDispatchFixture(t, allOn())
		report := f.svc.Dispatch(context.Background(), DispatchInput{UserID: 1, Type: typ, Title: "t", Message: "m"})
		assert.True(t, report.Email, typ)
		assert.False(t, report.SMS, typ)
	}
}

func TestNotificationReadAndDelete(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.svc.Dispatch(ctx, DispatchInput{UserID: 1, Type: models.NotificationSystem, Title: "t", Message: "m"})
	}

	n, err := f.svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, f.svc.MarkRead(ctx, 1, 1))
	assert.ErrorIs(t, f.svc.MarkRead(ctx, 2, 1), ErrNotFound, "other user's notification")

	unread, err := f.svc.List(ctx, 1, models.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	marked, err := f.svc.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	require.NoError(t, f.svc.Delete(ctx, 1, 1))
	assert.ErrorIs(t, f.svc.Delete(ctx, 1, 1), ErrNotFound)

	deleted, err := f.svc.DeleteMany(ctx, 1, []int64{2, 3, 42})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestCleanupRead(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	f.svc.Dispatch(ctx, DispatchInput{UserID: 1, Type: models.NotificationSystem, Title: "old", Message: "m"})
	f.svc.Dispatch(ctx, DispatchInput{UserID: 1, Type: models.NotificationSystem, Title: "unread", Message: "m"})
	require.NoError(t, f.svc.MarkRead(ctx, 1, 1))

	f.clock.Advance(31 * 24 * time.Hour)
	deleted, err := f.svc.CleanupRead(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	require.Len(t, f.repo.rows, 1)
	assert.Equal(t, "unread", f.repo.rows[0].Title)
}
