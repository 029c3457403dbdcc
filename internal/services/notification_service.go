package services

import (
	"context"
	"errors"
	"time"

	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/metrics"
	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/repositories"
)

type DispatchInput struct {
	UserID    int64
	Type      models.NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Priority  models.NotificationPriority
	ActionURL *string
}

// DispatchReport records which channels actually delivered.
type DispatchReport struct {
	InApp bool
	Email bool
	SMS   bool
}

// NotificationPublisher pushes freshly stored notifications to live clients.
type NotificationPublisher interface {
	Publish(userID int64, n *models.Notification)
}

// UserLookup is the slice of the user store the dispatcher needs.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type NotificationService interface {
	// Dispatch never fails: every channel error is logged and the other channels still run.
	Dispatch(ctx context.Context, in DispatchInput) DispatchReport
	List(ctx context.Context, userID int64, filter models.NotificationFilter) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
	DeleteMany(ctx context.Context, userID int64, ids []int64) (int64, error)
	CleanupRead(ctx context.Context, olderThanDays int) (int64, error)
}

type notificationService struct {
	repo        repositories.NotificationRepository
	settings    repositories.NotificationSettingRepository
	users       UserLookup
	email       EmailSender
	sms         SMSSender
	publisher   NotificationPublisher
	log         logger.Logger
	sendTimeout time.Duration
	now         func() time.Time
}

func NewNotificationService(
	repo repositories.NotificationRepository,
	settings repositories.NotificationSettingRepository,
	users UserLookup,
	email EmailSender,
	sms SMSSender,
	publisher NotificationPublisher,
	log logger.Logger,
	sendTimeout time.Duration,
	now func() time.Time,
) NotificationService {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &notificationService{
		repo:        repo,
		settings:    settings,
		users:       users,
		email:       email,
		sms:         sms,
		publisher:   publisher,
		log:         log,
		sendTimeout: sendTimeout,
		now:         now,
	}
}

func (s *notificationService) Dispatch(ctx context.Context, in DispatchInput) DispatchReport {
	var report DispatchReport
	log := s.log.WithFields(map[string]interface{}{"user_id": in.UserID, "type": in.Type})

	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		log.WithError(err).Error("dispatch: load user failed", nil)
		return report
	}
	if user == nil {
		log.Warn("dispatch: user not found", nil)
		return report
	}

	settings, err := s.settings.Get(ctx, in.UserID)
	if err != nil {
		log.WithError(err).Error("dispatch: load settings failed", nil)
		return report
	}
	if settings == nil {
		settings = models.DefaultNotificationSetting(in.UserID)
	}

	policy := PolicyFor(in.Type)
	if !policy.CategoryEnabled(settings) {
		log.Debug("dispatch: category disabled", nil)
		return report
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}

	if settings.PushEnabled {
		report.InApp = s.storeInApp(ctx, in, log)
	}
	if settings.EmailEnabled && policy.AllowEmail && user.Email != "" {
		report.Email = s.sendEmail(ctx, in, user, log)
	}
	if settings.SMSEnabled && policy.AllowSMS {
		phone := user.Phone
		if settings.PhoneNumber != nil && *settings.PhoneNumber != "" {
			phone = *settings.PhoneNumber
		}
		if phone != "" {
			report.SMS = s.sendSMS(ctx, in, phone, log)
		}
	}
	return report
}

func (s *notificationService) storeInApp(ctx context.Context, in DispatchInput, log logger.Logger) bool {
	n := &models.Notification{
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Data:      in.Data,
		Priority:  in.Priority,
		ActionURL: in.ActionURL,
		CreatedAt: s.now(),
	}
	err := s.repo.Create(ctx, n)
	s.count(in.Type, "in_app", err)
	if err != nil {
		log.WithError(err).Error("dispatch: store notification failed", nil)
		return false
	}
	if s.publisher != nil {
		s.publisher.Publish(in.UserID, n)
	}
	return true
}

func (s *notificationService) sendEmail(ctx context.Context, in DispatchInput, user *models.User, log logger.Logger) bool {
	msg, err := renderNotificationEmail(in, user.DisplayName())
	if err != nil {
		s.count(in.Type, "email", err)
		log.WithError(err).Error("dispatch: render email failed", nil)
		return false
	}
	msg.To = user.Email

	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	return s.handleSend(in.Type, "email", s.email.Send(ctx, msg), log)
}

func (s *notificationService) sendSMS(ctx context.Context, in DispatchInput, phone string, log logger.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	return s.handleSend(in.Type, "sms", s.sms.Send(ctx, phone, renderNotificationSMS(in)), log)
}

func (s *notificationService) handleSend(t models.NotificationType, channel string, err error, log logger.Logger) bool {
	if errors.Is(err, ErrSenderNotConfigured) {
		metrics.NotificationsDispatched.WithLabelValues(string(t), channel, "skipped").Inc()
		log.Debug("dispatch: channel not configured", map[string]interface{}{"channel": channel})
		return false
	}
	s.count(t, channel, err)
	if err != nil {
		log.WithError(err).Error("dispatch: send failed", map[string]interface{}{"channel": channel})
		return false
	}
	return true
}

func (s *notificationService) count(t models.NotificationType, channel string, err error) {
	metrics.NotificationsDispatched.WithLabelValues(string(t), channel, metrics.Result(err)).Inc()
}

func (s *notificationService) List(ctx context.Context, userID int64, filter models.NotificationFilter) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, filter)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

func (s *notificationService) Delete(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *notificationService) DeleteMany(ctx context.Context, userID int64, ids []int64) (int64, error) {
	return s.repo.DeleteMany(ctx, userID, ids)
}

func (s *notificationService) CleanupRead(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays <= 0 {
		olderThanDays = 30
	}
	cutoff := s.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	n, err := s.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info("notification cleanup done", map[string]interface{}{"deleted": n, "older_than_days": olderThanDays})
	return n, nil
}
