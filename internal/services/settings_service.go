package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/repositories"
)

// maxReminderMinutes caps an offset at one week before the interview.
const maxReminderMinutes = 7 * 24 * 60

var ErrInvalidSettings = fmt.Errorf("%w: reminder offsets must be between 0 and %d minutes", ErrInvalidInput, maxReminderMinutes)

type NotificationSettingsService interface {
	// Get returns the stored row or the defaults when the user never saved any.
	Get(ctx context.Context, userID int64) (*models.NotificationSetting, error)
	Update(ctx context.Context, s *models.NotificationSetting) error
	EnsureDefaults(ctx context.Context, userID int64) error
}

type notificationSettingsService struct {
	repo repositories.NotificationSettingRepository
}

func NewNotificationSettingsService(repo repositories.NotificationSettingRepository) NotificationSettingsService {
	return &notificationSettingsService{repo: repo}
}

func (s *notificationSettingsService) Get(ctx context.Context, userID int64) (*models.NotificationSetting, error) {
	st, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return models.DefaultNotificationSetting(userID), nil
	}
	return st, nil
}

func (s *notificationSettingsService) Update(ctx context.Context, st *models.NotificationSetting) error {
	for _, m := range []int{st.ReminderMinutes1, st.ReminderMinutes2, st.ReminderMinutes3} {
		if m < 0 || m > maxReminderMinutes {
			return ErrInvalidSettings
		}
	}
	if st.PhoneNumber != nil {
		p := strings.TrimSpace(*st.PhoneNumber)
		if p == "" {
			st.PhoneNumber = nil
		} else {
			st.PhoneNumber = &p
		}
	}
	return s.repo.Upsert(ctx, st)
}

func (s *notificationSettingsService) EnsureDefaults(ctx context.Context, userID int64) error {
	st, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if st != nil {
		return nil
	}
	return s.repo.Upsert(ctx, models.DefaultNotificationSetting(userID))
}
