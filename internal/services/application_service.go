package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/repositories"
)

var statusLabels = map[models.ApplicationStatus]string{
	models.ApplicationApplied:     "applied",
	models.ApplicationUnderReview: "under review",
	models.ApplicationInterview:   "interview stage",
	models.ApplicationOffer:       "offer received",
	models.ApplicationRejected:    "rejected",
	models.ApplicationAccepted:    "accepted",
	models.ApplicationWithdrawn:   "withdrawn",
}

type ApplicationService interface {
	Create(ctx context.Context, a *models.Application) error
	Get(ctx context.Context, userID, id int64) (*models.Application, error)
	List(ctx context.Context, userID int64, status *models.ApplicationStatus) ([]models.Application, error)
	// UpdateStatus stores the new status and emits a STATUS_UPDATE notification when it changed.
	UpdateStatus(ctx context.Context, userID, id int64, status models.ApplicationStatus) (*models.Application, error)
	Delete(ctx context.Context, userID, id int64) error

	AddInterview(ctx context.Context, userID int64, i *models.Interview) error
	ListInterviews(ctx context.Context, userID, applicationID int64) ([]models.Interview, error)
	DeleteInterview(ctx context.Context, userID, id int64) error
}

type applicationService struct {
	apps       repositories.ApplicationRepository
	interviews repositories.InterviewRepository
	notifier   NotificationService
	appURL     string
	now        func() time.Time
}

func NewApplicationService(
	apps repositories.ApplicationRepository,
	interviews repositories.InterviewRepository,
	notifier NotificationService,
	appURL string,
	now func() time.Time,
) ApplicationService {
	if now == nil {
		now = time.Now
	}
	return &applicationService{
		apps:       apps,
		interviews: interviews,
		notifier:   notifier,
		appURL:     strings.TrimRight(appURL, "/"),
		now:        now,
	}
}

func (s *applicationService) Create(ctx context.Context, a *models.Application) error {
	a.Company = strings.TrimSpace(a.Company)
	a.Position = strings.TrimSpace(a.Position)
	if a.Company == "" || a.Position == "" {
		return fmt.Errorf("%w: company and position are required", ErrInvalidInput)
	}
	if a.Status == "" {
		a.Status = models.ApplicationApplied
	}
	if !a.Status.Valid() {
		return ErrInvalidStatus
	}
	now := s.now()
	if a.AppliedAt.IsZero() {
		a.AppliedAt = now
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return s.apps.Create(ctx, a)
}

func (s *applicationService) Get(ctx context.Context, userID, id int64) (*models.Application, error) {
	a, err := s.apps.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *applicationService) List(ctx context.Context, userID int64, status *models.ApplicationStatus) ([]models.Application, error) {
	if status != nil && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.apps.ListByUser(ctx, userID, status)
}

func (s *applicationService) UpdateStatus(ctx context.Context, userID, id int64, status models.ApplicationStatus) (*models.Application, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	if !canTransition(a.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, status)
	}

	now := s.now()
	ok, err := s.apps.UpdateStatus(ctx, id, userID, status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	previous := a.Status
	a.Status = status
	a.UpdatedAt = now

	s.notifier.Dispatch(ctx, DispatchInput{
		UserID:  userID,
		Type:    models.NotificationStatusUpdate,
		Title:   fmt.Sprintf("%s: %s", a.Company, statusLabels[status]),
		Message: fmt.Sprintf("Your application for %s at %s moved from %s to %s.", a.Position, a.Company, statusLabels[previous], statusLabels[status]),
		Data: map[string]interface{}{
			"application_id":  a.ID,
			"company":         a.Company,
			"position":        a.Position,
			"previous_status": previous,
			"status":          status,
		},
		Priority:  models.PriorityNormal,
		ActionURL: s.link("/applications/%d", a.ID),
	})
	return a, nil
}

func (s *applicationService) link(format string, args ...interface{}) *string {
	if s.appURL == "" {
		return nil
	}
	u := s.appURL + fmt.Sprintf(format, args...)
	return &u
}

func (s *applicationService) Delete(ctx context.Context, userID, id int64) error {
	ok, err := s.apps.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *applicationService) AddInterview(ctx context.Context, userID int64, i *models.Interview) error {
	if _, err := s.Get(ctx, userID, i.ApplicationID); err != nil {
		return err
	}
	if i.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled_at is required", ErrInvalidInput)
	}
	i.UserID = userID
	if i.Status == "" {
		i.Status = models.InterviewScheduled
	}
	if i.DurationMinutes <= 0 {
		i.DurationMinutes = 60
	}
	i.CreatedAt = s.now()
	return s.interviews.Create(ctx, i)
}

func (s *applicationService) ListInterviews(ctx context.Context, userID, applicationID int64) ([]models.Interview, error) {
	return s.interviews.ListByApplication(ctx, applicationID, userID)
}

func (s *applicationService) DeleteInterview(ctx context.Context, userID, id int64) error {
	ok, err := s.interviews.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
