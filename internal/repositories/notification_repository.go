package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID int64, filter models.NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id, userID int64, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	Delete(ctx context.Context, id, userID int64) (bool, error)
	DeleteMany(ctx context.Context, userID int64, ids []int64) (int64, error)
	// DeleteReadBefore removes read notifications created before the cutoff.
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	data, err := jsonArg(n.Data)
	if err != nil {
		return fmt.Errorf("notification data: %w", err)
	}
	const q = `
		INSERT INTO notifications (user_id, type, title, message, data, priority, is_read, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, q,
		n.UserID, n.Type, n.Title, n.Message, data, n.Priority, n.ActionURL, n.CreatedAt,
	).Scan(&n.ID); err != nil {
		return fmt.Errorf("notification create: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, filter models.NotificationFilter) ([]models.Notification, error) {
	query := `SELECT id, user_id, type, title, message, data, priority, is_read, read_at, action_url, created_at
		FROM notifications`

	conditions := []string{"user_id = $1"}
	args := []interface{}{userID}
	argID := 2

	if filter.UnreadOnly {
		conditions = append(conditions, "is_read = FALSE")
	}
	query += " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("notification list: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n         models.Notification
			data      []byte
			readAt    sql.NullTime
			actionURL sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.Priority,
			&n.IsRead, &readAt, &actionURL, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notification scan: %w", err)
		}
		if n.Data, err = unmarshalJSON(data); err != nil {
			return nil, fmt.Errorf("notification data: %w", err)
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		if actionURL.Valid {
			s := actionURL.String
			n.ActionURL = &s
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("notification count unread: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	const q = `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, q, id, userID, at)
	if err != nil {
		return false, fmt.Errorf("notification mark read: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND is_read = FALSE`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("notification mark all read: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("notification delete: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *notificationRepository) DeleteMany(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("notification delete many: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("notification cleanup: %w", err)
	}
	return res.RowsAffected()
}

type NotificationSettingRepository interface {
	// Get returns nil, nil when the user has no settings row.
	Get(ctx context.Context, userID int64) (*models.NotificationSetting, error)
	Upsert(ctx context.Context, s *models.NotificationSetting) error
}

type notificationSettingRepository struct {
	db *sql.DB
}

func NewNotificationSettingRepository(db *sql.DB) NotificationSettingRepository {
	return &notificationSettingRepository{db: db}
}

func (r *notificationSettingRepository) Get(ctx context.Context, userID int64) (*models.NotificationSetting, error) {
	const q = `
		SELECT user_id, email_enabled, sms_enabled, push_enabled,
		       interview_reminders, application_follow_ups, weekly_reports, deadline_alerts, status_updates,
		       reminder_minutes_1, reminder_minutes_2, reminder_minutes_3, phone_number, updated_at
		FROM notification_settings
		WHERE user_id = $1
	`
	var (
		s     models.NotificationSetting
		phone sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&s.UserID, &s.EmailEnabled, &s.SMSEnabled, &s.PushEnabled,
		&s.InterviewReminders, &s.ApplicationFollowUps, &s.WeeklyReports, &s.DeadlineAlerts, &s.StatusUpdates,
		&s.ReminderMinutes1, &s.ReminderMinutes2, &s.ReminderMinutes3, &phone, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("notification_settings get: %w", err)
	}
	if phone.Valid && phone.String != "" {
		p := phone.String
		s.PhoneNumber = &p
	}
	return &s, nil
}

func (r *notificationSettingRepository) Upsert(ctx context.Context, s *models.NotificationSetting) error {
	const q = `
		INSERT INTO notification_settings (
			user_id, email_enabled, sms_enabled, push_enabled,
			interview_reminders, application_follow_ups, weekly_reports, deadline_alerts, status_updates,
			reminder_minutes_1, reminder_minutes_2, reminder_minutes_3, phone_number, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			push_enabled = EXCLUDED.push_enabled,
			interview_reminders = EXCLUDED.interview_reminders,
			application_follow_ups = EXCLUDED.application_follow_ups,
			weekly_reports = EXCLUDED.weekly_reports,
			deadline_alerts = EXCLUDED.deadline_alerts,
			status_updates = EXCLUDED.status_updates,
			reminder_minutes_1 = EXCLUDED.reminder_minutes_1,
			reminder_minutes_2 = EXCLUDED.reminder_minutes_2,
			reminder_minutes_3 = EXCLUDED.reminder_minutes_3,
			phone_number = EXCLUDED.phone_number,
			updated_at = NOW()
		RETURNING updated_at
	`
	if err := r.db.QueryRowContext(ctx, q,
		s.UserID, s.EmailEnabled, s.SMSEnabled, s.PushEnabled,
		s.InterviewReminders, s.ApplicationFollowUps, s.WeeklyReports, s.DeadlineAlerts, s.StatusUpdates,
		s.ReminderMinutes1, s.ReminderMinutes2, s.ReminderMinutes3, s.PhoneNumber,
	).Scan(&s.UpdatedAt); err != nil {
		return fmt.Errorf("notification_settings upsert: %w", err)
	}
	return nil
}
