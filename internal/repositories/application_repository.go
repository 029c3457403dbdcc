package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

type ApplicationRepository interface {
	Create(ctx context.Context, a *models.Application) error
	GetByID(ctx context.Context, id, userID int64) (*models.Application, error)
	ListByUser(ctx context.Context, userID int64, status *models.ApplicationStatus) ([]models.Application, error)
	UpdateStatus(ctx context.Context, id, userID int64, status models.ApplicationStatus, at time.Time) (bool, error)
	Delete(ctx context.Context, id, userID int64) (bool, error)
	// ListStale returns applications in one of statuses whose updated_at is at or before the cutoff.
	ListStale(ctx context.Context, statuses []models.ApplicationStatus, before time.Time) ([]models.Application, error)
	WeeklyStats(ctx context.Context, userID int64, from, to time.Time) (*models.WeeklyStats, error)
}

type applicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

const applicationColumns = `id, user_id, company, position, status, applied_at, notes, created_at, updated_at`

func scanApplication(row rowScanner) (*models.Application, error) {
	var a models.Application
	if err := row.Scan(&a.ID, &a.UserID, &a.Company, &a.Position, &a.Status,
		&a.AppliedAt, &a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepository) Create(ctx context.Context, a *models.Application) error {
	const q = `
		INSERT INTO applications (user_id, company, position, status, applied_at, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, q,
		a.UserID, a.Company, a.Position, a.Status, a.AppliedAt, a.Notes, a.CreatedAt,
	).Scan(&a.ID); err != nil {
		return fmt.Errorf("application create: %w", err)
	}
	a.UpdatedAt = a.CreatedAt
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id, userID int64) (*models.Application, error) {
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 AND user_id = $2`
	a, err := scanApplication(r.db.QueryRowContext(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("application get: %w", err)
	}
	return a, nil
}

func (r *applicationRepository) ListByUser(ctx context.Context, userID int64, status *models.ApplicationStatus) ([]models.Application, error) {
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id = $1`
	args := []interface{}{userID}
	if status != nil {
		q += ` AND status = $2`
		args = append(args, *status)
	}
	q += ` ORDER BY applied_at DESC`
	return r.query(ctx, "application list", q, args...)
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, id, userID int64, status models.ApplicationStatus, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`,
		status, at, id, userID)
	if err != nil {
		return false, fmt.Errorf("application update status: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *applicationRepository) Delete(ctx context.Context, id, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("application delete: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *applicationRepository) ListStale(ctx context.Context, statuses []models.ApplicationStatus, before time.Time) ([]models.Application, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	q := `SELECT ` + applicationColumns + `
		FROM applications
		WHERE status = ANY($1) AND updated_at <= $2
		ORDER BY user_id, id`
	return r.query(ctx, "application list stale", q, pq.Array(ss), before)
}

func (r *applicationRepository) query(ctx context.Context, op, q string, args ...interface{}) ([]models.Application, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *applicationRepository) WeeklyStats(ctx context.Context, userID int64, from, to time.Time) (*models.WeeklyStats, error) {
	const q = `
		SELECT
			(SELECT COUNT(*) FROM applications WHERE user_id = $1 AND applied_at >= $2 AND applied_at < $3),
			(SELECT COUNT(*) FROM interviews WHERE user_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3 AND status = 'COMPLETED'),
			(SELECT COUNT(*) FROM interviews WHERE user_id = $1 AND scheduled_at >= $3 AND status = 'SCHEDULED'),
			(SELECT COUNT(*) FROM applications WHERE user_id = $1 AND status = 'OFFER' AND updated_at >= $2 AND updated_at < $3),
			(SELECT COUNT(*) FROM applications WHERE user_id = $1 AND status = 'REJECTED' AND updated_at >= $2 AND updated_at < $3),
			(SELECT COUNT(*) FROM applications WHERE user_id = $1 AND status IN ('APPLIED','UNDER_REVIEW','INTERVIEW','OFFER'))
	`
	s := &models.WeeklyStats{UserID: userID, From: from, To: to}
	if err := r.db.QueryRowContext(ctx, q, userID, from, to).Scan(
		&s.ApplicationsSent, &s.InterviewsHeld, &s.InterviewsUpcoming,
		&s.Offers, &s.Rejections, &s.ActiveApplications,
	); err != nil {
		return nil, fmt.Errorf("application weekly stats: %w", err)
	}
	return s, nil
}

type InterviewRepository interface {
	Create(ctx context.Context, i *models.Interview) error
	ListByApplication(ctx context.Context, applicationID, userID int64) ([]models.Interview, error)
	Delete(ctx context.Context, id, userID int64) (bool, error)
	// ListScheduledBetween returns SCHEDULED interviews starting in [from, to), joined with their application.
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]models.UpcomingInterview, error)
	ListScheduledForUser(ctx context.Context, userID int64, from, to time.Time) ([]models.UpcomingInterview, error)
}

type interviewRepository struct {
	db *sql.DB
}

func NewInterviewRepository(db *sql.DB) InterviewRepository {
	return &interviewRepository{db: db}
}

func (r *interviewRepository) Create(ctx context.Context, i *models.Interview) error {
	const q = `
		INSERT INTO interviews (application_id, user_id, type, scheduled_at, duration_minutes, location, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, q,
		i.ApplicationID, i.UserID, i.Type, i.ScheduledAt, i.DurationMinutes, i.Location, i.Status, i.Notes, i.CreatedAt,
	).Scan(&i.ID); err != nil {
		return fmt.Errorf("interview create: %w", err)
	}
	return nil
}

func (r *interviewRepository) ListByApplication(ctx context.Context, applicationID, userID int64) ([]models.Interview, error) {
	const q = `
		SELECT id, application_id, user_id, type, scheduled_at, duration_minutes, location, status, notes, created_at
		FROM interviews
		WHERE application_id = $1 AND user_id = $2
		ORDER BY scheduled_at
	`
	rows, err := r.db.QueryContext(ctx, q, applicationID, userID)
	if err != nil {
		return nil, fmt.Errorf("interview list: %w", err)
	}
	defer rows.Close()

	var out []models.Interview
	for rows.Next() {
		var i models.Interview
		if err := rows.Scan(&i.ID, &i.ApplicationID, &i.UserID, &i.Type, &i.ScheduledAt,
			&i.DurationMinutes, &i.Location, &i.Status, &i.Notes, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("interview scan: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *interviewRepository) Delete(ctx context.Context, id, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM interviews WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("interview delete: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const upcomingSelect = `
	SELECT i.id, i.application_id, i.user_id, i.type, i.scheduled_at, i.duration_minutes,
	       i.location, i.status, i.notes, i.created_at, a.company, a.position
	FROM interviews i
	JOIN applications a ON a.id = i.application_id
	WHERE i.status = 'SCHEDULED' AND i.scheduled_at >= $1 AND i.scheduled_at < $2`

func (r *interviewRepository) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]models.UpcomingInterview, error) {
	rows, err := r.db.QueryContext(ctx, upcomingSelect+` ORDER BY i.scheduled_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("interview list upcoming: %w", err)
	}
	return scanUpcoming(rows)
}

func (r *interviewRepository) ListScheduledForUser(ctx context.Context, userID int64, from, to time.Time) ([]models.UpcomingInterview, error) {
	rows, err := r.db.QueryContext(ctx, upcomingSelect+` AND i.user_id = $3 ORDER BY i.scheduled_at`, from, to, userID)
	if err != nil {
		return nil, fmt.Errorf("interview list upcoming for user: %w", err)
	}
	return scanUpcoming(rows)
}

func scanUpcoming(rows *sql.Rows) ([]models.UpcomingInterview, error) {
	defer rows.Close()

	var out []models.UpcomingInterview
	for rows.Next() {
		var u models.UpcomingInterview
		if err := rows.Scan(&u.ID, &u.ApplicationID, &u.UserID, &u.Type, &u.ScheduledAt, &u.DurationMinutes,
			&u.Location, &u.Status, &u.Notes, &u.CreatedAt, &u.Company, &u.Position); err != nil {
			return nil, fmt.Errorf("interview upcoming scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
