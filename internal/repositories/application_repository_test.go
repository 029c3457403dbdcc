package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

func TestApplicationRepository_ListStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewApplicationRepository(db)

	before := fixedNow.Add(-7 * 24 * time.Hour)
	cols := []string{"id", "user_id", "company", "position", "status", "applied_at", "notes", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ANY($1) AND updated_at <= $2")).
		WithArgs(sqlmock.AnyArg(), before).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 2, "Acme", "Go engineer", "APPLIED", before, "", before, before).
			AddRow(3, 2, "Globex", "SRE", "UNDER_REVIEW", before, "", before, before.Add(-time.Hour)))

	apps, err := repo.ListStale(context.Background(),
		[]models.ApplicationStatus{models.ApplicationApplied, models.ApplicationUnderReview}, before)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, models.ApplicationUnderReview, apps[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_UpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $1")).
		WithArgs(models.ApplicationOffer, fixedNow, int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err := repo.UpdateStatus(context.Background(), 1, 2, models.ApplicationOffer, fixedNow)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_WeeklyStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewApplicationRepository(db)

	from := fixedNow.Add(-7 * 24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications WHERE user_id = $1 AND applied_at >= $2")).
		WithArgs(int64(6), from, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}).AddRow(5, 2, 1, 1, 3, 9))

	s, err := repo.WeeklyStats(context.Background(), 6, from, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 5, s.ApplicationsSent)
	assert.Equal(t, 2, s.InterviewsHeld)
	assert.Equal(t, 1, s.InterviewsUpcoming)
	assert.Equal(t, 3, s.Rejections)
	assert.Equal(t, 9, s.ActiveApplications)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInterviewRepository_ListScheduledBetween(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewInterviewRepository(db)

	to := fixedNow.Add(25 * time.Hour)
	cols := []string{"id", "application_id", "user_id", "type", "scheduled_at", "duration_minutes",
		"location", "status", "notes", "created_at", "company", "position"}
	mock.ExpectQuery(regexp.QuoteMeta("JOIN applications a ON a.id = i.application_id")).
		WithArgs(fixedNow, to).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(7, 1, 2, "VIDEO", fixedNow.Add(time.Hour), 45, "Zoom", "SCHEDULED", "", fixedNow, "Acme", "Go engineer"))

	list, err := repo.ListScheduledBetween(context.Background(), fixedNow, to)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Acme", list[0].Company)
	assert.Equal(t, 45, list[0].DurationMinutes)
	assert.Equal(t, models.InterviewScheduled, list[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInterviewRepository_ListScheduledForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewInterviewRepository(db)

	to := fixedNow.Add(7 * 24 * time.Hour)
	cols := []string{"id", "application_id", "user_id", "type", "scheduled_at", "duration_minutes",
		"location", "status", "notes", "created_at", "company", "position"}
	mock.ExpectQuery(regexp.QuoteMeta("AND i.user_id = $3 ORDER BY i.scheduled_at")).
		WithArgs(fixedNow, to, int64(2)).
		WillReturnRows(sqlmock.NewRows(cols))

	list, err := repo.ListScheduledForUser(context.Background(), 2, fixedNow, to)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}
