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

var userCols = []string{"id", "email", "password_hash", "first_name", "last_name", "phone",
	"email_verified", "email_verified_at", "phone_verified", "two_factor_enabled",
	"refresh_token", "refresh_expires_at", "refresh_revoked", "created_at", "updated_at"}

func TestUserRepository_CreateAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := &models.User{Email: "jane@example.com", PasswordHash: "h", FirstName: "Jane"}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("jane@example.com", "h", "Jane", "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, fixedNow, fixedNow))
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, int64(1), u.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1)")).
		WithArgs("JANE@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			1, "jane@example.com", "h", "Jane", "", "+15550000",
			true, fixedNow, false, true,
			nil, nil, false, fixedNow, fixedNow,
		))
	got, err := repo.GetByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "+15550000", got.Phone)
	assert.True(t, got.TwoFactorEnabled)
	require.NotNil(t, got.EmailVerifiedAt)
	assert.Nil(t, got.RefreshToken)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(userCols))
	missing, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RotateRefresh(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	exp := fixedNow.Add(30 * 24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE refresh_token = $3 AND refresh_revoked = FALSE")).
		WithArgs("new", exp, "old").
		WillReturnRows(sqlmock.NewRows(userCols))
	u, err := repo.RotateRefresh(context.Background(), "old", "new", exp)
	require.NoError(t, err)
	assert.Nil(t, u)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE refresh_token = $3 AND refresh_revoked = FALSE")).
		WithArgs("new", exp, "old").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			3, "a@b.c", "h", "A", "B", nil, false, nil, false, false,
			"new", exp, false, fixedNow, fixedNow,
		))
	u, err = repo.RotateRefresh(context.Background(), "old", "new", exp)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.NotNil(t, u.RefreshToken)
	assert.Equal(t, "new", *u.RefreshToken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE email_verified = TRUE AND id > $1")).
		WithArgs(int64(10), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11).AddRow(14))
	ids, err := repo.ListIDs(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 14}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
