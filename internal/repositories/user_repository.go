package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
	// ListIDs pages over users with a verified email, ordered by id.
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)

	UpdatePassword(ctx context.Context, userID int64, hash string) error
	MarkEmailVerified(ctx context.Context, userID int64, at time.Time) error
	MarkPhoneVerified(ctx context.Context, userID int64, phone string) error
	SetTwoFactor(ctx context.Context, userID int64, enabled bool) error

	// refresh helpers
	UpdateRefresh(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	RotateRefresh(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (*models.User, error)
	ClearRefresh(ctx context.Context, userID int64) error
	GetByRefreshToken(ctx context.Context, token string) (*models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `
	id, email, password_hash, first_name, last_name, phone,
	email_verified, email_verified_at, phone_verified, two_factor_enabled,
	refresh_token, refresh_expires_at, refresh_revoked, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var (
		phone      sql.NullString
		verifiedAt sql.NullTime
		rt         sql.NullString
		rte        sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &phone,
		&u.EmailVerified, &verifiedAt, &u.PhoneVerified, &u.TwoFactorEnabled,
		&rt, &rte, &u.RefreshRevoked, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if phone.Valid {
		u.Phone = phone.String
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.EmailVerifiedAt = &t
	}
	if rt.Valid {
		s := rt.String
		u.RefreshToken = &s
	}
	if rte.Valid {
		t := rte.Time
		u.RefreshExpiresAt = &t
	}
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (email, password_hash, first_name, last_name, phone, email_verified, two_factor_enabled)
		VALUES ($1, $2, $3, $4, $5, FALSE, FALSE)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowContext(ctx, q,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, nullString(user.Phone),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("user create: %w", err)
	}
	return nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("user get: %w", err)
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *userRepository) GetByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "refresh_token = $1", token)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	const q = `
		UPDATE users
		SET first_name = $1, last_name = $2, phone = $3, updated_at = NOW()
		WHERE id = $4
	`
	if _, err := r.db.ExecContext(ctx, q, user.FirstName, user.LastName, nullString(user.Phone), user.ID); err != nil {
		return fmt.Errorf("user update: %w", err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("user delete: %w", err)
	}
	return nil
}

func (r *userRepository) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM users WHERE email_verified = TRUE AND id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("user list ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("user list ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	const q = `
		UPDATE users
		SET password_hash = $1, refresh_token = NULL, refresh_expires_at = NULL, updated_at = NOW()
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, q, hash, userID); err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	return nil
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, userID int64, at time.Time) error {
	const q = `UPDATE users SET email_verified = TRUE, email_verified_at = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, q, at, userID); err != nil {
		return fmt.Errorf("user mark email verified: %w", err)
	}
	return nil
}

func (r *userRepository) MarkPhoneVerified(ctx context.Context, userID int64, phone string) error {
	const q = `UPDATE users SET phone = $1, phone_verified = TRUE, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, q, phone, userID); err != nil {
		return fmt.Errorf("user mark phone verified: %w", err)
	}
	return nil
}

func (r *userRepository) SetTwoFactor(ctx context.Context, userID int64, enabled bool) error {
	const q = `UPDATE users SET two_factor_enabled = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, q, enabled, userID); err != nil {
		return fmt.Errorf("user set two factor: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateRefresh(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	const q = `
		UPDATE users
		SET refresh_token = $1, refresh_expires_at = $2, refresh_revoked = FALSE
		WHERE id = $3
	`
	if _, err := r.db.ExecContext(ctx, q, token, expiresAt, userID); err != nil {
		return fmt.Errorf("user update refresh: %w", err)
	}
	return nil
}

// RotateRefresh swaps oldToken for newToken only if oldToken is still current and not revoked.
func (r *userRepository) RotateRefresh(ctx context.Context, oldToken, newToken string, newExpiresAt time.Time) (*models.User, error) {
	q := `
		UPDATE users
		SET refresh_token = $1, refresh_expires_at = $2
		WHERE refresh_token = $3 AND refresh_revoked = FALSE
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRowContext(ctx, q, newToken, newExpiresAt, oldToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("user rotate refresh: %w", err)
	}
	return u, nil
}

func (r *userRepository) ClearRefresh(ctx context.Context, userID int64) error {
	const q = `UPDATE users SET refresh_token = NULL, refresh_expires_at = NULL, refresh_revoked = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("user clear refresh: %w", err)
	}
	return nil
}
