package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Joello61/candi-tracker-api/internal/models"
)

type VerificationCodeRepository interface {
	// ReplaceActive marks every unused code of (user, kind) as used and inserts code, in one transaction.
	ReplaceActive(ctx context.Context, code *models.VerificationCode, now time.Time) error
	FindActive(ctx context.Context, userID int64, kind models.VerificationKind, now time.Time) (*models.VerificationCode, error)
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	MarkUsed(ctx context.Context, id int64, at time.Time) error
	// DeleteExpired removes codes expired before now and used codes created before usedBefore.
	DeleteExpired(ctx context.Context, now, usedBefore time.Time) (int64, error)
}

type VerificationAttemptRepository interface {
	Latest(ctx context.Context, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string) (*models.VerificationAttempt, error)
	CountSince(ctx context.Context, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string, since time.Time) (int, error)
	Create(ctx context.Context, a *models.VerificationAttempt) error
	Delete(ctx context.Context, id int64) error
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type verificationCodeRepository struct {
	db *sql.DB
}

func NewVerificationCodeRepository(db *sql.DB) VerificationCodeRepository {
	return &verificationCodeRepository{db: db}
}

func (r *verificationCodeRepository) ReplaceActive(ctx context.Context, code *models.VerificationCode, now time.Time) error {
	meta, err := jsonArg(code.Metadata)
	if err != nil {
		return fmt.Errorf("verification_code metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("verification_code begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const invalidate = `
		UPDATE verification_codes
		SET used = TRUE, used_at = $3
		WHERE user_id = $1 AND kind = $2 AND used = FALSE
	`
	if _, err := tx.ExecContext(ctx, invalidate, code.UserID, code.Kind, now); err != nil {
		return fmt.Errorf("verification_code invalidate: %w", err)
	}

	const insert = `
		INSERT INTO verification_codes
			(user_id, code_hash, kind, method, target, expires_at, attempts, max_attempts, used, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, FALSE, $8, $9)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, insert,
		code.UserID, code.CodeHash, code.Kind, code.Method, code.Target,
		code.ExpiresAt, code.MaxAttempts, meta, now,
	).Scan(&code.ID); err != nil {
		return fmt.Errorf("verification_code create: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("verification_code commit: %w", err)
	}
	code.CreatedAt = now
	code.Attempts = 0
	code.Used = false
	return nil
}

func (r *verificationCodeRepository) FindActive(ctx context.Context, userID int64, kind models.VerificationKind, now time.Time) (*models.VerificationCode, error) {
	const q = `
		SELECT id, user_id, code_hash, kind, method, target, expires_at,
		       attempts, max_attempts, used, used_at, metadata, created_at
		FROM verification_codes
		WHERE user_id = $1 AND kind = $2 AND used = FALSE AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		c      models.VerificationCode
		usedAt sql.NullTime
		meta   []byte
	)
	err := r.db.QueryRowContext(ctx, q, userID, kind, now).Scan(
		&c.ID, &c.UserID, &c.CodeHash, &c.Kind, &c.Method, &c.Target, &c.ExpiresAt,
		&c.Attempts, &c.MaxAttempts, &c.Used, &usedAt, &meta, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("verification_code find active: %w", err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		c.UsedAt = &t
	}
	if c.Metadata, err = unmarshalJSON(meta); err != nil {
		return nil, fmt.Errorf("verification_code metadata: %w", err)
	}
	return &c, nil
}

// IncrementAttempts never raises attempts above max_attempts and returns the resulting value.
func (r *verificationCodeRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	const q = `
		UPDATE verification_codes
		SET attempts = LEAST(attempts + 1, max_attempts)
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("verification_code increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *verificationCodeRepository) MarkUsed(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE verification_codes SET used = TRUE, used_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("verification_code mark used: %w", err)
	}
	return nil
}

func (r *verificationCodeRepository) DeleteExpired(ctx context.Context, now, usedBefore time.Time) (int64, error) {
	const q = `
		DELETE FROM verification_codes
		WHERE expires_at < $1 OR (used = TRUE AND created_at < $2)
	`
	res, err := r.db.ExecContext(ctx, q, now, usedBefore)
	if err != nil {
		return 0, fmt.Errorf("verification_code cleanup: %w", err)
	}
	return res.RowsAffected()
}

type verificationAttemptRepository struct {
	db *sql.DB
}

func NewVerificationAttemptRepository(db *sql.DB) VerificationAttemptRepository {
	return &verificationAttemptRepository{db: db}
}

func (r *verificationAttemptRepository) Latest(ctx context.Context, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string) (*models.VerificationAttempt, error) {
	const q = `
		SELECT id, user_id, kind, method, target, sent_at, next_allowed_at
		FROM verification_attempts
		WHERE user_id = $1 AND kind = $2 AND method = $3 AND target = $4
		ORDER BY sent_at DESC
		LIMIT 1
	`
	var a models.VerificationAttempt
	err := r.db.QueryRowContext(ctx, q, userID, kind, method, target).Scan(
		&a.ID, &a.UserID, &a.Kind, &a.Method, &a.Target, &a.SentAt, &a.NextAllowedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("verification_attempt latest: %w", err)
	}
	return &a, nil
}

func (r *verificationAttemptRepository) CountSince(ctx context.Context, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM verification_attempts
		WHERE user_id = $1 AND kind = $2 AND method = $3 AND target = $4 AND sent_at >= $5
	`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID, kind, method, target, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("verification_attempt count: %w", err)
	}
	return n, nil
}

func (r *verificationAttemptRepository) Create(ctx context.Context, a *models.VerificationAttempt) error {
	const q = `
		INSERT INTO verification_attempts (user_id, kind, method, target, sent_at, next_allowed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, q, a.UserID, a.Kind, a.Method, a.Target, a.SentAt, a.NextAllowedAt).Scan(&a.ID); err != nil {
		return fmt.Errorf("verification_attempt create: %w", err)
	}
	return nil
}

func (r *verificationAttemptRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM verification_attempts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("verification_attempt delete: %w", err)
	}
	return nil
}

func (r *verificationAttemptRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM verification_attempts WHERE sent_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("verification_attempt cleanup: %w", err)
	}
	return res.RowsAffected()
}

// jsonArg encodes v for a JSONB parameter; empty maps become NULL.
func jsonArg(v map[string]interface{}) (interface{}, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalJSON(b []byte) (map[string]interface{}, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
