package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/metrics"
	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/repositories"
)

const (
	MaxVerificationAttempts = 5
	attemptWindow           = 24 * time.Hour
	usedCodeRetention       = 7 * 24 * time.Hour
)

// resendDelays is indexed by the number of sends in the last 24h, clamped to the last entry.
var resendDelays = []time.Duration{
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
}

var codeTTLs = map[models.VerificationKind]time.Duration{
	models.KindEmailVerification: 1440 * time.Minute,
	models.KindPasswordReset:     15 * time.Minute,
	models.KindTwoFactor:         5 * time.Minute,
	models.KindPhoneVerification: 10 * time.Minute,
	models.KindAccountDeletion:   30 * time.Minute,
	models.KindSensitiveAction:   10 * time.Minute,
}

func CodeTTL(kind models.VerificationKind) time.Duration {
	if ttl, ok := codeTTLs[kind]; ok {
		return ttl
	}
	return 10 * time.Minute
}

func resendDelay(recentSends int) time.Duration {
	if recentSends < 0 {
		recentSends = 0
	}
	if recentSends >= len(resendDelays) {
		return resendDelays[len(resendDelays)-1]
	}
	return resendDelays[recentSends]
}

type RequestWindow struct {
	Allowed       bool       `json:"allowed"`
	NextAllowedAt *time.Time `json:"next_allowed_at,omitempty"`
}

type IssueRequest struct {
	UserID   int64
	Kind     models.VerificationKind
	Method   models.DeliveryMethod
	Target   string
	Name     string
	Metadata map[string]interface{}
}

type IssueResult struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message"`
	NextAllowedAt *time.Time `json:"next_allowed_at,omitempty"`
}

type VerificationService interface {
	CanRequestCode(ctx context.Context, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string) (*RequestWindow, error)
	// IssueAndSend returns a *ThrottleError when called too early and wraps ErrDeliveryFailed
	// when the channel rejects the message. In both cases the result is still populated.
	IssueAndSend(ctx context.Context, req IssueRequest) (*IssueResult, error)
	// Verify returns nil on success, ErrCodeInvalid or ErrTooManyAttempts otherwise.
	Verify(ctx context.Context, userID int64, kind models.VerificationKind, code string) error
	// Consume is Verify that also returns the code it accepted, so callers can read its target and metadata.
	Consume(ctx context.Context, userID int64, kind models.VerificationKind, code string) (*models.VerificationCode, error)
	CleanupExpiredCodes(ctx context.Context) (int64, error)
}

type VerificationOptions struct {
	BcryptCost       int
	SendTimeout      time.Duration
	RefundFailedSend bool
	Now              func() time.Time
	GenerateCode     func() (string, error)
}

type verificationService struct {
	codes    repositories.VerificationCodeRepository
	attempts repositories.VerificationAttemptRepository
	email    EmailSender
	sms      SMSSender
	log      logger.Logger
	opts     VerificationOptions
}

func NewVerificationService(
	codes repositories.VerificationCodeRepository,
	attempts repositories.VerificationAttemptRepository,
	email EmailSender,
	sms SMSSender,
	log logger.Logger,
	opts VerificationOptions,
) VerificationService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GenerateCode == nil {
		opts.GenerateCode = generateCode
	}
	return &verificationService{
		codes:    codes,
		attempts: attempts,
		email:    email,
		sms:      sms,
		log:      log,
		opts:     opts,
	}
}

// generateCode draws a uniform 6-digit code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func validateIssue(kind models.VerificationKind, method models.DeliveryMethod, target string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	if !method.Valid() {
		return ErrInvalidMethod
	}
	if strings.TrimSpace(target) == "" {
		return ErrMissingTarget
	}
	return nil
}

func (s *verificationService) CanRequestCode(ctx context.Context, userID int64, kind models.VerificationKind, method models.DeliveryMethod, target string) (*RequestWindow, error) {
	last, err := s.attempts.Latest(ctx, userID, kind, method, target)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &RequestWindow{Allowed: true}, nil
	}
	if !s.opts.Now().Before(last.NextAllowedAt) {
		return &RequestWindow{Allowed: true}, nil
	}
	next := last.NextAllowedAt
	return &RequestWindow{Allowed: false, NextAllowedAt: &next}, nil
}

func (s *verificationService) IssueAndSend(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	req.Target = strings.TrimSpace(req.Target)
	if err := validateIssue(req.Kind, req.Method, req.Target); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"user_id": req.UserID,
		"kind":    req.Kind,
		"method":  req.Method,
	}

	window, err := s.CanRequestCode(ctx, req.UserID, req.Kind, req.Method, req.Target)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	if !window.Allowed {
		wait := window.NextAllowedAt.Sub(now)
		s.log.Info("verification code throttled", fields)
		return &IssueResult{
			Success:       false,
			Message:       fmt.Sprintf("Please wait %d seconds before requesting a new code", waitSeconds(wait)),
			NextAllowedAt: window.NextAllowedAt,
		}, &ThrottleError{NextAllowedAt: *window.NextAllowedAt, Wait: wait}
	}

	recent, err := s.attempts.CountSince(ctx, req.UserID, req.Kind, req.Method, req.Target, now.Add(-attemptWindow))
	if err != nil {
		return nil, err
	}
	nextAllowed := now.Add(resendDelay(recent))

	code, err := s.opts.GenerateCode()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt generate: %w", err)
	}

	ttl := CodeTTL(req.Kind)
	rec := &models.VerificationCode{
		UserID:      req.UserID,
		CodeHash:    string(hash),
		Kind:        req.Kind,
		Method:      req.Method,
		Target:      req.Target,
		ExpiresAt:   now.Add(ttl),
		MaxAttempts: MaxVerificationAttempts,
		Metadata:    req.Metadata,
	}
	if err := s.codes.ReplaceActive(ctx, rec, now); err != nil {
		return nil, err
	}

	attempt := &models.VerificationAttempt{
		UserID:        req.UserID,
		Kind:          req.Kind,
		Method:        req.Method,
		Target:        req.Target,
		SentAt:        now,
		NextAllowedAt: nextAllowed,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	metrics.VerificationCodesIssued.WithLabelValues(string(req.Kind), string(req.Method)).Inc()

	if err := s.deliver(ctx, req, code, ttl); err != nil {
		s.log.WithError(err).Error("verification code delivery failed", fields)

		result := &IssueResult{Success: false, Message: "Failed to send verification code", NextAllowedAt: &nextAllowed}
		if s.opts.RefundFailedSend {
			if delErr := s.attempts.Delete(ctx, attempt.ID); delErr != nil {
				s.log.WithError(delErr).Warn("refund of failed send slot failed", fields)
			} else {
				result.NextAllowedAt = nil
			}
		}
		return result, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.log.Info("verification code sent", fields)
	return &IssueResult{Success: true, Message: "Verification code sent", NextAllowedAt: &nextAllowed}, nil
}

func (s *verificationService) deliver(ctx context.Context, req IssueRequest, code string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()

	switch req.Method {
	case models.MethodEmail:
		msg, err := renderCodeEmail(req.Kind, code, req.Name, ttl)
		if err != nil {
			return err
		}
		msg.To = req.Target
		return s.email.Send(ctx, msg)
	case models.MethodSMS:
		return s.sms.Send(ctx, req.Target, renderCodeSMS(req.Kind, code, ttl))
	}
	return ErrInvalidMethod
}

func (s *verificationService) Verify(ctx context.Context, userID int64, kind models.VerificationKind, code string) error {
	_, err := s.Consume(ctx, userID, kind, code)
	return err
}

func (s *verificationService) Consume(ctx context.Context, userID int64, kind models.VerificationKind, code string) (*models.VerificationCode, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	now := s.opts.Now()
	result := "invalid"
	defer func() { metrics.VerificationChecks.WithLabelValues(string(kind), result).Inc() }()

	c, err := s.codes.FindActive(ctx, userID, kind, now)
	if err != nil {
		result = "error"
		return nil, err
	}
	if c == nil {
		return nil, ErrCodeInvalid
	}
	if c.Attempts >= c.MaxAttempts {
		result = "exhausted"
		if err := s.codes.MarkUsed(ctx, c.ID, now); err != nil {
			return nil, err
		}
		return nil, ErrTooManyAttempts
	}

	attempts, err := s.codes.IncrementAttempts(ctx, c.ID)
	if err != nil {
		result = "error"
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(strings.TrimSpace(code))) != nil {
		if attempts >= c.MaxAttempts {
			result = "exhausted"
			if err := s.codes.MarkUsed(ctx, c.ID, now); err != nil {
				return nil, err
			}
			s.log.Warn("verification code exhausted", map[string]interface{}{"user_id": userID, "kind": kind})
			return nil, ErrTooManyAttempts
		}
		return nil, ErrCodeInvalid
	}

	if err := s.codes.MarkUsed(ctx, c.ID, now); err != nil {
		result = "error"
		return nil, err
	}
	result = "success"
	s.log.Info("verification code accepted", map[string]interface{}{"user_id": userID, "kind": kind})
	return c, nil
}

func (s *verificationService) CleanupExpiredCodes(ctx context.Context) (int64, error) {
	now := s.opts.Now()
	deleted, err := s.codes.DeleteExpired(ctx, now, now.Add(-usedCodeRetention))
	if err != nil {
		return 0, err
	}
	pruned, err := s.attempts.DeleteBefore(ctx, now.Add(-attemptWindow))
	if err != nil {
		return deleted, err
	}
	s.log.Info("verification cleanup done", map[string]interface{}{"codes_deleted": deleted, "attempts_pruned": pruned})
	return deleted, nil
}

// IsVerificationFailure reports whether err is a user-facing code failure rather than an infrastructure error.
func IsVerificationFailure(err error) bool {
	return errors.Is(err, ErrCodeInvalid) || errors.Is(err, ErrTooManyAttempts)
}
