package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Joello61/candi-tracker-api/internal/logger"
	"github.com/Joello61/candi-tracker-api/internal/models"
	"github.com/Joello61/candi-tracker-api/internal/repositories"
	"github.com/Joello61/candi-tracker-api/internal/utils"
)

type AuthOptions struct {
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	Now        func() time.Time
}

type LoginResult struct {
	User              *models.User      `json:"user,omitempty"`
	Tokens            *models.TokenPair `json:"tokens,omitempty"`
	RequiresTwoFactor bool              `json:"requires_two_factor"`
	UserID            int64             `json:"user_id,omitempty"`
}

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest, remoteIP string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	CompleteTwoFactor(ctx context.Context, userID int64, code string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID int64) error

	Me(ctx context.Context, userID int64) (*models.User, error)
	VerifyEmail(ctx context.Context, userID int64, code string) error
	ResendEmailVerification(ctx context.Context, userID int64) (*IssueResult, error)
	ForgotPassword(ctx context.Context, email string) (*IssueResult, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	SetTwoFactor(ctx context.Context, userID int64, enabled bool) error
	RequestPhoneVerification(ctx context.Context, userID int64, phone string) (*IssueResult, error)
	ConfirmPhone(ctx context.Context, userID int64, code string) error
	RequestAccountDeletion(ctx context.Context, userID int64) (*IssueResult, error)
	ConfirmAccountDeletion(ctx context.Context, userID int64, code string) error
}

type authService struct {
	users    repositories.UserRepository
	settings NotificationSettingsService
	codes    VerificationService
	captcha  CaptchaVerifier
	log      logger.Logger
	opts     AuthOptions
}

func NewAuthService(
	users repositories.UserRepository,
	settings NotificationSettingsService,
	codes VerificationService,
	captcha CaptchaVerifier,
	log logger.Logger,
	opts AuthOptions,
) AuthService {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &authService{
		users:    users,
		settings: settings,
		codes:    codes,
		captcha:  captcha,
		log:      log,
		opts:     opts,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest, remoteIP string) (*models.User, error) {
	ok, err := s.captcha.Verify(ctx, req.CaptchaToken, remoteIP)
	if err != nil {
		s.log.WithError(err).Error("captcha verification error", nil)
		return nil, ErrCaptchaFailed
	}
	if !ok {
		return nil, ErrCaptchaFailed
	}

	email := normalizeEmail(req.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{"user_id": user.ID}

	if err := s.settings.EnsureDefaults(ctx, user.ID); err != nil {
		s.log.WithError(err).Warn("default notification settings not stored", fields)
	}
	if _, err := s.issueEmailCode(ctx, user, models.KindEmailVerification); err != nil {
		// the account exists; the user can ask for another code
		s.log.WithError(err).Warn("email verification code not sent on register", fields)
	}
	s.log.Info("user registered", fields)
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.log.Info("login rejected", map[string]interface{}{"user_id": user.ID})
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		_, err := s.issueEmailCode(ctx, user, models.KindTwoFactor)
		// a throttled resend still leaves the previous code valid
		if err != nil && !errors.Is(err, ErrResendThrottled) {
			return nil, err
		}
		return &LoginResult{RequiresTwoFactor: true, UserID: user.ID}, nil
	}
	return s.openSession(ctx, user)
}

func (s *authService) CompleteTwoFactor(ctx context.Context, userID int64, code string) (*LoginResult, error) {
	if err := s.codes.Verify(ctx, userID, models.KindTwoFactor, code); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return s.openSession(ctx, user)
}

func (s *authService) openSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	now := s.opts.Now()
	access, err := utils.SignAccessToken(s.opts.JWTSecret, user.ID, now, s.opts.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateRefresh(ctx, user.ID, refresh, now.Add(s.opts.RefreshTTL)); err != nil {
		return nil, err
	}
	s.log.Info("login succeeded", map[string]interface{}{"user_id": user.ID})
	return &LoginResult{
		User:   user,
		UserID: user.ID,
		Tokens: &models.TokenPair{AccessToken: access, RefreshToken: refresh},
	}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	old := strings.TrimSpace(refreshToken)
	if old == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByRefreshToken(ctx, old)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now()
	if user == nil || user.RefreshRevoked || user.RefreshExpiresAt == nil || now.After(*user.RefreshExpiresAt) {
		return nil, ErrInvalidToken
	}

	next, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	rotated, err := s.users.RotateRefresh(ctx, old, next, now.Add(s.opts.RefreshTTL))
	if err != nil {
		return nil, err
	}
	if rotated == nil {
		return nil, ErrInvalidToken
	}
	access, err := utils.SignAccessToken(s.opts.JWTSecret, rotated.ID, now, s.opts.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: next}, nil
}

func (s *authService) Logout(ctx context.Context, userID int64) error {
	return s.users.ClearRefresh(ctx, userID)
}

func (s *authService) Me(ctx context.Context, userID int64) (*models.User, error) {
	return s.mustUser(ctx, userID)
}

func (s *authService) mustUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *authService) issueEmailCode(ctx context.Context, user *models.User, kind models.VerificationKind) (*IssueResult, error) {
	return s.codes.IssueAndSend(ctx, IssueRequest{
		UserID: user.ID,
		Kind:   kind,
		Method: models.MethodEmail,
		Target: user.Email,
		Name:   user.DisplayName(),
	})
}

func (s *authService) VerifyEmail(ctx context.Context, userID int64, code string) error {
	if err := s.codes.Verify(ctx, userID, models.KindEmailVerification, code); err != nil {
		return err
	}
	return s.users.MarkEmailVerified(ctx, userID, s.opts.Now())
}

func (s *authService) ResendEmailVerification(ctx context.Context, userID int64) (*IssueResult, error) {
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.EmailVerified {
		return &IssueResult{Success: true, Message: "Email already verified"}, nil
	}
	return s.issueEmailCode(ctx, user, models.KindEmailVerification)
}

// ForgotPassword answers the same way whether or not the address is registered.
func (s *authService) ForgotPassword(ctx context.Context, email string) (*IssueResult, error) {
	generic := &IssueResult{Success: true, Message: "If the address is registered, a reset code has been sent"}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return generic, nil
	}
	// a throttled resend answers like any other request
	_, err = s.issueEmailCode(ctx, user, models.KindPasswordReset)
	switch {
	case errors.Is(err, ErrResendThrottled):
		s.log.Info("password reset code throttled", map[string]interface{}{"user_id": user.ID})
	case err != nil:
		s.log.WithError(err).Warn("password reset code not sent", map[string]interface{}{"user_id": user.ID})
	}
	return generic, nil
}

func (s *authService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrCodeInvalid
	}
	if err := s.codes.Verify(ctx, user.ID, models.KindPasswordReset, code); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.opts.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	s.log.Info("password reset", map[string]interface{}{"user_id": user.ID})
	return nil
}

func (s *authService) SetTwoFactor(ctx context.Context, userID int64, enabled bool) error {
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return err
	}
	if enabled && !user.EmailVerified {
		return ErrEmailNotVerified
	}
	return s.users.SetTwoFactor(ctx, userID, enabled)
}

func (s *authService) RequestPhoneVerification(ctx context.Context, userID int64, phone string) (*IssueResult, error) {
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.codes.IssueAndSend(ctx, IssueRequest{
		UserID: user.ID,
		Kind:   models.KindPhoneVerification,
		Method: models.MethodSMS,
		Target: phone,
		Name:   user.DisplayName(),
	})
}

// ConfirmPhone marks as verified the number the accepted code was sent to.
// Only a code that went out by SMS proves ownership of that number.
func (s *authService) ConfirmPhone(ctx context.Context, userID int64, code string) error {
	rec, err := s.codes.Consume(ctx, userID, models.KindPhoneVerification, code)
	if err != nil {
		return err
	}
	if rec.Method != models.MethodSMS {
		s.log.Warn("phone code not delivered by sms", map[string]interface{}{"user_id": userID, "method": rec.Method})
		return ErrCodeInvalid
	}
	return s.users.MarkPhoneVerified(ctx, userID, rec.Target)
}

func (s *authService) RequestAccountDeletion(ctx context.Context, userID int64) (*IssueResult, error) {
	user, err := s.mustUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issueEmailCode(ctx, user, models.KindAccountDeletion)
}

func (s *authService) ConfirmAccountDeletion(ctx context.Context, userID int64, code string) error {
	if err := s.codes.Verify(ctx, userID, models.KindAccountDeletion, code); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Info("account deleted", map[string]interface{}{"user_id": userID})
	return nil
}
