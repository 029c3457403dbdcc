package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrResendThrottled    = errors.New("resend throttled")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrCodeInvalid        = errors.New("invalid or expired code")
	ErrDeliveryFailed     = errors.New("code delivery failed")
	ErrMissingTarget      = errors.New("destination required")
	ErrInvalidKind        = errors.New("invalid verification kind")
	ErrInvalidMethod      = errors.New("invalid delivery method")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrCaptchaFailed      = errors.New("captcha verification failed")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("status change not allowed")
)

// ThrottleError carries the moment a new code may be requested. errors.Is(err, ErrResendThrottled) holds.
type ThrottleError struct {
	NextAllowedAt time.Time
	Wait          time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("resend throttled: retry in %ds", e.RetryAfterSeconds())
}

// RetryAfterSeconds is Wait rounded up to whole seconds.
func (e *ThrottleError) RetryAfterSeconds() int {
	return waitSeconds(e.Wait)
}

func (e *ThrottleError) Is(target error) bool {
	return target == ErrResendThrottled
}

func waitSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
