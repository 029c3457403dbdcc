package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Joello61/candi-tracker-api/internal/middleware"
	"github.com/Joello61/candi-tracker-api/internal/services"
)

// currentUser writes 401 and returns false when the request carries no authenticated user.
func currentUser(c *gin.Context) (int64, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return n
}

// respondError maps service errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var throttle *services.ThrottleError
	switch {
	case errors.As(err, &throttle):
		c.Header("Retry-After", strconv.Itoa(throttle.RetryAfterSeconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":           "too many requests, try later",
			"next_allowed_at": throttle.NextAllowedAt,
			"retry_after":     throttle.RetryAfterSeconds(),
		})
	case errors.Is(err, services.ErrTooManyAttempts):
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many attempts, request a new code"})
	case errors.Is(err, services.ErrCodeInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired code"})
	case errors.Is(err, services.ErrInvalidKind),
		errors.Is(err, services.ErrInvalidMethod),
		errors.Is(err, services.ErrMissingTarget),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrCaptchaFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "captcha verification failed"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
	case errors.Is(err, services.ErrEmailNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDeliveryFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not deliver the code, try again later"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
