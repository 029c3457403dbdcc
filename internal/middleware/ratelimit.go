package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Joello61/candi-tracker-api/internal/logger"
)

// RateLimiter is a fixed-window request counter kept in Redis, keyed by scope and client IP.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	log    logger.Logger
}

func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration, log logger.Logger) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, log: log}
}

func (rl *RateLimiter) increment(ctx context.Context, key string) (int64, error) {
	n, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Limit counts requests per client in the given scope. Redis errors let the request through.
func (rl *RateLimiter) Limit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.client == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		key := fmt.Sprintf("ratelimit:%s:%s", scope, ip)

		count, err := rl.increment(c.Request.Context(), key)
		if err != nil {
			rl.log.WithError(err).Warn("rate limit store unavailable, allowing request", map[string]interface{}{
				"ip": ip, "scope": scope,
			})
			c.Next()
			return
		}

		reset := time.Now().Add(rl.window).Unix()
		if ttl, err := rl.client.TTL(c.Request.Context(), key).Result(); err == nil && ttl > 0 {
			reset = time.Now().Add(ttl).Unix()
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if count > int64(rl.limit) {
			rl.log.Warn("rate limit exceeded", map[string]interface{}{
				"ip": ip, "scope": scope, "count": count, "limit": rl.limit,
			})
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded. Please try again later.",
				"retry_after": int(rl.window.Seconds()),
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(rl.limit)-count, 10))
		c.Next()
	}
}
