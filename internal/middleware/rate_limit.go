package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"socialsync/pkg/limiter"
	"socialsync/pkg/log"
	"socialsync/pkg/utils"
)

// MiddlewareRateLimitConfig rate limiting middleware configuration
type MiddlewareRateLimitConfig struct {
	// Limiter token bucket or sliding window
	Limiter limiter.RateLimiter
	// KeyFunc function to generate rate limit key
	KeyFunc func(c *gin.Context) string
	// ErrorHandler error handling function
	ErrorHandler func(c *gin.Context)
	// SkipFunc function to skip rate limiting
	SkipFunc func(c *gin.Context) bool
}

func defaultRateLimitError(c *gin.Context) {
	c.Header("Retry-After", "1")
	utils.Error(c, utils.CodeRateLimit, "Too many requests")
}

// RateLimitWithConfig rate limiting middleware with configuration. A limiter
// error lets the request through.
func RateLimitWithConfig(config MiddlewareRateLimitConfig) gin.HandlerFunc {
	if config.ErrorHandler == nil {
		config.ErrorHandler = defaultRateLimitError
	}

	return func(c *gin.Context) {
		if config.SkipFunc != nil && config.SkipFunc(c) {
			c.Next()
			return
		}

		key := config.KeyFunc(c)
		allowed, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.WithContext(c.Request.Context()).WithError(err).WithField("key", key).
				Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if !allowed {
			log.WithFields(log.Fields{
				"key":    key,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"ip":     c.ClientIP(),
			}).Warn("Rate limit exceeded")

			config.ErrorHandler(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// IPRateLimit IP-based rate limiting middleware
func IPRateLimit(l limiter.RateLimiter) gin.HandlerFunc {
	return RateLimitWithConfig(MiddlewareRateLimitConfig{
		Limiter: l,
		KeyFunc: func(c *gin.Context) string {
			return "ip:" + c.ClientIP()
		},
	})
}

// ShareQuota caps shares per user over the limiter's window. Mount after Auth.
func ShareQuota(l limiter.RateLimiter, limit int) gin.HandlerFunc {
	return RateLimitWithConfig(MiddlewareRateLimitConfig{
		Limiter: l,
		KeyFunc: func(c *gin.Context) string {
			if userID := c.GetString(UserIDKey); userID != "" {
				return "share:" + userID
			}
			return "share:ip:" + c.ClientIP()
		},
		ErrorHandler: func(c *gin.Context) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
			c.Header("X-RateLimit-Remaining", "0")
			utils.Error(c, utils.CodeRateLimit, "Share quota exceeded, please try again later")
		},
	})
}
