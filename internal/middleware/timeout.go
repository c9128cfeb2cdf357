package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"socialsync/pkg/utils"
)

// TimeoutConfig timeout configuration
type TimeoutConfig struct {
	// Timeout timeout duration
	Timeout time.Duration
	// ErrorHandler writes the response when the handler ran out of time without writing one
	ErrorHandler gin.HandlerFunc
	// SkipFunc function to skip timeout check
	SkipFunc func(*gin.Context) bool
}

// DefaultTimeoutConfig default timeout configuration
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Timeout: 30 * time.Second,
		ErrorHandler: func(c *gin.Context) {
			utils.Error(c, utils.CodeRequestExpire, "Request timeout")
		},
	}
}

// Timeout bounds the request context. Handlers observe the deadline through
// c.Request.Context() and return; nothing runs on another goroutine.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	config := DefaultTimeoutConfig()
	config.Timeout = timeout
	return TimeoutWithConfig(config)
}

// TimeoutWithConfig timeout middleware with configuration
func TimeoutWithConfig(config TimeoutConfig) gin.HandlerFunc {
	if config.ErrorHandler == nil {
		config.ErrorHandler = DefaultTimeoutConfig().ErrorHandler
	}

	return func(c *gin.Context) {
		if config.Timeout <= 0 || (config.SkipFunc != nil && config.SkipFunc(c)) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			config.ErrorHandler(c)
			c.Abort()
		}
	}
}
