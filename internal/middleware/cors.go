package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSOptions allowed origins for browser clients
type CORSOptions struct {
	// AllowOrigins empty or containing "*" allows every origin
	AllowOrigins     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORS Cross-Origin Resource Sharing middleware
func CORS(opts CORSOptions) gin.HandlerFunc {
	config := cors.DefaultConfig()

	if allowAll(opts.AllowOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = opts.AllowOrigins
		config.AllowCredentials = opts.AllowCredentials
	}

	config.AllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
		"X-Requested-With",
		"Accept",
		"Traceparent",
	}
	config.AllowMethods = []string{
		"GET",
		"POST",
		"PUT",
		"DELETE",
		"HEAD",
		"OPTIONS",
	}
	if opts.MaxAge > 0 {
		config.MaxAge = opts.MaxAge
	}

	return cors.New(config)
}

func allowAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
