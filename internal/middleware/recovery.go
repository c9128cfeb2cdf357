package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"socialsync/pkg/log"
	"socialsync/pkg/utils"
)

// Recovery panic recovery middleware
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithContext(c.Request.Context()).WithFields(log.Fields{
			"error":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"ip":     c.ClientIP(),
			"stack":  string(debug.Stack()),
		}).Error("Panic recovered")

		utils.Error(c, utils.CodeInternalError, "Internal server error")
		c.Abort()
	})
}
