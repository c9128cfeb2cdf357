package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
	"socialsync/pkg/log"
	"socialsync/pkg/utils"
)

// respondError maps a service error onto the response envelope.
// Order matters: the outermost domain error decides the status.
func respondError(c *gin.Context, err error) {
	var (
		validation *apperr.ValidationError
		noConn     *apperr.NoConnectionError
		concurrent *apperr.ConcurrentSyncError
		share      *apperr.ShareError
		publish    *apperr.PublishError
		auth       *apperr.AuthenticationError
		agg        *apperr.AggregationError
		appErr     *utils.AppError
	)

	switch {
	case errors.As(err, &validation):
		utils.Error(c, utils.CodeInvalidParam, validation.Error())
	case errors.Is(err, apperr.ErrPlatformDisabled):
		utils.Error(c, utils.CodePlatformDisabled, err.Error())
	case errors.Is(err, apperr.ErrPlatformNotConfigured):
		utils.Error(c, utils.CodeNotFound, err.Error())
	case errors.As(err, &noConn):
		utils.Error(c, utils.CodePrecondition, noConn.Error())
	case errors.As(err, &concurrent):
		utils.Error(c, utils.CodeConflict, concurrent.Error())
	case errors.As(err, &share):
		utils.Error(c, utils.CodePlatformShare, share.Error())
	case errors.As(err, &publish):
		utils.Error(c, utils.CodePlatformPublish, publish.Error())
	case errors.As(err, &auth):
		utils.Error(c, utils.CodePlatformAuth, auth.Error())
	case errors.As(err, &agg):
		log.WithError(err).WithField("path", c.FullPath()).Error("Aggregation failed")
		utils.Error(c, utils.CodeInternalError, agg.Message)
	case errors.Is(err, context.DeadlineExceeded):
		utils.Error(c, utils.CodeRequestExpire, "request timeout")
	case errors.As(err, &appErr):
		utils.Error(c, appErr.Code, appErr.Message)
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("Unhandled request error")
		utils.Error(c, utils.CodeInternalError, "internal server error")
	}
}

// bindJSON binds the body into obj, writing a 400 on failure
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		appErr := utils.BindError(err)
		utils.Error(c, appErr.Code, appErr.Message)
		return false
	}
	return true
}

// currentUser returns the caller set by the auth middleware
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		utils.Error(c, utils.CodeUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}

// platformParam parses the :platform path segment, writing a 400 on failure
func platformParam(c *gin.Context) (model.Platform, bool) {
	p, err := model.ParsePlatform(c.Param("platform"))
	if err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return "", false
	}
	return p, true
}

// normalizePlatforms lowercases names; unknown ones pass through so the
// coordinator reports them per platform
func normalizePlatforms(raw []string) []model.Platform {
	platforms := make([]model.Platform, 0, len(raw))
	for _, name := range raw {
		platforms = append(platforms, model.Platform(strings.ToLower(strings.TrimSpace(name))))
	}
	return platforms
}
