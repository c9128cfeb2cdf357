package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"socialsync/internal/model"
	"socialsync/internal/service/engagement"
	"socialsync/pkg/utils"
)

// EngagementHandler engagement metric handler
type EngagementHandler struct {
	engagementService engagement.Service
}

// NewEngagementHandler creates an engagement handler
func NewEngagementHandler(engagementService engagement.Service) *EngagementHandler {
	return &EngagementHandler{
		engagementService: engagementService,
	}
}

// Track records an impression, conversion or other event reported by a client
func (h *EngagementHandler) Track(c *gin.Context) {
	var event engagement.Event
	if !bindJSON(c, &event) {
		return
	}

	p, err := model.ParsePlatform(string(event.Platform))
	if err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}
	event.Platform = p
	event.Timestamp = time.Time{}
	if userID := c.GetString("user_id"); userID != "" {
		event.UserID = &userID
	}

	metric, err := h.engagementService.TrackEngagement(c.Request.Context(), &event)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, utils.Response{
		Code:      utils.CodeSuccess,
		Message:   "created",
		Data:      metric,
		Timestamp: time.Now().Unix(),
	})
}

// GetAggregate counts events of an entity by platform, optionally for one metric type
func (h *EngagementHandler) GetAggregate(c *gin.Context) {
	var metricType *model.MetricType
	if raw := c.Query("metric"); raw != "" {
		mt := model.MetricType(raw)
		if !mt.Valid() {
			utils.Error(c, utils.CodeInvalidParam, "unknown metric type "+raw)
			return
		}
		metricType = &mt
	}

	agg, err := h.engagementService.Aggregate(c.Request.Context(), c.Param("type"), c.Param("id"), metricType)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, agg)
}
