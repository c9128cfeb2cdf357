package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"socialsync/internal/model"
	"socialsync/internal/service/sharing"
	"socialsync/pkg/utils"
)

// ShareHandler sharing handler
type ShareHandler struct {
	sharingService sharing.Service
}

// NewShareHandler creates a share handler
func NewShareHandler(sharingService sharing.Service) *ShareHandler {
	return &ShareHandler{
		sharingService: sharingService,
	}
}

// LinkRequest content to build a link for
type LinkRequest struct {
	Platform string              `json:"platform"`
	Content  sharing.ContentData `json:"content"`
}

// ShareRequest content to post as the caller
type ShareRequest struct {
	Platform string              `json:"platform" binding:"required"`
	Content  sharing.ContentData `json:"content"`
	Message  string              `json:"message" binding:"max=2000"`
}

// GenerateLink builds an attributed link without posting anything
func (h *ShareHandler) GenerateLink(c *gin.Context) {
	var req LinkRequest
	if !bindJSON(c, &req) {
		return
	}

	var p model.Platform
	if req.Platform != "" {
		parsed, err := model.ParsePlatform(req.Platform)
		if err != nil {
			utils.Error(c, utils.CodeInvalidParam, err.Error())
			return
		}
		p = parsed
	}

	link, err := h.sharingService.GenerateShareableLink(c.GetString("user_id"), req.Content, p)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, link)
}

// Share posts content to a platform with the caller's grant
func (h *ShareHandler) Share(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ShareRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := model.ParsePlatform(req.Platform)
	if err != nil {
		utils.Error(c, utils.CodeInvalidParam, err.Error())
		return
	}

	result, err := h.sharingService.ShareContent(c.Request.Context(), userID, p, req.Content, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GetStats returns per-platform share counts of a content item
func (h *ShareHandler) GetStats(c *gin.Context) {
	stats, err := h.sharingService.GetShareStats(c.Request.Context(), c.Param("type"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}

// Redirect counts the click and forwards the visitor to the shared content
func (h *ShareHandler) Redirect(c *gin.Context) {
	visitor := c.ClientIP() + "|" + c.Request.UserAgent()

	result, err := h.sharingService.TrackClick(c.Request.Context(), c.Param("share_id"), visitor)
	if err != nil {
		if errors.Is(err, sharing.ErrShareNotFound) {
			utils.Error(c, utils.CodeNotFound, err.Error())
			return
		}
		respondError(c, err)
		return
	}

	c.Redirect(http.StatusFound, result.Target)
}
