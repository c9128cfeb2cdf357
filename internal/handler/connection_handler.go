package handler

import (
	"github.com/gin-gonic/gin"

	"socialsync/internal/service/oauth"
	"socialsync/pkg/utils"
)

// ConnectionHandler platform connection handler
type ConnectionHandler struct {
	oauthService oauth.Service
}

// NewConnectionHandler creates a connection handler
func NewConnectionHandler(oauthService oauth.Service) *ConnectionHandler {
	return &ConnectionHandler{
		oauthService: oauthService,
	}
}

// Connect stores the caller's grant for a platform
func (h *ConnectionHandler) Connect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	p, ok := platformParam(c)
	if !ok {
		return
	}

	var req oauth.ConnectRequest
	if !bindJSON(c, &req) {
		return
	}

	conn, err := h.oauthService.Connect(c.Request.Context(), userID, p, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, conn)
}

// Disconnect revokes the caller's grant for a platform
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	p, ok := platformParam(c)
	if !ok {
		return
	}

	if err := h.oauthService.Disconnect(c.Request.Context(), userID, p); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"platform":     p,
		"disconnected": true,
	})
}

// List returns the caller's grants
func (h *ConnectionHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conns, err := h.oauthService.List(c.Request.Context(), userID)
	if err != nil {
		utils.Error(c, utils.CodeDatabaseError, "Failed to list connections")
		return
	}

	utils.SuccessResponse(c, conns)
}
