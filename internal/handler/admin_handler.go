package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"socialsync/pkg/breaker"
	"socialsync/pkg/killswitch"
	"socialsync/pkg/log"
	"socialsync/pkg/utils"
)

// SwitchStore platform kill switches
type SwitchStore interface {
	Disable(ctx context.Context, target, reason, by string, ttl time.Duration) (*killswitch.Switch, error)
	Enable(ctx context.Context, target string) error
	List(ctx context.Context) ([]*killswitch.Switch, error)
}

// AdminHandler operator endpoints
type AdminHandler struct {
	switches SwitchStore
	breakers *breaker.Manager
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(switches SwitchStore, breakers *breaker.Manager) *AdminHandler {
	return &AdminHandler{
		switches: switches,
		breakers: breakers,
	}
}

// SwitchRequest turns a platform on or off
type SwitchRequest struct {
	Enabled *bool  `json:"enabled" binding:"required"`
	Reason  string `json:"reason" binding:"max=255"`
	// TTLSeconds re-enables the platform automatically; 0 keeps it off
	TTLSeconds int `json:"ttl_seconds" binding:"gte=0"`
}

// SetSwitch enables or disables syncing and sharing for a platform
func (h *AdminHandler) SetSwitch(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}

	var req SwitchRequest
	if !bindJSON(c, &req) {
		return
	}

	logger := log.WithFields(log.Fields{
		"platform": p,
		"by":       c.GetString("user_id"),
	})

	if *req.Enabled {
		if err := h.switches.Enable(c.Request.Context(), string(p)); err != nil {
			utils.Error(c, utils.CodeRedisError, "Failed to enable platform")
			return
		}
		logger.Info("Platform enabled")
		utils.SuccessResponse(c, gin.H{"platform": p, "enabled": true})
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	sw, err := h.switches.Disable(c.Request.Context(), string(p), req.Reason, c.GetString("user_id"), ttl)
	if err != nil {
		utils.Error(c, utils.CodeRedisError, "Failed to disable platform")
		return
	}
	logger.WithField("reason", req.Reason).Warn("Platform disabled")
	utils.SuccessResponse(c, gin.H{"platform": p, "enabled": false, "switch": sw})
}

// ListSwitches returns every disabled platform
func (h *AdminHandler) ListSwitches(c *gin.Context) {
	switches, err := h.switches.List(c.Request.Context())
	if err != nil {
		utils.Error(c, utils.CodeRedisError, "Failed to list kill switches")
		return
	}
	if switches == nil {
		switches = []*killswitch.Switch{}
	}

	utils.SuccessResponse(c, switches)
}

// ListBreakers returns the state of every platform circuit breaker
func (h *AdminHandler) ListBreakers(c *gin.Context) {
	statuses := []breaker.Status{}
	if h.breakers != nil {
		statuses = append(statuses, h.breakers.Snapshot()...)
	}

	utils.SuccessResponse(c, statuses)
}
