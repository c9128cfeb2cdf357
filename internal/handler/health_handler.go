package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"socialsync/internal/model"
	"socialsync/internal/platform"
	"socialsync/pkg/breaker"
	"socialsync/pkg/killswitch"
	"socialsync/pkg/queue"
)

// Version reported by the health endpoints
var Version = "1.0.0"

// HealthCheck probes one backing service
type HealthCheck func(ctx context.Context) error

// QueueStats exposes queue counters
type QueueStats interface {
	Stats() queue.Stats
}

// SwitchLister lists disabled platforms
type SwitchLister interface {
	List(ctx context.Context) ([]*killswitch.Switch, error)
}

// HealthDeps what the health endpoints report on. Only Registry is required.
type HealthDeps struct {
	Registry *platform.Registry
	Checks   map[string]HealthCheck
	Breakers *breaker.Manager
	Queue    QueueStats
	Switches SwitchLister
	Timeout  time.Duration
}

// HealthHandler liveness and readiness handler
type HealthHandler struct {
	deps HealthDeps
}

// NewHealthHandler creates a health handler
func NewHealthHandler(deps HealthDeps) *HealthHandler {
	if deps.Timeout <= 0 {
		deps.Timeout = 5 * time.Second
	}
	return &HealthHandler{deps: deps}
}

// Health reports backing services and which platforms are configured
func (h *HealthHandler) Health(c *gin.Context) {
	services, healthy := h.runChecks(c.Request.Context())

	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   Version,
		"services":  services,
		"platforms": h.platforms(),
	}

	if !healthy {
		body["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// Details adds breaker, queue and kill-switch state to Health
func (h *HealthHandler) Details(c *gin.Context) {
	ctx := c.Request.Context()
	services, healthy := h.runChecks(ctx)

	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   Version,
		"services":  services,
		"platforms": h.platforms(),
	}

	breakers := []breaker.Status{}
	if h.deps.Breakers != nil {
		breakers = append(breakers, h.deps.Breakers.Snapshot()...)
	}
	body["breakers"] = breakers

	if h.deps.Queue != nil {
		body["queue"] = h.deps.Queue.Stats()
	}

	if h.deps.Switches != nil {
		switches, err := h.deps.Switches.List(ctx)
		if err != nil {
			body["disabled_platforms"] = gin.H{"error": err.Error()}
		} else {
			disabled := make([]string, 0, len(switches))
			for _, sw := range switches {
				disabled = append(disabled, sw.Target)
			}
			body["disabled_platforms"] = disabled
		}
	}

	if !healthy {
		body["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// Ping liveness probe
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
	})
}

func (h *HealthHandler) runChecks(ctx context.Context) (map[string]interface{}, bool) {
	names := make([]string, 0, len(h.deps.Checks))
	for name := range h.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	services := make(map[string]interface{}, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.deps.Timeout)
		err := h.deps.Checks[name](checkCtx)
		cancel()

		if err != nil {
			healthy = false
			services[name] = map[string]interface{}{
				"healthy": false,
				"error":   err.Error(),
			}
			continue
		}
		services[name] = map[string]interface{}{
			"healthy": true,
			"status":  "connected",
		}
	}
	return services, healthy
}

func (h *HealthHandler) platforms() map[string]string {
	out := make(map[string]string, len(model.AllPlatforms))
	for _, p := range model.AllPlatforms {
		if h.deps.Registry != nil && h.deps.Registry.Configured(p) {
			out[string(p)] = "configured"
		} else {
			out[string(p)] = "not_configured"
		}
	}
	return out
}
