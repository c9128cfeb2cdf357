package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"socialsync/pkg/breaker"
	"socialsync/pkg/killswitch"
)

func newAdminRouter(switches *MockSwitchStore, breakers *breaker.Manager) *gin.Engine {
	h := NewAdminHandler(switches, breakers)
	router := gin.New()
	router.Use(withUser("ops-1"))
	router.PUT("/admin/platforms/:platform/switch", h.SetSwitch)
	router.GET("/admin/platforms/switches", h.ListSwitches)
	router.GET("/admin/breakers", h.ListBreakers)
	return router
}

func TestAdminHandler_SetSwitch(t *testing.T) {
	t.Run("disable with ttl", func(t *testing.T) {
		switches := new(MockSwitchStore)
		router := newAdminRouter(switches, nil)
		switches.On("Disable", mock.Anything, "tiktok", "api outage", "ops-1", 10*time.Minute).
			Return(&killswitch.Switch{Target: "tiktok", Reason: "api outage", DisabledBy: "ops-1"}, nil)

		w := performRequest(router, http.MethodPut, "/admin/platforms/TikTok/switch",
			`{"enabled":false,"reason":"api outage","ttl_seconds":600}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		switches.AssertExpectations(t)
	})

	t.Run("enable", func(t *testing.T) {
		switches := new(MockSwitchStore)
		router := newAdminRouter(switches, nil)
		switches.On("Enable", mock.Anything, "facebook").Return(nil)

		w := performRequest(router, http.MethodPut, "/admin/platforms/facebook/switch", `{"enabled":true}`)

		require.Equal(t, http.StatusOK, w.Code)
		switches.AssertExpectations(t)
	})

	t.Run("enabled is required", func(t *testing.T) {
		switches := new(MockSwitchStore)
		router := newAdminRouter(switches, nil)

		w := performRequest(router, http.MethodPut, "/admin/platforms/facebook/switch", `{"reason":"x"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("redis failure", func(t *testing.T) {
		switches := new(MockSwitchStore)
		router := newAdminRouter(switches, nil)
		switches.On("Disable", mock.Anything, "facebook", "", "ops-1", time.Duration(0)).
			Return(nil, errors.New("connection refused"))

		w := performRequest(router, http.MethodPut, "/admin/platforms/facebook/switch", `{"enabled":false}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAdminHandler_Lists(t *testing.T) {
	switches := new(MockSwitchStore)
	switches.On("List", mock.Anything).Return([]*killswitch.Switch{{Target: "twitter"}}, nil)

	breakers := breaker.NewManager(breaker.Config{})
	_ = breakers.Execute(context.Background(), "publish.facebook", func(context.Context) error { return nil })

	router := newAdminRouter(switches, breakers)

	w := performRequest(router, http.MethodGet, "/admin/platforms/switches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []killswitch.Switch
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "twitter", listed[0].Target)

	w = performRequest(router, http.MethodGet, "/admin/breakers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var statuses []breaker.Status
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "publish.facebook", statuses[0].Name)
	assert.Equal(t, "closed", statuses[0].State)
}
