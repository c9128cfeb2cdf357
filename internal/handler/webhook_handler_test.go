package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialsync/internal/config"
	"socialsync/internal/monitor"
	"socialsync/pkg/utils"
)

func newWebhookRouter(metrics *monitor.MetricsCollector) *gin.Engine {
	h := NewWebhookHandler(map[string]config.PlatformConfig{
		"facebook":  {WebhookVerifyToken: "verify-me", AppSecret: "app-secret"},
		"instagram": {WebhookVerifyToken: "verify-ig"},
	}, metrics)

	router := gin.New()
	router.GET("/webhooks/:platform", h.Verify)
	router.POST("/webhooks/:platform", h.Receive)
	return router
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler_Verify(t *testing.T) {
	router := newWebhookRouter(nil)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"matching token", "/webhooks/facebook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", http.StatusOK, "1158201444"},
		{"wrong token", "/webhooks/facebook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", http.StatusForbidden, ""},
		{"wrong mode", "/webhooks/facebook?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=1", http.StatusForbidden, ""},
		{"no token configured", "/webhooks/twitter?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", http.StatusForbidden, ""},
		{"unknown platform", "/webhooks/myspace?hub.mode=subscribe", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(router, http.MethodGet, tt.path, nil)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestWebhookHandler_Receive(t *testing.T) {
	metrics := monitor.NewMetricsCollector("test")
	router := newWebhookRouter(metrics)

	post := func(platform string, body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/"+platform, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set(SignatureHeader, signature)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	page := []byte(`{"object":"page","entry":[{"id":"1","messaging":[{}]}]}`)

	t.Run("signed page event", func(t *testing.T) {
		w := post("facebook", page, sign(page, "app-secret"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "EVENT_RECEIVED", w.Body.String())
	})

	t.Run("bad signature", func(t *testing.T) {
		w := post("facebook", page, sign(page, "other-secret"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		w := post("facebook", page, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown object", func(t *testing.T) {
		body := []byte(`{"object":"user","entry":[]}`)
		w := post("facebook", body, sign(body, "app-secret"))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unsigned platform", func(t *testing.T) {
		body := []byte(`{"object":"instagram","entry":[{}]}`)
		w := post("instagram", body, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		body := []byte(`{"object":`)
		w := post("instagram", body, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, int(utils.CodeForbidden), decode(t, w).Code)
	})

	series, err := testutil.GatherAndCount(metrics.Registry(), "test_webhook_events_total")
	require.NoError(t, err)
	assert.Equal(t, 5, series)
}

func TestValidSignature(t *testing.T) {
	body := []byte(`{"object":"page"}`)

	assert.True(t, ValidSignature(body, sign(body, "s"), "s"))
	assert.False(t, ValidSignature(body, sign(body, "s"), "t"))
	assert.False(t, ValidSignature(body, "sha1=abc", "s"))
	assert.False(t, ValidSignature(body, "sha256=zz", "s"))
}
