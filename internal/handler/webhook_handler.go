package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"socialsync/internal/config"
	"socialsync/internal/model"
	"socialsync/internal/monitor"
	"socialsync/pkg/log"
	"socialsync/pkg/utils"
)

const (
	// SignatureHeader HMAC-SHA256 of the raw body, "sha256=<hex>"
	SignatureHeader = "X-Hub-Signature-256"

	maxWebhookBody = 1 << 20
)

// webhookObjects the "object" values each platform delivers
var webhookObjects = map[model.Platform][]string{
	model.PlatformFacebook:  {"page", "catalog"},
	model.PlatformInstagram: {"instagram"},
	model.PlatformWhatsApp:  {"whatsapp_business_account"},
}

// WebhookSettings per-platform webhook secrets
type WebhookSettings struct {
	VerifyToken string
	AppSecret   string
}

// WebhookHandler platform webhook handler
type WebhookHandler struct {
	settings map[model.Platform]WebhookSettings
	metrics  *monitor.MetricsCollector
}

// NewWebhookHandler creates a webhook handler from the platform config
func NewWebhookHandler(platforms map[string]config.PlatformConfig, metrics *monitor.MetricsCollector) *WebhookHandler {
	settings := make(map[model.Platform]WebhookSettings, len(platforms))
	for name, pc := range platforms {
		settings[model.Platform(strings.ToLower(name))] = WebhookSettings{
			VerifyToken: pc.WebhookVerifyToken,
			AppSecret:   pc.AppSecret,
		}
	}
	return &WebhookHandler{settings: settings, metrics: metrics}
}

type webhookPayload struct {
	Object string            `json:"object"`
	Entry  []json.RawMessage `json:"entry"`
}

// Verify answers the subscription handshake
func (h *WebhookHandler) Verify(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	expected := h.settings[p].VerifyToken

	if mode != "subscribe" || expected == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		log.WithField("platform", p).Warn("Webhook verification failed")
		h.record(p, "", "verify_failed")
		utils.Error(c, utils.CodeForbidden, "Webhook verification failed")
		return
	}

	log.WithField("platform", p).Info("Webhook verified")
	h.record(p, "", "verified")
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// Receive accepts an event delivery
func (h *WebhookHandler) Receive(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.Error(c, utils.CodeInvalidParam, "Failed to read body")
		return
	}

	if secret := h.settings[p].AppSecret; secret != "" {
		if !ValidSignature(body, c.GetHeader(SignatureHeader), secret) {
			log.WithField("platform", p).Warn("Webhook signature mismatch")
			h.record(p, "", "bad_signature")
			utils.Error(c, utils.CodeForbidden, "Invalid signature")
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.record(p, "", "malformed")
		utils.Error(c, utils.CodeForbidden, "Invalid webhook payload")
		return
	}

	if !knownObject(p, payload.Object) {
		h.record(p, payload.Object, "unknown_object")
		c.Status(http.StatusNotFound)
		return
	}

	log.WithFields(log.Fields{
		"platform": p,
		"object":   payload.Object,
		"entries":  len(payload.Entry),
	}).Info("Webhook event received")
	h.record(p, payload.Object, "received")

	c.String(http.StatusOK, "EVENT_RECEIVED")
}

// ValidSignature checks a "sha256=<hex>" HMAC of body
func ValidSignature(body []byte, header, secret string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func knownObject(p model.Platform, object string) bool {
	for _, o := range webhookObjects[p] {
		if o == object {
			return true
		}
	}
	return false
}

func (h *WebhookHandler) record(p model.Platform, object, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(string(p), object, outcome)
	}
}
