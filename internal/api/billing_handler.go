package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/middleware"
	"github.com/example/menuboard/pkg/apitypes"
)

// WebhookSignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const WebhookSignatureHeader = "X-Billing-Signature"

const maxWebhookBody = 64 << 10

var errWebhookSignature = errors.New("webhook signature verification failed")

// BillingHandler exposes subscription state and ingests billing webhooks.
type BillingHandler struct {
	billingService core.BillingService
	webhookSecret  []byte
	logger         *zap.Logger
	now            func() time.Time
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, webhookSecret string, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billingService: bs, webhookSecret: []byte(webhookSecret), logger: logger, now: time.Now}
}

// GetSubscription handles GET /subscription
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	sub, err := h.billingService.GetSubscription(c.Request.Context(), middleware.RestaurantID(c))
	if err != nil {
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sub.ToAPI(h.now()))
}

// SignWebhook returns the signature a sender must put in WebhookSignatureHeader.
func SignWebhook(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *BillingHandler) verify(signature string, body []byte) error {
	got, err := hex.DecodeString(signature)
	if err != nil || len(h.webhookSecret) == 0 {
		return errWebhookSignature
	}
	mac := hmac.New(sha256.New, h.webhookSecret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return errWebhookSignature
	}
	return nil
}

// HandleWebhook handles POST /billing/webhook. It is public; the sender
// authenticates with an HMAC of the body.
func (h *BillingHandler) HandleWebhook(c *gin.Context) {
	signature := c.GetHeader(WebhookSignatureHeader)
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing " + WebhookSignatureHeader + " header"})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read webhook payload", Details: err.Error()})
		return
	}
	if err := h.verify(signature, payload); err != nil {
		h.logger.Warn("Rejected billing webhook", zap.String("client_ip", c.ClientIP()))
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}

	var event apitypes.BillingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid webhook payload", Details: err.Error()})
		return
	}

	_, applied, err := h.billingService.ApplyEvent(c.Request.Context(), event)
	if err != nil {
		mapBillingErrorToStatus(c, h.logger, err)
		return
	}
	msg := "Webhook received successfully"
	if !applied {
		msg = "Duplicate event ignored"
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: msg})
}
