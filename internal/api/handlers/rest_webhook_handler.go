package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"invitedoffer/offerroom/internal/services"
)

// RestWebhookHandler receives payment provider webhooks.
type RestWebhookHandler struct {
	paymentService services.IPaymentService
}

// NewRestWebhookHandler creates a new RestWebhookHandler.
func NewRestWebhookHandler(paymentService services.IPaymentService) *RestWebhookHandler {
	return &RestWebhookHandler{paymentService: paymentService}
}

// HandlePaymentWebhook verifies and applies a provider event. The raw body
// is read unparsed because signature verification covers the exact bytes.
func (h *RestWebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1*1024*1024))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.paymentService.HandleWebhookEvent(c.Request.Context(), payload, signature, requestBaseURL(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
