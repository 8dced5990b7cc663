package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"invitedoffer/offerroom/internal/api/handlers"
	"invitedoffer/offerroom/internal/services"
)

func setupWebhookRouter(paymentSvc services.IPaymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewRestWebhookHandler(paymentSvc)
	r.POST("/v1/payments/webhook", h.HandlePaymentWebhook)
	return r
}

func TestHandlePaymentWebhook_Success(t *testing.T) {
	mockPaymentSvc := new(MockPaymentService)
	router := setupWebhookRouter(mockPaymentSvc)

	payload := []byte(`{"type":"checkout.session.completed","session_id":"cs_123","room_id":"room-1"}`)
	mockPaymentSvc.On("HandleWebhookEvent", mock.Anything, payload, "sig_abc", mock.Anything).Return(nil)

	req, _ := http.NewRequest(http.MethodPost, "/v1/payments/webhook", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", "sig_abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":true`)
	mockPaymentSvc.AssertExpectations(t)
}

func TestHandlePaymentWebhook_BadSignature(t *testing.T) {
	mockPaymentSvc := new(MockPaymentService)
	router := setupWebhookRouter(mockPaymentSvc)

	payload := []byte(`{"type":"checkout.session.completed"}`)
	mockPaymentSvc.On("HandleWebhookEvent", mock.Anything, payload, "sig_bad", mock.Anything).
		Return(&services.Error{Kind: services.KindUnauthorized, Message: "webhook verification failed"})

	req, _ := http.NewRequest(http.MethodPost, "/v1/payments/webhook", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", "sig_bad")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
