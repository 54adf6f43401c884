package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/cohere/backend/internal/service"
	"github.com/cohere/backend/pkg/payment"
)

const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	purchases *service.PurchaseService
	gateway   payment.Gateway
	log       *logrus.Entry
}

func NewPaymentHandler(purchases *service.PurchaseService, gateway payment.Gateway, log *logrus.Entry) *PaymentHandler {
	return &PaymentHandler{purchases: purchases, gateway: gateway, log: log.WithField("component", "payment_webhook")}
}

// Webhook handles POST /api/payment/webhook.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		JSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		return
	}

	evt, err := h.gateway.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			h.log.WithError(err).Warn("rejected webhook")
			JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
			return
		}
		Error(w, err)
		return
	}

	// A non-2xx answer makes the gateway redeliver the event.
	if err := h.purchases.ApplyGatewayEvent(r.Context(), evt); err != nil {
		h.log.WithError(err).WithField("event_type", evt.Type).Error("failed to apply webhook event")
		JSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to process event"})
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"received": true})
}
