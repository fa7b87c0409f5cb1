package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
	"github.com/aaravmahajanofficial/storefront-core/pkg/stripe"
)

const maxWebhookBytes = 65536

type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)
}

type PaymentHandler struct {
	verifier WebhookVerifier
	checkout service.CheckoutService
}

func NewPaymentHandler(verifier WebhookVerifier, checkout service.CheckoutService) *PaymentHandler {
	return &PaymentHandler{verifier: verifier, checkout: checkout}
}

// HandleStripeWebhook settles hosted payments the buyer never returned from.
// An order the return flow already settled is acknowledged, not retried.
func (h *PaymentHandler) HandleStripeWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			logger.Error("Failed to read webhook body", slog.String("error", err.Error()))
			response.Error(w, errors.BadRequestError("Failed to read request body"))
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			response.Error(w, errors.BadRequestError("Missing Stripe-Signature header"))
			return
		}

		event, err := h.verifier.VerifyWebhookSignature(payload, signature)
		if err != nil {
			logger.Warn("Webhook signature verification failed", slog.String("error", err.Error()))
			response.Error(w, errors.BadRequestError("Invalid webhook signature"))
			return
		}

		logger = logger.With(slog.String("event_id", event.ID), slog.String("event_type", string(event.Type)))

		orderID, succeeded, handled, err := stripe.CheckoutOutcome(event)
		if err != nil {
			logger.Warn("Malformed checkout event", slog.String("error", err.Error()))
			response.Error(w, errors.BadRequestError("Malformed checkout event"))
			return
		}
		if !handled {
			logger.Debug("Webhook event ignored")
			response.Success(w, http.StatusOK, map[string]bool{"received": true})
			return
		}

		logger = logger.With(slog.String("order_id", orderID))

		if _, err := h.checkout.CompleteReturn(r.Context(), orderID, succeeded, nil); err != nil {
			if errors.HasCode(err, errors.ErrCodeNotFound) {
				logger.Info("Checkout already settled")
				response.Success(w, http.StatusOK, map[string]bool{"received": true})
				return
			}
			logger.Error("Failed to settle checkout from webhook", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Checkout settled from webhook", slog.Bool("succeeded", succeeded))
		response.Success(w, http.StatusOK, map[string]bool{"received": true})
	}
}
