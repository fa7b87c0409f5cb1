package handlers

import (
	"log/slog"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	repository "github.com/aaravmahajanofficial/storefront-core/internal/repositories"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type CheckoutHandler struct {
	checkout  service.CheckoutService
	sessions  *service.SessionRegistry
	limiter   repository.RateLimitRepository
	validator *validator.Validate
}

func NewCheckoutHandler(checkout service.CheckoutService, sessions *service.SessionRegistry, limiter repository.RateLimitRepository) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, sessions: sessions, limiter: limiter, validator: validator.New()}
}

type checkoutRequest struct {
	id     uuid.UUID
	store  *service.CartStore
	logger *slog.Logger
}

// resolve parses the checkout id (when the route has one) and the caller's cart.
func (h *CheckoutHandler) resolve(w http.ResponseWriter, r *http.Request, withID bool) (*checkoutRequest, bool) {
	logger := middleware.LoggerFromContext(r.Context())

	var id uuid.UUID
	if withID {
		var err error
		if id, err = utils.ParseID(r, "id"); err != nil {
			logger.Warn("Invalid checkout id", slog.String("error", err.Error()))
			response.Error(w, err)
			return nil, false
		}
		logger = logger.With(slog.String("checkout_id", id.String()))
	}

	store, err := resolveStore(r, h.sessions)
	if err != nil {
		logger.Warn("Failed to resolve cart session", slog.String("error", err.Error()))
		response.Error(w, err)
		return nil, false
	}

	return &checkoutRequest{id: id, store: store, logger: logger.With(slog.String("session", store.Key()))}, true
}

func (h *CheckoutHandler) Begin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.resolve(w, r, false)
		if !ok {
			return
		}

		view, err := h.checkout.Begin(r.Context(), req.store)
		if err != nil {
			req.logger.Warn("Failed to begin checkout", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		req.logger.Info("Checkout started", slog.String("checkout_id", view.ID.String()), slog.Int("lines", len(view.Selection.Lines)))
		response.Success(w, http.StatusCreated, view)
	}
}

func (h *CheckoutHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.resolve(w, r, true)
		if !ok {
			return
		}

		view, err := h.checkout.Get(r.Context(), req.id, req.store)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

func (h *CheckoutHandler) SetAddress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.resolve(w, r, true)
		if !ok {
			return
		}

		var addr models.Address
		if !utils.ParseAndValidate(r, w, &addr, h.validator) {
			req.logger.Warn("Invalid shipping address")
			return
		}

		view, err := h.checkout.SetAddress(r.Context(), req.id, req.store, &addr)
		if err != nil {
			req.logger.Warn("Failed to set address", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

func (h *CheckoutHandler) ChoosePayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.resolve(w, r, true)
		if !ok {
			return
		}

		var body models.ChoosePaymentRequest
		if !utils.ParseAndValidate(r, w, &body, h.validator) {
			return
		}

		view, err := h.checkout.ChoosePayment(r.Context(), req.id, req.store, body.Method)
		if err != nil {
			req.logger.Warn("Failed to choose payment method", slog.String("method", string(body.Method)), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

func (h *CheckoutHandler) Review() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.resolve(w, r, true)
		if !ok {
			return
		}

		view, err := h.checkout.Review(r.Context(), req.id, req.store)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, view)
	}
}

// Submit is rate limited per cart session. A limiter outage lets the
// submission through.
func (h *CheckoutHandler) Submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.resolve(w, r, true)
		if !ok {
			return
		}

		allowed, remaining, retryAfter, err := h.limiter.CheckSubmitRateLimit(r.Context(), req.store.Key())
		switch {
		case err != nil:
			req.logger.Error("Submit rate limit check failed", slog.String("error", err.Error()))
		case !allowed:
			response.Error(w, errors.TooManyRequestsError("Too many checkout attempts, please wait").WithMeta(retryAfter))
			return
		default:
			req.logger.Debug("Submit allowed", slog.Int("remaining", remaining))
		}

		result, err := h.checkout.Submit(r.Context(), req.id, req.store)
		if err != nil {
			req.logger.Warn("Checkout submission failed", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		req.logger.Info("Checkout submitted", slog.String("order_id", result.OrderID), slog.String("state", string(result.State)))
		response.Success(w, http.StatusOK, result)
	}
}

// Return completes a hosted payment when the buyer lands back on the store.
// The reported status is a hint; the service confirms payment with the provider.
func (h *CheckoutHandler) Return() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.resolve(w, r, false)
		if !ok {
			return
		}

		var body models.ReturnRequest
		if !utils.ParseAndValidate(r, w, &body, h.validator) {
			return
		}

		result, err := h.checkout.CompleteReturn(r.Context(), body.OrderID, body.Status == "success", req.store)
		if err != nil {
			req.logger.Warn("Failed to complete payment return", slog.String("order_id", body.OrderID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, result)
	}
}

func (h *CheckoutHandler) Abandon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.resolve(w, r, true)
		if !ok {
			return
		}

		if err := h.checkout.Abandon(r.Context(), req.id, req.store); err != nil {
			response.Error(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
