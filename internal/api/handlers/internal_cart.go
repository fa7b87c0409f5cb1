package handlers

import (
	"log/slog"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

// cartPayload is the wire shape the storefront's cart client reads. Every
// response carries the whole cart, so complete is always true.
type cartPayload struct {
	Lines    []models.RawLine `json:"lines"`
	Complete bool             `json:"complete"`
}

func toPayload(cart *models.StoredCart) cartPayload {
	lines := make([]models.RawLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, line.AsRaw())
	}

	return cartPayload{Lines: lines, Complete: true}
}

// InternalCartHandler is the authenticated cart service. Every route runs
// behind the authenticating middleware and acts on the caller's own cart.
type InternalCartHandler struct {
	cartService service.CartService
	validator   *validator.Validate
}

func NewInternalCartHandler(cartService service.CartService) *InternalCartHandler {
	return &InternalCartHandler{cartService: cartService, validator: validator.New()}
}

func (h *InternalCartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, err := requireClaims(r)
		if err != nil {
			response.Error(w, err)
			return
		}

		cart, err := h.cartService.GetCart(r.Context(), claims.UserID)
		if err != nil {
			logger.Error("Failed to get cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, toPayload(cart))
	}
}

func (h *InternalCartHandler) AddLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, err := requireClaims(r)
		if err != nil {
			response.Error(w, err)
			return
		}

		var req models.AddLineRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid add line input")
			return
		}

		cart, err := h.cartService.AddLine(r.Context(), claims.UserID, &req)
		if err != nil {
			logger.Error("Failed to add cart line", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Cart line added", slog.Int("lines", len(cart.Lines)))
		response.Success(w, http.StatusOK, toPayload(cart))
	}
}

func (h *InternalCartHandler) UpdateLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, err := requireClaims(r)
		if err != nil {
			response.Error(w, err)
			return
		}

		lineID, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)
			return
		}

		var req models.UpdateLineRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		cart, err := h.cartService.UpdateLine(r.Context(), claims.UserID, lineID, req.Quantity)
		if err != nil {
			logger.Warn("Failed to update cart line", slog.String("line_id", lineID.String()), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, toPayload(cart))
	}
}

func (h *InternalCartHandler) RemoveLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, err := requireClaims(r)
		if err != nil {
			response.Error(w, err)
			return
		}

		lineID, err := utils.ParseID(r, "id")
		if err != nil {
			response.Error(w, err)
			return
		}

		cart, err := h.cartService.RemoveLine(r.Context(), claims.UserID, lineID)
		if err != nil {
			logger.Warn("Failed to remove cart line", slog.String("line_id", lineID.String()), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, toPayload(cart))
	}
}

func (h *InternalCartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, err := requireClaims(r)
		if err != nil {
			response.Error(w, err)
			return
		}

		if err := h.cartService.ClearCart(r.Context(), claims.UserID); err != nil {
			logger.Error("Failed to clear cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
