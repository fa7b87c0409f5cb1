package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

// CartHandler serves the shopper's own cart, guest or signed in.
type CartHandler struct {
	sessions  *service.SessionRegistry
	catalog   service.CatalogService
	validator *validator.Validate
}

func NewCartHandler(sessions *service.SessionRegistry, catalog service.CatalogService) *CartHandler {
	return &CartHandler{sessions: sessions, catalog: catalog, validator: validator.New()}
}

// withStore resolves the caller's cart and hands it to fn, rendering any error.
func (h *CartHandler) withStore(fn func(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store *service.CartStore)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		store, err := resolveStore(r, h.sessions)
		if err != nil {
			logger.Warn("Failed to resolve cart session", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		fn(w, r, logger.With(slog.String("session", store.Key())), store)
	}
}

// GetCart returns the cart; ?refresh=true reloads it from its backend first.
func (h *CartHandler) GetCart() http.HandlerFunc {
	return h.withStore(func(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store *service.CartStore) {
		if strings.EqualFold(r.URL.Query().Get("refresh"), "true") {
			if err := store.Refresh(r.Context()); err != nil {
				logger.Error("Failed to refresh cart", slog.String("error", err.Error()))
				response.Error(w, err)
				return
			}
		}

		response.Success(w, http.StatusOK, store.Snapshot())
	})
}

func (h *CartHandler) ClearCart() http.HandlerFunc {
	return h.withStore(func(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store *service.CartStore) {
		if err := store.Clear(r.Context()); err != nil {
			logger.Error("Failed to clear cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Cart cleared")
		response.Success(w, http.StatusOK, store.Snapshot())
	})
}

func (h *CartHandler) AddItem() http.HandlerFunc {
	return h.withStore(func(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store *service.CartStore) {
		var req models.AddItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid add item input")
			return
		}

		logger = logger.With(slog.String("product_id", req.ProductID))

		product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
		if err != nil {
			logger.Warn("Product lookup failed", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		if err := store.Add(r.Context(), product, req.Quantity, req.Size); err != nil {
			logger.Error("Failed to add item", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Item added to cart", slog.Int("quantity", req.Quantity))
		response.Success(w, http.StatusOK, store.Snapshot())
	})
}

func (h *CartHandler) UpdateItem() http.HandlerFunc {
	return h.withStore(func(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store *service.CartStore) {
		lineID := strings.TrimSpace(r.PathValue("id"))
		if lineID == "" {
			response.Error(w, errors.BadRequestError("Missing line id"))
			return
		}

		var req models.UpdateLineRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update item input")
			return
		}

		if err := store.UpdateQuantity(r.Context(), lineID, req.Quantity); err != nil {
			logger.Error("Failed to update item", slog.String("line_id", lineID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, store.Snapshot())
	})
}

func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return h.withStore(func(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store *service.CartStore) {
		lineID := strings.TrimSpace(r.PathValue("id"))
		if lineID == "" {
			response.Error(w, errors.BadRequestError("Missing line id"))
			return
		}

		if err := store.Remove(r.Context(), lineID); err != nil {
			logger.Error("Failed to remove item", slog.String("line_id", lineID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, store.Snapshot())
	})
}

// Select marks lines for checkout. With all set, line_ids is ignored.
func (h *CartHandler) Select() http.HandlerFunc {
	return h.withStore(func(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store *service.CartStore) {
		var req models.SelectionRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		switch {
		case req.All && req.Selected:
			store.SelectAll()
		case req.All:
			store.DeselectAll()
		case req.Selected:
			store.Select(req.LineIDs...)
		default:
			store.Deselect(req.LineIDs...)
		}

		response.Success(w, http.StatusOK, store.Snapshot())
	})
}

func (h *CartHandler) RemoveSelected() http.HandlerFunc {
	return h.withStore(func(w http.ResponseWriter, r *http.Request, logger *slog.Logger, store *service.CartStore) {
		if err := store.RemoveSelected(r.Context()); err != nil {
			logger.Error("Failed to remove selected items", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, store.Snapshot())
	})
}

// Login moves the visitor onto their account cart, merging what they added
// as a guest. Must run behind the authenticating middleware.
func (h *CartHandler) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, err := requireClaims(r)
		if err != nil {
			logger.Warn("Cart login without credentials")
			response.Error(w, err)
			return
		}

		store, err := h.sessions.Promote(r.Context(), guestID(r), claims.UserID, middleware.CredentialFromContext(r.Context()))
		if err != nil {
			logger.Error("Failed to merge guest cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Guest cart merged into account cart", slog.Int("lines", len(store.Lines())))
		response.Success(w, http.StatusOK, store.Snapshot())
	}
}

// Logout returns the visitor to their guest cart.
func (h *CartHandler) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		claims, err := requireClaims(r)
		if err != nil {
			response.Error(w, err)
			return
		}

		store, err := h.sessions.Demote(r.Context(), claims.UserID, guestID(r))
		if err != nil {
			logger.Error("Failed to sign out of cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Signed out of account cart")
		response.Success(w, http.StatusOK, store.Snapshot())
	}
}
