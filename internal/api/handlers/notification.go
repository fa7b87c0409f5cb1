package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// ListForOrder returns the confirmation emails recorded for an order.
func (h *NotificationHandler) ListForOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		if _, err := requireClaims(r); err != nil {
			logger.Warn("Unauthorized notification list attempt")
			response.Error(w, err)
			return
		}

		orderID := strings.TrimSpace(r.PathValue("id"))
		if orderID == "" {
			response.Error(w, errors.BadRequestError("Missing order id"))
			return
		}

		logger = logger.With(slog.String("order_id", orderID))

		notifications, err := h.notificationService.ListForOrder(r.Context(), orderID)
		if err != nil {
			logger.Error("Failed to list notifications", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Notifications listed", slog.Int("count", len(notifications)))
		response.Success(w, http.StatusOK, notifications)
	}
}
