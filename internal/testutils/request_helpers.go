package testutils

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/google/uuid"
)

const TestCredential = "test-bearer-token"

// CreateTestRequestWithContext builds a request as the auth middleware would
// leave it for a signed-in buyer.
func CreateTestRequestWithContext(method, target string, body io.Reader, userID uuid.UUID, pathParams map[string]string) *http.Request {
	req := CreateTestRequestWithoutContext(method, target, body, pathParams)

	claims := &models.Claims{UserID: userID, Email: "test@example.com"}

	return req.WithContext(middleware.ContextWithClaims(req.Context(), claims, TestCredential))
}

func CreateTestRequestWithoutContext(method, target string, body io.Reader, pathParams map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")

	for key, value := range pathParams {
		req.SetPathValue(key, value)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return req.WithContext(middleware.ContextWithLogger(req.Context(), logger))
}

// CreateGuestRequest builds an anonymous request carrying a guest session id.
func CreateGuestRequest(method, target string, body io.Reader, guestID string, pathParams map[string]string) *http.Request {
	req := CreateTestRequestWithoutContext(method, target, body, pathParams)
	req.Header.Set("X-Guest-ID", guestID)

	return req
}
