package handlers

import (
	"net/http"
	"strings"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
)

// GuestHeader names the anonymous visitor's cart session.
const GuestHeader = "X-Guest-ID"

func guestID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(GuestHeader))
}

// resolveStore returns the caller's cart: the signed-in buyer's when the
// request carries claims, otherwise the guest cart named by GuestHeader.
func resolveStore(r *http.Request, sessions *service.SessionRegistry) (*service.CartStore, error) {
	ctx := r.Context()

	if claims, ok := middleware.ClaimsFromContext(ctx); ok {
		return sessions.User(ctx, claims.UserID, middleware.CredentialFromContext(ctx), guestID(r))
	}

	id := guestID(r)
	if id == "" {
		return nil, errors.UnauthorizedError("Sign in or send a guest session id")
	}

	return sessions.Guest(ctx, id)
}

func requireClaims(r *http.Request) (*models.Claims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, errors.UnauthorizedError("Authentication required")
	}

	return claims, nil
}
