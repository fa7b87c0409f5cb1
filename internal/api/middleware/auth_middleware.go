package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
	"github.com/golang-jwt/jwt/v5"
)

type authContextKey string

const (
	claimsKey     = authContextKey("claims")
	credentialKey = authContextKey("credential")
)

type AuthMiddleware struct {
	jwtKey []byte
	parser *jwt.Parser
}

func NewAuthMiddleware(jwtKey []byte) *AuthMiddleware {
	return &AuthMiddleware{
		jwtKey: jwtKey,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// Authenticate rejects requests without a valid bearer token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			LoggerFromContext(r.Context()).Warn("Missing authorization header")
			response.Error(w, errors.UnauthorizedError("Authorization header is required"))
			return
		}

		m.Optional(next).ServeHTTP(w, r)
	}
}

// Optional lets anonymous requests through untouched. A request that does carry
// a token must carry a valid one.
func (m *AuthMiddleware) Optional(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		scheme, tokenString, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" {
			logger.Warn("Invalid authorization header format")
			response.Error(w, errors.UnauthorizedError("Invalid authorization format"))
			return
		}

		claims := &models.Claims{}

		_, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return m.jwtKey, nil
		})
		if err != nil {
			logger.Warn("JWT validation failed", slog.String("error", err.Error()))
			response.Error(w, errors.UnauthorizedError("Invalid or expired token"))
			return
		}

		ctx := ContextWithClaims(r.Context(), claims, tokenString)
		ctx = ContextWithLogger(ctx, logger.With(slog.String("user_id", claims.UserID.String())))

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// ContextWithClaims stores the verified claims and the raw token they came from.
func ContextWithClaims(ctx context.Context, claims *models.Claims, credential string) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, credentialKey, credential)
}

func ClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*models.Claims)
	return claims, ok
}

// CredentialFromContext returns the raw bearer token, or "" for anonymous requests.
func CredentialFromContext(ctx context.Context) string {
	credential, _ := ctx.Value(credentialKey).(string)
	return credential
}
