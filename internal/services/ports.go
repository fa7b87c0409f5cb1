package service

import (
	"context"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/shopspring/decimal"
)

// GuestBackend is the durable key-value store holding anonymous carts.
type GuestBackend interface {
	LoadCart(ctx context.Context, guestID string) ([]models.RawLine, error)
	SaveCart(ctx context.Context, guestID string, lines []models.RawLine) error
	ClearCart(ctx context.Context, guestID string) error
}

// AuthBackend is the remote cart service for signed-in buyers. Implementations
// return a SESSION_EXPIRED AppError when the credential is rejected.
type AuthBackend interface {
	FetchCart(ctx context.Context, credential string) (*models.RemoteCart, error)
	AddLine(ctx context.Context, credential string, req *models.AddLineRequest) (*models.RemoteCart, error)
	UpdateLine(ctx context.Context, credential, lineID string, quantity int) (*models.RemoteCart, error)
	RemoveLine(ctx context.Context, credential, lineID string) (*models.RemoteCart, error)
	ClearCart(ctx context.Context, credential string) error
}

type CapabilitySource interface {
	FetchCapabilities(ctx context.Context, productIDs []string) (map[string]models.PaymentCapabilities, error)
}

type StockSource interface {
	FetchStock(ctx context.Context, productIDs []string) (map[string]models.StockSnapshot, error)
}

type ShippingQuoter interface {
	Quote(ctx context.Context, req *models.ShippingQuoteRequest) (decimal.Decimal, error)
}

type OrderGateway interface {
	Submit(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error)
	Cancel(ctx context.Context, orderID string) error
}

// PaymentRedirector opens and expires hosted payment pages. SessionPaid reports
// whether the provider has captured payment for a page.
type PaymentRedirector interface {
	CreateSession(ctx context.Context, req *models.PaymentSessionRequest) (*models.PaymentSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	SessionPaid(ctx context.Context, sessionID string) (bool, error)
}

type PendingCheckoutStore interface {
	Save(ctx context.Context, pending *models.PendingCheckout) error
	Load(ctx context.Context, orderID string) (*models.PendingCheckout, error)
	Delete(ctx context.Context, orderID string) error
}

type OrderNotifier interface {
	SendOrderConfirmation(ctx context.Context, confirmation *models.OrderConfirmation) error
}
