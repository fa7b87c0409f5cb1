package mocks

import (
	"context"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type CheckoutService struct {
	mock.Mock
}

func (m *CheckoutService) view(args mock.Arguments) (*models.CheckoutView, error) {
	if view := args.Get(0); view != nil {
		return view.(*models.CheckoutView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CheckoutService) result(args mock.Arguments) (*models.SubmitResult, error) {
	if result := args.Get(0); result != nil {
		return result.(*models.SubmitResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CheckoutService) Begin(ctx context.Context, store *service.CartStore) (*models.CheckoutView, error) {
	return m.view(m.Called(ctx, store))
}

func (m *CheckoutService) Get(ctx context.Context, id uuid.UUID, store *service.CartStore) (*models.CheckoutView, error) {
	return m.view(m.Called(ctx, id, store))
}

func (m *CheckoutService) SetAddress(ctx context.Context, id uuid.UUID, store *service.CartStore, addr *models.Address) (*models.CheckoutView, error) {
	return m.view(m.Called(ctx, id, store, addr))
}

func (m *CheckoutService) ChoosePayment(ctx context.Context, id uuid.UUID, store *service.CartStore, method models.PaymentMethod) (*models.CheckoutView, error) {
	return m.view(m.Called(ctx, id, store, method))
}

func (m *CheckoutService) Review(ctx context.Context, id uuid.UUID, store *service.CartStore) (*models.CheckoutView, error) {
	return m.view(m.Called(ctx, id, store))
}

func (m *CheckoutService) Submit(ctx context.Context, id uuid.UUID, store *service.CartStore) (*models.SubmitResult, error) {
	return m.result(m.Called(ctx, id, store))
}

func (m *CheckoutService) CompleteReturn(ctx context.Context, orderID string, succeeded bool, store *service.CartStore) (*models.SubmitResult, error) {
	return m.result(m.Called(ctx, orderID, succeeded, store))
}

func (m *CheckoutService) Abandon(ctx context.Context, id uuid.UUID, store *service.CartStore) error {
	return m.Called(ctx, id, store).Error(0)
}

func (m *CheckoutService) Sweep(cutoff time.Time) int {
	return m.Called(cutoff).Int(0)
}

func NewCheckoutService(t interface {
	mock.TestingT
	Cleanup(func())
}) *CheckoutService {
	m := &CheckoutService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type CartService struct {
	mock.Mock
}

func (m *CartService) cart(args mock.Arguments) (*models.StoredCart, error) {
	if cart := args.Get(0); cart != nil {
		return cart.(*models.StoredCart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.StoredCart, error) {
	return m.cart(m.Called(ctx, userID))
}

func (m *CartService) AddLine(ctx context.Context, userID uuid.UUID, req *models.AddLineRequest) (*models.StoredCart, error) {
	return m.cart(m.Called(ctx, userID, req))
}

func (m *CartService) UpdateLine(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*models.StoredCart, error) {
	return m.cart(m.Called(ctx, userID, lineID, quantity))
}

func (m *CartService) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) (*models.StoredCart, error) {
	return m.cart(m.Called(ctx, userID, lineID))
}

func (m *CartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func NewCartService(t interface {
	mock.TestingT
	Cleanup(func())
}) *CartService {
	m := &CartService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type NotificationService struct {
	mock.Mock
}

func (m *NotificationService) SendOrderConfirmation(ctx context.Context, confirmation *models.OrderConfirmation) error {
	return m.Called(ctx, confirmation).Error(0)
}

func (m *NotificationService) ListForOrder(ctx context.Context, orderID string) ([]*models.Notification, error) {
	args := m.Called(ctx, orderID)
	if list := args.Get(0); list != nil {
		return list.([]*models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func NewNotificationService(t interface {
	mock.TestingT
	Cleanup(func())
}) *NotificationService {
	m := &NotificationService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type CatalogService struct {
	mock.Mock
}

func (m *CatalogService) GetProduct(ctx context.Context, productID string) (models.RawLine, error) {
	args := m.Called(ctx, productID)
	if product := args.Get(0); product != nil {
		return product.(models.RawLine), args.Error(1)
	}
	return nil, args.Error(1)
}

func NewCatalogService(t interface {
	mock.TestingT
	Cleanup(func())
}) *CatalogService {
	m := &CatalogService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
