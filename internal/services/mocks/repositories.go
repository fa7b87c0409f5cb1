package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type CartRepository struct {
	mock.Mock
}

func (m *CartRepository) CreateCart(ctx context.Context, cart *models.StoredCart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *CartRepository) GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.StoredCart, error) {
	args := m.Called(ctx, userID)
	if cart := args.Get(0); cart != nil {
		return cart.(*models.StoredCart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CartRepository) UpdateCart(ctx context.Context, cart *models.StoredCart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func NewCartRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *CartRepository {
	m := &CartRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type NotificationRepository struct {
	mock.Mock
}

func (m *NotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
}

func (m *NotificationRepository) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, errorMsg string) error {
	args := m.Called(ctx, id, status, errorMsg)
	return args.Error(0)
}

func (m *NotificationRepository) ListByOrderID(ctx context.Context, orderID string) ([]*models.Notification, error) {
	args := m.Called(ctx, orderID)
	if notifications := args.Get(0); notifications != nil {
		return notifications.([]*models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func NewNotificationRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *NotificationRepository {
	m := &NotificationRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type EmailService struct {
	mock.Mock
}

func (m *EmailService) Send(ctx context.Context, msg *models.EmailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func NewEmailService(t interface {
	mock.TestingT
	Cleanup(func())
}) *EmailService {
	m := &EmailService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type CatalogRepository struct {
	mock.Mock
}

func (m *CatalogRepository) GetProduct(ctx context.Context, id string) (models.RawLine, error) {
	args := m.Called(ctx, id)
	if product := args.Get(0); product != nil {
		return product.(models.RawLine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CatalogRepository) FetchCapabilities(ctx context.Context, productIDs []string) (map[string]models.PaymentCapabilities, error) {
	args := m.Called(ctx, productIDs)
	if caps := args.Get(0); caps != nil {
		return caps.(map[string]models.PaymentCapabilities), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CatalogRepository) FetchStock(ctx context.Context, productIDs []string) (map[string]models.StockSnapshot, error) {
	args := m.Called(ctx, productIDs)
	if stock := args.Get(0); stock != nil {
		return stock.(map[string]models.StockSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func NewCatalogRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *CatalogRepository {
	m := &CatalogRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type RateLimitRepository struct {
	mock.Mock
}

func (m *RateLimitRepository) CheckSubmitRateLimit(ctx context.Context, sessionKey string) (bool, int, int, error) {
	args := m.Called(ctx, sessionKey)
	return args.Bool(0), args.Int(1), args.Int(2), args.Error(3)
}

func NewRateLimitRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *RateLimitRepository {
	m := &RateLimitRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// Cache expects Get to return (found, err, stored). stored is copied into the
// destination through JSON, as a real cache would decode it.
type Cache struct {
	mock.Mock
}

func (m *Cache) Get(ctx context.Context, key string, value any) (bool, error) {
	args := m.Called(ctx, key, value)
	if stored := args.Get(2); stored != nil {
		raw, err := json.Marshal(stored)
		if err != nil {
			return false, err
		}
		if err := json.Unmarshal(raw, value); err != nil {
			return false, err
		}
	}
	return args.Bool(0), args.Error(1)
}

func (m *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *Cache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *Cache) Close() error {
	return m.Called().Error(0)
}

func NewCache(t interface {
	mock.TestingT
	Cleanup(func())
}) *Cache {
	m := &Cache{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
