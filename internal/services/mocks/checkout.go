package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type ShippingQuoter struct {
	mock.Mock
}

func (m *ShippingQuoter) Quote(ctx context.Context, req *models.ShippingQuoteRequest) (decimal.Decimal, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func NewShippingQuoter(t interface {
	mock.TestingT
	Cleanup(func())
}) *ShippingQuoter {
	m := &ShippingQuoter{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type OrderGateway struct {
	mock.Mock
}

func (m *OrderGateway) Submit(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	args := m.Called(ctx, req)
	if result := args.Get(0); result != nil {
		return result.(*models.OrderResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *OrderGateway) Cancel(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func NewOrderGateway(t interface {
	mock.TestingT
	Cleanup(func())
}) *OrderGateway {
	m := &OrderGateway{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type PaymentRedirector struct {
	mock.Mock
}

func (m *PaymentRedirector) CreateSession(ctx context.Context, req *models.PaymentSessionRequest) (*models.PaymentSession, error) {
	args := m.Called(ctx, req)
	if session := args.Get(0); session != nil {
		return session.(*models.PaymentSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PaymentRedirector) ExpireSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *PaymentRedirector) SessionPaid(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func NewPaymentRedirector(t interface {
	mock.TestingT
	Cleanup(func())
}) *PaymentRedirector {
	m := &PaymentRedirector{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type PendingCheckoutStore struct {
	mock.Mock
}

func (m *PendingCheckoutStore) Save(ctx context.Context, pending *models.PendingCheckout) error {
	args := m.Called(ctx, pending)
	return args.Error(0)
}

func (m *PendingCheckoutStore) Load(ctx context.Context, orderID string) (*models.PendingCheckout, error) {
	args := m.Called(ctx, orderID)
	if pending := args.Get(0); pending != nil {
		return pending.(*models.PendingCheckout), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PendingCheckoutStore) Delete(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func NewPendingCheckoutStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *PendingCheckoutStore {
	m := &PendingCheckoutStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type OrderNotifier struct {
	mock.Mock
}

func (m *OrderNotifier) SendOrderConfirmation(ctx context.Context, confirmation *models.OrderConfirmation) error {
	args := m.Called(ctx, confirmation)
	return args.Error(0)
}

func NewOrderNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *OrderNotifier {
	m := &OrderNotifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
