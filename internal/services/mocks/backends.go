package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/stretchr/testify/mock"
)

type GuestBackend struct {
	mock.Mock
}

func (m *GuestBackend) LoadCart(ctx context.Context, guestID string) ([]models.RawLine, error) {
	args := m.Called(ctx, guestID)
	if lines := args.Get(0); lines != nil {
		return lines.([]models.RawLine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *GuestBackend) SaveCart(ctx context.Context, guestID string, lines []models.RawLine) error {
	args := m.Called(ctx, guestID, lines)
	return args.Error(0)
}

func (m *GuestBackend) ClearCart(ctx context.Context, guestID string) error {
	args := m.Called(ctx, guestID)
	return args.Error(0)
}

func NewGuestBackend(t interface {
	mock.TestingT
	Cleanup(func())
}) *GuestBackend {
	m := &GuestBackend{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type AuthBackend struct {
	mock.Mock
}

func (m *AuthBackend) remote(args mock.Arguments) (*models.RemoteCart, error) {
	if cart := args.Get(0); cart != nil {
		return cart.(*models.RemoteCart), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AuthBackend) FetchCart(ctx context.Context, credential string) (*models.RemoteCart, error) {
	return m.remote(m.Called(ctx, credential))
}

func (m *AuthBackend) AddLine(ctx context.Context, credential string, req *models.AddLineRequest) (*models.RemoteCart, error) {
	return m.remote(m.Called(ctx, credential, req))
}

func (m *AuthBackend) UpdateLine(ctx context.Context, credential, lineID string, quantity int) (*models.RemoteCart, error) {
	return m.remote(m.Called(ctx, credential, lineID, quantity))
}

func (m *AuthBackend) RemoveLine(ctx context.Context, credential, lineID string) (*models.RemoteCart, error) {
	return m.remote(m.Called(ctx, credential, lineID))
}

func (m *AuthBackend) ClearCart(ctx context.Context, credential string) error {
	args := m.Called(ctx, credential)
	return args.Error(0)
}

func NewAuthBackend(t interface {
	mock.TestingT
	Cleanup(func())
}) *AuthBackend {
	m := &AuthBackend{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
