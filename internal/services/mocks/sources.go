package mocks

import (
	"context"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/stretchr/testify/mock"
)

type CapabilitySource struct {
	mock.Mock
}

func (m *CapabilitySource) FetchCapabilities(ctx context.Context, productIDs []string) (map[string]models.PaymentCapabilities, error) {
	args := m.Called(ctx, productIDs)
	if caps := args.Get(0); caps != nil {
		return caps.(map[string]models.PaymentCapabilities), args.Error(1)
	}
	return nil, args.Error(1)
}

func NewCapabilitySource(t interface {
	mock.TestingT
	Cleanup(func())
}) *CapabilitySource {
	m := &CapabilitySource{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

type StockSource struct {
	mock.Mock
}

func (m *StockSource) FetchStock(ctx context.Context, productIDs []string) (map[string]models.StockSnapshot, error) {
	args := m.Called(ctx, productIDs)
	if stock := args.Get(0); stock != nil {
		return stock.(map[string]models.StockSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func NewStockSource(t interface {
	mock.TestingT
	Cleanup(func())
}) *StockSource {
	m := &StockSource{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
