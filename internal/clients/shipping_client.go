package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/shopspring/decimal"
)

type shippingQuote struct {
	Fee decimal.Decimal `json:"fee"`
}

type ShippingClient struct {
	baseClient
}

func NewShippingClient(baseURL string, timeout time.Duration, maxRetries uint64) *ShippingClient {
	return &ShippingClient{baseClient: newBaseClient("shipping service", baseURL, timeout, maxRetries)}
}

func (c *ShippingClient) Quote(ctx context.Context, req *models.ShippingQuoteRequest) (decimal.Decimal, error) {
	var quote shippingQuote

	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/shipping/quote", body: req, retry: true}, &quote); err != nil {
		return decimal.Zero, err
	}

	if quote.Fee.IsNegative() {
		return decimal.Zero, errors.ThirdPartyError("Shipping service returned a negative fee")
	}

	return models.RoundMoney(quote.Fee), nil
}
