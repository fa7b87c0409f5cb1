package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
)

type OrderClient struct {
	baseClient
}

func NewOrderClient(baseURL string, timeout time.Duration, maxRetries uint64) *OrderClient {
	return &OrderClient{baseClient: newBaseClient("order service", baseURL, timeout, maxRetries)}
}

// Submit keys the order on the checkout id, so a retried submission cannot
// create a second order.
func (c *OrderClient) Submit(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	var result models.OrderResult

	_, err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/api/v1/orders",
		headers: map[string]string{"Idempotency-Key": req.CheckoutID.String()},
		body:    req,
		retry:   true,
	}, &result)
	if err != nil {
		return nil, err
	}

	if result.OrderID == "" {
		return nil, errors.ThirdPartyError("Order service returned no order id")
	}

	return &result, nil
}

// Cancel succeeds for an order the service does not know.
func (c *OrderClient) Cancel(ctx context.Context, orderID string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/orders/" + url.PathEscape(orderID) + "/cancel",
		retry:  true,
	}, nil)
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		return nil
	}

	return err
}
