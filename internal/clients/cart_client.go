package clients

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
)

// CartPayload is the wire shape of an authenticated cart.
type CartPayload struct {
	Lines    []models.RawLine `json:"lines"`
	Complete bool             `json:"complete"`
}

// CartClient talks to the authenticated cart service on behalf of a buyer,
// forwarding the buyer's own bearer credential.
type CartClient struct {
	baseClient
}

func NewCartClient(baseURL string, timeout time.Duration, maxRetries uint64) *CartClient {
	return &CartClient{baseClient: newBaseClient("cart service", baseURL, timeout, maxRetries)}
}

func (c *CartClient) FetchCart(ctx context.Context, credential string) (*models.RemoteCart, error) {
	var payload CartPayload
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/internal/v1/carts", credential: credential, retry: true}, &payload); err != nil {
		return nil, err
	}

	return toRemote(payload), nil
}

// AddLine is not retried: a lost response would otherwise add the quantity twice.
func (c *CartClient) AddLine(ctx context.Context, credential string, req *models.AddLineRequest) (*models.RemoteCart, error) {
	return c.mutate(ctx, request{method: http.MethodPost, path: "/internal/v1/carts/items", credential: credential, body: req})
}

func (c *CartClient) UpdateLine(ctx context.Context, credential, lineID string, quantity int) (*models.RemoteCart, error) {
	return c.mutate(ctx, request{
		method:     http.MethodPatch,
		path:       "/internal/v1/carts/items/" + url.PathEscape(lineID),
		credential: credential,
		body:       models.UpdateLineRequest{Quantity: quantity},
		retry:      true,
	})
}

// RemoveLine treats a line the service no longer has as removed.
func (c *CartClient) RemoveLine(ctx context.Context, credential, lineID string) (*models.RemoteCart, error) {
	remote, err := c.mutate(ctx, request{
		method:     http.MethodDelete,
		path:       "/internal/v1/carts/items/" + url.PathEscape(lineID),
		credential: credential,
		retry:      true,
	})
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		return nil, nil
	}

	return remote, err
}

func (c *CartClient) ClearCart(ctx context.Context, credential string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/internal/v1/carts", credential: credential, retry: true}, nil)
	return err
}

// mutate returns nil when the response carried no cart, which tells the caller
// to refetch.
func (c *CartClient) mutate(ctx context.Context, req request) (*models.RemoteCart, error) {
	var payload *CartPayload
	if _, err := c.do(ctx, req, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	return toRemote(*payload), nil
}

func toRemote(payload CartPayload) *models.RemoteCart {
	lines := payload.Lines
	if lines == nil {
		lines = []models.RawLine{}
	}

	return &models.RemoteCart{Lines: lines, Complete: payload.Complete}
}
