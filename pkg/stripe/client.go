package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/balance"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Event = stripe.Event

// Client opens hosted checkout pages and verifies the webhooks Stripe sends back.
type Client interface {
	CreateSession(ctx context.Context, req *models.PaymentSessionRequest) (*models.PaymentSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
	SessionPaid(ctx context.Context, sessionID string) (bool, error)
	VerifyWebhookSignature(payload []byte, signature string) (Event, error)
	// Ping reads the account balance to prove the API key works.
	Ping(ctx context.Context) error
}

type Option func(*stripeClient)

// WithBackendURL points the client at another API host, e.g. stripe-mock.
func WithBackendURL(rawURL string) Option {
	return func(c *stripeClient) {
		c.backendURL = rawURL
	}
}

type stripeClient struct {
	sessions      session.Client
	balance       balance.Client
	webhookSecret string
	successURL    string
	cancelURL     string
	backendURL    string
}

func NewStripeClient(apiKey, webhookSecret, successURL, cancelURL string, opts ...Option) Client {
	c := &stripeClient{webhookSecret: webhookSecret, successURL: successURL, cancelURL: cancelURL}
	for _, opt := range opts {
		opt(c)
	}

	cfg := &stripe.BackendConfig{
		HTTPClient:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if c.backendURL != "" {
		cfg.URL = stripe.String(c.backendURL)
		cfg.MaxNetworkRetries = stripe.Int64(0)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	c.sessions = session.Client{B: backend, Key: apiKey}
	c.balance = balance.Client{B: backend, Key: apiKey}

	return c
}

// CreateSession opens a one-line checkout session for the amount payable now.
// The order id travels as the client reference and in metadata so both the
// return URL and the webhook can find the pending checkout.
func (s *stripeClient) CreateSession(ctx context.Context, req *models.PaymentSessionRequest) (*models.PaymentSession, error) {
	amount := req.Amount.Shift(2).Round(0).IntPart()
	if amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %s", req.Amount.String())
	}

	successURL, err := withOrderID(s.successURL, req.OrderID)
	if err != nil {
		return nil, err
	}
	cancelURL, err := withOrderID(s.cancelURL, req.OrderID)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.Method == models.PaymentMethodCard || req.Method == models.PaymentMethodAdvance {
		params.PaymentMethodTypes = stripe.StringSlice([]string{"card"})
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("checkout_id", req.CheckoutID)
	params.AddMetadata("payment_method", string(req.Method))
	params.SetIdempotencyKey("checkout-" + req.OrderID)

	cs, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}

	return &models.PaymentSession{ID: cs.ID, RedirectURL: cs.URL}, nil
}

func (s *stripeClient) ExpireSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := s.sessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expiring checkout session %s: %w", sessionID, err)
	}

	return nil
}

// SessionPaid reads the session back from Stripe. A session that needed no
// payment counts as paid.
func (s *stripeClient) SessionPaid(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, errors.New("missing checkout session id")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := s.sessions.Get(sessionID, params)
	if err != nil {
		return false, fmt.Errorf("fetching checkout session %s: %w", sessionID, err)
	}

	switch cs.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true, nil
	default:
		return false, nil
	}
}

func (s *stripeClient) Ping(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx

	if _, err := s.balance.Get(params); err != nil {
		return fmt.Errorf("failed to connect to stripe: %w", err)
	}

	return nil
}

func (s *stripeClient) VerifyWebhookSignature(payload []byte, signature string) (Event, error) {
	if s.webhookSecret == "" {
		return Event{}, errors.New("webhook secret not configured")
	}

	return webhook.ConstructEvent(payload, signature, s.webhookSecret)
}

// CheckoutOutcome reads a checkout session event. handled is false for events
// that do not settle a payment, such as a completed session whose payment is
// still processing.
func CheckoutOutcome(event Event) (orderID string, succeeded bool, handled bool, err error) {
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
	default:
		return "", false, false, nil
	}

	if event.Data == nil {
		return "", false, false, errors.New("event carries no data")
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return "", false, false, fmt.Errorf("decoding checkout session: %w", err)
	}

	orderID = cs.Metadata["order_id"]
	if orderID == "" {
		orderID = cs.ClientReferenceID
	}
	if orderID == "" {
		return "", false, false, errors.New("checkout session has no order reference")
	}

	switch event.Type {
	case "checkout.session.completed":
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return orderID, false, false, nil
		}
		return orderID, true, true, nil
	case "checkout.session.async_payment_succeeded":
		return orderID, true, true, nil
	default:
		return orderID, false, true, nil
	}
}

func withOrderID(rawURL, orderID string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid return url %q: %w", rawURL, err)
	}

	q := u.Query()
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
