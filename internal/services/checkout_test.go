package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/aaravmahajanofficial/storefront-core/internal/services/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	registry *service.SessionRegistry
	guest    *mocks.GuestBackend
	caps     *mocks.CapabilitySource
	stock    *mocks.StockSource
	shipping *mocks.ShippingQuoter
	orders   *mocks.OrderGateway
	payments *mocks.PaymentRedirector
	pending  *mocks.PendingCheckoutStore
	notifier *mocks.OrderNotifier
	svc      service.CheckoutService
}

func setupCheckoutTest(t *testing.T) *checkoutFixture {
	t.Helper()

	f := &checkoutFixture{
		guest:    mocks.NewGuestBackend(t),
		caps:     mocks.NewCapabilitySource(t),
		stock:    mocks.NewStockSource(t),
		shipping: mocks.NewShippingQuoter(t),
		orders:   mocks.NewOrderGateway(t),
		payments: mocks.NewPaymentRedirector(t),
		pending:  mocks.NewPendingCheckoutStore(t),
		notifier: mocks.NewOrderNotifier(t),
	}
	f.registry = service.NewSessionRegistry(f.guest, mocks.NewAuthBackend(t), service.NewLineNormalizer())
	f.svc = service.NewCheckoutService(service.CheckoutDeps{
		Capabilities: f.caps,
		Stock:        f.stock,
		Shipping:     f.shipping,
		Orders:       f.orders,
		Payments:     f.payments,
		Pending:      f.pending,
		Notifier:     f.notifier,
		Sessions:     f.registry,
	}, "INR")

	return f
}

func checkoutLine(id, productID string, qty int, price float64) models.RawLine {
	return models.RawLine{
		"id":         id,
		"product_id": productID,
		"quantity":   qty,
		"product":    map[string]any{"name": "Product " + productID, "price": price},
	}
}

func (f *checkoutFixture) cart(t *testing.T, raws ...models.RawLine) *service.CartStore {
	t.Helper()

	f.guest.On("LoadCart", mock.Anything, "g1").Return(raws, nil).Once()
	store, err := f.registry.Guest(context.Background(), "g1")
	require.NoError(t, err)

	return store
}

func validAddress() *models.Address {
	return &models.Address{
		Name:       "Asha Rao",
		Phone:      "9876543210",
		Email:      "asha@example.com",
		Street:     "12 MG Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "in",
	}
}

func inStock(ids ...string) map[string]models.StockSnapshot {
	out := make(map[string]models.StockSnapshot, len(ids))
	for _, id := range ids {
		out[id] = models.StockSnapshot{ProductID: id, StockQuantity: 10, MinOrderQuantity: 1, IsActive: true}
	}

	return out
}

// toReview drives a checkout through address and payment selection.
func (f *checkoutFixture) toReview(t *testing.T, store *service.CartStore, method models.PaymentMethod, shipping int64) *models.CheckoutView {
	t.Helper()
	ctx := context.Background()

	f.shipping.On("Quote", mock.Anything, mock.Anything).Return(decimal.NewFromInt(shipping), nil).Once()

	view, err := f.svc.Begin(ctx, store)
	require.NoError(t, err)
	require.Equal(t, models.CheckoutStateCollectAddress, view.State)

	view, err = f.svc.SetAddress(ctx, view.ID, store, validAddress())
	require.NoError(t, err)
	require.Equal(t, models.CheckoutStateSelectPayment, view.State)

	view, err = f.svc.ChoosePayment(ctx, view.ID, store, method)
	require.NoError(t, err)
	require.Equal(t, models.CheckoutStateReview, view.State)

	return view
}

func TestCheckoutBegin(t *testing.T) {
	ctx := context.Background()

	t.Run("Snapshots The Selected Lines", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 2, 100), checkoutLine("2", "p-2", 1, 50))
		store.Select("2")

		// Act
		view, err := f.svc.Begin(ctx, store)

		// Assert
		require.NoError(t, err)
		require.Len(t, view.Selection.Lines, 1)
		assert.Equal(t, "2", view.Selection.Lines[0].ID)
		assert.Equal(t, []models.PaymentMethod{models.PaymentMethodCard, models.PaymentMethodUPI, models.PaymentMethodCOD}, view.Methods)
		assert.True(t, decimal.NewFromInt(50).Equal(view.Review.GrandTotal))
	})

	t.Run("Nothing Selected Takes Every Line", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 2, 100), checkoutLine("2", "p-2", 1, 50))

		// Act
		view, err := f.svc.Begin(ctx, store)

		// Assert
		require.NoError(t, err)
		assert.Len(t, view.Selection.Lines, 2)
	})

	t.Run("Failure - Empty Cart", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t)

		// Act
		view, err := f.svc.Begin(ctx, store)

		// Assert
		assert.Nil(t, view)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeValidation))
	})
}

func TestCheckoutSetAddress(t *testing.T) {
	ctx := context.Background()

	t.Run("Failure - Invalid Address", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		view, err := f.svc.Begin(ctx, store)
		require.NoError(t, err)
		addr := validAddress()
		addr.PostalCode = ""
		addr.Email = "not-an-email"

		// Act
		_, err = f.svc.SetAddress(ctx, view.ID, store, addr)

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeValidation, appErr.Code)
		assert.Len(t, appErr.Details, 2)
		f.shipping.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Shipping Quote Unavailable", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		view, err := f.svc.Begin(ctx, store)
		require.NoError(t, err)
		f.shipping.On("Quote", mock.Anything, mock.Anything).Return(decimal.Zero, errors.New("dial tcp: timeout")).Once()

		// Act
		_, err = f.svc.SetAddress(ctx, view.ID, store, validAddress())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeTransientNetwork))
	})

	t.Run("Failure - Checkout Owned By Another Cart", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		view, err := f.svc.Begin(ctx, store)
		require.NoError(t, err)
		f.guest.On("LoadCart", mock.Anything, "g2").Return([]models.RawLine{}, nil).Once()
		other, err := f.registry.Guest(ctx, "g2")
		require.NoError(t, err)

		// Act
		_, err = f.svc.SetAddress(ctx, view.ID, other, validAddress())

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})
}

func TestCheckoutChoosePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Review Splits COD Payment", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 2, 100))
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{}, nil)

		// Act
		view := f.toReview(t, store, models.PaymentMethodCOD, 40)

		// Assert
		assert.Equal(t, models.PaymentMethodCOD, view.Method)
		assert.Equal(t, "IN", view.Address.Country)
		assert.True(t, decimal.NewFromInt(240).Equal(view.Review.GrandTotal))
		assert.True(t, view.Review.PayableNow.IsZero())
		assert.True(t, decimal.NewFromInt(240).Equal(view.Review.PayableLater))
	})

	t.Run("Advance Is Capped Into The Review", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		percent := models.AdvanceTypePercent
		value := decimal.NewFromInt(20)
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{
			"p-1": {AllowCard: true, AllowAdvance: true, AdvanceType: &percent, AdvanceValue: &value},
		}, nil)

		// Act
		view := f.toReview(t, store, models.PaymentMethodAdvance, 50)

		// Assert
		assert.Equal(t, []models.PaymentMethod{models.PaymentMethodCard, models.PaymentMethodAdvance}, view.Methods)
		assert.True(t, decimal.NewFromInt(150).Equal(view.Review.GrandTotal))
		assert.True(t, decimal.NewFromInt(20).Equal(view.Review.AdvanceAmount))
		assert.True(t, decimal.NewFromInt(20).Equal(view.Review.PayableNow))
		assert.True(t, decimal.NewFromInt(130).Equal(view.Review.PayableLater))
	})

	t.Run("Failure - Method Not Eligible", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{
			"p-1": {AllowUPI: true},
		}, nil)
		f.shipping.On("Quote", mock.Anything, mock.Anything).Return(decimal.Zero, nil).Once()
		view, err := f.svc.Begin(ctx, store)
		require.NoError(t, err)
		view, err = f.svc.SetAddress(ctx, view.ID, store, validAddress())
		require.NoError(t, err)
		require.Equal(t, models.PaymentMethodUPI, view.Method)

		// Act
		_, err = f.svc.ChoosePayment(ctx, view.ID, store, models.PaymentMethodCOD)

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeCapabilityConflict, appErr.Code)
		assert.Equal(t, []models.PaymentMethod{models.PaymentMethodUPI}, appErr.Meta)
	})
}

func TestCheckoutSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("Out Of Stock Line Blocks Submission", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{}, nil)
		view := f.toReview(t, store, models.PaymentMethodCOD, 0)
		f.stock.On("FetchStock", mock.Anything, []string{"p-1"}).Return(map[string]models.StockSnapshot{
			"p-1": {ProductID: "p-1", StockQuantity: 0, MinOrderQuantity: 1, IsActive: true},
		}, nil).Once()

		// Act
		result, err := f.svc.Submit(ctx, view.ID, store)

		// Assert
		assert.Nil(t, result)
		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeStockViolation, appErr.Code)
		assert.Equal(t, []string{"1: only 0 left in stock"}, appErr.Details)

		current, err := f.svc.Get(ctx, view.ID, store)
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateReview, current.State)
		require.Len(t, current.Violations, 1)
		assert.Equal(t, "1", current.Violations[0].LineID)
		f.orders.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("COD Places The Order And Removes Only Ordered Lines", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 2, 100), checkoutLine("2", "p-2", 1, 50))
		store.Select("1")
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{}, nil)
		view := f.toReview(t, store, models.PaymentMethodCOD, 40)

		f.stock.On("FetchStock", mock.Anything, []string{"p-1"}).Return(inStock("p-1"), nil).Once()
		f.orders.On("Submit", mock.Anything, mock.MatchedBy(func(req *models.OrderRequest) bool {
			return req.PaymentMethod == models.PaymentMethodCOD &&
				req.GrandTotal.Equal(decimal.NewFromInt(240)) &&
				req.AdvanceAmount.IsZero() &&
				len(req.Lines) == 1 && req.Lines[0].ProductID == "p-1"
		})).Return(&models.OrderResult{OrderID: "ord-1"}, nil).Once()
		f.guest.On("SaveCart", mock.Anything, "g1", mock.MatchedBy(func(lines []models.RawLine) bool {
			return len(lines) == 1 && lines[0]["product_id"] == "p-2"
		})).Return(nil).Once()
		f.notifier.On("SendOrderConfirmation", mock.Anything, &models.OrderConfirmation{
			OrderID:    "ord-1",
			To:         "asha@example.com",
			Name:       "Asha Rao",
			GrandTotal: "240.00",
			Method:     "COD",
		}).Return(nil).Once()

		// Act
		result, err := f.svc.Submit(ctx, view.ID, store)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, &models.SubmitResult{OrderID: "ord-1", State: models.CheckoutStateSuccess}, result)
		require.Len(t, store.Lines(), 1)
		assert.Equal(t, "p-2", store.Lines()[0].ProductID)

		_, err = f.svc.Get(ctx, view.ID, store)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})

	t.Run("Redirect Saves Pending Checkout Before Returning URL", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{}, nil)
		view := f.toReview(t, store, models.PaymentMethodCard, 40)

		f.stock.On("FetchStock", mock.Anything, []string{"p-1"}).Return(inStock("p-1"), nil).Once()
		f.orders.On("Submit", mock.Anything, mock.Anything).Return(&models.OrderResult{OrderID: "ord-2"}, nil).Once()
		f.payments.On("CreateSession", mock.Anything, mock.MatchedBy(func(req *models.PaymentSessionRequest) bool {
			return req.OrderID == "ord-2" && req.Currency == "inr" && req.Amount.Equal(decimal.NewFromInt(140)) && req.CustomerRef == "guest:g1"
		})).Return(&models.PaymentSession{ID: "cs_1", RedirectURL: "https://pay.example/cs_1"}, nil).Once()
		f.pending.On("Save", mock.Anything, mock.MatchedBy(func(p *models.PendingCheckout) bool {
			return p.OrderID == "ord-2" &&
				p.CheckoutID == view.ID &&
				p.SessionKey == "guest:g1" &&
				p.PaymentSessionID == "cs_1" &&
				p.GrandTotal == "140.00" &&
				assert.ObjectsAreEqual([]models.LineIdentity{{ProductID: "p-1"}}, p.Lines)
		})).Return(nil).Once()

		// Act
		result, err := f.svc.Submit(ctx, view.ID, store)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateSubmitting, result.State)
		assert.Equal(t, "https://pay.example/cs_1", result.RedirectURL)
		assert.Len(t, store.Lines(), 1)

		err = f.svc.Abandon(ctx, view.ID, store)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeInvalidState))
	})

	t.Run("Failure - Pending Save Unwinds Order And Session", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{}, nil)
		view := f.toReview(t, store, models.PaymentMethodUPI, 0)

		f.stock.On("FetchStock", mock.Anything, []string{"p-1"}).Return(inStock("p-1"), nil).Once()
		f.orders.On("Submit", mock.Anything, mock.Anything).Return(&models.OrderResult{OrderID: "ord-3"}, nil).Once()
		f.payments.On("CreateSession", mock.Anything, mock.Anything).Return(&models.PaymentSession{ID: "cs_3", RedirectURL: "https://pay.example/cs_3"}, nil).Once()
		f.pending.On("Save", mock.Anything, mock.Anything).Return(errors.New("redis unavailable")).Once()
		f.payments.On("ExpireSession", mock.Anything, "cs_3").Return(nil).Once()
		f.orders.On("Cancel", mock.Anything, "ord-3").Return(nil).Once()

		// Act
		result, err := f.svc.Submit(ctx, view.ID, store)

		// Assert
		assert.Nil(t, result)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeTransientNetwork))
		_, err = f.svc.Get(ctx, view.ID, store)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})

	t.Run("Failure - Method Withdrawn Before Submit", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{}, nil).Twice()
		view := f.toReview(t, store, models.PaymentMethodUPI, 0)
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{
			"p-1": {AllowCard: true, AllowCOD: true},
		}, nil).Once()

		// Act
		result, err := f.svc.Submit(ctx, view.ID, store)

		// Assert
		assert.Nil(t, result)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeCapabilityConflict))

		current, err := f.svc.Get(ctx, view.ID, store)
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateReview, current.State)
		assert.Equal(t, models.PaymentMethodCard, current.Method)
		assert.Len(t, current.Notices, 1)
		f.stock.AssertNotCalled(t, "FetchStock", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Order Service Down", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.caps.On("FetchCapabilities", mock.Anything, []string{"p-1"}).Return(map[string]models.PaymentCapabilities{}, nil)
		view := f.toReview(t, store, models.PaymentMethodCOD, 0)
		f.stock.On("FetchStock", mock.Anything, []string{"p-1"}).Return(inStock("p-1"), nil).Once()
		f.orders.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

		// Act
		_, err := f.svc.Submit(ctx, view.ID, store)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeTransientNetwork))
		assert.Len(t, store.Lines(), 1)
	})
}

func TestCheckoutCompleteReturn(t *testing.T) {
	ctx := context.Background()
	pendingFor := func(sessionKey string) *models.PendingCheckout {
		return &models.PendingCheckout{
			OrderID:          "ord-9",
			CheckoutID:       uuid.New(),
			SessionKey:       sessionKey,
			PaymentSessionID: "cs_9",
			Method:           models.PaymentMethodCard,
			Lines:            []models.LineIdentity{{ProductID: "p-1"}},
			Email:            "asha@example.com",
			GrandTotal:       "140.00",
		}
	}

	t.Run("Success Removes Ordered Lines", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100), checkoutLine("2", "p-2", 1, 50))
		f.pending.On("Load", mock.Anything, "ord-9").Return(pendingFor("guest:g1"), nil).Once()
		f.payments.On("SessionPaid", mock.Anything, "cs_9").Return(true, nil).Once()
		f.guest.On("SaveCart", mock.Anything, "g1", mock.Anything).Return(nil).Once()
		f.notifier.On("SendOrderConfirmation", mock.Anything, mock.MatchedBy(func(c *models.OrderConfirmation) bool {
			return c.OrderID == "ord-9" && c.To == "asha@example.com" && c.GrandTotal == "140.00"
		})).Return(nil).Once()
		f.pending.On("Delete", mock.Anything, "ord-9").Return(nil).Once()

		// Act
		result, err := f.svc.CompleteReturn(ctx, "ord-9", true, store)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateSuccess, result.State)
		require.Len(t, store.Lines(), 1)
		assert.Equal(t, "p-2", store.Lines()[0].ProductID)
	})

	t.Run("Webhook Finds A Live Guest Cart", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.pending.On("Load", mock.Anything, "ord-9").Return(pendingFor("guest:g1"), nil).Once()
		f.guest.On("SaveCart", mock.Anything, "g1", mock.Anything).Return(nil).Once()
		f.notifier.On("SendOrderConfirmation", mock.Anything, mock.Anything).Return(nil).Once()
		f.pending.On("Delete", mock.Anything, "ord-9").Return(nil).Once()

		// Act
		result, err := f.svc.CompleteReturn(ctx, "ord-9", true, nil)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateSuccess, result.State)
		assert.Empty(t, store.Lines())
	})

	t.Run("Cancel Cancels The Order And Keeps The Cart", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.pending.On("Load", mock.Anything, "ord-9").Return(pendingFor("guest:g1"), nil).Once()
		f.payments.On("SessionPaid", mock.Anything, "cs_9").Return(false, nil).Once()
		f.orders.On("Cancel", mock.Anything, "ord-9").Return(nil).Once()
		f.payments.On("ExpireSession", mock.Anything, "cs_9").Return(nil).Once()
		f.pending.On("Delete", mock.Anything, "ord-9").Return(nil).Once()

		// Act
		result, err := f.svc.CompleteReturn(ctx, "ord-9", false, store)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateFailed, result.State)
		assert.Len(t, store.Lines(), 1)
	})

	t.Run("Unpaid Success Return Waits For The Webhook", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100), checkoutLine("2", "p-2", 1, 50))
		f.pending.On("Load", mock.Anything, "ord-9").Return(pendingFor("guest:g1"), nil).Twice()
		f.payments.On("SessionPaid", mock.Anything, "cs_9").Return(false, nil).Once()

		// Act
		returned, err := f.svc.CompleteReturn(ctx, "ord-9", true, store)
		require.NoError(t, err)

		f.orders.On("Cancel", mock.Anything, "ord-9").Return(nil).Once()
		f.payments.On("ExpireSession", mock.Anything, "cs_9").Return(nil).Once()
		f.pending.On("Delete", mock.Anything, "ord-9").Return(nil).Once()
		expired, err := f.svc.CompleteReturn(ctx, "ord-9", false, nil)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateSubmitting, returned.State)
		assert.Equal(t, models.CheckoutStateFailed, expired.State)
		assert.Len(t, store.Lines(), 2)
		f.orders.AssertNumberOfCalls(t, "Cancel", 1)
		f.pending.AssertNumberOfCalls(t, "Delete", 1)
		f.notifier.AssertNotCalled(t, "SendOrderConfirmation", mock.Anything, mock.Anything)
	})

	t.Run("Paid Session Settles A Cancel Return", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.pending.On("Load", mock.Anything, "ord-9").Return(pendingFor("guest:g1"), nil).Once()
		f.payments.On("SessionPaid", mock.Anything, "cs_9").Return(true, nil).Once()
		f.guest.On("SaveCart", mock.Anything, "g1", mock.Anything).Return(nil).Once()
		f.notifier.On("SendOrderConfirmation", mock.Anything, mock.Anything).Return(nil).Once()
		f.pending.On("Delete", mock.Anything, "ord-9").Return(nil).Once()

		// Act
		result, err := f.svc.CompleteReturn(ctx, "ord-9", false, store)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateSuccess, result.State)
		assert.Empty(t, store.Lines())
		f.orders.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
	})

	t.Run("Unreadable Total Skips The Confirmation", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		pending := pendingFor("guest:g1")
		pending.GrandTotal = "not-a-number"
		f.pending.On("Load", mock.Anything, "ord-9").Return(pending, nil).Once()
		f.guest.On("SaveCart", mock.Anything, "g1", mock.Anything).Return(nil).Once()
		f.pending.On("Delete", mock.Anything, "ord-9").Return(nil).Once()

		// Act
		result, err := f.svc.CompleteReturn(ctx, "ord-9", true, nil)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.CheckoutStateSuccess, result.State)
		assert.Empty(t, store.Lines())
		f.notifier.AssertNotCalled(t, "SendOrderConfirmation", mock.Anything, mock.Anything)
	})

	t.Run("Failure - Payment Status Unavailable", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.pending.On("Load", mock.Anything, "ord-9").Return(pendingFor("guest:g1"), nil).Once()
		f.payments.On("SessionPaid", mock.Anything, "cs_9").Return(false, errors.New("stripe down")).Once()

		// Act
		_, err := f.svc.CompleteReturn(ctx, "ord-9", true, store)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeThirdPartyError))
		assert.Len(t, store.Lines(), 1)
	})

	t.Run("Failure - Order Belongs To Another Session", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
		f.pending.On("Load", mock.Anything, "ord-9").Return(pendingFor("guest:someone-else"), nil).Once()

		// Act
		_, err := f.svc.CompleteReturn(ctx, "ord-9", true, store)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
		assert.Len(t, store.Lines(), 1)
	})

	t.Run("Failure - Unknown Order", func(t *testing.T) {
		// Arrange
		f := setupCheckoutTest(t)
		f.pending.On("Load", mock.Anything, "ord-x").Return(nil, appErrors.NotFoundError("Pending checkout not found")).Once()

		// Act
		_, err := f.svc.CompleteReturn(ctx, "ord-x", true, nil)

		// Assert
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
	})
}

func TestCheckoutAbandon(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := setupCheckoutTest(t)
	store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
	view, err := f.svc.Begin(ctx, store)
	require.NoError(t, err)

	// Act
	err = f.svc.Abandon(ctx, view.ID, store)

	// Assert
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, view.ID, store)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
}

func TestCheckoutSweep(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := setupCheckoutTest(t)
	store := f.cart(t, checkoutLine("1", "p-1", 1, 100))
	view, err := f.svc.Begin(ctx, store)
	require.NoError(t, err)

	// Act
	kept := f.svc.Sweep(view.UpdatedAt.Add(-time.Minute))
	_, getErr := f.svc.Get(ctx, view.ID, store)
	evicted := f.svc.Sweep(view.UpdatedAt.Add(time.Minute))

	// Assert
	assert.Equal(t, 0, kept)
	require.NoError(t, getErr)
	assert.Equal(t, 1, evicted)
	_, err = f.svc.Get(ctx, view.ID, store)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeNotFound))
}

func TestStockViolations(t *testing.T) {
	max3 := 3
	lines := []models.CartLine{
		{ID: "a", ProductID: "gone", Quantity: 1},
		{ID: "b", ProductID: "inactive", Quantity: 1},
		{ID: "c", ProductID: "moq", Quantity: 1},
		{ID: "d", ProductID: "cap", Quantity: 4},
		{ID: "e", ProductID: "low", Quantity: 5},
		{ID: "f", ProductID: "ok", Quantity: 2},
	}
	snapshots := map[string]models.StockSnapshot{
		"inactive": {StockQuantity: 10, MinOrderQuantity: 1, IsActive: false},
		"moq":      {StockQuantity: 10, MinOrderQuantity: 2, IsActive: true},
		"cap":      {StockQuantity: 10, MinOrderQuantity: 1, MaxOrderQuantity: &max3, IsActive: true},
		"low":      {StockQuantity: 2, MinOrderQuantity: 1, IsActive: true},
		"ok":       {StockQuantity: 2, MinOrderQuantity: 1, IsActive: true},
	}

	violations := service.StockViolations(lines, snapshots)

	reasons := map[string]string{}
	for _, v := range violations {
		reasons[v.LineID] = v.Reason
	}
	assert.Equal(t, map[string]string{
		"a": "product is no longer available",
		"b": "product is not active",
		"c": "minimum order quantity is 2",
		"d": "maximum order quantity is 3",
		"e": "only 2 left in stock",
	}, reasons)
}
