package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/metrics"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CheckoutDeps are the collaborators a checkout talks to. Notifier may be nil.
type CheckoutDeps struct {
	Capabilities CapabilitySource
	Stock        StockSource
	Shipping     ShippingQuoter
	Orders       OrderGateway
	Payments     PaymentRedirector
	Pending      PendingCheckoutStore
	Notifier     OrderNotifier
	Sessions     *SessionRegistry
}

type CheckoutService interface {
	Begin(ctx context.Context, store *CartStore) (*models.CheckoutView, error)
	Get(ctx context.Context, id uuid.UUID, store *CartStore) (*models.CheckoutView, error)
	SetAddress(ctx context.Context, id uuid.UUID, store *CartStore, addr *models.Address) (*models.CheckoutView, error)
	ChoosePayment(ctx context.Context, id uuid.UUID, store *CartStore, method models.PaymentMethod) (*models.CheckoutView, error)
	Review(ctx context.Context, id uuid.UUID, store *CartStore) (*models.CheckoutView, error)
	Submit(ctx context.Context, id uuid.UUID, store *CartStore) (*models.SubmitResult, error)
	CompleteReturn(ctx context.Context, orderID string, succeeded bool, store *CartStore) (*models.SubmitResult, error)
	Abandon(ctx context.Context, id uuid.UUID, store *CartStore) error
	Sweep(cutoff time.Time) int
}

type checkoutSession struct {
	mu          sync.Mutex
	view        models.CheckoutView
	store       *CartStore
	shippingFee decimal.Decimal
}

type checkoutService struct {
	deps     CheckoutDeps
	currency string
	validate *validator.Validate
	policy   *bluemonday.Policy
	tracer   trace.Tracer
	now      func() time.Time

	mu        sync.Mutex
	checkouts map[uuid.UUID]*checkoutSession
}

func NewCheckoutService(deps CheckoutDeps, currency string) CheckoutService {
	return &checkoutService{
		deps:      deps,
		currency:  strings.ToLower(currency),
		validate:  validator.New(),
		policy:    bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("storefront/checkout"),
		now:       time.Now,
		checkouts: make(map[uuid.UUID]*checkoutSession),
	}
}

// Begin snapshots the selected lines, or every line when nothing is selected.
// Later cart edits do not change the snapshot.
func (s *checkoutService) Begin(ctx context.Context, store *CartStore) (*models.CheckoutView, error) {
	if store.Expired() {
		return nil, sessionExpired()
	}

	lines := store.SelectedLines()
	if len(lines) == 0 {
		lines = store.Lines()
	}
	if len(lines) == 0 {
		return nil, errors.ValidationError("Cart is empty")
	}

	eligibility := ResolveEligibility(lines)
	co := &checkoutSession{
		store:       store,
		shippingFee: decimal.Zero,
		view: models.CheckoutView{
			ID:        uuid.New(),
			State:     models.CheckoutStateCollectAddress,
			Selection: models.CheckoutSelection{Lines: lines, Eligibility: eligibility},
			Methods:   eligibility.Methods(),
			UpdatedAt: s.now(),
		},
	}
	co.view.Review = s.review(co)

	s.mu.Lock()
	s.checkouts[co.view.ID] = co
	s.mu.Unlock()

	middleware.LoggerFromContext(ctx).Info("Checkout started",
		slog.String("checkout_id", co.view.ID.String()),
		slog.String("session", store.Key()),
		slog.Int("lines", len(lines)),
	)
	metrics.RecordCheckout("started")

	return co.snapshot(), nil
}

func (s *checkoutService) lookup(id uuid.UUID, store *CartStore) (*checkoutSession, error) {
	s.mu.Lock()
	co, ok := s.checkouts[id]
	s.mu.Unlock()

	if !ok || (store != nil && co.store.Key() != store.Key()) {
		return nil, errors.NotFoundError("Checkout not found")
	}

	return co, nil
}

func (s *checkoutService) Get(_ context.Context, id uuid.UUID, store *CartStore) (*models.CheckoutView, error) {
	co, err := s.lookup(id, store)
	if err != nil {
		return nil, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	return co.snapshot(), nil
}

// SetAddress records the delivery address, prices shipping and moves on to
// payment selection. The address may be changed again until submission.
func (s *checkoutService) SetAddress(ctx context.Context, id uuid.UUID, store *CartStore, addr *models.Address) (*models.CheckoutView, error) {
	co, err := s.lookup(id, store)
	if err != nil {
		return nil, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	if err := co.requireState(models.CheckoutStateCollectAddress, models.CheckoutStateSelectPayment, models.CheckoutStateReview); err != nil {
		return nil, err
	}

	clean := s.sanitizeAddress(addr)
	if err := s.validateAddress(clean); err != nil {
		return nil, err
	}

	fee, err := s.deps.Shipping.Quote(ctx, &models.ShippingQuoteRequest{
		Address:  *clean,
		Lines:    orderLines(co.view.Selection.Lines),
		Subtotal: models.ComputeTotals(co.view.Selection.Lines).Subtotal.StringFixed(models.MoneyPlaces),
	})
	if err != nil {
		return nil, asTransient(err, "Failed to fetch shipping fee")
	}

	co.view.Address = clean
	co.shippingFee = models.RoundMoney(decimal.Max(fee, decimal.Zero))

	if err := s.enterSelectPayment(ctx, co); err != nil {
		return nil, err
	}

	return co.snapshot(), nil
}

// ChoosePayment re-resolves eligibility and moves to review with method.
func (s *checkoutService) ChoosePayment(ctx context.Context, id uuid.UUID, store *CartStore, method models.PaymentMethod) (*models.CheckoutView, error) {
	co, err := s.lookup(id, store)
	if err != nil {
		return nil, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	if err := co.requireState(models.CheckoutStateSelectPayment, models.CheckoutStateReview); err != nil {
		return nil, err
	}

	if err := s.enterSelectPayment(ctx, co); err != nil {
		return nil, err
	}

	if !co.view.Selection.Eligibility.Allows(method) {
		return nil, errors.CapabilityConflictError(fmt.Sprintf("Payment method %s is not available for the selected items", method)).
			WithMeta(co.view.Methods)
	}

	co.view.Method = method
	co.view.State = models.CheckoutStateReview
	co.view.Review = s.review(co)
	co.touch(s.now())

	return co.snapshot(), nil
}

func (s *checkoutService) Review(_ context.Context, id uuid.UUID, store *CartStore) (*models.CheckoutView, error) {
	co, err := s.lookup(id, store)
	if err != nil {
		return nil, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	if err := co.requireState(models.CheckoutStateReview); err != nil {
		return nil, err
	}

	co.view.Review = s.review(co)

	return co.snapshot(), nil
}

// Submit validates eligibility and stock against fresh data, places the order
// and either completes it (COD) or hands back a hosted payment page.
func (s *checkoutService) Submit(ctx context.Context, id uuid.UUID, store *CartStore) (*models.SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.submit", trace.WithAttributes(attribute.String("checkout.id", id.String())))
	defer span.End()

	logger := middleware.LoggerFromContext(ctx).With(slog.String("checkout_id", id.String()))

	co, err := s.lookup(id, store)
	if err != nil {
		return nil, err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	if err := co.requireState(models.CheckoutStateReview); err != nil {
		return nil, err
	}

	previous := co.view.Method
	if err := s.enterSelectPayment(ctx, co); err != nil {
		return nil, err
	}
	if co.view.Method != previous {
		co.view.State = models.CheckoutStateReview
		co.view.Review = s.review(co)
		return nil, errors.CapabilityConflictError(fmt.Sprintf("Payment method %s is no longer available, %s was selected instead", previous, co.view.Method)).
			WithMeta(co.snapshot())
	}
	co.view.State = models.CheckoutStateReview

	violations, err := s.checkStock(ctx, co.view.Selection.Lines)
	if err != nil {
		return nil, err
	}
	co.view.Violations = violations
	if len(violations) > 0 {
		details := make([]string, 0, len(violations))
		for _, v := range violations {
			details = append(details, fmt.Sprintf("%s: %s", v.LineID, v.Reason))
		}
		logger.Warn("Checkout blocked by stock", slog.Int("violations", len(violations)))
		metrics.RecordStockViolations(len(violations))
		span.SetStatus(codes.Error, "stock violation")

		return nil, errors.StockViolationError("Some items cannot be ordered in the requested quantity").
			WithDetails(details...).
			WithMeta(violations)
	}

	co.view.State = models.CheckoutStateSubmitting
	co.view.Review = s.review(co)
	co.touch(s.now())

	result, err := s.deps.Orders.Submit(ctx, s.orderRequest(co))
	if err != nil {
		s.fail(co, span, "order submission failed")
		logger.Error("Order submission failed", slog.String("error", err.Error()))
		return nil, asTransient(err, "Failed to submit order")
	}
	co.view.OrderID = result.OrderID
	span.SetAttributes(attribute.String("order.id", result.OrderID), attribute.String("payment.method", string(co.view.Method)))

	if !co.view.Method.RequiresRedirect() {
		// The registry may have rebuilt the caller's store since Begin.
		owner := store
		if owner == nil {
			owner = co.store
		}
		s.removeOrdered(ctx, owner, co.view.Selection.Identities())
		co.view.State = models.CheckoutStateSuccess
		co.touch(s.now())
		s.notify(ctx, co.view.OrderID, co.view.Address, co.view.Review.GrandTotal, co.view.Method)
		s.discard(co.view.ID)
		metrics.RecordCheckout("success")
		logger.Info("Order placed", slog.String("order_id", result.OrderID), slog.String("payment_method", string(co.view.Method)))

		return &models.SubmitResult{OrderID: result.OrderID, State: models.CheckoutStateSuccess}, nil
	}

	session, err := s.deps.Payments.CreateSession(ctx, &models.PaymentSessionRequest{
		OrderID:     result.OrderID,
		CheckoutID:  co.view.ID.String(),
		Method:      co.view.Method,
		Amount:      co.view.Review.PayableNow,
		Currency:    s.currency,
		Description: fmt.Sprintf("Order %s", result.OrderID),
		CustomerRef: co.store.Key(),
	})
	if err != nil {
		s.cancelOrder(ctx, result.OrderID)
		s.fail(co, span, "payment session failed")
		return nil, asThirdParty(err, "Failed to start payment")
	}

	pending := &models.PendingCheckout{
		OrderID:          result.OrderID,
		CheckoutID:       co.view.ID,
		SessionKey:       co.store.Key(),
		PaymentSessionID: session.ID,
		Method:           co.view.Method,
		Lines:            co.view.Selection.Identities(),
		GrandTotal:       co.view.Review.GrandTotal.StringFixed(models.MoneyPlaces),
		CreatedAt:        s.now(),
	}
	if co.view.Address != nil {
		pending.Email = co.view.Address.Email
	}

	// The record must exist before the buyer leaves, or the return flow cannot
	// find which lines to remove.
	if err := s.deps.Pending.Save(ctx, pending); err != nil {
		if expireErr := s.deps.Payments.ExpireSession(ctx, session.ID); expireErr != nil {
			logger.Warn("Failed to expire payment session", slog.String("error", expireErr.Error()))
		}
		s.cancelOrder(ctx, result.OrderID)
		s.fail(co, span, "pending checkout not persisted")
		return nil, asTransient(err, "Failed to record pending checkout")
	}

	co.view.RedirectURL = session.RedirectURL
	co.touch(s.now())
	metrics.RecordCheckout("redirected")
	logger.Info("Awaiting hosted payment", slog.String("order_id", result.OrderID), slog.String("payment_session", session.ID))

	return &models.SubmitResult{OrderID: result.OrderID, State: models.CheckoutStateSubmitting, RedirectURL: session.RedirectURL}, nil
}

// CompleteReturn finishes a redirected checkout. On success only the ordered
// lines leave the cart; on cancel the order is cancelled. The pending record is
// removed either way.
//
// store is the caller's own cart when known. Without it the owning session is
// looked up; guest carts can always be reached, signed-in carts only while live.
//
// A nil store means the outcome came from the signed provider webhook. An
// outcome reported by the buyer's browser is checked with the provider first;
// a claimed success that is not paid yet leaves the checkout pending for the
// webhook to settle.
func (s *checkoutService) CompleteReturn(ctx context.Context, orderID string, succeeded bool, store *CartStore) (*models.SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.complete_return", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Bool("payment.succeeded", succeeded),
	))
	defer span.End()

	logger := middleware.LoggerFromContext(ctx).With(slog.String("order_id", orderID))

	pending, err := s.deps.Pending.Load(ctx, orderID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, err
		}
		return nil, asTransient(err, "Failed to load pending checkout")
	}

	if store != nil && store.Key() != pending.SessionKey {
		return nil, errors.NotFoundError("Pending checkout not found")
	}

	if store != nil {
		paid, err := s.deps.Payments.SessionPaid(ctx, pending.PaymentSessionID)
		if err != nil {
			span.SetStatus(codes.Error, "payment status unavailable")
			return nil, asThirdParty(err, "Failed to confirm payment")
		}
		if !paid && succeeded {
			logger.Warn("Return reported success before payment was confirmed", slog.String("payment_session", pending.PaymentSessionID))
			return &models.SubmitResult{OrderID: orderID, State: models.CheckoutStateSubmitting}, nil
		}
		succeeded = paid
		span.SetAttributes(attribute.Bool("payment.confirmed", paid))
	}

	state := models.CheckoutStateFailed
	if succeeded {
		state = models.CheckoutStateSuccess
		owner := store
		if owner == nil {
			owner = s.ownerStore(ctx, pending.SessionKey)
		}
		if owner != nil {
			s.removeOrdered(ctx, owner, pending.Lines)
		} else {
			logger.Info("Cart owner not reachable, ordered lines stay until the buyer returns", slog.String("session", pending.SessionKey))
		}

		var addr *models.Address
		if pending.Email != "" {
			addr = &models.Address{Email: pending.Email}
		}
		if total, err := decimal.NewFromString(pending.GrandTotal); err != nil {
			logger.Error("Pending checkout has an unreadable total, confirmation not sent",
				slog.String("grand_total", pending.GrandTotal),
				slog.String("error", err.Error()),
			)
		} else {
			s.notify(ctx, orderID, addr, total, pending.Method)
		}
		metrics.RecordCheckout("success")
	} else {
		s.cancelOrder(ctx, orderID)
		if err := s.deps.Payments.ExpireSession(ctx, pending.PaymentSessionID); err != nil {
			logger.Warn("Failed to expire payment session", slog.String("error", err.Error()))
		}
		span.SetStatus(codes.Error, "payment cancelled")
		metrics.RecordCheckout("cancelled")
	}

	if err := s.deps.Pending.Delete(ctx, orderID); err != nil {
		logger.Warn("Failed to delete pending checkout", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	co, ok := s.checkouts[pending.CheckoutID]
	delete(s.checkouts, pending.CheckoutID)
	s.mu.Unlock()
	if ok {
		co.mu.Lock()
		co.view.State = state
		co.touch(s.now())
		co.mu.Unlock()
	}

	logger.Info("Hosted payment completed", slog.String("state", string(state)))

	return &models.SubmitResult{OrderID: orderID, State: state}, nil
}

func (s *checkoutService) Abandon(ctx context.Context, id uuid.UUID, store *CartStore) error {
	co, err := s.lookup(id, store)
	if err != nil {
		return err
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	if co.view.State == models.CheckoutStateSubmitting && co.view.RedirectURL != "" {
		return errors.InvalidStateError("Checkout is awaiting payment")
	}

	s.discard(id)
	metrics.RecordCheckout("abandoned")
	middleware.LoggerFromContext(ctx).Info("Checkout abandoned", slog.String("checkout_id", id.String()))

	return nil
}

// enterSelectPayment refreshes capabilities and resolves the method set. A
// chosen method that is no longer allowed is replaced by the first one that is,
// and a notice is recorded.
func (s *checkoutService) enterSelectPayment(ctx context.Context, co *checkoutSession) error {
	caps, err := s.deps.Capabilities.FetchCapabilities(ctx, co.view.Selection.ProductIDs())
	if err != nil {
		return asTransient(err, "Failed to fetch payment options")
	}

	lines := WithCapabilities(co.view.Selection.Lines, caps)
	eligibility := ResolveEligibility(lines)
	co.view.Selection = models.CheckoutSelection{Lines: lines, Eligibility: eligibility}
	co.view.Methods = eligibility.Methods()
	co.view.State = models.CheckoutStateSelectPayment
	co.touch(s.now())

	if len(co.view.Methods) == 0 {
		co.view.Method = ""
		return errors.ValidationError("No payment method is available for the selected items")
	}

	switch {
	case co.view.Method == "":
		co.view.Method = co.view.Methods[0]
	case !eligibility.Allows(co.view.Method):
		conflict := errors.CapabilityConflictError(fmt.Sprintf("%s is no longer available for these items, switched to %s", co.view.Method, co.view.Methods[0]))
		co.view.Notices = append(co.view.Notices, conflict.Message)
		co.view.Method = co.view.Methods[0]
		middleware.LoggerFromContext(ctx).Info("Payment method reselected", slog.String("checkout_id", co.view.ID.String()), slog.String("method", string(co.view.Method)))
	}

	co.view.Review = s.review(co)

	return nil
}

// checkStock validates each line against freshly fetched stock.
func (s *checkoutService) checkStock(ctx context.Context, lines []models.CartLine) ([]models.StockViolation, error) {
	ids := models.CheckoutSelection{Lines: lines}.ProductIDs()
	snapshots, err := s.deps.Stock.FetchStock(ctx, ids)
	if err != nil {
		return nil, asTransient(err, "Failed to check stock")
	}

	return StockViolations(lines, snapshots), nil
}

// StockViolations lists every line that cannot be ordered as requested.
func StockViolations(lines []models.CartLine, snapshots map[string]models.StockSnapshot) []models.StockViolation {
	violations := []models.StockViolation{}
	for _, line := range lines {
		violation := models.StockViolation{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Requested: line.Quantity,
		}
		if line.SelectedSize != nil {
			violation.Size = *line.SelectedSize
		}

		snapshot, ok := snapshots[line.ProductID]
		switch {
		case !ok:
			violation.Reason = "product is no longer available"
		case !snapshot.IsActive:
			violation.Reason = "product is not active"
			violation.Available = snapshot.StockQuantity
		case line.Quantity < max(snapshot.MinOrderQuantity, 1):
			violation.Reason = fmt.Sprintf("minimum order quantity is %d", max(snapshot.MinOrderQuantity, 1))
			violation.Available = snapshot.StockQuantity
		case snapshot.MaxOrderQuantity != nil && *snapshot.MaxOrderQuantity > 0 && line.Quantity > *snapshot.MaxOrderQuantity:
			violation.Reason = fmt.Sprintf("maximum order quantity is %d", *snapshot.MaxOrderQuantity)
			violation.Available = snapshot.StockQuantity
		case line.Quantity > snapshot.StockQuantity:
			violation.Reason = fmt.Sprintf("only %d left in stock", max(snapshot.StockQuantity, 0))
			violation.Available = max(snapshot.StockQuantity, 0)
		default:
			continue
		}

		violations = append(violations, violation)
	}

	return violations
}

// review totals the snapshot. The advance is capped at the grand total.
func (s *checkoutService) review(co *checkoutSession) models.CheckoutReview {
	totals := models.ComputeTotals(co.view.Selection.Lines)
	grand := models.RoundMoney(totals.Subtotal.Add(co.shippingFee))

	advance := decimal.Zero
	if co.view.Selection.Eligibility.AdvanceEligible {
		advance = decimal.Min(co.view.Selection.Eligibility.AdvanceAmount, grand)
	}

	var now decimal.Decimal
	switch co.view.Method {
	case models.PaymentMethodCOD:
		now = decimal.Zero
	case models.PaymentMethodAdvance:
		now = advance
	default:
		now = grand
	}

	return models.CheckoutReview{
		Subtotal:      totals.Subtotal,
		TaxTotal:      totals.TaxTotal,
		ShippingFee:   co.shippingFee,
		GrandTotal:    grand,
		AdvanceAmount: advance,
		PayableNow:    now,
		PayableLater:  grand.Sub(now),
	}
}

func (s *checkoutService) orderRequest(co *checkoutSession) *models.OrderRequest {
	req := &models.OrderRequest{
		CheckoutID:    co.view.ID,
		SessionKey:    co.store.Key(),
		Lines:         orderLines(co.view.Selection.Lines),
		PaymentMethod: co.view.Method,
		Subtotal:      co.view.Review.Subtotal,
		ShippingFee:   co.view.Review.ShippingFee,
		GrandTotal:    co.view.Review.GrandTotal,
		AdvanceAmount: decimal.Zero,
	}
	if co.view.Method == models.PaymentMethodAdvance {
		req.AdvanceAmount = co.view.Review.AdvanceAmount
	}
	if co.view.Address != nil {
		req.Address = *co.view.Address
	}

	return req
}

func orderLines(lines []models.CartLine) []models.OrderLine {
	out := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		ol := models.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.Quote.FinalPrice,
			TaxAmount: models.RoundMoney(line.Quote.TaxAmount.Mul(qty)),
			LineTotal: line.LineTotal(),
		}
		if line.SelectedSize != nil {
			ol.Size = *line.SelectedSize
		}
		out = append(out, ol)
	}

	return out
}

// removeOrdered clears the ordered lines from the cart. The order already
// exists, so a failure here is logged and not returned.
func (s *checkoutService) removeOrdered(ctx context.Context, store *CartStore, identities []models.LineIdentity) {
	if err := store.RemoveSpecific(ctx, identities); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to remove ordered lines from cart",
			slog.String("session", store.Key()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *checkoutService) ownerStore(ctx context.Context, sessionKey string) *CartStore {
	if store, ok := s.deps.Sessions.Lookup(sessionKey); ok {
		return store
	}

	if guestID, ok := strings.CutPrefix(sessionKey, "guest:"); ok {
		store, err := s.deps.Sessions.Guest(ctx, guestID)
		if err == nil {
			return store
		}
		middleware.LoggerFromContext(ctx).Warn("Failed to load guest cart", slog.String("error", err.Error()))
	}

	return nil
}

func (s *checkoutService) cancelOrder(ctx context.Context, orderID string) {
	if err := s.deps.Orders.Cancel(ctx, orderID); err != nil {
		middleware.LoggerFromContext(ctx).Error("Failed to cancel order", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
}

func (s *checkoutService) notify(ctx context.Context, orderID string, addr *models.Address, total decimal.Decimal, method models.PaymentMethod) {
	if s.deps.Notifier == nil || addr == nil || addr.Email == "" {
		return
	}

	err := s.deps.Notifier.SendOrderConfirmation(ctx, &models.OrderConfirmation{
		OrderID:    orderID,
		To:         addr.Email,
		Name:       addr.Name,
		GrandTotal: total.StringFixed(models.MoneyPlaces),
		Method:     string(method),
	})
	if err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to send order confirmation", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
}

func (s *checkoutService) fail(co *checkoutSession, span trace.Span, reason string) {
	co.view.State = models.CheckoutStateFailed
	co.touch(s.now())
	span.SetStatus(codes.Error, reason)
	metrics.RecordCheckout("failed")
	s.discard(co.view.ID)
}

// Sweep drops checkouts untouched since cutoff. Checkouts busy in another call
// are left for the next sweep. A redirected checkout is still settled from its
// pending record after being dropped here.
func (s *checkoutService) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, co := range s.checkouts {
		if !co.mu.TryLock() {
			continue
		}
		idle := co.view.UpdatedAt.Before(cutoff)
		co.mu.Unlock()

		if idle {
			delete(s.checkouts, id)
			evicted++
		}
	}

	return evicted
}

func (s *checkoutService) discard(id uuid.UUID) {
	s.mu.Lock()
	delete(s.checkouts, id)
	s.mu.Unlock()
}

func (s *checkoutService) sanitizeAddress(addr *models.Address) *models.Address {
	if addr == nil {
		return &models.Address{}
	}

	clean := func(v string) string {
		return strings.TrimSpace(s.policy.Sanitize(v))
	}

	return &models.Address{
		Name:       clean(addr.Name),
		Phone:      clean(addr.Phone),
		Email:      clean(addr.Email),
		Street:     clean(addr.Street),
		City:       clean(addr.City),
		State:      clean(addr.State),
		PostalCode: clean(addr.PostalCode),
		Country:    strings.ToUpper(clean(addr.Country)),
	}
}

func (s *checkoutService) validateAddress(addr *models.Address) error {
	err := s.validate.Struct(addr)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ValidationError("Invalid address").WithError(err)
	}

	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}

	return errors.ValidationError("Invalid address").WithDetails(details...).WithError(err)
}

func (co *checkoutSession) requireState(allowed ...models.CheckoutState) error {
	for _, state := range allowed {
		if co.view.State == state {
			return nil
		}
	}

	return errors.InvalidStateError(fmt.Sprintf("Checkout is in state %s", co.view.State))
}

func (co *checkoutSession) touch(now time.Time) {
	co.view.UpdatedAt = now
}

// snapshot copies the view so callers never share slices with the session.
func (co *checkoutSession) snapshot() *models.CheckoutView {
	view := co.view
	view.Selection.Lines = cloneLines(co.view.Selection.Lines)
	view.Methods = append([]models.PaymentMethod(nil), co.view.Methods...)
	view.Notices = append([]string(nil), co.view.Notices...)
	view.Violations = append([]models.StockViolation(nil), co.view.Violations...)
	if co.view.Address != nil {
		addr := *co.view.Address
		view.Address = &addr
	}

	return &view
}

// asTransient keeps AppErrors from collaborators and classifies the rest as
// retryable network failures.
func asTransient(err error, message string) error {
	if _, ok := errors.IsAppError(err); ok {
		return err
	}

	return errors.TransientNetworkError(message).WithError(err)
}

func asThirdParty(err error, message string) error {
	if _, ok := errors.IsAppError(err); ok {
		return err
	}

	return errors.ThirdPartyError(message).WithError(err)
}
