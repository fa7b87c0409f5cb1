package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CheckoutState string

const (
	CheckoutStateCollectAddress CheckoutState = "COLLECT_ADDRESS"
	CheckoutStateSelectPayment  CheckoutState = "SELECT_PAYMENT"
	CheckoutStateReview         CheckoutState = "REVIEW"
	CheckoutStateSubmitting     CheckoutState = "SUBMITTING"
	CheckoutStateSuccess        CheckoutState = "SUCCESS"
	CheckoutStateFailed         CheckoutState = "FAILED"
)

func (s CheckoutState) Terminal() bool {
	return s == CheckoutStateSuccess || s == CheckoutStateFailed
}

type Address struct {
	Name       string `json:"name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,min=7,max=20"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Street     string `json:"street" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,min=4,max=10"`
	Country    string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// CheckoutSelection is a snapshot of the lines chosen for one checkout attempt.
type CheckoutSelection struct {
	Lines       []CartLine         `json:"lines"`
	Eligibility PaymentEligibility `json:"eligibility"`
}

func (s CheckoutSelection) Identities() []LineIdentity {
	ids := make([]LineIdentity, 0, len(s.Lines))
	for _, line := range s.Lines {
		ids = append(ids, line.Identity())
	}

	return ids
}

func (s CheckoutSelection) ProductIDs() []string {
	seen := make(map[string]struct{}, len(s.Lines))
	ids := make([]string, 0, len(s.Lines))
	for _, line := range s.Lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	return ids
}

type CheckoutReview struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	AdvanceAmount decimal.Decimal `json:"advance_amount"`
	PayableNow    decimal.Decimal `json:"payable_now"`
	PayableLater  decimal.Decimal `json:"payable_later"`
}

// CheckoutView is the externally visible state of a checkout.
type CheckoutView struct {
	ID          uuid.UUID         `json:"id"`
	State       CheckoutState     `json:"state"`
	Selection   CheckoutSelection `json:"selection"`
	Address     *Address          `json:"address,omitempty"`
	Method      PaymentMethod     `json:"payment_method,omitempty"`
	Methods     []PaymentMethod   `json:"available_methods"`
	Review      CheckoutReview    `json:"review"`
	Notices     []string          `json:"notices,omitempty"`
	OrderID     string            `json:"order_id,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Violations  []StockViolation  `json:"violations,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type StockViolation struct {
	LineID    string `json:"line_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Size      string `json:"size,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderRequest struct {
	CheckoutID    uuid.UUID       `json:"checkout_id"`
	SessionKey    string          `json:"session_key"`
	Lines         []OrderLine     `json:"lines"`
	Address       Address         `json:"address"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	AdvanceAmount decimal.Decimal `json:"advance_amount"`
}

type OrderResult struct {
	OrderID string `json:"order_id"`
}

type SubmitResult struct {
	OrderID     string        `json:"order_id"`
	State       CheckoutState `json:"state"`
	RedirectURL string        `json:"redirect_url,omitempty"`
}

// PendingCheckout is persisted before a buyer is redirected to a hosted payment
// page so the return flow can find which lines to remove or which order to cancel.
type PendingCheckout struct {
	OrderID          string         `json:"order_id"`
	CheckoutID       uuid.UUID      `json:"checkout_id"`
	SessionKey       string         `json:"session_key"`
	PaymentSessionID string         `json:"payment_session_id"`
	Method           PaymentMethod  `json:"payment_method"`
	Lines            []LineIdentity `json:"lines"`
	Email            string         `json:"email,omitempty"`
	GrandTotal       string         `json:"grand_total"`
	CreatedAt        time.Time      `json:"created_at"`
}

type ShippingQuoteRequest struct {
	Address  Address     `json:"address"`
	Lines    []OrderLine `json:"lines"`
	Subtotal string      `json:"subtotal"`
}

type ChoosePaymentRequest struct {
	Method PaymentMethod `json:"method" validate:"required,oneof=CARD UPI COD ADVANCE"`
}

type ReturnRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=success cancel"`
}

type OrderConfirmation struct {
	OrderID    string `json:"order_id"`
	To         string `json:"to"`
	Name       string `json:"name"`
	GrandTotal string `json:"grand_total"`
	Method     string `json:"method"`
}
