package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type AdvanceType string

const (
	AdvanceTypePercent AdvanceType = "PERCENT"
	AdvanceTypeAmount  AdvanceType = "AMOUNT"
)

// ParseAdvanceType accepts the spellings product payloads use; unknown values yield nil.
func ParseAdvanceType(value string) *AdvanceType {
	var t AdvanceType

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "percent", "percentage", "pct", "%":
		t = AdvanceTypePercent
	case "amount", "fixed", "flat":
		t = AdvanceTypeAmount
	default:
		return nil
	}

	return &t
}

type PaymentCapabilities struct {
	AllowCOD     bool             `json:"allow_cod"`
	AllowCard    bool             `json:"allow_card"`
	AllowUPI     bool             `json:"allow_upi"`
	AllowAdvance bool             `json:"allow_advance"`
	AdvanceType  *AdvanceType     `json:"advance_payment_type,omitempty"`
	AdvanceValue *decimal.Decimal `json:"advance_payment_value,omitempty"`
}

// DefaultPaymentCapabilities applies when a product carries no payment flags at all.
func DefaultPaymentCapabilities() PaymentCapabilities {
	return PaymentCapabilities{AllowCOD: true, AllowCard: true, AllowUPI: true}
}

// UPIOnly reports whether UPI is the only method this product permits.
func (c PaymentCapabilities) UPIOnly() bool {
	return c.AllowUPI && !c.AllowCOD && !c.AllowCard && !c.AllowAdvance
}

func (c PaymentCapabilities) Clone() PaymentCapabilities {
	out := c
	if c.AdvanceType != nil {
		t := *c.AdvanceType
		out.AdvanceType = &t
	}
	if c.AdvanceValue != nil {
		v := *c.AdvanceValue
		out.AdvanceValue = &v
	}

	return out
}

type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "CARD"
	PaymentMethodUPI     PaymentMethod = "UPI"
	PaymentMethodCOD     PaymentMethod = "COD"
	PaymentMethodAdvance PaymentMethod = "ADVANCE"
)

// RequiresRedirect reports whether the method hands the buyer to a hosted payment page.
func (m PaymentMethod) RequiresRedirect() bool {
	return m == PaymentMethodCard || m == PaymentMethodUPI || m == PaymentMethodAdvance
}

// PaymentEligibility is the resolved method set for one checkout attempt.
// AdvanceEligible is the canonical advance signal; StrictAdvance and AnyAdvance
// are kept for callers that still distinguish the intersection from the union.
type PaymentEligibility struct {
	AllowCOD        bool            `json:"allow_cod"`
	AllowCard       bool            `json:"allow_card"`
	AllowUPI        bool            `json:"allow_upi"`
	AdvanceEligible bool            `json:"advance_eligible"`
	AdvanceAmount   decimal.Decimal `json:"advance_amount"`
	StrictAdvance   bool            `json:"strict_advance"`
	AnyAdvance      bool            `json:"any_advance"`
	UPIOnly         bool            `json:"upi_only"`
}

func (e PaymentEligibility) Allows(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCard:
		return e.AllowCard
	case PaymentMethodUPI:
		return e.AllowUPI
	case PaymentMethodCOD:
		return e.AllowCOD
	case PaymentMethodAdvance:
		return e.AdvanceEligible
	default:
		return false
	}
}

// Methods lists the eligible methods in display order: CARD, UPI, COD, ADVANCE.
func (e PaymentEligibility) Methods() []PaymentMethod {
	methods := make([]PaymentMethod, 0, 4)
	for _, m := range []PaymentMethod{PaymentMethodCard, PaymentMethodUPI, PaymentMethodCOD, PaymentMethodAdvance} {
		if e.Allows(m) {
			methods = append(methods, m)
		}
	}

	return methods
}

type PaymentSessionRequest struct {
	OrderID     string
	CheckoutID  string
	Method      PaymentMethod
	Amount      decimal.Decimal
	Currency    string
	Description string
	CustomerRef string
}

type PaymentSession struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}
