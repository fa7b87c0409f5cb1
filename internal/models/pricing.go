package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits every money value is rounded to.
const MoneyPlaces = 2

type TaxMode string

const (
	TaxModeInclusive TaxMode = "INCLUSIVE"
	TaxModeExclusive TaxMode = "EXCLUSIVE"
)

// ParseTaxMode maps loose payload spellings to a TaxMode, defaulting to EXCLUSIVE.
func ParseTaxMode(value string) TaxMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "inclusive", "incl", "included", "inc", "true":
		return TaxModeInclusive
	default:
		return TaxModeExclusive
	}
}

type PriceQuote struct {
	PriceBeforeTax  decimal.Decimal `json:"price_before_tax"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	FinalPrice      decimal.Decimal `json:"final_price"`
	MRP             decimal.Decimal `json:"mrp"`
	DiscountPercent int             `json:"discount_percent"`
}

// RoundMoney rounds half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// QuoteRequest carries the raw query values of a price quote; amounts are
// parsed leniently after validation.
type QuoteRequest struct {
	Price   string `validate:"required"`
	MRP     string
	TaxRate string
	TaxMode string `validate:"omitempty,oneof=INCLUSIVE EXCLUSIVE inclusive exclusive"`
}
