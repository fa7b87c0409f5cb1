package service

import (
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ResolveEligibility intersects the payment methods allowed by every line.
//
// A line whose own capabilities permit UPI and nothing else forces the whole
// checkout to UPI only, whatever the other lines allow. The advance amount is
// not capped here; the checkout caps it at the grand total.
func ResolveEligibility(lines []models.CartLine) models.PaymentEligibility {
	if len(lines) == 0 {
		return models.PaymentEligibility{AdvanceAmount: decimal.Zero}
	}

	result := models.PaymentEligibility{
		AllowCOD:      true,
		AllowCard:     true,
		AllowUPI:      true,
		StrictAdvance: true,
	}

	upiOnly := false
	for _, line := range lines {
		caps := line.PaymentCapabilities
		result.AllowCOD = result.AllowCOD && caps.AllowCOD
		result.AllowCard = result.AllowCard && caps.AllowCard
		result.AllowUPI = result.AllowUPI && caps.AllowUPI
		result.StrictAdvance = result.StrictAdvance && caps.AllowAdvance
		result.AnyAdvance = result.AnyAdvance || caps.AllowAdvance

		if caps.UPIOnly() {
			upiOnly = true
		}
	}

	if upiOnly {
		return models.PaymentEligibility{
			AllowUPI:      true,
			UPIOnly:       true,
			AdvanceAmount: decimal.Zero,
		}
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(lineAdvance(line))
	}

	result.AdvanceAmount = models.RoundMoney(total)
	result.AdvanceEligible = (result.StrictAdvance || result.AnyAdvance) && result.AdvanceAmount.IsPositive()

	return result
}

// lineAdvance is the up-front amount one line contributes, already multiplied by quantity.
func lineAdvance(line models.CartLine) decimal.Decimal {
	caps := line.PaymentCapabilities
	if !caps.AllowAdvance || caps.AdvanceValue == nil || !caps.AdvanceValue.IsPositive() {
		return decimal.Zero
	}

	perUnit := *caps.AdvanceValue
	if caps.AdvanceType != nil && *caps.AdvanceType == models.AdvanceTypePercent {
		perUnit = line.Quote.FinalPrice.Mul(perUnit).Div(hundred)
	}

	return perUnit.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// WithCapabilities returns copies of lines carrying freshly fetched capabilities.
// Lines whose product is missing from caps keep what they had.
func WithCapabilities(lines []models.CartLine, caps map[string]models.PaymentCapabilities) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines))
	for _, line := range lines {
		clone := line.Clone()
		if fresh, ok := caps[line.ProductID]; ok {
			clone.PaymentCapabilities = fresh.Clone()
		}
		out = append(out, clone)
	}

	return out
}
