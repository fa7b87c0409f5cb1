// Package pricing derives tax-inclusive and tax-exclusive prices for a product.
package pricing

import (
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is pure: the same inputs always produce the same quote.
//
// Negative inputs count as zero and an mrp that is not positive falls back to
// basePrice, so the discount is zero unless a higher mrp is supplied. The tax
// rate is not clamped to [0, 100]. Every money field is rounded once, from the
// unrounded intermediates.
func Quote(basePrice, mrp, taxRate decimal.Decimal, mode models.TaxMode) models.PriceQuote {
	base := nonNegative(basePrice)
	rate := nonNegative(taxRate)

	listed := nonNegative(mrp)
	if !listed.IsPositive() {
		listed = base
	}

	var priceBeforeTax, taxAmount, finalPrice decimal.Decimal

	switch mode {
	case models.TaxModeInclusive:
		priceBeforeTax = base.Div(decimal.NewFromInt(1).Add(rate.Div(hundred)))
		taxAmount = base.Sub(priceBeforeTax)
		finalPrice = base
	default:
		priceBeforeTax = base
		taxAmount = base.Mul(rate).Div(hundred)
		finalPrice = priceBeforeTax.Add(taxAmount)
	}

	quote := models.PriceQuote{
		PriceBeforeTax: models.RoundMoney(priceBeforeTax),
		TaxAmount:      models.RoundMoney(taxAmount),
		FinalPrice:     models.RoundMoney(finalPrice),
		MRP:            models.RoundMoney(listed),
	}
	quote.DiscountPercent = DiscountPercent(quote.MRP, quote.FinalPrice)

	return quote
}

// DiscountPercent is round(100 * (mrp - final) / mrp) when mrp exceeds final, else 0.
func DiscountPercent(mrp, finalPrice decimal.Decimal) int {
	if !mrp.IsPositive() || !mrp.GreaterThan(finalPrice) {
		return 0
	}

	return int(mrp.Sub(finalPrice).Mul(hundred).Div(mrp).Round(0).IntPart())
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}

	return d
}
