package service

import (
	"html"
	"strings"

	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/aaravmahajanofficial/storefront-core/internal/pricing"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// LineNormalizer is the single adapter between loosely shaped product or line
// payloads and the canonical CartLine. Everything downstream consumes CartLine only.
type LineNormalizer struct {
	policy *bluemonday.Policy
	newID  func() string
}

func NewLineNormalizer() *LineNormalizer {
	return &LineNormalizer{
		policy: bluemonday.StrictPolicy(),
		newID:  uuid.NewString,
	}
}

// fieldSource looks fields up on the line first and then on its product.
type fieldSource struct {
	line    map[string]any
	product map[string]any
}

func (f fieldSource) value(keys ...string) any {
	if v := firstValue(f.line, keys...); v != nil {
		return v
	}

	return firstValue(f.product, keys...)
}

func (f fieldSource) str(keys ...string) string {
	if s := firstString(f.line, keys...); s != "" {
		return s
	}

	return firstString(f.product, keys...)
}

// Normalize builds a CartLine from raw. raw is either a bare product payload or a
// cart-line payload carrying the product under "product" or a "product_id" field.
// A non-nil stock snapshot overrides whatever availability the payload carries.
func (n *LineNormalizer) Normalize(raw models.RawLine, stock *models.StockSnapshot) (models.CartLine, error) {
	if raw == nil {
		return models.CartLine{}, errors.InvalidLineError("Cart line payload is empty")
	}

	line := map[string]any(raw)
	product, nested := asMap(line["product"])
	isLine := nested || firstString(line, "product_id", "productId") != ""
	if !nested {
		product = line
	}
	src := fieldSource{line: line, product: product}

	productID := firstString(line, "product_id", "productId")
	if productID == "" {
		productID = firstString(product, "product_id", "productId", "_id", "id")
	}
	if productID == "" {
		return models.CartLine{}, errors.InvalidLineError("Cart line has no product id")
	}

	lineID := firstString(line, "line_id", "cart_item_id")
	if lineID == "" && isLine {
		lineID = firstString(line, "id")
	}
	if lineID == "" {
		lineID = n.newID()
	}

	catalog := resolveSizes(product)

	var selected *string
	if size := firstString(line, "selected_size", "selectedSize", "size"); size != "" {
		selected = &size
	}

	base := pricing.Coerce(src.value("price", "base_price", "selling_price", "sale_price"))
	if selected != nil {
		if p, ok := catalog.prices[*selected]; ok {
			base = p
		}
	}
	if override, ok := pricing.Parse(firstValue(line, "override_price", "size_price", "unit_price")); ok && override.IsPositive() {
		base = override
	}

	mrp := pricing.Coerce(src.value("mrp", "compare_at_price", "regular_price"))
	taxRate := pricing.Coerce(src.value("gst_rate", "tax_rate", "gst"))
	taxMode := resolveTaxMode(src)

	quote := pricing.Quote(base, mrp, taxRate, taxMode)

	quantity := coerceInt(line["quantity"], 0)
	if quantity == 0 {
		quantity = coerceInt(line["qty"], 1)
	}
	if quantity < 1 {
		quantity = 1
	}

	out := models.CartLine{
		ID:                  lineID,
		ProductID:           productID,
		Name:                n.sanitize(src.str("name", "title")),
		Image:               resolveImage(product),
		Quantity:            quantity,
		UnitBasePrice:       base,
		MRP:                 quote.MRP,
		TaxRate:             taxRate,
		TaxMode:             taxMode,
		SelectedSize:        selected,
		AvailableSizes:      catalog.sizes,
		StockQuantity:       max(coerceInt(src.value("stock_quantity", "stock"), 0), 0),
		MinOrderQuantity:    max(coerceInt(src.value("min_order_quantity", "moq"), 1), 1),
		IsActive:            coerceBool(src.value("is_active", "active"), true),
		PaymentCapabilities: resolveCapabilities(src),
		Quote:               quote,
	}
	if image := firstString(line, "image"); image != "" && nested {
		out.Image = image
	}
	if maxQty := coerceInt(src.value("max_order_quantity", "max_qty"), 0); maxQty > 0 {
		out.MaxOrderQuantity = &maxQty
	}

	if stock != nil {
		applyStock(&out, *stock)
	}

	return out, nil
}

func (n *LineNormalizer) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(n.policy.Sanitize(s)))
}

func resolveTaxMode(src fieldSource) models.TaxMode {
	if mode := src.str("gst_mode", "tax_mode", "gst_type"); mode != "" {
		return models.ParseTaxMode(mode)
	}

	if coerceBool(src.value("price_includes_tax"), false) {
		return models.TaxModeInclusive
	}

	return models.TaxModeExclusive
}

// resolveCapabilities defaults each absent flag independently.
func resolveCapabilities(src fieldSource) models.PaymentCapabilities {
	caps := models.DefaultPaymentCapabilities()
	caps.AllowCOD = coerceBool(src.value("allow_cod"), caps.AllowCOD)
	caps.AllowCard = coerceBool(src.value("allow_card"), caps.AllowCard)
	caps.AllowUPI = coerceBool(src.value("allow_upi"), caps.AllowUPI)
	caps.AllowAdvance = coerceBool(src.value("allow_advance"), caps.AllowAdvance)

	caps.AdvanceType = models.ParseAdvanceType(src.str("advance_payment_type", "advance_type"))
	if value, ok := pricing.Parse(src.value("advance_payment_value", "advance_value")); ok && value.IsPositive() {
		caps.AdvanceValue = &value
	}

	return caps
}

func applyStock(line *models.CartLine, stock models.StockSnapshot) {
	line.StockQuantity = max(stock.StockQuantity, 0)
	line.MinOrderQuantity = max(stock.MinOrderQuantity, 1)
	line.MaxOrderQuantity = nil
	if stock.MaxOrderQuantity != nil && *stock.MaxOrderQuantity > 0 {
		m := *stock.MaxOrderQuantity
		line.MaxOrderQuantity = &m
	}
	line.IsActive = stock.IsActive
}
