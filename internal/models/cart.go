package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawLine is an untyped product or cart-line payload as decoded from JSON.
type RawLine map[string]any

type CartLine struct {
	ID                  string              `json:"id"`
	ProductID           string              `json:"product_id"`
	Name                string              `json:"name"`
	Image               string              `json:"image,omitempty"`
	Quantity            int                 `json:"quantity"`
	UnitBasePrice       decimal.Decimal     `json:"unit_base_price"`
	MRP                 decimal.Decimal     `json:"mrp"`
	TaxRate             decimal.Decimal     `json:"tax_rate"`
	TaxMode             TaxMode             `json:"tax_mode"`
	SelectedSize        *string             `json:"selected_size,omitempty"`
	AvailableSizes      []string            `json:"available_sizes"`
	StockQuantity       int                 `json:"stock_quantity"`
	MinOrderQuantity    int                 `json:"min_order_quantity"`
	MaxOrderQuantity    *int                `json:"max_order_quantity,omitempty"`
	IsActive            bool                `json:"is_active"`
	PaymentCapabilities PaymentCapabilities `json:"payment_capabilities"`
	Quote               PriceQuote          `json:"quote"`
}

// LineIdentity is the guest-cart identity key: product plus selected size.
type LineIdentity struct {
	ProductID string `json:"product_id" validate:"required"`
	Size      string `json:"size,omitempty"`
}

func (l CartLine) Identity() LineIdentity {
	id := LineIdentity{ProductID: l.ProductID}
	if l.SelectedSize != nil {
		id.Size = *l.SelectedSize
	}

	return id
}

// LineTotal is the tax-inclusive amount payable for the whole line.
func (l CartLine) LineTotal() decimal.Decimal {
	return RoundMoney(l.Quote.FinalPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

func (l CartLine) Clone() CartLine {
	out := l
	if l.SelectedSize != nil {
		s := *l.SelectedSize
		out.SelectedSize = &s
	}
	if l.MaxOrderQuantity != nil {
		m := *l.MaxOrderQuantity
		out.MaxOrderQuantity = &m
	}
	out.AvailableSizes = append([]string(nil), l.AvailableSizes...)
	out.PaymentCapabilities = l.PaymentCapabilities.Clone()

	return out
}

// AsRaw renders the line back into the payload shape the normalizer accepts.
func (l CartLine) AsRaw() RawLine {
	raw := RawLine{
		"id":                 l.ID,
		"product_id":         l.ProductID,
		"name":               l.Name,
		"quantity":           l.Quantity,
		"price":              l.UnitBasePrice.String(),
		"mrp":                l.MRP.String(),
		"gst_rate":           l.TaxRate.String(),
		"gst_mode":           string(l.TaxMode),
		"sizes":              append([]string(nil), l.AvailableSizes...),
		"stock_quantity":     l.StockQuantity,
		"min_order_quantity": l.MinOrderQuantity,
		"is_active":          l.IsActive,
		"allow_cod":          l.PaymentCapabilities.AllowCOD,
		"allow_card":         l.PaymentCapabilities.AllowCard,
		"allow_upi":          l.PaymentCapabilities.AllowUPI,
		"allow_advance":      l.PaymentCapabilities.AllowAdvance,
	}
	if l.Image != "" {
		raw["image"] = l.Image
	}
	if l.SelectedSize != nil {
		raw["selected_size"] = *l.SelectedSize
	}
	if l.MaxOrderQuantity != nil {
		raw["max_order_quantity"] = *l.MaxOrderQuantity
	}
	if l.PaymentCapabilities.AdvanceType != nil {
		raw["advance_payment_type"] = string(*l.PaymentCapabilities.AdvanceType)
	}
	if l.PaymentCapabilities.AdvanceValue != nil {
		raw["advance_payment_value"] = l.PaymentCapabilities.AdvanceValue.String()
	}

	return raw
}

type CartTotals struct {
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxTotal  decimal.Decimal `json:"tax_total"`
	MRPTotal  decimal.Decimal `json:"mrp_total"`
	Savings   decimal.Decimal `json:"savings"`
}

// ComputeTotals sums per-line amounts that are each rounded once.
func ComputeTotals(lines []CartLine) CartTotals {
	totals := CartTotals{Subtotal: decimal.Zero, TaxTotal: decimal.Zero, MRPTotal: decimal.Zero}

	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		totals.ItemCount += line.Quantity
		totals.Subtotal = totals.Subtotal.Add(line.LineTotal())
		totals.TaxTotal = totals.TaxTotal.Add(RoundMoney(line.Quote.TaxAmount.Mul(qty)))
		totals.MRPTotal = totals.MRPTotal.Add(RoundMoney(line.Quote.MRP.Mul(qty)))
	}

	totals.Savings = decimal.Max(totals.MRPTotal.Sub(totals.Subtotal), decimal.Zero)

	return totals
}

type Cart struct {
	SessionKey    string     `json:"session_key"`
	Authenticated bool       `json:"authenticated"`
	Lines         []CartLine `json:"lines"`
	Selected      []string   `json:"selected"`
	Totals        CartTotals `json:"totals"`
}

// StoredLine is one line of a server-persisted cart.
type StoredLine struct {
	ID        uuid.UUID `json:"id"`
	ProductID string    `json:"product_id"`
	Size      *string   `json:"size,omitempty"`
	Quantity  int       `json:"quantity"`
	Product   RawLine   `json:"product"`
	AddedAt   time.Time `json:"added_at"`
}

// AsRaw merges the stored product payload with the line's own fields.
func (s StoredLine) AsRaw() RawLine {
	raw := RawLine{
		"id":         s.ID.String(),
		"product_id": s.ProductID,
		"quantity":   s.Quantity,
		"product":    map[string]any(s.Product),
	}
	if s.Size != nil {
		raw["selected_size"] = *s.Size
	}

	return raw
}

type StoredCart struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Lines     []StoredLine `json:"lines"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RemoteCart is an authenticated cart as echoed by the cart service.
// Complete is false when the response did not carry the full cart.
type RemoteCart struct {
	Lines    []RawLine
	Complete bool
}

type AddLineRequest struct {
	Product  RawLine `json:"product" validate:"required"`
	Quantity int     `json:"quantity"`
	Size     *string `json:"size,omitempty"`
}

type UpdateLineRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}

// AddItemRequest is what a shopper posts; the product payload is looked up
// from the catalogue.
type AddItemRequest struct {
	ProductID string  `json:"product_id" validate:"required,max=64"`
	Quantity  int     `json:"quantity" validate:"gte=1,lte=999"`
	Size      *string `json:"size,omitempty" validate:"omitempty,max=32"`
}

type SelectionRequest struct {
	LineIDs  []string `json:"line_ids"`
	Selected bool     `json:"selected"`
	All      bool     `json:"all"`
}
