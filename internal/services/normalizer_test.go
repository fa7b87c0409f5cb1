package service_test

import (
	"testing"

	appErrors "github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	service "github.com/aaravmahajanofficial/storefront-core/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNormalize(t *testing.T) {
	normalizer := service.NewLineNormalizer()

	t.Run("Success - Bare Product Payload", func(t *testing.T) {
		// Arrange
		raw := models.RawLine{
			"_id":                   "p-100",
			"title":                 "Linen Shirt",
			"images":                []any{"https://cdn.example.com/shirt.jpg"},
			"price":                 "₹1,180",
			"mrp":                   1999,
			"gst_rate":              "18",
			"gst_mode":              "inclusive",
			"sizes":                 "S, M ,L",
			"stock":                 12,
			"moq":                   2,
			"max_qty":               5,
			"allow_cod":             false,
			"is_active":             "true",
			"quantity":              "3",
			"advance_payment_type":  "percentage",
			"advance_payment_value": 10,
		}

		// Act
		line, err := normalizer.Normalize(raw, nil)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "p-100", line.ProductID)
		assert.NotEmpty(t, line.ID)
		assert.NotEqual(t, "p-100", line.ID)
		assert.Equal(t, "Linen Shirt", line.Name)
		assert.Equal(t, "https://cdn.example.com/shirt.jpg", line.Image)
		assert.Equal(t, 3, line.Quantity)
		assert.Equal(t, []string{"S", "M", "L"}, line.AvailableSizes)
		assert.Equal(t, models.TaxModeInclusive, line.TaxMode)
		assert.True(t, dec("1180").Equal(line.Quote.FinalPrice))
		assert.True(t, dec("1000").Equal(line.Quote.PriceBeforeTax))
		assert.True(t, dec("180").Equal(line.Quote.TaxAmount))
		assert.Equal(t, 41, line.Quote.DiscountPercent)
		assert.Equal(t, 12, line.StockQuantity)
		assert.Equal(t, 2, line.MinOrderQuantity)
		require.NotNil(t, line.MaxOrderQuantity)
		assert.Equal(t, 5, *line.MaxOrderQuantity)
		assert.True(t, line.IsActive)
		assert.False(t, line.PaymentCapabilities.AllowCOD)
		assert.True(t, line.PaymentCapabilities.AllowCard)
		assert.True(t, line.PaymentCapabilities.AllowUPI)
		assert.False(t, line.PaymentCapabilities.AllowAdvance)
		require.NotNil(t, line.PaymentCapabilities.AdvanceType)
		assert.Equal(t, models.AdvanceTypePercent, *line.PaymentCapabilities.AdvanceType)
		require.NotNil(t, line.PaymentCapabilities.AdvanceValue)
		assert.True(t, dec("10").Equal(*line.PaymentCapabilities.AdvanceValue))
	})

	t.Run("Success - Nested Line Payload With Size Catalog", func(t *testing.T) {
		// Arrange
		raw := models.RawLine{
			"id":            "line-1",
			"qty":           2,
			"selected_size": "XL",
			"product": map[string]any{
				"id":    "p-200",
				"name":  "Hoodie",
				"price": 800,
				"size_catalog": map[string]any{
					"XL": map[string]any{"price": 950},
					"M":  map[string]any{"price": 800},
					"L":  map[string]any{"price": "900"},
				},
				"tax_rate": 5,
			},
		}

		// Act
		line, err := normalizer.Normalize(raw, nil)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "line-1", line.ID)
		assert.Equal(t, "p-200", line.ProductID)
		assert.Equal(t, 2, line.Quantity)
		assert.Equal(t, []string{"L", "M", "XL"}, line.AvailableSizes)
		require.NotNil(t, line.SelectedSize)
		assert.Equal(t, "XL", *line.SelectedSize)
		assert.True(t, dec("950").Equal(line.UnitBasePrice))
		assert.Equal(t, models.TaxModeExclusive, line.TaxMode)
		assert.True(t, dec("997.5").Equal(line.Quote.FinalPrice))
		assert.Equal(t, 1, line.MinOrderQuantity)
		assert.True(t, line.IsActive)
	})

	t.Run("Success - Override Price Wins", func(t *testing.T) {
		// Arrange
		raw := models.RawLine{
			"product_id":     "p-300",
			"price":          100,
			"override_price": "75.50",
		}

		// Act
		line, err := normalizer.Normalize(raw, nil)

		// Assert
		require.NoError(t, err)
		assert.True(t, dec("75.5").Equal(line.Quote.FinalPrice))
	})

	t.Run("Success - Size Records", func(t *testing.T) {
		// Arrange
		raw := models.RawLine{
			"id": "p-400",
			"available_sizes": []any{
				map[string]any{"size": " 32 ", "price": 1200},
				map[string]any{"label": "34"},
				"36",
				"",
			},
		}

		// Act
		line, err := normalizer.Normalize(raw, nil)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "p-400", line.ProductID)
		assert.Equal(t, []string{"32", "34", "36"}, line.AvailableSizes)
	})

	t.Run("Success - No Sizing Gives Empty Sizes", func(t *testing.T) {
		line, err := normalizer.Normalize(models.RawLine{"product_id": "p-1"}, nil)

		require.NoError(t, err)
		assert.NotNil(t, line.AvailableSizes)
		assert.Empty(t, line.AvailableSizes)
		assert.Nil(t, line.SelectedSize)
		assert.Equal(t, models.TaxModeExclusive, line.TaxMode)
		assert.True(t, line.TaxRate.IsZero())
		assert.True(t, line.Quote.FinalPrice.IsZero())
		assert.Equal(t, 1, line.Quantity)
		assert.Equal(t, models.DefaultPaymentCapabilities(), line.PaymentCapabilities)
	})

	t.Run("Success - Name Is Sanitised", func(t *testing.T) {
		line, err := normalizer.Normalize(models.RawLine{"id": "p-5", "name": "<b>Tea</b> & Coffee<script>x()</script>"}, nil)

		require.NoError(t, err)
		assert.Equal(t, "Tea & Coffee", line.Name)
	})

	t.Run("Success - Stock Snapshot Overrides Payload", func(t *testing.T) {
		// Arrange
		maxQty := 4
		snapshot := &models.StockSnapshot{ProductID: "p-6", StockQuantity: 7, MinOrderQuantity: 0, MaxOrderQuantity: &maxQty, IsActive: false}

		// Act
		line, err := normalizer.Normalize(models.RawLine{"id": "p-6", "stock": 100, "is_active": true}, snapshot)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 7, line.StockQuantity)
		assert.Equal(t, 1, line.MinOrderQuantity)
		require.NotNil(t, line.MaxOrderQuantity)
		assert.Equal(t, 4, *line.MaxOrderQuantity)
		assert.False(t, line.IsActive)
	})

	t.Run("Failure - Missing Product ID", func(t *testing.T) {
		// Act
		_, err := normalizer.Normalize(models.RawLine{"name": "Orphan", "price": 10}, nil)

		// Assert
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeInvalidLine))
	})

	t.Run("Failure - Nil Payload", func(t *testing.T) {
		_, err := normalizer.Normalize(nil, nil)

		assert.True(t, appErrors.HasCode(err, appErrors.ErrCodeInvalidLine))
	})
}

func assertSameQuote(t *testing.T, want, got models.PriceQuote) {
	t.Helper()

	assert.True(t, want.PriceBeforeTax.Equal(got.PriceBeforeTax), "price before tax: %s != %s", want.PriceBeforeTax, got.PriceBeforeTax)
	assert.True(t, want.TaxAmount.Equal(got.TaxAmount), "tax: %s != %s", want.TaxAmount, got.TaxAmount)
	assert.True(t, want.FinalPrice.Equal(got.FinalPrice), "final: %s != %s", want.FinalPrice, got.FinalPrice)
	assert.True(t, want.MRP.Equal(got.MRP), "mrp: %s != %s", want.MRP, got.MRP)
	assert.Equal(t, want.DiscountPercent, got.DiscountPercent)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	normalizer := service.NewLineNormalizer()

	payloads := []models.RawLine{
		{"id": "a", "price": 999, "mrp": 1499, "gst_rate": 12, "gst_mode": "INCLUSIVE"},
		{"id": "b", "price": "1234.567", "gst_rate": 18},
		{"product_id": "c", "price": 49.99, "size_chart": map[string]any{"S": 39.99, "M": 49.99}, "size": "S", "allow_advance": true, "advance_payment_type": "AMOUNT", "advance_payment_value": 20},
		{"id": "d", "price": -5, "mrp": "abc"},
	}

	for _, raw := range payloads {
		// Arrange
		first, err := normalizer.Normalize(raw, nil)
		require.NoError(t, err)

		// Act
		second, err := normalizer.Normalize(first.AsRaw(), nil)

		// Assert
		require.NoError(t, err)
		assertSameQuote(t, first.Quote, second.Quote)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.ProductID, second.ProductID)
		assert.Equal(t, first.Quantity, second.Quantity)
		assert.Equal(t, first.SelectedSize, second.SelectedSize)
		assert.Equal(t, first.AvailableSizes, second.AvailableSizes)
		assert.Equal(t, first.PaymentCapabilities.AllowAdvance, second.PaymentCapabilities.AllowAdvance)
		assert.Equal(t, first.PaymentCapabilities.AdvanceType, second.PaymentCapabilities.AdvanceType)
	}
}
