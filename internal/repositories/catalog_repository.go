package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// CatalogRepository reads the product catalogue. It is the storefront's source
// of product payloads, payment capabilities and stock.
type CatalogRepository interface {
	GetProduct(ctx context.Context, id string) (models.RawLine, error)
	FetchCapabilities(ctx context.Context, productIDs []string) (map[string]models.PaymentCapabilities, error)
	FetchStock(ctx context.Context, productIDs []string) (map[string]models.StockSnapshot, error)
}

type catalogRepository struct {
	DB *sql.DB
}

func NewCatalogRepo(db *sql.DB) CatalogRepository {
	return &catalogRepository{DB: db}
}

// GetProduct returns sql.ErrNoRows for an unknown or inactive product.
func (r *catalogRepository) GetProduct(ctx context.Context, id string) (models.RawLine, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, image_url, price, mrp, gst_rate, gst_mode, sizes,
		       stock_quantity, min_order_quantity, max_order_quantity, is_active,
		       allow_cod, allow_card, allow_upi, allow_advance,
		       advance_payment_type, advance_payment_value
		FROM products
		WHERE id = $1 AND is_active = TRUE
	`

	var (
		productID, name, gstMode string
		image, advanceType       sql.NullString
		price, mrp, gstRate      decimal.Decimal
		sizes                    pq.StringArray
		stock, minQty            int
		maxQty                   sql.NullInt64
		active                   bool
		cod, card, upi, advance  bool
		advanceValue             decimal.NullDecimal
	)

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&productID, &name, &image, &price, &mrp, &gstRate, &gstMode, &sizes,
		&stock, &minQty, &maxQty, &active,
		&cod, &card, &upi, &advance,
		&advanceType, &advanceValue,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("querying database: %w", err)
	}

	product := models.RawLine{
		"id":                 productID,
		"name":               name,
		"price":              price.String(),
		"mrp":                mrp.String(),
		"gst_rate":           gstRate.String(),
		"gst_mode":           gstMode,
		"sizes":              []string(sizes),
		"stock_quantity":     stock,
		"min_order_quantity": minQty,
		"is_active":          active,
		"allow_cod":          cod,
		"allow_card":         card,
		"allow_upi":          upi,
		"allow_advance":      advance,
	}
	if image.Valid {
		product["image"] = image.String
	}
	if maxQty.Valid {
		product["max_order_quantity"] = int(maxQty.Int64)
	}
	if advanceType.Valid {
		product["advance_payment_type"] = advanceType.String
	}
	if advanceValue.Valid {
		product["advance_payment_value"] = advanceValue.Decimal.String()
	}

	return product, nil
}

// FetchCapabilities omits ids the catalogue does not know.
func (r *catalogRepository) FetchCapabilities(ctx context.Context, productIDs []string) (map[string]models.PaymentCapabilities, error) {
	result := make(map[string]models.PaymentCapabilities, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, allow_cod, allow_card, allow_upi, allow_advance, advance_payment_type, advance_payment_value
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := r.DB.QueryContext(dbCtx, query, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("querying capabilities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id           string
			caps         models.PaymentCapabilities
			advanceType  sql.NullString
			advanceValue decimal.NullDecimal
		)

		if err := rows.Scan(&id, &caps.AllowCOD, &caps.AllowCard, &caps.AllowUPI, &caps.AllowAdvance, &advanceType, &advanceValue); err != nil {
			return nil, fmt.Errorf("scanning capabilities: %w", err)
		}

		if advanceType.Valid {
			caps.AdvanceType = models.ParseAdvanceType(advanceType.String)
		}
		if advanceValue.Valid && advanceValue.Decimal.IsPositive() {
			value := advanceValue.Decimal
			caps.AdvanceValue = &value
		}

		result[id] = caps
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capabilities: %w", err)
	}

	return result, nil
}

// FetchStock omits ids the catalogue does not know.
func (r *catalogRepository) FetchStock(ctx context.Context, productIDs []string) (map[string]models.StockSnapshot, error) {
	result := make(map[string]models.StockSnapshot, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, stock_quantity, min_order_quantity, max_order_quantity, is_active, low_stock_threshold
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := r.DB.QueryContext(dbCtx, query, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("querying stock: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snapshot models.StockSnapshot
			maxQty   sql.NullInt64
		)

		if err := rows.Scan(&snapshot.ProductID, &snapshot.StockQuantity, &snapshot.MinOrderQuantity, &maxQty, &snapshot.IsActive, &snapshot.LowStockThreshold); err != nil {
			return nil, fmt.Errorf("scanning stock: %w", err)
		}

		if maxQty.Valid {
			m := int(maxQty.Int64)
			snapshot.MaxOrderQuantity = &m
		}

		result[snapshot.ProductID] = snapshot
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stock: %w", err)
	}

	return result, nil
}
