package models

// StockSnapshot is a read-only view of a product's availability at fetch time.
type StockSnapshot struct {
	ProductID         string `json:"product_id"`
	StockQuantity     int    `json:"stock_quantity"`
	MinOrderQuantity  int    `json:"min_order_quantity"`
	MaxOrderQuantity  *int   `json:"max_order_quantity,omitempty"`
	IsActive          bool   `json:"is_active"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

func (s StockSnapshot) LowStock() bool {
	return s.LowStockThreshold > 0 && s.StockQuantity <= s.LowStockThreshold
}
