package dto

import "github.com/shopspring/decimal"

// ─── Filter ──────────────────────────────────────────────────────────────────

type ProductFilter struct {
	Barcode  string `form:"barcode"`
	Name     string `form:"name"`
	Category string `form:"category"`
	Active   string `form:"active"` // "false" = inactive, "all" = everything, default active
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	Barcode      string          `json:"barcode"       validate:"required,min=3"`
	Name         string          `json:"name"          validate:"required,min=2"`
	Description  *string         `json:"description"`
	Category     string          `json:"category"      validate:"required"`
	UnitCost     decimal.Decimal `json:"unit_cost"     validate:"min=0"`
	UnitPrice    decimal.Decimal `json:"unit_price"    validate:"required"`
	TaxRate      decimal.Decimal `json:"tax_rate"      validate:"min=0"`
	StockOnHand  int             `json:"stock_on_hand" validate:"min=0"`
	ReorderPoint int             `json:"reorder_point" validate:"min=0"`
	UnitMeasure  string          `json:"unit_measure"  validate:"omitempty,max=20"`
}

// AdjustStockRequest applies a signed delta to stock on hand.
type AdjustStockRequest struct {
	Delta  int    `json:"delta"  validate:"required"`
	Reason string `json:"reason" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID           string          `json:"id"`
	Barcode      string          `json:"barcode"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Category     string          `json:"category"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	StockOnHand  int             `json:"stock_on_hand"`
	ReorderPoint int             `json:"reorder_point"`
	UnitMeasure  string          `json:"unit_measure"`
	Active       bool            `json:"active"`
}

// PriceCheckResponse is the public kiosk lookup payload. Deliberately thin:
// no cost, no exact stock count.
type PriceCheckResponse struct {
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	InStock   bool            `json:"in_stock"`
}

type ProductListResponse struct {
	Data  []ProductResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
