package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// SaleFilter is bound from the query string of GET /v1/sales.
type SaleFilter struct {
	CashSessionID string `form:"cash_session_id" validate:"omitempty,uuid"`
	From          string `form:"from"`   // YYYY-MM-DD inclusive
	To            string `form:"to"`     // YYYY-MM-DD inclusive
	Status        string `form:"status"` // draft | finalized | cancelled | all
	Page          int    `form:"page,default=1"   validate:"min=1"`
	Limit         int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type SaleLineRequest struct {
	ProductID   string `json:"product_id"   validate:"required,uuid"`
	Quantity    int    `json:"quantity"     validate:"required,min=1"`
	UnitMeasure string `json:"unit_measure" validate:"omitempty,max=20"`
}

type CreateSaleRequest struct {
	// CashSessionID is optional: vendor sales run without a cash drawer
	CashSessionID *string           `json:"cash_session_id" validate:"omitempty,uuid"`
	Lines         []SaleLineRequest `json:"lines"           validate:"omitempty,dive"`
	// CustomerEmail: when present, the receipt worker mails the PDF after finalize.
	CustomerEmail *string `json:"customer_email" validate:"omitempty,email"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleLineResponse struct {
	ProductID    string          `json:"product_id"`
	Product      string          `json:"product"`
	UnitMeasure  string          `json:"unit_measure"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	LineTax      decimal.Decimal `json:"line_tax"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	CashSessionID *string            `json:"cash_session_id,omitempty"`
	Lines         []SaleLineResponse `json:"lines"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	TaxTotal      decimal.Decimal    `json:"tax_total"`
	GrandTotal    decimal.Decimal    `json:"grand_total"`
	SoldAt        *string            `json:"sold_at,omitempty"`
	CreatedAt     string             `json:"created_at"`
}
