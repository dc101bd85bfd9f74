package dto

import "github.com/shopspring/decimal"

// ReportFilter is bound from the query string of GET /v1/sales/report.
type ReportFilter struct {
	From string `form:"from" validate:"required"` // YYYY-MM-DD inclusive
	To   string `form:"to"   validate:"required"` // YYYY-MM-DD inclusive
}

// CategoryTotals aggregates finalized sale lines of one product category.
type CategoryTotals struct {
	Category   string          `json:"category"`
	Units      int64           `json:"units"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

type SalesReportResponse struct {
	From       string           `json:"from"`
	To         string           `json:"to"`
	SaleCount  int64            `json:"sale_count"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	TaxTotal   decimal.Decimal  `json:"tax_total"`
	GrandTotal decimal.Decimal  `json:"grand_total"`
	Categories []CategoryTotals `json:"categories"`
}
