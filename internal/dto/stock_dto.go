package dto

// StockMovementResponse is one entry of a product's stock ledger.
type StockMovementResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	Type        string  `json:"type"`
	Quantity    int     `json:"quantity"` // signed: positive = in, negative = out
	StockBefore int     `json:"stock_before"`
	StockAfter  int     `json:"stock_after"`
	Reason      string  `json:"reason,omitempty"`
	RelatedID   *string `json:"related_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}
