package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	OpeningAmount decimal.Decimal `json:"opening_amount" validate:"min=0"`
}

type CloseSessionRequest struct {
	ClosingAmount decimal.Decimal `json:"closing_amount" validate:"min=0"`
	Notes         *string         `json:"notes"`
}

type RecordMovementRequest struct {
	Type   string          `json:"type"   validate:"required,oneof=expense adjustment refund"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Reason string          `json:"reason" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CashSessionResponse struct {
	ID            string           `json:"id"`
	Status        string           `json:"status"`
	OpeningAmount decimal.Decimal  `json:"opening_amount"`
	ClosingAmount *decimal.Decimal `json:"closing_amount,omitempty"`
	Difference    *decimal.Decimal `json:"difference,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	OpenedAt      string           `json:"opened_at"`
	ClosedAt      *string          `json:"closed_at,omitempty"`
}

type MovementResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	RelatedEntity *string         `json:"related_entity,omitempty"`
	RelatedID     *string         `json:"related_id,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// CashSessionBalanceResponse reports the drawer state for an open or closed
// session. ActualAmount and Difference are only present once the session is
// closed; before that only the expected amount is meaningful.
type CashSessionBalanceResponse struct {
	SessionID      string             `json:"session_id"`
	Status         string             `json:"status"`
	OpeningAmount  decimal.Decimal    `json:"opening_amount"`
	ExpectedAmount decimal.Decimal    `json:"expected_amount"`
	ActualAmount   *decimal.Decimal   `json:"actual_amount,omitempty"`
	Difference     *decimal.Decimal   `json:"difference,omitempty"`
	Movements      []MovementResponse `json:"movements"`
}

// CloseSessionResponse returns the balance outcome: negative difference =
// shortage, positive = surplus, zero = balanced.
type CloseSessionResponse struct {
	SessionID      string          `json:"session_id"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ClosingAmount  decimal.Decimal `json:"closing_amount"`
	Difference     decimal.Decimal `json:"difference"`
	Status         string          `json:"status"`
}

type CashSessionListResponse struct {
	Data  []CashSessionResponse `json:"data"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
