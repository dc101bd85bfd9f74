package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cash session states. A session is open from OpenedAt until it is closed by a
// balance count; Closed is terminal.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// Cash movement types. A sale movement is created automatically when a sale is
// finalized against a session; the other types are recorded manually.
const (
	MovementSale       = "sale"
	MovementExpense    = "expense"
	MovementAdjustment = "adjustment"
	MovementRefund     = "refund"
	// MovementPurchase only appears in the stock ledger, never in the cash drawer.
	MovementPurchase = "purchase"
)

// CashSession represents the lifecycle of a cash drawer session.
// At most one session is open at any time, enforced by a partial unique
// index on (status) WHERE status = 'open', plus an advisory lock around
// the check-and-create sequence.
type CashSession struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OpenedByID    uuid.UUID       `gorm:"type:uuid;not null"`
	OpeningAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// ExpectedAmount, ClosingAmount and Difference are set only at close:
	// expected = opening + SUM(movements); difference = closing - expected.
	ExpectedAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ClosingAmount  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Difference     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Status         string           `gorm:"type:varchar(20);not null;default:'open';index"`
	Notes          *string
	OpenedAt       time.Time
	ClosedAt       *time.Time

	Movements []CashMovement `gorm:"foreignKey:CashSessionID"`
}

// CashMovement is an immutable entry in the cash drawer ledger.
// Movements are NEVER modified or deleted; corrections create inverse entries.
// Amount is signed: positive = inflow, negative = outflow.
type CashMovement struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CashSessionID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Type          string          `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason        string          `gorm:"not null"`
	// RelatedEntity/RelatedID back-reference the originating record (e.g. "sale")
	RelatedEntity *string    `gorm:"type:varchar(30)"`
	RelatedID     *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time
}
