package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale states. Draft sales accumulate lines and affect neither stock nor cash;
// Finalized and Cancelled are terminal; there is no path back to Draft.
const (
	SaleDraft     = "draft"
	SaleFinalized = "finalized"
	SaleCancelled = "cancelled"
)

// Sale is the sale header. Totals are derived from the lines by
// RecalculateTotals and frozen once the sale leaves Draft.
type Sale struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Status string    `gorm:"type:varchar(20);not null;default:'draft';index"`
	// CashSessionID is nil for vendor sales made without a cash drawer;
	// finalize then skips the cash movement.
	CashSessionID *uuid.UUID      `gorm:"type:uuid;index"`
	SoldByID      uuid.UUID       `gorm:"type:uuid;not null"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TaxTotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	GrandTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// CustomerEmail: when present, the receipt worker mails the PDF after finalize.
	CustomerEmail *string
	// SoldAt is set when the sale is finalized, not when the draft is created
	SoldAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []SaleLine `gorm:"foreignKey:SaleID"`
}

// SaleLine is one product position on a sale. Composite key: a product may
// appear once per unit of measure on the same sale.
// Derived fields: LineSubtotal = Quantity x UnitPrice,
// LineTax = LineSubtotal x TaxRate (rounded to 2 decimals),
// LineTotal = LineSubtotal + LineTax.
type SaleLine struct {
	SaleID      uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UnitMeasure string          `gorm:"type:varchar(20);primaryKey;default:'unit'"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(5,4);not null"`
	LineSubtotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineTax      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}
