package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product holds the catalog entry plus the stock-relevant fields the sale
// workflow depends on. StockOnHand never goes below zero; the guarded
// decrement in the repository enforces it.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Barcode     string    `gorm:"uniqueIndex;not null"`
	Name        string    `gorm:"index;not null"`
	Description *string
	Category    string          `gorm:"not null"`
	UnitCost    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// TaxRate is a fraction, e.g. 0.21 for 21% VAT
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0"`
	StockOnHand  int             `gorm:"not null;default:0"`
	ReorderPoint int             `gorm:"not null;default:5"`
	UnitMeasure  string          `gorm:"not null;default:'unit'"`
	Active       bool            `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
