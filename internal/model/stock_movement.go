package model

import (
	"time"

	"github.com/google/uuid"
)

// StockMovement records every change to a product's stock on hand.
// Created automatically on sale finalization and on manual adjustments;
// purchase receipts use the same primitive.
type StockMovement struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index"`
	Type      string    `gorm:"not null"` // "sale" | "adjustment" | "purchase"
	Quantity  int       `gorm:"not null"` // signed: positive = in, negative = out
	StockBefore int     `gorm:"not null"`
	StockAfter  int     `gorm:"not null"`
	Reason      string
	RelatedID   *uuid.UUID `gorm:"type:uuid"` // sale_id when Type == "sale"
	CreatedAt   time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// TableName overrides GORM's default pluralization.
func (StockMovement) TableName() string { return "stock_movements" }
