package repository

import (
	"context"

	"estancopro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockMovementRepository persists the append-only stock ledger.
type StockMovementRepository interface {
	CreateTx(tx *gorm.DB, m *model.StockMovement) error
	ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]model.StockMovement, error)
}

type stockMovementRepo struct{ db *gorm.DB }

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db: db}
}

func (r *stockMovementRepo) CreateTx(tx *gorm.DB, m *model.StockMovement) error {
	return tx.Create(m).Error
}

func (r *stockMovementRepo) ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]model.StockMovement, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var movs []model.StockMovement
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&movs).Error
	return movs, err
}
