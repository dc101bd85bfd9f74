package service

import (
	"context"
	"fmt"
	"time"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/model"
	"estancopro/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockService interface {
	// AdjustStock applies a signed delta to a product's stock and records the
	// movement in the ledger. Rejects adjustments that would go below zero.
	AdjustStock(ctx context.Context, productID uuid.UUID, req dto.AdjustStockRequest) (*dto.ProductResponse, error)
	Movements(ctx context.Context, productID uuid.UUID, limit int) ([]dto.StockMovementResponse, error)
}

type stockService struct {
	products  repository.ProductRepository
	movements repository.StockMovementRepository
}

func NewStockService(products repository.ProductRepository, movements repository.StockMovementRepository) StockService {
	return &stockService{products: products, movements: movements}
}

func (s *stockService) AdjustStock(ctx context.Context, productID uuid.UUID, req dto.AdjustStockRequest) (*dto.ProductResponse, error) {
	if req.Delta == 0 {
		return nil, apierror.Validation("delta cannot be zero")
	}

	var adjusted *model.Product
	err := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		product, err := s.products.FindByIDForUpdate(tx, productID)
		if err != nil {
			return apierror.NotFound("product not found")
		}

		after := product.StockOnHand + req.Delta
		if after < 0 {
			return apierror.Validation(fmt.Sprintf(
				"adjustment would leave %q at %d units", product.Name, after))
		}

		if err := s.products.AdjustStockTx(tx, productID, req.Delta); err != nil {
			return err
		}

		movType := model.MovementAdjustment
		if req.Delta > 0 {
			movType = model.MovementPurchase
		}
		mov := &model.StockMovement{
			ProductID:   productID,
			Type:        movType,
			Quantity:    req.Delta,
			StockBefore: product.StockOnHand,
			StockAfter:  after,
			Reason:      req.Reason,
		}
		if err := s.movements.CreateTx(tx, mov); err != nil {
			return err
		}

		product.StockOnHand = after
		adjusted = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return productToResponse(adjusted), nil
}

func (s *stockService) Movements(ctx context.Context, productID uuid.UUID, limit int) ([]dto.StockMovementResponse, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, apierror.NotFound("product not found")
	}
	movs, err := s.movements.ListByProduct(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.StockMovementResponse, 0, len(movs))
	for _, m := range movs {
		data = append(data, stockMovementToResponse(&m))
	}
	return data, nil
}

func stockMovementToResponse(m *model.StockMovement) dto.StockMovementResponse {
	resp := dto.StockMovementResponse{
		ID:          m.ID.String(),
		ProductID:   m.ProductID.String(),
		Type:        m.Type,
		Quantity:    m.Quantity,
		StockBefore: m.StockBefore,
		StockAfter:  m.StockAfter,
		Reason:      m.Reason,
		CreatedAt:   m.CreatedAt.Format(time.RFC3339),
	}
	if m.RelatedID != nil {
		id := m.RelatedID.String()
		resp.RelatedID = &id
	}
	return resp
}
