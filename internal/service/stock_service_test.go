package service

import (
	"context"
	"testing"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustStockRecordsLedgerEntry(t *testing.T) {
	products := newFakeProductRepo()
	movs := &fakeStockMovementRepo{}
	svc := NewStockService(products, movs)

	p := &model.Product{Name: "restocked", Barcode: "bc-1", Category: "tobacco",
		UnitPrice: dec("10.00"), TaxRate: dec("0.21"), StockOnHand: 5, UnitMeasure: "unit", Active: true}
	require.NoError(t, products.Create(context.Background(), p))

	resp, err := svc.AdjustStock(context.Background(), p.ID, dto.AdjustStockRequest{Delta: 20, Reason: "delivery received"})
	require.NoError(t, err)
	assert.Equal(t, 25, resp.StockOnHand)

	require.Len(t, movs.movements, 1)
	mov := movs.movements[0]
	assert.Equal(t, model.MovementPurchase, mov.Type)
	assert.Equal(t, 20, mov.Quantity)
	assert.Equal(t, 5, mov.StockBefore)
	assert.Equal(t, 25, mov.StockAfter)
}

func TestAdjustStockCannotGoNegative(t *testing.T) {
	products := newFakeProductRepo()
	movs := &fakeStockMovementRepo{}
	svc := NewStockService(products, movs)

	p := &model.Product{Name: "scarce", Barcode: "bc-2", Category: "tobacco",
		UnitPrice: dec("10.00"), TaxRate: dec("0.21"), StockOnHand: 3, UnitMeasure: "unit", Active: true}
	require.NoError(t, products.Create(context.Background(), p))

	_, err := svc.AdjustStock(context.Background(), p.ID, dto.AdjustStockRequest{Delta: -4, Reason: "breakage"})
	requireKind(t, err, apierror.KindValidation)
	assert.Equal(t, 3, products.products[p.ID].StockOnHand)
	assert.Empty(t, movs.movements)
}

func TestAdjustStockZeroDelta(t *testing.T) {
	svc := NewStockService(newFakeProductRepo(), &fakeStockMovementRepo{})

	_, err := svc.AdjustStock(context.Background(), uuid.New(), dto.AdjustStockRequest{Delta: 0, Reason: "noop"})
	requireKind(t, err, apierror.KindValidation)
}
