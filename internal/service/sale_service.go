package service

import (
	"context"
	"fmt"
	"time"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/model"
	"estancopro/internal/repository"
	"estancopro/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleService interface {
	CreateDraft(ctx context.Context, userID uuid.UUID, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	AddLine(ctx context.Context, saleID uuid.UUID, req dto.SaleLineRequest) (*dto.SaleResponse, error)
	RemoveLine(ctx context.Context, saleID, productID uuid.UUID, unitMeasure string) error
	RecalculateTotals(ctx context.Context, saleID uuid.UUID) error
	Finalize(ctx context.Context, saleID uuid.UUID) error
	Cancel(ctx context.Context, saleID uuid.UUID) error
	GetByID(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error)
	List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error)
}

type saleService struct {
	repo       repository.SaleRepository
	products   repository.ProductRepository
	stockMovs  repository.StockMovementRepository
	sessions   CashSessionService
	dispatcher *worker.Dispatcher // nil in unit tests
}

func NewSaleService(
	repo repository.SaleRepository,
	products repository.ProductRepository,
	stockMovs repository.StockMovementRepository,
	sessions CashSessionService,
	dispatcher *worker.Dispatcher,
) SaleService {
	return &saleService{
		repo:       repo,
		products:   products,
		stockMovs:  stockMovs,
		sessions:   sessions,
		dispatcher: dispatcher,
	}
}

// ── CreateDraft ──────────────────────────────────────────────────────────────
// A draft sale affects neither stock nor cash; lines snapshot the product
// price and tax rate at add time. cash_session_id may be nil (vendor sale
// without a drawer); finalize then skips the cash movement.

func (s *saleService) CreateDraft(ctx context.Context, userID uuid.UUID, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	var sessionID *uuid.UUID
	if req.CashSessionID != nil && *req.CashSessionID != "" {
		id, err := uuid.Parse(*req.CashSessionID)
		if err != nil {
			return nil, apierror.Validation("invalid cash_session_id")
		}
		if err := s.sessions.RequireOpen(ctx, id); err != nil {
			return nil, err
		}
		sessionID = &id
	}

	sale := &model.Sale{
		Status:        model.SaleDraft,
		CashSessionID: sessionID,
		SoldByID:      userID,
		CustomerEmail: req.CustomerEmail,
		Subtotal:      decimal.Zero,
		TaxTotal:      decimal.Zero,
		GrandTotal:    decimal.Zero,
	}

	for _, lineReq := range req.Lines {
		line, err := s.buildLine(ctx, lineReq)
		if err != nil {
			return nil, err
		}
		sale.Lines = append(sale.Lines, *line)
	}
	applyTotals(sale, sale.Lines)

	if err := s.repo.Create(ctx, sale); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, sale.ID)
}

func (s *saleService) buildLine(ctx context.Context, req dto.SaleLineRequest) (*model.SaleLine, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, apierror.Validation("invalid product_id")
	}
	if req.Quantity < 1 {
		return nil, apierror.Validation("quantity must be positive")
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, apierror.NotFound(fmt.Sprintf("product %s not found", req.ProductID))
	}
	if !product.Active {
		return nil, apierror.Validation(fmt.Sprintf("product %q is inactive and cannot be sold", product.Name))
	}

	unitMeasure := req.UnitMeasure
	if unitMeasure == "" {
		unitMeasure = product.UnitMeasure
	}

	line := &model.SaleLine{
		ProductID:   productID,
		UnitMeasure: unitMeasure,
		Quantity:    req.Quantity,
		UnitPrice:   product.UnitPrice,
		TaxRate:     product.TaxRate,
	}
	computeLine(line)
	return line, nil
}

// computeLine derives the monetary fields from quantity, price and tax rate.
// Tax is rounded to 2 decimals per line, which keeps the totals identity
// subtotal + taxTotal == grandTotal exact.
func computeLine(line *model.SaleLine) {
	line.LineSubtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
	line.LineTax = line.LineSubtotal.Mul(line.TaxRate).Round(2)
	line.LineTotal = line.LineSubtotal.Add(line.LineTax)
}

func applyTotals(sale *model.Sale, lines []model.SaleLine) {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineSubtotal)
		taxTotal = taxTotal.Add(l.LineTax)
	}
	sale.Subtotal = subtotal
	sale.TaxTotal = taxTotal
	sale.GrandTotal = subtotal.Add(taxTotal)
}

// ── AddLine / RemoveLine ─────────────────────────────────────────────────────

func (s *saleService) AddLine(ctx context.Context, saleID uuid.UUID, req dto.SaleLineRequest) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, apierror.NotFound("sale not found")
	}
	if sale.Status != model.SaleDraft {
		return nil, apierror.InvalidState("lines can only change while the sale is a draft")
	}

	line, err := s.buildLine(ctx, req)
	if err != nil {
		return nil, err
	}
	line.SaleID = saleID

	// Same product + unit of measure merges into the existing line.
	merged := false
	for i := range sale.Lines {
		existing := &sale.Lines[i]
		if existing.ProductID == line.ProductID && existing.UnitMeasure == line.UnitMeasure {
			existing.Quantity += line.Quantity
			computeLine(existing)
			if err := s.repo.UpdateLine(ctx, existing); err != nil {
				return nil, err
			}
			merged = true
			break
		}
	}
	if !merged {
		if err := s.repo.AddLine(ctx, line); err != nil {
			return nil, err
		}
	}

	if err := s.RecalculateTotals(ctx, saleID); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, saleID)
}

func (s *saleService) RemoveLine(ctx context.Context, saleID, productID uuid.UUID, unitMeasure string) error {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return apierror.NotFound("sale not found")
	}
	if sale.Status != model.SaleDraft {
		return apierror.InvalidState("lines can only change while the sale is a draft")
	}

	rows, err := s.repo.RemoveLine(ctx, saleID, productID, unitMeasure)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apierror.NotFound("sale line not found")
	}
	return s.RecalculateTotals(ctx, saleID)
}

// ── RecalculateTotals ────────────────────────────────────────────────────────
// Idempotent; legal in any status. Post-transition the lines are frozen so the
// recompute is a no-op in practice.

func (s *saleService) RecalculateTotals(ctx context.Context, saleID uuid.UUID) error {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return apierror.NotFound("sale not found")
	}
	lines, err := s.repo.FindLines(ctx, saleID)
	if err != nil {
		return err
	}
	applyTotals(sale, lines)
	return s.repo.UpdateTotals(ctx, sale)
}

// ── Finalize ─────────────────────────────────────────────────────────────────
// Single ACID transaction:
//  1. lock the sale row, require Draft
//  2. lock every line's product row; reject with InsufficientStock naming all
//     short products before anything is written
//  3. guarded stock decrement + stock movement per line
//  4. recalculate and persist totals, status=finalized, sold_at=now
//  5. cash movement against the (open) session, when one is attached
// The product row locks serialize concurrent finalizations on shared stock, so
// stock_on_hand can never be driven below zero.

func (s *saleService) Finalize(ctx context.Context, saleID uuid.UUID) error {
	type lowStockHit struct {
		productID uuid.UUID
		name      string
		stock     int
		reorder   int
	}
	var lowStock []lowStockHit
	var customerNotify *model.Sale

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sale, err := s.repo.FindByIDForUpdate(tx, saleID)
		if err != nil {
			return apierror.NotFound("sale not found")
		}
		if sale.Status != model.SaleDraft {
			return apierror.InvalidState("only draft sales can be finalized")
		}

		lines, err := s.repo.FindLinesTx(tx, saleID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apierror.InvalidState("cannot finalize a sale with no lines")
		}

		// Pre-check with row locks held: either every line is covered or the
		// whole finalize aborts naming all short products.
		type locked struct {
			product *model.Product
			qty     int
		}
		lockedProducts := make([]locked, 0, len(lines))
		var short []string
		for _, line := range lines {
			product, err := s.products.FindByIDForUpdate(tx, line.ProductID)
			if err != nil {
				return apierror.NotFound(fmt.Sprintf("product %s not found", line.ProductID))
			}
			if product.StockOnHand < line.Quantity {
				short = append(short, product.Name)
			}
			lockedProducts = append(lockedProducts, locked{product: product, qty: line.Quantity})
		}
		if len(short) > 0 {
			return apierror.InsufficientStock(short)
		}

		saleRef := sale.ID
		for _, lp := range lockedProducts {
			rows, err := s.products.DecrementStockTx(tx, lp.product.ID, lp.qty)
			if err != nil {
				return err
			}
			if rows == 0 {
				// Unreachable while the row lock is held; kept as a hard guard.
				return apierror.InsufficientStock([]string{lp.product.Name})
			}

			after := lp.product.StockOnHand - lp.qty
			mov := &model.StockMovement{
				ProductID:   lp.product.ID,
				Type:        model.MovementSale,
				Quantity:    -lp.qty,
				StockBefore: lp.product.StockOnHand,
				StockAfter:  after,
				Reason:      fmt.Sprintf("Sale %s", sale.ID),
				RelatedID:   &saleRef,
			}
			if err := s.stockMovs.CreateTx(tx, mov); err != nil {
				return err
			}

			if after <= lp.product.ReorderPoint {
				lowStock = append(lowStock, lowStockHit{
					productID: lp.product.ID,
					name:      lp.product.Name,
					stock:     after,
					reorder:   lp.product.ReorderPoint,
				})
			}
		}

		applyTotals(sale, lines)
		now := time.Now()
		sale.SoldAt = &now
		sale.Status = model.SaleFinalized
		if err := s.repo.UpdateSaleTx(tx, sale); err != nil {
			return err
		}

		if sale.CashSessionID != nil {
			if err := s.sessions.RecordSaleMovementTx(tx, *sale.CashSessionID, sale.GrandTotal, sale.ID); err != nil {
				return err
			}
		}

		customerNotify = sale
		return nil
	})
	if txErr != nil {
		return txErr
	}

	// Async jobs are best effort, fire and forget after the commit.
	if s.dispatcher != nil && customerNotify != nil {
		_ = s.dispatcher.EnqueueReceipt(ctx, worker.ReceiptJobPayload{
			SaleID:        customerNotify.ID.String(),
			CustomerEmail: customerNotify.CustomerEmail,
		})
		for _, hit := range lowStock {
			_ = s.dispatcher.EnqueueLowStockAlert(ctx, worker.LowStockJobPayload{
				ProductID:    hit.productID.String(),
				ProductName:  hit.name,
				StockOnHand:  hit.stock,
				ReorderPoint: hit.reorder,
			})
		}
	}
	return nil
}

// ── Cancel ───────────────────────────────────────────────────────────────────
// Draft only. Finalized sales need a separate reversal workflow; cancel never
// touches stock or cash because a draft applied neither.

func (s *saleService) Cancel(ctx context.Context, saleID uuid.UUID) error {
	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sale, err := s.repo.FindByIDForUpdate(tx, saleID)
		if err != nil {
			return apierror.NotFound("sale not found")
		}
		if sale.Status != model.SaleDraft {
			return apierror.InvalidState("only draft sales can be cancelled")
		}

		if err := s.repo.DeleteLinesTx(tx, saleID); err != nil {
			return err
		}
		sale.Status = model.SaleCancelled
		return s.repo.UpdateSaleTx(tx, sale)
	})
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *saleService) GetByID(ctx context.Context, saleID uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, apierror.NotFound("sale not found")
	}
	return saleToResponse(sale), nil
}

func (s *saleService) List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	if filter.Status == "" {
		filter.Status = model.SaleFinalized
	}
	sales, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SaleResponse, 0, len(sales))
	for i := range sales {
		data = append(data, *saleToResponse(&sales[i]))
	}
	return &dto.SaleListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func saleToResponse(sale *model.Sale) *dto.SaleResponse {
	lines := make([]dto.SaleLineResponse, 0, len(sale.Lines))
	for _, l := range sale.Lines {
		name := ""
		if l.Product != nil {
			name = l.Product.Name
		}
		lines = append(lines, dto.SaleLineResponse{
			ProductID:    l.ProductID.String(),
			Product:      name,
			UnitMeasure:  l.UnitMeasure,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			TaxRate:      l.TaxRate,
			LineSubtotal: l.LineSubtotal,
			LineTax:      l.LineTax,
			LineTotal:    l.LineTotal,
		})
	}

	resp := &dto.SaleResponse{
		ID:         sale.ID.String(),
		Status:     sale.Status,
		Lines:      lines,
		Subtotal:   sale.Subtotal,
		TaxTotal:   sale.TaxTotal,
		GrandTotal: sale.GrandTotal,
		CreatedAt:  sale.CreatedAt.Format(time.RFC3339),
	}
	if sale.CashSessionID != nil {
		id := sale.CashSessionID.String()
		resp.CashSessionID = &id
	}
	if sale.SoldAt != nil {
		t := sale.SoldAt.Format(time.RFC3339)
		resp.SoldAt = &t
	}
	return resp
}
