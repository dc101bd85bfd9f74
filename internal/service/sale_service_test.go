package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/model"
	"estancopro/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory ProductRepository ──────────────────────────────────────────────

type fakeProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *fakeProductRepo) DB() *gorm.DB { return nil }

func (r *fakeProductRepo) Create(_ context.Context, p *model.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.products[p.ID] = p
	return nil
}

// FindByID returns a copy, matching GORM which scans into a fresh struct.
func (r *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProductRepo) FindByBarcode(_ context.Context, barcode string) (*model.Product, error) {
	for _, p := range r.products {
		if p.Barcode == barcode && p.Active {
			return p, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *fakeProductRepo) List(_ context.Context, _ dto.ProductFilter) ([]model.Product, int64, error) {
	all := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		all = append(all, *p)
	}
	return all, int64(len(all)), nil
}

func (r *fakeProductRepo) ListLowStock(_ context.Context) ([]model.Product, error) {
	var low []model.Product
	for _, p := range r.products {
		if p.Active && p.StockOnHand <= p.ReorderPoint {
			low = append(low, *p)
		}
	}
	return low, nil
}

func (r *fakeProductRepo) Update(_ context.Context, p *model.Product) error {
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.Product, error) {
	return r.FindByID(context.Background(), id)
}

func (r *fakeProductRepo) DecrementStockTx(_ *gorm.DB, id uuid.UUID, qty int) (int64, error) {
	p, ok := r.products[id]
	if !ok || p.StockOnHand < qty {
		return 0, nil
	}
	p.StockOnHand -= qty
	return 1, nil
}

func (r *fakeProductRepo) AdjustStockTx(_ *gorm.DB, id uuid.UUID, delta int) error {
	p, ok := r.products[id]
	if !ok {
		return errors.New("not found")
	}
	p.StockOnHand += delta
	return nil
}

// ── In-memory SaleRepository ─────────────────────────────────────────────────

type fakeSaleRepo struct {
	sales      map[uuid.UUID]*model.Sale
	lines      []model.SaleLine
	products   *fakeProductRepo // resolves Product on loaded lines
	reportRows []repository.ReportRow
}

func newFakeSaleRepo(products *fakeProductRepo) *fakeSaleRepo {
	return &fakeSaleRepo{sales: make(map[uuid.UUID]*model.Sale), products: products}
}

func (r *fakeSaleRepo) DB() *gorm.DB { return nil }

func (r *fakeSaleRepo) Create(_ context.Context, s *model.Sale) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	for i := range s.Lines {
		s.Lines[i].SaleID = s.ID
		r.lines = append(r.lines, s.Lines[i])
	}
	header := *s
	header.Lines = nil
	r.sales[s.ID] = &header
	return nil
}

func (r *fakeSaleRepo) loadLines(saleID uuid.UUID) []model.SaleLine {
	var result []model.SaleLine
	for _, l := range r.lines {
		if l.SaleID == saleID {
			if p, ok := r.products.products[l.ProductID]; ok {
				l.Product = p
			}
			result = append(result, l)
		}
	}
	return result
}

func (r *fakeSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *s
	copied.Lines = r.loadLines(id)
	return &copied, nil
}

func (r *fakeSaleRepo) FindByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (r *fakeSaleRepo) FindLines(_ context.Context, saleID uuid.UUID) ([]model.SaleLine, error) {
	return r.loadLines(saleID), nil
}

func (r *fakeSaleRepo) FindLinesTx(_ *gorm.DB, saleID uuid.UUID) ([]model.SaleLine, error) {
	return r.loadLines(saleID), nil
}

func (r *fakeSaleRepo) AddLine(_ context.Context, line *model.SaleLine) error {
	r.lines = append(r.lines, *line)
	return nil
}

func (r *fakeSaleRepo) RemoveLine(_ context.Context, saleID, productID uuid.UUID, unitMeasure string) (int64, error) {
	for i, l := range r.lines {
		if l.SaleID == saleID && l.ProductID == productID && l.UnitMeasure == unitMeasure {
			r.lines = append(r.lines[:i], r.lines[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeSaleRepo) UpdateLine(_ context.Context, line *model.SaleLine) error {
	for i, l := range r.lines {
		if l.SaleID == line.SaleID && l.ProductID == line.ProductID && l.UnitMeasure == line.UnitMeasure {
			r.lines[i] = *line
			return nil
		}
	}
	return errors.New("line not found")
}

func (r *fakeSaleRepo) UpdateTotals(_ context.Context, s *model.Sale) error {
	stored, ok := r.sales[s.ID]
	if !ok {
		return errors.New("not found")
	}
	stored.Subtotal = s.Subtotal
	stored.TaxTotal = s.TaxTotal
	stored.GrandTotal = s.GrandTotal
	return nil
}

func (r *fakeSaleRepo) UpdateSaleTx(_ *gorm.DB, s *model.Sale) error {
	header := *s
	header.Lines = nil
	r.sales[s.ID] = &header
	return nil
}

func (r *fakeSaleRepo) DeleteLinesTx(_ *gorm.DB, saleID uuid.UUID) error {
	kept := r.lines[:0]
	for _, l := range r.lines {
		if l.SaleID != saleID {
			kept = append(kept, l)
		}
	}
	r.lines = kept
	return nil
}

func (r *fakeSaleRepo) List(_ context.Context, _ dto.SaleFilter) ([]model.Sale, int64, error) {
	all := make([]model.Sale, 0, len(r.sales))
	for id, s := range r.sales {
		copied := *s
		copied.Lines = r.loadLines(id)
		all = append(all, copied)
	}
	return all, int64(len(all)), nil
}

func (r *fakeSaleRepo) CountFinalized(_ context.Context, _, _ time.Time) (int64, error) {
	var n int64
	for _, s := range r.sales {
		if s.Status == model.SaleFinalized {
			n++
		}
	}
	return n, nil
}

func (r *fakeSaleRepo) ReportByCategory(_ context.Context, _, _ time.Time) ([]repository.ReportRow, error) {
	return r.reportRows, nil
}

// ── In-memory StockMovementRepository ────────────────────────────────────────

type fakeStockMovementRepo struct {
	movements []model.StockMovement
}

func (r *fakeStockMovementRepo) CreateTx(_ *gorm.DB, m *model.StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeStockMovementRepo) ListByProduct(_ context.Context, productID uuid.UUID, _ int) ([]model.StockMovement, error) {
	var result []model.StockMovement
	for _, m := range r.movements {
		if m.ProductID == productID {
			result = append(result, m)
		}
	}
	return result, nil
}

// ── Test fixture ─────────────────────────────────────────────────────────────

type saleFixture struct {
	svc       SaleService
	sessions  CashSessionService
	products  *fakeProductRepo
	sales     *fakeSaleRepo
	stockMovs *fakeStockMovementRepo
	sessRepo  *fakeSessionRepo
}

func newSaleFixture() *saleFixture {
	products := newFakeProductRepo()
	sales := newFakeSaleRepo(products)
	stockMovs := &fakeStockMovementRepo{}
	sessRepo := newFakeSessionRepo()
	sessions := NewCashSessionService(sessRepo, nil)
	return &saleFixture{
		svc:       NewSaleService(sales, products, stockMovs, sessions, nil),
		sessions:  sessions,
		products:  products,
		sales:     sales,
		stockMovs: stockMovs,
		sessRepo:  sessRepo,
	}
}

func (f *saleFixture) addProduct(t *testing.T, name, price, taxRate string, stock, reorder int) *model.Product {
	t.Helper()
	p := &model.Product{
		Barcode:      "bc-" + name,
		Name:         name,
		Category:     "tobacco",
		UnitPrice:    dec(price),
		TaxRate:      dec(taxRate),
		StockOnHand:  stock,
		ReorderPoint: reorder,
		UnitMeasure:  "unit",
		Active:       true,
	}
	require.NoError(t, f.products.Create(context.Background(), p))
	return p
}

func (f *saleFixture) draftWith(t *testing.T, sessionID *uuid.UUID, lines ...dto.SaleLineRequest) uuid.UUID {
	t.Helper()
	req := dto.CreateSaleRequest{Lines: lines}
	if sessionID != nil {
		s := sessionID.String()
		req.CashSessionID = &s
	}
	resp, err := f.svc.CreateDraft(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

func lineReq(p *model.Product, qty int) dto.SaleLineRequest {
	return dto.SaleLineRequest{ProductID: p.ID.String(), Quantity: qty}
}

// ── Draft creation and line math ─────────────────────────────────────────────

func TestCreateDraftComputesLineTotals(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "cigarillos", "10.00", "0.21", 50, 5)

	id := f.draftWith(t, nil, lineReq(p, 3))
	sale, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)

	require.Len(t, sale.Lines, 1)
	line := sale.Lines[0]
	assert.True(t, line.LineSubtotal.Equal(dec("30.00")), "subtotal %s", line.LineSubtotal)
	assert.True(t, line.LineTax.Equal(dec("6.30")), "tax %s", line.LineTax)
	assert.True(t, line.LineTotal.Equal(dec("36.30")), "total %s", line.LineTotal)
	assert.True(t, sale.GrandTotal.Equal(sale.Subtotal.Add(sale.TaxTotal)))
	assert.Equal(t, model.SaleDraft, sale.Status)
}

func TestCreateDraftSnapshotsPrice(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "lighters", "2.50", "0.21", 50, 5)

	id := f.draftWith(t, nil, lineReq(p, 2))

	// price change after the draft must not affect the line
	p.UnitPrice = dec("99.99")
	require.NoError(t, f.products.Update(context.Background(), p))

	sale, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, sale.Lines[0].UnitPrice.Equal(dec("2.50")))
}

func TestCreateDraftInactiveProduct(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "discontinued", "5.00", "0.21", 50, 5)
	p.Active = false

	_, err := f.svc.CreateDraft(context.Background(), uuid.New(), dto.CreateSaleRequest{
		Lines: []dto.SaleLineRequest{lineReq(p, 1)},
	})
	requireKind(t, err, apierror.KindValidation)
}

func TestCreateDraftAgainstClosedSession(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "matches", "1.00", "0.21", 50, 5)
	sessionID := openTestSession(t, f.sessions, "100.00")
	_, err := f.sessions.Close(context.Background(), sessionID, dto.CloseSessionRequest{ClosingAmount: dec("100.00")})
	require.NoError(t, err)

	s := sessionID.String()
	_, err = f.svc.CreateDraft(context.Background(), uuid.New(), dto.CreateSaleRequest{
		CashSessionID: &s,
		Lines:         []dto.SaleLineRequest{lineReq(p, 1)},
	})
	requireKind(t, err, apierror.KindInvalidState)
}

// ── AddLine / RemoveLine ─────────────────────────────────────────────────────

func TestAddLineMergesSameProduct(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "cigars", "8.00", "0.21", 50, 5)
	id := f.draftWith(t, nil, lineReq(p, 2))

	resp, err := f.svc.AddLine(context.Background(), id, lineReq(p, 3))
	require.NoError(t, err)

	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 5, resp.Lines[0].Quantity)
	assert.True(t, resp.Lines[0].LineSubtotal.Equal(dec("40.00")))
}

func TestAddLineToFinalizedSale(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "pipe", "30.00", "0.21", 50, 5)
	id := f.draftWith(t, nil, lineReq(p, 1))
	require.NoError(t, f.svc.Finalize(context.Background(), id))

	_, err := f.svc.AddLine(context.Background(), id, lineReq(p, 1))
	requireKind(t, err, apierror.KindInvalidState)
}

func TestRemoveLineNotFound(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "tobacco-pouch", "12.00", "0.21", 50, 5)
	id := f.draftWith(t, nil, lineReq(p, 1))

	err := f.svc.RemoveLine(context.Background(), id, uuid.New(), "unit")
	requireKind(t, err, apierror.KindNotFound)
}

func TestRemoveLineRecalculates(t *testing.T) {
	f := newSaleFixture()
	a := f.addProduct(t, "brand-a", "10.00", "0.21", 50, 5)
	b := f.addProduct(t, "brand-b", "20.00", "0.21", 50, 5)
	id := f.draftWith(t, nil, lineReq(a, 1), lineReq(b, 1))

	require.NoError(t, f.svc.RemoveLine(context.Background(), id, b.ID, "unit"))

	sale, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, sale.Subtotal.Equal(dec("10.00")))
	assert.True(t, sale.GrandTotal.Equal(dec("12.10")))
}

// ── RecalculateTotals ────────────────────────────────────────────────────────

func TestRecalculateTotalsIdempotent(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "snuff", "7.00", "0.10", 50, 5)
	id := f.draftWith(t, nil, lineReq(p, 4))

	require.NoError(t, f.svc.RecalculateTotals(context.Background(), id))
	first, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, f.svc.RecalculateTotals(context.Background(), id))
	second, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.TaxTotal.Equal(second.TaxTotal))
	assert.True(t, first.GrandTotal.Equal(second.GrandTotal))
	assert.True(t, second.GrandTotal.Equal(dec("30.80")))
}

// ── Finalize ─────────────────────────────────────────────────────────────────

func TestFinalizeDecrementsStockAndRecordsCash(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "cigarettes", "10.00", "0.21", 10, 2)
	sessionID := openTestSession(t, f.sessions, "100.00")
	id := f.draftWith(t, &sessionID, lineReq(p, 3))

	require.NoError(t, f.svc.Finalize(context.Background(), id))

	sale, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.SaleFinalized, sale.Status)
	require.NotNil(t, sale.SoldAt)

	// stock: 10 - 3
	assert.Equal(t, 7, f.products.products[p.ID].StockOnHand)

	// stock ledger entry with signed quantity and before/after
	require.Len(t, f.stockMovs.movements, 1)
	mov := f.stockMovs.movements[0]
	assert.Equal(t, -3, mov.Quantity)
	assert.Equal(t, 10, mov.StockBefore)
	assert.Equal(t, 7, mov.StockAfter)

	// cash movement for the grand total appended to the session
	sum, err := f.sessRepo.SumMovements(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(dec("36.30")), "cash sum %s", sum)
}

func TestFinalizeInsufficientStockNamesAllShortProducts(t *testing.T) {
	f := newSaleFixture()
	ok := f.addProduct(t, "plenty", "5.00", "0.21", 100, 5)
	shortA := f.addProduct(t, "short-a", "5.00", "0.21", 1, 5)
	shortB := f.addProduct(t, "short-b", "5.00", "0.21", 0, 5)
	id := f.draftWith(t, nil, lineReq(ok, 2), lineReq(shortA, 3), lineReq(shortB, 1))

	err := f.svc.Finalize(context.Background(), id)
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindInsufficientStock, apiErr.Kind)
	assert.ElementsMatch(t, []string{"short-a", "short-b"}, apiErr.Products)

	// nothing was written: stock intact, sale still draft, no ledger entries
	assert.Equal(t, 100, f.products.products[ok.ID].StockOnHand)
	assert.Equal(t, 1, f.products.products[shortA.ID].StockOnHand)
	assert.Empty(t, f.stockMovs.movements)
	sale, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.SaleDraft, sale.Status)
}

func TestFinalizeWithoutSessionSkipsCashMovement(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "vendor-pack", "20.00", "0.21", 10, 2)
	id := f.draftWith(t, nil, lineReq(p, 1))

	require.NoError(t, f.svc.Finalize(context.Background(), id))

	assert.Empty(t, f.sessRepo.movements)
	assert.Equal(t, 9, f.products.products[p.ID].StockOnHand)
}

func TestFinalizeAgainstClosedSession(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "late-sale", "10.00", "0.21", 10, 2)
	sessionID := openTestSession(t, f.sessions, "100.00")
	id := f.draftWith(t, &sessionID, lineReq(p, 1))

	_, err := f.sessions.Close(context.Background(), sessionID, dto.CloseSessionRequest{ClosingAmount: dec("100.00")})
	require.NoError(t, err)

	err = f.svc.Finalize(context.Background(), id)
	requireKind(t, err, apierror.KindInvalidState)
	assert.Empty(t, f.sessRepo.movements)
}

func TestFinalizeEmptySale(t *testing.T) {
	f := newSaleFixture()
	id := f.draftWith(t, nil)

	err := f.svc.Finalize(context.Background(), id)
	requireKind(t, err, apierror.KindInvalidState)
}

func TestFinalizeTwice(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "double", "10.00", "0.21", 10, 2)
	id := f.draftWith(t, nil, lineReq(p, 1))

	require.NoError(t, f.svc.Finalize(context.Background(), id))
	err := f.svc.Finalize(context.Background(), id)
	requireKind(t, err, apierror.KindInvalidState)

	// stock only decremented once
	assert.Equal(t, 9, f.products.products[p.ID].StockOnHand)
}

// ── Cancel ───────────────────────────────────────────────────────────────────

func TestCancelDraftSale(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "cancelled-item", "10.00", "0.21", 10, 2)
	id := f.draftWith(t, nil, lineReq(p, 2))

	require.NoError(t, f.svc.Cancel(context.Background(), id))

	sale, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.SaleCancelled, sale.Status)
	assert.Empty(t, sale.Lines)
	// stock untouched: a draft never applied it
	assert.Equal(t, 10, f.products.products[p.ID].StockOnHand)
}

func TestCancelFinalizedSale(t *testing.T) {
	f := newSaleFixture()
	p := f.addProduct(t, "sold-item", "10.00", "0.21", 10, 2)
	id := f.draftWith(t, nil, lineReq(p, 1))
	require.NoError(t, f.svc.Finalize(context.Background(), id))

	err := f.svc.Cancel(context.Background(), id)
	requireKind(t, err, apierror.KindInvalidState)
}
