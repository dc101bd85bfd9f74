package repository

import (
	"context"
	"time"

	"estancopro/internal/dto"
	"estancopro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRow is one aggregated category bucket for the sales report query.
type ReportRow struct {
	Category   string
	Units      int64
	Subtotal   string
	TaxTotal   string
	GrandTotal string
}

type SaleRepository interface {
	Create(ctx context.Context, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	// FindByIDForUpdate locks the sale row for the duration of the finalize /
	// cancel transaction. Lines are loaded separately to keep the lock narrow.
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	FindLines(ctx context.Context, saleID uuid.UUID) ([]model.SaleLine, error)
	FindLinesTx(tx *gorm.DB, saleID uuid.UUID) ([]model.SaleLine, error)
	AddLine(ctx context.Context, line *model.SaleLine) error
	RemoveLine(ctx context.Context, saleID, productID uuid.UUID, unitMeasure string) (int64, error)
	UpdateLine(ctx context.Context, line *model.SaleLine) error
	UpdateTotals(ctx context.Context, s *model.Sale) error
	UpdateSaleTx(tx *gorm.DB, s *model.Sale) error
	DeleteLinesTx(tx *gorm.DB, saleID uuid.UUID) error
	List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error)
	CountFinalized(ctx context.Context, from, to time.Time) (int64, error)
	ReportByCategory(ctx context.Context, from, to time.Time) ([]ReportRow, error)
	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) Create(ctx context.Context, s *model.Sale) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Preload("Lines.Product").First(&s, id).Error
	return &s, err
}

func (r *saleRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, id).Error
	return &s, err
}

func (r *saleRepo) FindLines(ctx context.Context, saleID uuid.UUID) ([]model.SaleLine, error) {
	var lines []model.SaleLine
	err := r.db.WithContext(ctx).Preload("Product").Where("sale_id = ?", saleID).Find(&lines).Error
	return lines, err
}

func (r *saleRepo) FindLinesTx(tx *gorm.DB, saleID uuid.UUID) ([]model.SaleLine, error) {
	var lines []model.SaleLine
	err := tx.Preload("Product").Where("sale_id = ?", saleID).Find(&lines).Error
	return lines, err
}

func (r *saleRepo) AddLine(ctx context.Context, line *model.SaleLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// RemoveLine returns the number of rows deleted so the service can answer
// NotFound when the line never existed.
func (r *saleRepo) RemoveLine(ctx context.Context, saleID, productID uuid.UUID, unitMeasure string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("sale_id = ? AND product_id = ? AND unit_measure = ?", saleID, productID, unitMeasure).
		Delete(&model.SaleLine{})
	return res.RowsAffected, res.Error
}

func (r *saleRepo) UpdateLine(ctx context.Context, line *model.SaleLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

func (r *saleRepo) UpdateTotals(ctx context.Context, s *model.Sale) error {
	return r.db.WithContext(ctx).Model(&model.Sale{}).Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"subtotal":    s.Subtotal,
			"tax_total":   s.TaxTotal,
			"grand_total": s.GrandTotal,
		}).Error
}

func (r *saleRepo) UpdateSaleTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Save(s).Error
}

func (r *saleRepo) DeleteLinesTx(tx *gorm.DB, saleID uuid.UUID) error {
	return tx.Where("sale_id = ?", saleID).Delete(&model.SaleLine{}).Error
}

func (r *saleRepo) List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Sale{})

	if filter.Status != "" && filter.Status != "all" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CashSessionID != "" {
		q = q.Where("cash_session_id = ?", filter.CashSessionID)
	}
	if filter.From != "" {
		q = q.Where("DATE(created_at) >= ?", filter.From)
	}
	if filter.To != "" {
		q = q.Where("DATE(created_at) <= ?", filter.To)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("Lines.Product").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&sales).Error
	return sales, total, err
}

func (r *saleRepo) CountFinalized(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Where("status = ? AND sold_at >= ? AND sold_at < ?", model.SaleFinalized, from, to).
		Count(&n).Error
	return n, err
}

// ReportByCategory aggregates finalized sale lines in [from, to) grouped by
// product category. Sums are scanned as strings and parsed into decimals by
// the service to avoid float rounding.
func (r *saleRepo) ReportByCategory(ctx context.Context, from, to time.Time) ([]ReportRow, error) {
	var rows []ReportRow
	err := r.db.WithContext(ctx).
		Table("sale_lines").
		Select(`products.category AS category,
			SUM(sale_lines.quantity)      AS units,
			SUM(sale_lines.line_subtotal) AS subtotal,
			SUM(sale_lines.line_tax)      AS tax_total,
			SUM(sale_lines.line_total)    AS grand_total`).
		Joins("JOIN sales ON sales.id = sale_lines.sale_id").
		Joins("JOIN products ON products.id = sale_lines.product_id").
		Where("sales.status = ? AND sales.sold_at >= ? AND sales.sold_at < ?", model.SaleFinalized, from, to).
		Group("products.category").
		Order("products.category ASC").
		Scan(&rows).Error
	return rows, err
}
