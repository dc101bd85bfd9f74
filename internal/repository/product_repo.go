package repository

import (
	"context"

	"estancopro/internal/dto"
	"estancopro/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via in-memory fakes.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByBarcode(ctx context.Context, barcode string) (*model.Product, error)
	List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error)
	ListLowStock(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error

	// Used inside transactions, callers must pass the tx instance.
	// FindByIDForUpdate takes a row lock so concurrent finalizations against
	// the same product serialize on it.
	FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Product, error)
	// DecrementStockTx is a guarded decrement: affects zero rows when stock on
	// hand is below qty, so stock can never go negative.
	DecrementStockTx(tx *gorm.DB, id uuid.UUID, qty int) (int64, error)
	AdjustStockTx(tx *gorm.DB, id uuid.UUID, delta int) error

	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *productRepo) FindByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("barcode = ? AND active = true", barcode).First(&p).Error
	return &p, err
}

func (r *productRepo) List(ctx context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Product{})

	// Active filter: "false" = inactive, "all" = everything, default = active
	switch filter.Active {
	case "false":
		q = q.Where("active = false")
	case "all":
		// no filter
	default:
		q = q.Where("active = true")
	}

	if filter.Barcode != "" {
		q = q.Where("barcode = ?", filter.Barcode)
	}
	if filter.Name != "" {
		q = q.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("name ASC").Limit(filter.Limit).Offset(offset).Find(&products).Error
	return products, total, err
}

func (r *productRepo) ListLowStock(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("active = true AND stock_on_hand <= reorder_point").
		Order("stock_on_hand ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *productRepo) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	return &p, err
}

func (r *productRepo) DecrementStockTx(tx *gorm.DB, id uuid.UUID, qty int) (int64, error) {
	res := tx.Model(&model.Product{}).
		Where("id = ? AND stock_on_hand >= ?", id, qty).
		Update("stock_on_hand", gorm.Expr("stock_on_hand - ?", qty))
	return res.RowsAffected, res.Error
}

func (r *productRepo) AdjustStockTx(tx *gorm.DB, id uuid.UUID, delta int) error {
	return tx.Model(&model.Product{}).Where("id = ?", id).
		Update("stock_on_hand", gorm.Expr("stock_on_hand + ?", delta)).Error
}
