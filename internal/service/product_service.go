package service

import (
	"context"
	"strings"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/model"
	"estancopro/internal/repository"

	"github.com/google/uuid"
)

type ProductService interface {
	Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	GetByBarcode(ctx context.Context, barcode string) (*dto.ProductResponse, error)
	List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	ListLowStock(ctx context.Context) ([]dto.ProductResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

func (s *productService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if req.UnitPrice.IsNegative() {
		return nil, apierror.Validation("unit_price cannot be negative")
	}
	if req.TaxRate.IsNegative() {
		return nil, apierror.Validation("tax_rate cannot be negative")
	}

	if existing, err := s.repo.FindByBarcode(ctx, req.Barcode); err == nil && existing != nil {
		return nil, apierror.Conflict("a product with that barcode already exists")
	}

	unitMeasure := req.UnitMeasure
	if unitMeasure == "" {
		unitMeasure = "unit"
	}

	p := &model.Product{
		Barcode:      strings.TrimSpace(req.Barcode),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Category:     req.Category,
		UnitCost:     req.UnitCost,
		UnitPrice:    req.UnitPrice,
		TaxRate:      req.TaxRate,
		StockOnHand:  req.StockOnHand,
		ReorderPoint: req.ReorderPoint,
		UnitMeasure:  unitMeasure,
		Active:       true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return productToResponse(p), nil
}

func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apierror.NotFound("product not found")
	}
	return productToResponse(p), nil
}

func (s *productService) GetByBarcode(ctx context.Context, barcode string) (*dto.ProductResponse, error) {
	p, err := s.repo.FindByBarcode(ctx, barcode)
	if err != nil {
		return nil, apierror.NotFound("product not found")
	}
	return productToResponse(p), nil
}

func (s *productService) List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		data = append(data, *productToResponse(&products[i]))
	}
	return &dto.ProductListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *productService) ListLowStock(ctx context.Context) ([]dto.ProductResponse, error) {
	products, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	data := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		data = append(data, *productToResponse(&products[i]))
	}
	return data, nil
}

// Deactivate soft-deletes: the product disappears from active listings and can
// no longer be added to drafts, but history referencing it stays intact.
func (s *productService) Deactivate(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return apierror.NotFound("product not found")
	}
	if !p.Active {
		return apierror.InvalidState("product is already inactive")
	}
	p.Active = false
	return s.repo.Update(ctx, p)
}

func productToResponse(p *model.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:           p.ID.String(),
		Barcode:      p.Barcode,
		Name:         p.Name,
		Description:  p.Description,
		Category:     p.Category,
		UnitCost:     p.UnitCost,
		UnitPrice:    p.UnitPrice,
		TaxRate:      p.TaxRate,
		StockOnHand:  p.StockOnHand,
		ReorderPoint: p.ReorderPoint,
		UnitMeasure:  p.UnitMeasure,
		Active:       p.Active,
	}
}
