package handler

import (
	"net/http"
	"strconv"

	"estancopro/internal/dto"
	"estancopro/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	svc   service.ProductService
	stock service.StockService
}

func NewProductHandler(svc service.ProductService, stock service.StockService) *ProductHandler {
	return &ProductHandler{svc: svc, stock: stock}
}

// Create godoc
// @Summary Register a new product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateProductRequest true "Product"
// @Success 201 {object} dto.ProductResponse
// @Failure 400 {object} apierror.Error
// @Failure 409 {object} apierror.Error
// @Router /v1/products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get returns one product by id.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetByBarcode is the scanner lookup used at the register.
func (h *ProductHandler) GetByBarcode(c *gin.Context) {
	resp, err := h.svc.GetByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List returns products filtered by barcode, name, category and active state.
func (h *ProductHandler) List(c *gin.Context) {
	var filter dto.ProductFilter
	if !bindQueryAndValidate(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LowStock lists active products at or below their reorder point.
func (h *ProductHandler) LowStock(c *gin.Context) {
	resp, err := h.svc.ListLowStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Deactivate soft-deletes a product.
func (h *ProductHandler) Deactivate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AdjustStock godoc
// @Summary Apply a manual signed stock adjustment
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Param body body dto.AdjustStockRequest true "Adjustment"
// @Success 200 {object} dto.ProductResponse
// @Failure 400 {object} apierror.Error
// @Failure 404 {object} apierror.Error
// @Router /v1/products/{id}/stock [post]
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.stock.AdjustStock(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StockMovements returns the most recent ledger entries for a product.
func (h *ProductHandler) StockMovements(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	resp, err := h.stock.Movements(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
