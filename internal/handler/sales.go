package handler

import (
	"fmt"
	"net/http"

	"estancopro/internal/dto"
	"estancopro/internal/middleware"
	"estancopro/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SaleHandler struct {
	svc     service.SaleService
	reports service.ReportService
}

func NewSaleHandler(svc service.SaleService, reports service.ReportService) *SaleHandler {
	return &SaleHandler{svc: svc, reports: reports}
}

// Create godoc
// @Summary Create a draft sale
// @Tags sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateSaleRequest true "Draft sale"
// @Success 201 {object} dto.SaleResponse
// @Failure 400 {object} apierror.Error
// @Router /v1/sales [post]
func (h *SaleHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	userID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.CreateDraft(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// AddLine godoc
// @Summary Add a line to a draft sale (merges same product and unit)
// @Tags sales
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Sale ID"
// @Param body body dto.SaleLineRequest true "Line"
// @Success 200 {object} dto.SaleResponse
// @Failure 404 {object} apierror.Error
// @Failure 409 {object} apierror.Error
// @Router /v1/sales/{id}/lines [post]
func (h *SaleHandler) AddLine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.SaleLineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddLine(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveLine deletes one line, identified by product and unit of measure.
func (h *SaleHandler) RemoveLine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	productID, ok := parseIDParam(c, "productId")
	if !ok {
		return
	}
	unitMeasure := c.DefaultQuery("unit_measure", "unit")

	if err := h.svc.RemoveLine(c.Request.Context(), id, productID, unitMeasure); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Recalculate re-derives header totals from the lines. Idempotent.
func (h *SaleHandler) Recalculate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.RecalculateTotals(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Finalize godoc
// @Summary Finalize a draft sale: decrement stock, record the cash movement
// @Tags sales
// @Produce json
// @Security BearerAuth
// @Param id path string true "Sale ID"
// @Success 200 {object} dto.SaleResponse
// @Failure 404 {object} apierror.Error
// @Failure 409 {object} apierror.Error
// @Router /v1/sales/{id}/finalize [post]
func (h *SaleHandler) Finalize(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Finalize(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel voids a draft sale.
func (h *SaleHandler) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get returns one sale with its lines.
func (h *SaleHandler) Get(c *gin.Context) {
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

// List returns sales filtered by session, date range and status.
func (h *SaleHandler) List(c *gin.Context) {
	var filter dto.SaleFilter
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

// Report godoc
// @Summary Sales report per product category over a date range
// @Tags sales
// @Produce json
// @Security BearerAuth
// @Param from query string true "YYYY-MM-DD inclusive"
// @Param to query string true "YYYY-MM-DD inclusive"
// @Success 200 {object} dto.SalesReportResponse
// @Failure 400 {object} apierror.Error
// @Router /v1/sales/report [get]
func (h *SaleHandler) Report(c *gin.Context) {
	var filter dto.ReportFilter
	if !bindQueryAndValidate(c, &filter) {
		return
	}
	resp, err := h.reports.SalesReport(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExportReport streams the sales report as an .xlsx download.
func (h *SaleHandler) ExportReport(c *gin.Context) {
	var filter dto.ReportFilter
	if !bindQueryAndValidate(c, &filter) {
		return
	}
	buf, filename, err := h.reports.ExportSalesReport(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
