package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type ReportService interface {
	// SalesReport aggregates finalized sales per product category over an
	// inclusive [from, to] date range (YYYY-MM-DD).
	SalesReport(ctx context.Context, filter dto.ReportFilter) (*dto.SalesReportResponse, error)
	// ExportSalesReport renders the same report as an .xlsx workbook.
	ExportSalesReport(ctx context.Context, filter dto.ReportFilter) (*bytes.Buffer, string, error)
}

type reportService struct {
	sales repository.SaleRepository
}

func NewReportService(sales repository.SaleRepository) ReportService {
	return &reportService{sales: sales}
}

const dateLayout = "2006-01-02"

// parseRange turns inclusive YYYY-MM-DD bounds into a [from, toExclusive)
// time window.
func parseRange(filter dto.ReportFilter) (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, filter.From)
	if err != nil {
		return time.Time{}, time.Time{}, apierror.Validation("from must be a YYYY-MM-DD date")
	}
	to, err := time.Parse(dateLayout, filter.To)
	if err != nil {
		return time.Time{}, time.Time{}, apierror.Validation("to must be a YYYY-MM-DD date")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apierror.Validation("to cannot be before from")
	}
	return from, to.Add(24 * time.Hour), nil
}

func (s *reportService) SalesReport(ctx context.Context, filter dto.ReportFilter) (*dto.SalesReportResponse, error) {
	from, toExcl, err := parseRange(filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.sales.ReportByCategory(ctx, from, toExcl)
	if err != nil {
		return nil, err
	}
	count, err := s.sales.CountFinalized(ctx, from, toExcl)
	if err != nil {
		return nil, err
	}

	resp := &dto.SalesReportResponse{
		From:       filter.From,
		To:         filter.To,
		SaleCount:  count,
		Subtotal:   decimal.Zero,
		TaxTotal:   decimal.Zero,
		GrandTotal: decimal.Zero,
		Categories: make([]dto.CategoryTotals, 0, len(rows)),
	}

	for _, row := range rows {
		cat, err := rowToCategory(row)
		if err != nil {
			return nil, err
		}
		resp.Categories = append(resp.Categories, cat)
		resp.Subtotal = resp.Subtotal.Add(cat.Subtotal)
		resp.TaxTotal = resp.TaxTotal.Add(cat.TaxTotal)
		resp.GrandTotal = resp.GrandTotal.Add(cat.GrandTotal)
	}
	return resp, nil
}

// rowToCategory parses the SUM() columns, which arrive from the driver as
// strings so no float precision is lost.
func rowToCategory(row repository.ReportRow) (dto.CategoryTotals, error) {
	subtotal, err := decimal.NewFromString(row.Subtotal)
	if err != nil {
		return dto.CategoryTotals{}, fmt.Errorf("report: bad subtotal for %s: %w", row.Category, err)
	}
	taxTotal, err := decimal.NewFromString(row.TaxTotal)
	if err != nil {
		return dto.CategoryTotals{}, fmt.Errorf("report: bad tax total for %s: %w", row.Category, err)
	}
	grandTotal, err := decimal.NewFromString(row.GrandTotal)
	if err != nil {
		return dto.CategoryTotals{}, fmt.Errorf("report: bad grand total for %s: %w", row.Category, err)
	}
	return dto.CategoryTotals{
		Category:   row.Category,
		Units:      row.Units,
		Subtotal:   subtotal,
		TaxTotal:   taxTotal,
		GrandTotal: grandTotal,
	}, nil
}

func (s *reportService) ExportSalesReport(ctx context.Context, filter dto.ReportFilter) (*bytes.Buffer, string, error) {
	report, err := s.SalesReport(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sales"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Category", "Units", "Subtotal", "Tax", "Total"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, cat := range report.Categories {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), cat.Category)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), cat.Units)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), cat.Subtotal.StringFixed(2))
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), cat.TaxTotal.StringFixed(2))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), cat.GrandTotal.StringFixed(2))
		row++
	}

	row++
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "TOTAL")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), report.SaleCount)
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row), report.Subtotal.StringFixed(2))
	f.SetCellValue(sheet, fmt.Sprintf("D%d", row), report.TaxTotal.StringFixed(2))
	f.SetCellValue(sheet, fmt.Sprintf("E%d", row), report.GrandTotal.StringFixed(2))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("sales_%s_%s.xlsx", report.From, report.To)
	return buf, filename, nil
}
