package service

import (
	"context"
	"testing"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesReportAggregatesCategories(t *testing.T) {
	products := newFakeProductRepo()
	sales := newFakeSaleRepo(products)
	sales.reportRows = []repository.ReportRow{
		{Category: "accessories", Units: 4, Subtotal: "40.00", TaxTotal: "8.40", GrandTotal: "48.40"},
		{Category: "tobacco", Units: 10, Subtotal: "100.00", TaxTotal: "21.00", GrandTotal: "121.00"},
	}
	svc := NewReportService(sales)

	resp, err := svc.SalesReport(context.Background(), dto.ReportFilter{From: "2026-08-01", To: "2026-08-31"})
	require.NoError(t, err)

	require.Len(t, resp.Categories, 2)
	assert.True(t, resp.Subtotal.Equal(dec("140.00")))
	assert.True(t, resp.TaxTotal.Equal(dec("29.40")))
	assert.True(t, resp.GrandTotal.Equal(dec("169.40")))
	assert.True(t, resp.GrandTotal.Equal(resp.Subtotal.Add(resp.TaxTotal)))
}

func TestSalesReportRejectsBadDates(t *testing.T) {
	svc := NewReportService(newFakeSaleRepo(newFakeProductRepo()))

	_, err := svc.SalesReport(context.Background(), dto.ReportFilter{From: "not-a-date", To: "2026-08-31"})
	requireKind(t, err, apierror.KindValidation)

	_, err = svc.SalesReport(context.Background(), dto.ReportFilter{From: "2026-08-31", To: "2026-08-01"})
	requireKind(t, err, apierror.KindValidation)
}

func TestExportSalesReportProducesWorkbook(t *testing.T) {
	products := newFakeProductRepo()
	sales := newFakeSaleRepo(products)
	sales.reportRows = []repository.ReportRow{
		{Category: "tobacco", Units: 2, Subtotal: "20.00", TaxTotal: "4.20", GrandTotal: "24.20"},
	}
	svc := NewReportService(sales)

	buf, filename, err := svc.ExportSalesReport(context.Background(), dto.ReportFilter{From: "2026-08-01", To: "2026-08-31"})
	require.NoError(t, err)
	assert.Equal(t, "sales_2026-08-01_2026-08-31.xlsx", filename)
	assert.Greater(t, buf.Len(), 0)
}
