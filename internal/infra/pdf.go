package infra

// Thermal receipt-style PDF generation using go-pdf/fpdf.
// The output file is saved to storagePath/receipt_{saleID}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"estancopro/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateReceiptPDF renders the receipt for a finalized sale.
// storagePath is the directory where the PDF will be written (created if
// needed). Returns the absolute path to the generated file.
func GenerateReceiptPDF(sale *model.Sale, storagePath, storeName string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("receipt_%s.pdf", sale.ID)
	filePath := filepath.Join(storagePath, fileName)

	// 74mm x 105mm, close to thermal receipt paper
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 105},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8 // total margins = 8mm

	// Header
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, storeName, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Sales Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// Sale info
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("Sale %s", sale.ID.String()[:8]), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	if sale.SoldAt != nil {
		pdf.CellFormat(contentW, 4, sale.SoldAt.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// Line items header
	col1 := contentW * 0.52 // product name
	col2 := contentW * 0.16 // qty
	col3 := contentW * 0.32 // line total

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Product", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, line := range sale.Lines {
		name := ""
		if line.Product != nil {
			name = line.Product.Name
		}
		if len(name) > 22 {
			name = name[:21] + "."
		}
		pdf.CellFormat(col1, 5, name, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", line.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, "$"+line.LineTotal.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// Totals
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(col1+col2, 5, "Subtotal:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 5, "$"+sale.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(col1+col2, 5, "Tax:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 5, "$"+sale.TaxTotal.StringFixed(2), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "$"+sale.GrandTotal.StringFixed(2), "", 1, "R", false, 0, "")

	// Footer
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for your purchase!", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}
