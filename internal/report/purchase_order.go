// Package report renders printable documents.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"pharmapos/internal/domain"

	"github.com/jung-kurt/gofpdf"
)

var lineColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 10, "C"},
	{"Product", 72, "L"},
	{"Unit", 22, "L"},
	{"Qty", 18, "R"},
	{"Unit cost", 28, "R"},
	{"Total", 30, "R"},
}

// PurchaseOrderPDF writes an A4 purchase order with its lines and total.
func PurchaseOrderPDF(w io.Writer, po domain.PurchaseOrder, storeName string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(po.Number, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(storeName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Purchase order "+po.Number, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	meta := [][2]string{
		{"Supplier", po.SupplierName},
		{"Status", string(po.Status)},
		{"Created", po.CreatedAt.Format(time.DateOnly)},
	}
	if po.OrderedAt != nil {
		meta = append(meta, [2]string{"Ordered", po.OrderedAt.Format(time.DateOnly)})
	}
	if po.ReceivedAt != nil {
		meta = append(meta, [2]string{"Received", po.ReceivedAt.Format(time.DateOnly)})
	}
	for _, m := range meta {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, 6, m[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(m[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range lineColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for i, line := range po.Lines {
		name := line.ProductName
		if name == "" {
			name = "#" + strconv.FormatInt(line.ProductID, 10)
		}
		cells := []string{
			strconv.Itoa(i + 1),
			tr(name),
			tr(line.UnitName),
			strconv.FormatInt(line.Quantity, 10),
			line.UnitCost.StringFixed(2),
			line.LineTotal.StringFixed(2),
		}
		for j, col := range lineColumns {
			pdf.CellFormat(col.width, 7, cells[j], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	totalWidth := 0.0
	for _, col := range lineColumns[:len(lineColumns)-1] {
		totalWidth += col.width
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(totalWidth, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(lineColumns[len(lineColumns)-1].width, 8, po.Total.StringFixed(2), "1", 1, "R", false, 0, "")

	if po.Notes != nil && *po.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr(*po.Notes), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render purchase order %s: %w", po.Number, err)
	}
	return nil
}
