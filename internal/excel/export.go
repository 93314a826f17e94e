package excel

import (
	"fmt"
	"io"
	"time"

	"pharmapos/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	inventorySheet    = "Inventory"
	trialBalanceSheet = "Trial Balance"
)

// WriteInventory writes one row per product with its stock value at average
// cost.
func WriteInventory(w io.Writer, products []domain.Product) error {
	file, err := newWorkbook(inventorySheet)
	if err != nil {
		return err
	}
	defer file.Close()

	header := []any{"ID", "Name", "Barcode", "Base unit", "Quantity", "Avg cost", "Last cost", "Sell price", "Reorder level", "Stock value", "Active"}
	if err := writeHeader(file, inventorySheet, header); err != nil {
		return err
	}
	for i, p := range products {
		barcode := ""
		if p.Barcode != nil {
			barcode = *p.Barcode
		}
		var reorder any = ""
		if p.ReorderLevel != nil {
			reorder = *p.ReorderLevel
		}
		row := []any{
			p.ID,
			p.Name,
			barcode,
			p.BaseUnit,
			p.Quantity,
			p.AvgCost.InexactFloat64(),
			p.LastCost.InexactFloat64(),
			p.SellPrice.InexactFloat64(),
			reorder,
			p.StockValue().Round(2).InexactFloat64(),
			p.Active,
		}
		if err := setRow(file, inventorySheet, i+2, row); err != nil {
			return err
		}
	}
	if err := file.SetColWidth(inventorySheet, "B", "B", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return writeTo(file, w)
}

// WriteTrialBalance writes the trial balance rows followed by a totals row.
func WriteTrialBalance(w io.Writer, tb domain.TrialBalance) error {
	file, err := newWorkbook(trialBalanceSheet)
	if err != nil {
		return err
	}
	defer file.Close()

	asOf := "current"
	if tb.AsOf != nil {
		asOf = tb.AsOf.Format(time.DateOnly)
	}
	if err := file.SetCellValue(trialBalanceSheet, "A1", "Trial balance as of "+asOf); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := setRow(file, trialBalanceSheet, 2, []any{"Code", "Account", "Type", "Debit", "Credit"}); err != nil {
		return err
	}
	bold, err := boldStyle(file)
	if err != nil {
		return err
	}
	if err := file.SetRowStyle(trialBalanceSheet, 1, 2, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 3
	for _, r := range tb.Rows {
		if err := setRow(file, trialBalanceSheet, row, []any{
			r.Code,
			r.Name,
			string(r.Type),
			r.Debit.InexactFloat64(),
			r.Credit.InexactFloat64(),
		}); err != nil {
			return err
		}
		row++
	}
	if err := setRow(file, trialBalanceSheet, row, []any{
		"",
		"Total",
		"",
		tb.TotalDebit.InexactFloat64(),
		tb.TotalCredit.InexactFloat64(),
	}); err != nil {
		return err
	}
	if err := file.SetRowStyle(trialBalanceSheet, row, row, bold); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}
	if !tb.Balanced {
		if err := setRow(file, trialBalanceSheet, row+1, []any{"", "Difference", "", tb.Difference.InexactFloat64()}); err != nil {
			return err
		}
	}
	if err := file.SetColWidth(trialBalanceSheet, "B", "B", 36); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return writeTo(file, w)
}

func newWorkbook(sheet string) (*excelize.File, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName(file.GetSheetName(0), sheet); err != nil {
		file.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	return file, nil
}

func boldStyle(file *excelize.File) (int, error) {
	style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	return style, nil
}

func writeHeader(file *excelize.File, sheet string, header []any) error {
	if err := setRow(file, sheet, 1, header); err != nil {
		return err
	}
	bold, err := boldStyle(file)
	if err != nil {
		return err
	}
	if err := file.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	return nil
}

func setRow(file *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func writeTo(file *excelize.File, w io.Writer) error {
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
