// Package excel reads product and price lists from spreadsheets and writes
// inventory and trial balance workbooks.
package excel

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"pharmapos/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var ErrEmptyValue = errors.New("value is empty")

var headerAliases = map[string]string{
	"product_name":      "product_name",
	"product name":      "product_name",
	"product":           "product_name",
	"name":              "product_name",
	"نام محصول":         "product_name",
	"نام کالا":          "product_name",
	"نام دارو":          "product_name",
	"barcode":           "barcode",
	"bar code":          "barcode",
	"بارکد":             "barcode",
	"quantity":          "quantity",
	"qty":               "quantity",
	"stock":             "quantity",
	"تعداد":             "quantity",
	"موجودی":            "quantity",
	"avg_buy_price":     "avg_cost",
	"avg buy price":     "avg_cost",
	"average buy price": "avg_cost",
	"avg cost":          "avg_cost",
	"average cost":      "avg_cost",
	"قیمت خرید":         "avg_cost",
	"میانگین قیمت خرید": "avg_cost",
	"last buy price":    "last_cost",
	"last cost":         "last_cost",
	"آخرین قیمت خرید":   "last_cost",
	"sell price":        "sell_price",
	"sales price":       "sell_price",
	"price":             "sell_price",
	"قیمت فروش":         "sell_price",
	"alarm":             "reorder_level",
	"reorder level":     "reorder_level",
	"min stock":         "reorder_level",
	"آلارم":             "reorder_level",
	"حداقل موجودی":      "reorder_level",
	"unit":              "base_unit",
	"base unit":         "base_unit",
	"واحد":              "base_unit",
}

// ParseProductRows reads the first sheet of a product list. product_name and
// quantity columns are required; costs, sell price, barcode, reorder level
// and unit are optional.
func ParseProductRows(reader io.Reader) ([]domain.ProductImportRow, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	rows, err := firstSheetRows(file)
	if err != nil {
		return nil, err
	}

	colMap := mapColumns(rows[0], headerAliases)
	for _, required := range []string{"product_name", "quantity"} {
		if _, ok := colMap[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	result := make([]domain.ProductImportRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		name := cleanText(readCell(cells, colMap["product_name"]))
		if name == "" {
			continue
		}

		qty, err := parseInt(readCell(cells, colMap["quantity"]))
		if err != nil {
			return nil, fmt.Errorf("row %d invalid quantity: %w", index+1, err)
		}
		if qty < 0 {
			return nil, fmt.Errorf("row %d invalid quantity: must not be negative", index+1)
		}

		row := domain.ProductImportRow{
			Name:     name,
			Quantity: qty,
			AvgCost:  decimal.Zero,
			LastCost: decimal.Zero,
		}
		if row.AvgCost, err = optionalDecimal(cells, colMap, "avg_cost"); err != nil {
			return nil, fmt.Errorf("row %d invalid avg_cost: %w", index+1, err)
		}
		if row.LastCost, err = optionalDecimal(cells, colMap, "last_cost"); err != nil {
			return nil, fmt.Errorf("row %d invalid last_cost: %w", index+1, err)
		}
		if row.LastCost.IsZero() {
			row.LastCost = row.AvgCost
		}

		if raw := readOptionalCell(cells, colMap, "sell_price"); raw != "" {
			price, err := parseDecimal(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid sell_price: %w", index+1, err)
			}
			row.SellPrice = &price
		}
		if raw := readOptionalCell(cells, colMap, "reorder_level"); raw != "" {
			level, err := parseInt(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid reorder_level: %w", index+1, err)
			}
			row.ReorderLevel = &level
		}
		if barcode := readOptionalCell(cells, colMap, "barcode"); barcode != "" {
			row.Barcode = &barcode
		}
		row.BaseUnit = readOptionalCell(cells, colMap, "base_unit")

		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("excel file has no valid data rows")
	}
	return result, nil
}

func firstSheetRows(file *excelize.File) ([][]string, error) {
	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func mapColumns(header []string, aliases map[string]string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := aliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = arabicToPersianLetters.Replace(value)
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func readOptionalCell(row []string, colMap map[string]int, key string) string {
	idx, ok := colMap[key]
	if !ok {
		return ""
	}
	return cleanText(readCell(row, idx))
}

func optionalDecimal(row []string, colMap map[string]int, key string) (decimal.Decimal, error) {
	raw := readOptionalCell(row, colMap, key)
	if raw == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(raw)
}

func parseInt(raw string) (int64, error) {
	value := normalizeNumber(raw)
	if value == "" {
		return 0, ErrEmptyValue
	}
	asFloat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int64(asFloat), nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	value := normalizeNumber(raw)
	if value == "" {
		return decimal.Zero, ErrEmptyValue
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	if parsed.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return parsed, nil
}
