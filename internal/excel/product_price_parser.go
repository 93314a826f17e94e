package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/textnorm"

	"github.com/xuri/excelize/v2"
)

var (
	persianDigitsReplacer = strings.NewReplacer(
		"۰", "0",
		"۱", "1",
		"۲", "2",
		"۳", "3",
		"۴", "4",
		"۵", "5",
		"۶", "6",
		"۷", "7",
		"۸", "8",
		"۹", "9",
	)
	arabicDigitsReplacer = strings.NewReplacer(
		"٠", "0",
		"١", "1",
		"٢", "2",
		"٣", "3",
		"٤", "4",
		"٥", "5",
		"٦", "6",
		"٧", "7",
		"٨", "8",
		"٩", "9",
	)
	arabicToPersianLetters = strings.NewReplacer(
		"ي", "ی",
		"ك", "ک",
		"ة", "ه",
		"ۀ", "ه",
		"ؤ", "و",
		"أ", "ا",
		"إ", "ا",
		"ٱ", "ا",
		"ئ", "ی",
	)
	priceAliases = map[string]string{
		"product_name": "product_name",
		"product name": "product_name",
		"product":      "product_name",
		"name":         "product_name",
		"title":        "product_name",
		"نام کالا":     "product_name",
		"نام محصول":    "product_name",
		"نام دارو":     "product_name",
		"price":        "price",
		"sell price":   "price",
		"sales price":  "price",
		"unit price":   "price",
		"قیمت":         "price",
		"قیمت فروش":    "price",
	}
)

// ParsePriceRows reads a name/price list from CSV or XLSX. The format is
// picked by extension and sniffed when the extension is unknown. Duplicate
// name and price pairs collapse to one row.
func ParsePriceRows(fileName string, reader io.Reader) ([]domain.PriceRow, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(fileName)))
	switch ext {
	case ".csv":
		rows, err := parseCSVRows(data)
		if err != nil {
			return nil, err
		}
		return parsePriceTable(rows)
	case ".xlsx", ".xlsm":
		rows, err := parseExcelRows(data)
		if err != nil {
			return nil, err
		}
		return parsePriceTable(rows)
	default:
		if rows, err := parseExcelRows(data); err == nil {
			if items, err := parsePriceTable(rows); err == nil {
				return items, nil
			}
		}
		if rows, err := parseCSVRows(data); err == nil {
			if items, err := parsePriceTable(rows); err == nil {
				return items, nil
			}
		}
		return nil, fmt.Errorf("unsupported or invalid price file format")
	}
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()
	return firstSheetRows(file)
}

func parsePriceTable(rows [][]string) ([]domain.PriceRow, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	colMap := mapColumns(rows[0], priceAliases)
	if !hasRequiredColumns(colMap, "product_name", "price") {
		return nil, fmt.Errorf("missing required columns: product_name and price")
	}

	result := make([]domain.PriceRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		name := cleanText(readCell(cells, colMap["product_name"]))
		if name == "" {
			continue
		}
		rawPrice := cleanText(readCell(cells, colMap["price"]))
		if rawPrice == "" {
			continue
		}
		price, err := parseDecimal(rawPrice)
		if err != nil {
			return nil, fmt.Errorf("row %d invalid price: %w", index+1, err)
		}
		result = append(result, domain.PriceRow{Name: name, Price: price})
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("file has no valid price rows")
	}
	return uniquePriceRows(result), nil
}

func hasRequiredColumns(colMap map[string]int, required ...string) bool {
	for _, key := range required {
		if _, ok := colMap[key]; !ok {
			return false
		}
	}
	return true
}

func uniquePriceRows(rows []domain.PriceRow) []domain.PriceRow {
	seen := make(map[string]struct{}, len(rows))
	result := make([]domain.PriceRow, 0, len(rows))
	for _, row := range rows {
		key := textnorm.Name(row.Name) + "|" + row.Price.String()
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, row)
	}
	return result
}

func normalizeNumber(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = persianDigitsReplacer.Replace(value)
	value = arabicDigitsReplacer.Replace(value)
	value = strings.ReplaceAll(value, "٬", "")
	value = strings.ReplaceAll(value, ",", "")
	value = strings.ReplaceAll(value, "،", "")
	value = strings.ReplaceAll(value, "٫", ".")
	return strings.TrimSpace(value)
}

func cleanText(value string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return ""
	}
	text = arabicToPersianLetters.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}
