package excel

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pharmapos/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	file := excelize.NewFile()
	defer file.Close()
	sheet := file.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return &buf
}

func TestParseProductRows(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Product Name", "Qty", "Avg Buy Price", "Sell_Price", "Alarm", "Barcode", "Unit"},
		{"Paracetamol 500", "1,200", "0.35", "0.60", "100", "6260000000011", "tablet"},
		{"", "5", "1"},
		{"Ibuprofen 400", "۲۵", "", "", "", "", ""},
	})

	rows, err := ParseProductRows(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "Paracetamol 500", first.Name)
	assert.Equal(t, int64(1200), first.Quantity)
	assert.True(t, first.AvgCost.Equal(decimal.RequireFromString("0.35")))
	assert.True(t, first.LastCost.Equal(first.AvgCost))
	require.NotNil(t, first.SellPrice)
	assert.True(t, first.SellPrice.Equal(decimal.RequireFromString("0.6")))
	require.NotNil(t, first.ReorderLevel)
	assert.Equal(t, int64(100), *first.ReorderLevel)
	require.NotNil(t, first.Barcode)
	assert.Equal(t, "6260000000011", *first.Barcode)
	assert.Equal(t, "tablet", first.BaseUnit)

	second := rows[1]
	assert.Equal(t, int64(25), second.Quantity)
	assert.True(t, second.AvgCost.IsZero())
	assert.Nil(t, second.SellPrice)
}

func TestParseProductRowsErrors(t *testing.T) {
	cases := []struct {
		name string
		rows [][]any
		want string
	}{
		{name: "missing quantity column", rows: [][]any{{"name", "price"}, {"A", "1"}}, want: "missing required column: quantity"},
		{name: "fractional quantity", rows: [][]any{{"name", "qty"}, {"A", "1.5"}}, want: "row 2 invalid quantity"},
		{name: "negative cost", rows: [][]any{{"name", "qty", "avg cost"}, {"A", "1", "-2"}}, want: "row 2 invalid avg_cost"},
		{name: "no data", rows: [][]any{{"name", "qty"}}, want: "no valid data rows"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProductRows(workbook(t, tc.rows))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParsePriceRowsCSV(t *testing.T) {
	data := "\ufeffname,price\n" +
		"Paracetamol 500,\"1,250\"\n" +
		"Paracetamol 500,\"1,250\"\n" +
		"Vitamin C,۳۵٫۵\n" +
		"Empty,\n"

	rows, err := ParsePriceRows("prices.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Paracetamol 500", rows[0].Name)
	assert.True(t, rows[0].Price.Equal(decimal.NewFromInt(1250)))
	assert.True(t, rows[1].Price.Equal(decimal.RequireFromString("35.5")))
}

func TestParsePriceRowsSniffsFormat(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Product", "Unit Price"},
		{"Cetirizine 10", "0.45"},
	})
	rows, err := ParsePriceRows("upload", buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cetirizine 10", rows[0].Name)

	_, err = ParsePriceRows("prices.csv", strings.NewReader("sku,cost\nA,1\n"))
	require.Error(t, err)
}

func TestWriteInventoryRoundTrip(t *testing.T) {
	barcode := "123"
	level := int64(10)
	var buf bytes.Buffer
	err := WriteInventory(&buf, []domain.Product{{
		ID:           7,
		Name:         "Amoxicillin 500",
		Barcode:      &barcode,
		BaseUnit:     "capsule",
		Quantity:     40,
		AvgCost:      decimal.RequireFromString("2.875"),
		LastCost:     decimal.RequireFromString("4"),
		SellPrice:    decimal.RequireFromString("5"),
		ReorderLevel: &level,
		Active:       true,
	}})
	require.NoError(t, err)

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()
	rows, err := file.GetRows(inventorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Name", rows[0][1])
	assert.Equal(t, "Amoxicillin 500", rows[1][1])
	assert.Equal(t, "40", rows[1][4])
	assert.Equal(t, "115", rows[1][9])
}

func TestWriteTrialBalance(t *testing.T) {
	asOf := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	tb := domain.TrialBalance{
		AsOf: &asOf,
		Rows: []domain.TrialBalanceRow{
			{Code: "1000", Name: "Cash on Hand", Type: domain.AccountAsset, Debit: decimal.NewFromInt(100), Credit: decimal.Zero},
			{Code: "4000", Name: "Sales Revenue", Type: domain.AccountRevenue, Debit: decimal.Zero, Credit: decimal.NewFromInt(100)},
		},
		TotalDebit:  decimal.NewFromInt(100),
		TotalCredit: decimal.NewFromInt(100),
		Difference:  decimal.Zero,
		Balanced:    true,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTrialBalance(&buf, tb))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()
	rows, err := file.GetRows(trialBalanceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Trial balance as of 2026-03-31", rows[0][0])
	assert.Equal(t, "Cash on Hand", rows[2][1])
	assert.Equal(t, "Total", rows[4][1])
	assert.Equal(t, "100", rows[4][3])
}
