package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pharmapos/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAsOf(t *testing.T) {
	none, err := parseAsOf("")
	require.NoError(t, err)
	assert.Nil(t, none)

	day, err := parseAsOf("2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 23, 59, 59, 999999999, time.UTC), *day)

	stamp, err := parseAsOf("2026-03-14T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, stamp.Hour())

	_, err = parseAsOf("yesterday")
	require.Error(t, err)
}

func TestPrintTrialBalance(t *testing.T) {
	tb := domain.TrialBalance{
		Rows: []domain.TrialBalanceRow{
			{Code: "1000", Name: "Cash on Hand", Type: domain.AccountAsset, Debit: decimal.RequireFromString("50"), Credit: decimal.Zero},
			{Code: "3000", Name: "Owner's Equity", Type: domain.AccountEquity, Debit: decimal.Zero, Credit: decimal.RequireFromString("40")},
		},
		TotalDebit:  decimal.RequireFromString("50"),
		TotalCredit: decimal.RequireFromString("40"),
		Difference:  decimal.RequireFromString("10"),
	}
	var out bytes.Buffer
	require.NoError(t, printTrialBalance(&out, tb))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[1], "Cash on Hand")
	assert.Contains(t, lines[3], "50.00")
	assert.Equal(t, "UNBALANCED: difference 10.00", lines[4])
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"migrate", "seed-accounts", "import-products", "import-prices", "trial-balance", "integrity-check"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, trialBalanceCmd.Flags().Lookup("as-of"))
	assert.NotNil(t, trialBalanceCmd.Flags().Lookup("xlsx"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("chart"))
}
