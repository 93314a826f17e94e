package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "DATABASE_URL", "LOG_LEVEL", "LOG_FORMAT", "CHART_OF_ACCOUNTS",
	"INTEGRITY_CHECK_CRON", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"ALLOW_NEGATIVE_STOCK", "LOW_STOCK_DEFAULT", "STORE_NAME",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, "DATABASE_URL=postgres://localhost/pharma\n")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres://localhost/pharma", cfg.DatabaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "0 2 * * *", cfg.IntegrityCheckCron)
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
	assert.Equal(t, 40, cfg.RateLimitBurst)
	assert.False(t, cfg.AllowNegativeStock)
	assert.Equal(t, int64(5), cfg.LowStockDefault)
	assert.Equal(t, "Pharmacy", cfg.StoreName)
}

func TestLoadFileEnvironmentWins(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, "DATABASE_URL=postgres://file\nPORT=9000\nLOG_FORMAT=console\n")
	t.Setenv("PORT", "7000")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "true")
	t.Setenv("INTEGRITY_CHECK_CRON", "")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.AllowNegativeStock)
	assert.Empty(t, cfg.IntegrityCheckCron)
}

func TestLoadFileMissingDotenv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
}

func TestLoadFileInvalidValues(t *testing.T) {
	tests := map[string]string{
		"PORT":                 "zero",
		"LOG_FORMAT":           "xml",
		"RATE_LIMIT_RPS":       "-1",
		"RATE_LIMIT_BURST":     "0",
		"ALLOW_NEGATIVE_STOCK": "maybe",
		"LOW_STOCK_DEFAULT":    "-3",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", "postgres://env")
			t.Setenv(key, value)

			_, err := LoadFile(filepath.Join(t.TempDir(), "absent.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadFileRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.env"))
	require.ErrorContains(t, err, "DATABASE_URL")
}
