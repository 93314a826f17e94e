package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               int
	DatabaseURL        string
	LogLevel           string
	LogFormat          string
	ChartOfAccounts    string
	IntegrityCheckCron string
	RateLimitRPS       float64
	RateLimitBurst     int
	AllowNegativeStock bool
	LowStockDefault    int64
	StoreName          string
}

// Load reads settings from the process environment, falling back to ./.env.
func Load() (Config, error) {
	return LoadFile(filepath.Join(".", ".env"))
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error.
func LoadFile(envPath string) (Config, error) {
	values := map[string]string{}
	if _, err := os.Stat(envPath); err == nil {
		fileValues, err := godotenv.Read(envPath)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
		values = fileValues
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("stat %s: %w", envPath, err)
	}
	lookup := func(key string) string {
		return firstNonEmpty(os.Getenv(key), values[key])
	}

	cfg := Config{
		Port:               8080,
		LogLevel:           "info",
		LogFormat:          "json",
		IntegrityCheckCron: "0 2 * * *",
		RateLimitRPS:       20,
		RateLimitBurst:     40,
		LowStockDefault:    5,
		StoreName:          "Pharmacy",
	}

	if portRaw := lookup("PORT"); portRaw != "" {
		port, err := strconv.Atoi(portRaw)
		if err != nil || port <= 0 {
			return Config{}, fmt.Errorf("invalid PORT: %q", portRaw)
		}
		cfg.Port = port
	}

	cfg.DatabaseURL = lookup("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required (environment variable or .env)")
	}

	if level := lookup("LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if format := lookup("LOG_FORMAT"); format != "" {
		format = strings.ToLower(format)
		if format != "json" && format != "console" {
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: %q", format)
		}
		cfg.LogFormat = format
	}

	cfg.ChartOfAccounts = lookup("CHART_OF_ACCOUNTS")

	// An explicitly empty INTEGRITY_CHECK_CRON disables the job.
	if raw, ok := lookupSet("INTEGRITY_CHECK_CRON", values); ok {
		cfg.IntegrityCheckCron = strings.TrimSpace(raw)
	}

	if raw := lookup("RATE_LIMIT_RPS"); raw != "" {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil || rps < 0 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_RPS: %q", raw)
		}
		cfg.RateLimitRPS = rps
	}
	if raw := lookup("RATE_LIMIT_BURST"); raw != "" {
		burst, err := strconv.Atoi(raw)
		if err != nil || burst <= 0 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_BURST: %q", raw)
		}
		cfg.RateLimitBurst = burst
	}

	if raw := lookup("ALLOW_NEGATIVE_STOCK"); raw != "" {
		allow, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ALLOW_NEGATIVE_STOCK: %q", raw)
		}
		cfg.AllowNegativeStock = allow
	}
	if raw := lookup("LOW_STOCK_DEFAULT"); raw != "" {
		threshold, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || threshold < 0 {
			return Config{}, fmt.Errorf("invalid LOW_STOCK_DEFAULT: %q", raw)
		}
		cfg.LowStockDefault = threshold
	}

	if name := lookup("STORE_NAME"); name != "" {
		cfg.StoreName = name
	}

	return cfg, nil
}

func lookupSet(key string, values map[string]string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	value, ok := values[key]
	return value, ok
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}
