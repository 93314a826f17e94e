// Command pharmactl runs operator tasks against the pharmapos database:
// migrations, chart seeding, spreadsheet imports and ledger reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pharmapos/internal/accounting"
	"pharmapos/internal/config"
	"pharmapos/internal/db"
	"pharmapos/internal/logging"
	"pharmapos/internal/repository"
	"pharmapos/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    config.Config
	logger *zap.Logger

	chartPath string
)

var rootCmd = &cobra.Command{
	Use:   "pharmactl",
	Short: "Operator tool for the pharmapos backend",
	Long: `pharmactl works directly on the database configured by DATABASE_URL
(environment or ./.env). Every command applies pending migrations first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if chartPath != "" {
			cfg.ChartOfAccounts = chartPath
		}
		logger, err = logging.New(cfg.LogLevel, "console")
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&chartPath, "chart", "", "chart of accounts YAML (default: CHART_OF_ACCOUNTS or the built-in chart)")

	trialBalanceCmd.Flags().StringVar(&asOfFlag, "as-of", "", "report date, YYYY-MM-DD or RFC 3339 (default: now)")
	trialBalanceCmd.Flags().StringVar(&xlsxOut, "xlsx", "", "write the report to this .xlsx file instead of stdout")
	importPricesCmd.Flags().Float64Var(&priceThreshold, "threshold", service.DefaultPriceMatchThreshold, "minimum similarity percent (0-100) for fuzzy name matches")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedAccountsCmd)
	rootCmd.AddCommand(importProductsCmd)
	rootCmd.AddCommand(importPricesCmd)
	rootCmd.AddCommand(trialBalanceCmd)
	rootCmd.AddCommand(integrityCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// openPool connects and migrates. The caller closes the pool.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if _, err := db.RunMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return pool, nil
}

func newService(pool *pgxpool.Pool) (*service.Service, error) {
	chart, err := accounting.LoadChart(cfg.ChartOfAccounts)
	if err != nil {
		return nil, err
	}
	return service.New(repository.New(pool), service.Options{
		Logger:             logger,
		Chart:              chart,
		AllowNegativeStock: cfg.AllowNegativeStock,
		LowStockDefault:    cfg.LowStockDefault,
	}), nil
}

// withService opens the database, builds the service and runs fn.
func withService(ctx context.Context, fn func(svc *service.Service) error) error {
	pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := newService(pool)
	if err != nil {
		return err
	}
	return fn(svc)
}
