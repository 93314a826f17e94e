package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"pharmapos/internal/db"
	"pharmapos/internal/domain"
	"pharmapos/internal/excel"
	"pharmapos/internal/jobs"
	"pharmapos/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	asOfFlag       string
	xlsxOut        string
	priceThreshold float64
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := db.RunMigrations(cmd.Context(), pool, logger)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		}
		for _, version := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
		}
		return nil
	},
}

var seedAccountsCmd = &cobra.Command{
	Use:   "seed-accounts",
	Short: "Create or update ledger accounts from the chart of accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *service.Service) error {
			result, err := svc.SeedChart(service.WithActor(cmd.Context(), "pharmactl"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accounts created=%d updated=%d\n", result.Created, result.Updated)
			return nil
		})
	},
}

var importProductsCmd = &cobra.Command{
	Use:   "import-products <file.xlsx>",
	Short: "Upsert products and stock counts from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := readFile(args[0], excel.ParseProductRows)
		if err != nil {
			return err
		}
		return withService(cmd.Context(), func(svc *service.Service) error {
			result, err := svc.ImportProducts(service.WithActor(cmd.Context(), "pharmactl"), rows)
			if err != nil {
				return err
			}
			logger.Info("products imported",
				zap.String("file", args[0]),
				zap.Int("rows", result.TotalRows),
				zap.Int("created", result.Created),
				zap.Int("updated", result.Updated),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "rows=%d created=%d updated=%d\n", result.TotalRows, result.Created, result.Updated)
			return nil
		})
	},
}

var importPricesCmd = &cobra.Command{
	Use:   "import-prices <file.csv|file.xlsx>",
	Short: "Update sell prices from a name and price list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if priceThreshold <= 0 || priceThreshold > 100 {
			return fmt.Errorf("invalid --threshold %.2f (expected 0..100)", priceThreshold)
		}
		rows, err := readFile(args[0], func(r io.Reader) ([]domain.PriceRow, error) {
			return excel.ParsePriceRows(args[0], r)
		})
		if err != nil {
			return err
		}
		return withService(cmd.Context(), func(svc *service.Service) error {
			result, err := svc.ImportPrices(service.WithActor(cmd.Context(), "pharmactl"), rows, priceThreshold)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rows=%d exact=%d fuzzy=%d updated=%d unmatched=%d\n",
				result.TotalRows, result.ExactMatched, result.FuzzyMatched, result.UpdatedProducts, result.UnmatchedCount)
			for _, name := range result.UnmatchedNames {
				fmt.Fprintf(out, "  unmatched: %s\n", name)
			}
			return nil
		})
	},
}

var trialBalanceCmd = &cobra.Command{
	Use:   "trial-balance",
	Short: "Print or export the trial balance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseAsOf(asOfFlag)
		if err != nil {
			return err
		}
		return withService(cmd.Context(), func(svc *service.Service) error {
			tb, err := svc.TrialBalance(cmd.Context(), asOf)
			if err != nil {
				return err
			}
			if xlsxOut == "" {
				return printTrialBalance(cmd.OutOrStdout(), tb)
			}
			file, err := os.Create(xlsxOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", xlsxOut, err)
			}
			if err := excel.WriteTrialBalance(file, tb); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close %s: %w", xlsxOut, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trial balance written to %s\n", xlsxOut)
			return nil
		})
	},
}

var integrityCmd = &cobra.Command{
	Use:   "integrity-check",
	Short: "Run the ledger integrity check once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *service.Service) error {
			report, err := jobs.NewIntegrityJob(svc, logger, nil).Check(cmd.Context())
			if err != nil {
				return err
			}
			if !report.Balanced {
				return fmt.Errorf("ledger is unbalanced by %s", report.Difference.StringFixed(2))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ledger balanced, %d products low on stock\n", report.LowStockCount)
			return nil
		})
	},
}

func readFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	rows, err := parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// parseAsOf accepts a date, taken as the end of that day, or an RFC 3339
// timestamp.
func parseAsOf(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		end := parsed.Add(24*time.Hour - time.Nanosecond)
		return &end, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --as-of %q: use YYYY-MM-DD or RFC 3339", raw)
	}
	utc := parsed.UTC()
	return &utc, nil
}

func printTrialBalance(w io.Writer, tb domain.TrialBalance) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Code\tAccount\tType\tDebit\tCredit\t")
	for _, row := range tb.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			row.Code, row.Name, row.Type, row.Debit.StringFixed(2), row.Credit.StringFixed(2))
	}
	fmt.Fprintf(tw, "\tTotal\t\t%s\t%s\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}
	if !tb.Balanced {
		fmt.Fprintf(w, "UNBALANCED: difference %s\n", tb.Difference.StringFixed(2))
	}
	return nil
}
