// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"pharmapos/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type IntegrityChecker interface {
	IntegrityCheck(ctx context.Context) (service.IntegrityReport, error)
}

// Observer is told about each finished check. metrics.Registry implements it.
type Observer interface {
	IntegrityChecked(balanced bool, lowStock int)
}

const checkTimeout = 2 * time.Minute

type IntegrityJob struct {
	checker  IntegrityChecker
	logger   *zap.Logger
	observer Observer
}

func NewIntegrityJob(checker IntegrityChecker, logger *zap.Logger, observer Observer) *IntegrityJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrityJob{checker: checker, logger: logger.Named("integrity"), observer: observer}
}

// Run performs one check. It satisfies cron.Job.
func (j *IntegrityJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	_, _ = j.Check(ctx)
}

func (j *IntegrityJob) Check(ctx context.Context) (service.IntegrityReport, error) {
	report, err := j.checker.IntegrityCheck(ctx)
	if err != nil {
		j.logger.Error("integrity check failed", zap.Error(err))
		return report, err
	}
	if j.observer != nil {
		j.observer.IntegrityChecked(report.Balanced, report.LowStockCount)
	}

	if !report.Balanced {
		j.logger.Error("ledger is unbalanced",
			zap.String("total_debit", report.TotalDebit.StringFixed(2)),
			zap.String("total_credit", report.TotalCredit.StringFixed(2)),
			zap.String("difference", report.Difference.StringFixed(2)),
		)
	} else {
		j.logger.Info("ledger balanced", zap.String("total", report.TotalDebit.StringFixed(2)))
	}
	if report.LowStockCount > 0 {
		j.logger.Warn("products at or below reorder level", zap.Int("count", report.LowStockCount))
	}
	return report, nil
}

// Schedule registers job on a new cron runner using a standard five-field
// expression. The caller starts and stops the runner.
func Schedule(expr string, job cron.Job, logger *zap.Logger) (*cron.Cron, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := cron.New(cron.WithChain(cron.Recover(cronLogger{logger})))
	if _, err := runner.AddJob(expr, job); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", expr, err)
	}
	return runner, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
