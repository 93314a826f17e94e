package jobs

import (
	"context"
	"errors"
	"testing"

	"pharmapos/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubChecker struct {
	report service.IntegrityReport
	err    error
}

func (s stubChecker) IntegrityCheck(context.Context) (service.IntegrityReport, error) {
	return s.report, s.err
}

type recordingObserver struct {
	balanced *bool
	lowStock int
}

func (r *recordingObserver) IntegrityChecked(balanced bool, lowStock int) {
	r.balanced = &balanced
	r.lowStock = lowStock
}

func TestIntegrityJobLogsUnbalancedLedger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	obs := &recordingObserver{}
	job := NewIntegrityJob(stubChecker{report: service.IntegrityReport{
		Balanced:      false,
		TotalDebit:    decimal.RequireFromString("100"),
		TotalCredit:   decimal.RequireFromString("90"),
		Difference:    decimal.RequireFromString("10"),
		LowStockCount: 3,
	}}, zap.New(core), obs)

	report, err := job.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Balanced)

	require.NotNil(t, obs.balanced)
	assert.False(t, *obs.balanced)
	assert.Equal(t, 3, obs.lowStock)

	unbalanced := logs.FilterMessage("ledger is unbalanced").All()
	require.Len(t, unbalanced, 1)
	assert.Equal(t, zap.ErrorLevel, unbalanced[0].Level)
	assert.Equal(t, "10.00", unbalanced[0].ContextMap()["difference"])
	assert.Equal(t, 1, logs.FilterMessage("products at or below reorder level").Len())
}

func TestIntegrityJobBalanced(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	job := NewIntegrityJob(stubChecker{report: service.IntegrityReport{Balanced: true}}, zap.New(core), nil)

	job.Run()
	assert.Equal(t, 1, logs.FilterMessage("ledger balanced").Len())
	assert.Zero(t, logs.FilterMessage("products at or below reorder level").Len())
}

func TestIntegrityJobReportsErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	job := NewIntegrityJob(stubChecker{err: errors.New("db down")}, zap.New(core), nil)

	_, err := job.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("integrity check failed").Len())
}

func TestSchedule(t *testing.T) {
	job := NewIntegrityJob(stubChecker{}, nil, nil)

	runner, err := Schedule("0 2 * * *", job, nil)
	require.NoError(t, err)
	require.Len(t, runner.Entries(), 1)

	_, err = Schedule("not a schedule", job, nil)
	require.Error(t, err)

	var _ cron.Job = job
}
