package accounting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/shopspring/decimal"
)

// Balance applies the account type's normal side to raw sums.
func Balance(t domain.AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// BalanceSource is the subset of store.Queries the balance service reads.
type BalanceSource interface {
	ListAccounts(ctx context.Context, includeInactive bool) ([]domain.Account, error)
	GetAccount(ctx context.Context, id int64) (domain.Account, error)
	SumEntriesByAccount(ctx context.Context, filter store.EntryFilter) ([]store.AccountTotals, error)
	ListLedgerEntries(ctx context.Context, filter store.EntryFilter) ([]store.LedgerEntry, error)
}

type AccountBalanceService struct {
	src     BalanceSource
	epsilon decimal.Decimal
}

func NewAccountBalanceService(src BalanceSource) *AccountBalanceService {
	return &AccountBalanceService{src: src, epsilon: DefaultEpsilon}
}

func (s *AccountBalanceService) Balance(ctx context.Context, accountID int64, asOf *time.Time) (domain.AccountBalance, error) {
	account, err := s.src.GetAccount(ctx, accountID)
	if err != nil {
		return domain.AccountBalance{}, err
	}
	totals, err := s.src.SumEntriesByAccount(ctx, store.EntryFilter{AccountID: &accountID, To: asOf})
	if err != nil {
		return domain.AccountBalance{}, fmt.Errorf("sum entries for account %d: %w", accountID, err)
	}
	result := domain.AccountBalance{
		Account: account,
		Debit:   decimal.Zero,
		Credit:  decimal.Zero,
		AsOf:    asOf,
	}
	for _, t := range totals {
		if t.AccountID != accountID {
			continue
		}
		result.Debit = result.Debit.Add(t.Debit)
		result.Credit = result.Credit.Add(t.Credit)
	}
	result.Balance = Balance(account.Type, result.Debit, result.Credit)
	return result, nil
}

// Ledger lists the account's entries between from and to with a running
// balance. Entries before from only contribute to the opening balance.
func (s *AccountBalanceService) Ledger(ctx context.Context, accountID int64, from, to *time.Time) ([]domain.LedgerLine, error) {
	account, err := s.src.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	entries, err := s.src.ListLedgerEntries(ctx, store.EntryFilter{AccountID: &accountID, To: to})
	if err != nil {
		return nil, fmt.Errorf("list ledger entries for account %d: %w", accountID, err)
	}
	return RunningLedger(account, entries, from), nil
}

func (s *AccountBalanceService) TrialBalance(ctx context.Context, asOf *time.Time) (domain.TrialBalance, error) {
	accounts, err := s.src.ListAccounts(ctx, true)
	if err != nil {
		return domain.TrialBalance{}, fmt.Errorf("list accounts: %w", err)
	}
	totals, err := s.src.SumEntriesByAccount(ctx, store.EntryFilter{To: asOf})
	if err != nil {
		return domain.TrialBalance{}, fmt.Errorf("sum entries: %w", err)
	}
	tb := BuildTrialBalance(accounts, totals, s.epsilon)
	tb.AsOf = asOf
	return tb, nil
}

func (s *AccountBalanceService) IncomeStatement(ctx context.Context, from, to *time.Time) (domain.IncomeStatement, error) {
	accounts, err := s.src.ListAccounts(ctx, true)
	if err != nil {
		return domain.IncomeStatement{}, fmt.Errorf("list accounts: %w", err)
	}
	totals, err := s.src.SumEntriesByAccount(ctx, store.EntryFilter{From: from, To: to})
	if err != nil {
		return domain.IncomeStatement{}, fmt.Errorf("sum entries: %w", err)
	}
	stmt := BuildIncomeStatement(accounts, totals)
	stmt.From = from
	stmt.To = to
	return stmt, nil
}

// BuildTrialBalance places each account's net amount in its natural column
// and skips accounts that net to zero.
func BuildTrialBalance(accounts []domain.Account, totals []store.AccountTotals, epsilon decimal.Decimal) domain.TrialBalance {
	byID := make(map[int64]domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	net := make(map[int64]decimal.Decimal, len(totals))
	for _, t := range totals {
		net[t.AccountID] = net[t.AccountID].Add(t.Debit).Sub(t.Credit)
	}

	tb := domain.TrialBalance{
		Rows:        make([]domain.TrialBalanceRow, 0, len(net)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for accountID, amount := range net {
		if amount.IsZero() {
			continue
		}
		account, ok := byID[accountID]
		if !ok {
			account = domain.Account{ID: accountID, Code: fmt.Sprintf("#%d", accountID), Name: "unknown account"}
		}
		row := domain.TrialBalanceRow{
			AccountID: account.ID,
			Code:      account.Code,
			Name:      account.Name,
			Type:      account.Type,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
		}
		if amount.IsPositive() {
			row.Debit = amount
			tb.TotalDebit = tb.TotalDebit.Add(amount)
		} else {
			row.Credit = amount.Neg()
			tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
		}
		tb.Rows = append(tb.Rows, row)
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })

	tb.Difference = tb.TotalDebit.Sub(tb.TotalCredit)
	if !epsilon.IsPositive() {
		epsilon = DefaultEpsilon
	}
	tb.Balanced = tb.Difference.Abs().LessThan(epsilon)
	return tb
}

func BuildIncomeStatement(accounts []domain.Account, totals []store.AccountTotals) domain.IncomeStatement {
	sums := make(map[int64]store.AccountTotals, len(totals))
	for _, t := range totals {
		cur := sums[t.AccountID]
		cur.AccountID = t.AccountID
		cur.Debit = cur.Debit.Add(t.Debit)
		cur.Credit = cur.Credit.Add(t.Credit)
		sums[t.AccountID] = cur
	}

	stmt := domain.IncomeStatement{
		Revenue:      []domain.IncomeStatementLine{},
		Expenses:     []domain.IncomeStatementLine{},
		TotalRevenue: decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	sorted := append([]domain.Account(nil), accounts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	for _, account := range sorted {
		t, ok := sums[account.ID]
		if !ok {
			continue
		}
		amount := Balance(account.Type, t.Debit, t.Credit)
		if amount.IsZero() {
			continue
		}
		line := domain.IncomeStatementLine{Code: account.Code, Name: account.Name, Amount: amount}
		switch account.Type {
		case domain.AccountRevenue:
			stmt.Revenue = append(stmt.Revenue, line)
			stmt.TotalRevenue = stmt.TotalRevenue.Add(amount)
		case domain.AccountExpense:
			stmt.Expenses = append(stmt.Expenses, line)
			stmt.TotalExpense = stmt.TotalExpense.Add(amount)
		}
	}
	stmt.NetIncome = stmt.TotalRevenue.Sub(stmt.TotalExpense)
	return stmt
}

// RunningLedger orders entries by date and accumulates the balance on the
// account's normal side.
func RunningLedger(account domain.Account, entries []store.LedgerEntry, from *time.Time) []domain.LedgerLine {
	sorted := append([]store.LedgerEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	running := decimal.Zero
	lines := make([]domain.LedgerLine, 0, len(sorted))
	for _, entry := range sorted {
		if entry.AccountID != account.ID {
			continue
		}
		running = running.Add(Balance(account.Type, entry.Debit, entry.Credit))
		if from != nil && entry.Date.Before(*from) {
			continue
		}
		lines = append(lines, domain.LedgerLine{
			EntryID:     entry.ID,
			GroupID:     entry.GroupID,
			Date:        entry.Date,
			Description: entry.Description,
			Memo:        entry.Memo,
			Debit:       entry.Debit,
			Credit:      entry.Credit,
			Balance:     running,
		})
	}
	return lines
}
