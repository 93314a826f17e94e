package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmapos/internal/accounting"
	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AccountInput struct {
	Code   string             `json:"code" validate:"required,max=20"`
	Name   string             `json:"name" validate:"required,max=200"`
	Type   domain.AccountType `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	Active *bool              `json:"active"`
}

type AccountPatch struct {
	Name   *string             `json:"name" validate:"omitempty,max=200"`
	Type   *domain.AccountType `json:"type" validate:"omitempty,oneof=asset liability equity revenue expense"`
	Active *bool               `json:"active"`
}

type ManualEntryInput struct {
	AccountID   int64           `json:"account_id" validate:"omitempty,gt=0"`
	AccountCode string          `json:"account_code" validate:"omitempty,max=20"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        *string         `json:"memo" validate:"omitempty,max=500"`
}

type ManualGroupInput struct {
	Date        *time.Time         `json:"date"`
	Description string             `json:"description" validate:"required,max=500"`
	Entries     []ManualEntryInput `json:"entries" validate:"dive"`
}

type SeedResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

type IntegrityReport struct {
	CheckedAt     time.Time       `json:"checked_at"`
	Balanced      bool            `json:"balanced"`
	TotalDebit    decimal.Decimal `json:"total_debit"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	Difference    decimal.Decimal `json:"difference"`
	LowStockCount int             `json:"low_stock_count"`
}

func (s *Service) ListAccounts(ctx context.Context, includeInactive bool) ([]domain.Account, error) {
	return s.store.ListAccounts(ctx, includeInactive)
}

func (s *Service) GetAccount(ctx context.Context, id int64) (domain.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *Service) CreateAccount(ctx context.Context, input AccountInput) (domain.Account, error) {
	a := domain.Account{
		Code:   strings.TrimSpace(input.Code),
		Name:   strings.TrimSpace(input.Name),
		Type:   input.Type,
		Active: boolOr(input.Active, true),
	}
	if a.Code == "" || a.Name == "" {
		return domain.Account{}, invalidf("code and name are required")
	}
	if !a.Type.Valid() {
		return domain.Account{}, invalidf("invalid account type %q", a.Type)
	}
	a.System = s.chart.IsRoleAccount(a.Code)

	var created domain.Account
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		created, err = q.CreateAccount(ctx, a)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "account_create", "Account created", created.Code+" "+created.Name)
	})
	return created, err
}

func (s *Service) UpdateAccount(ctx context.Context, id int64, patch AccountPatch) (domain.Account, error) {
	var updated domain.Account
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		a, err := q.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			a.Name = strings.TrimSpace(*patch.Name)
			if a.Name == "" {
				return invalidf("name cannot be empty")
			}
		}
		if patch.Type != nil && *patch.Type != a.Type {
			if !patch.Type.Valid() {
				return invalidf("invalid account type %q", *patch.Type)
			}
			used, err := q.AccountHasEntries(ctx, id)
			if err != nil {
				return err
			}
			if used {
				return statef("account %s has entries; its type cannot change", a.Code)
			}
			a.Type = *patch.Type
		}
		if patch.Active != nil {
			if !*patch.Active && a.System {
				return statef("system account %s cannot be deactivated", a.Code)
			}
			a.Active = *patch.Active
		}
		updated, err = q.UpdateAccount(ctx, a)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "account_update", "Account updated", updated.Code+" "+updated.Name)
	})
	return updated, err
}

// SeedChart upserts the configured chart of accounts by code. Role accounts
// are flagged as system accounts. An existing account keeps its type when it
// already has entries.
func (s *Service) SeedChart(ctx context.Context) (SeedResult, error) {
	var result SeedResult
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		for _, ca := range s.chart.Accounts {
			system := s.chart.IsRoleAccount(ca.Code)
			existing, err := q.GetAccountByCode(ctx, ca.Code)
			if errors.Is(err, store.ErrNotFound) {
				if _, err := q.CreateAccount(ctx, domain.Account{
					Code:   ca.Code,
					Name:   ca.Name,
					Type:   ca.Type,
					Active: true,
					System: system,
				}); err != nil {
					return fmt.Errorf("create account %s: %w", ca.Code, err)
				}
				result.Created++
				continue
			}
			if err != nil {
				return err
			}

			changed := existing.Name != ca.Name || existing.System != system || (system && !existing.Active)
			existing.Name = ca.Name
			existing.System = system
			if system {
				existing.Active = true
			}
			if existing.Type != ca.Type {
				used, err := q.AccountHasEntries(ctx, existing.ID)
				if err != nil {
					return err
				}
				if used {
					s.logger.Warn("chart type differs from account with entries",
						zap.String("code", ca.Code),
						zap.String("type", string(existing.Type)),
						zap.String("chart_type", string(ca.Type)))
				} else {
					existing.Type = ca.Type
					changed = true
				}
			}
			if !changed {
				continue
			}
			if _, err := q.UpdateAccount(ctx, existing); err != nil {
				return fmt.Errorf("update account %s: %w", ca.Code, err)
			}
			result.Updated++
		}
		return s.record(ctx, q, "chart_seed", "Chart of accounts seeded",
			fmt.Sprintf("created=%d updated=%d", result.Created, result.Updated))
	})
	if err != nil {
		return SeedResult{}, err
	}
	s.logger.Info("chart of accounts seeded", zap.Int("created", result.Created), zap.Int("updated", result.Updated))
	return result, nil
}

// post resolves account codes, validates the group and persists it with its
// entries inside q's transaction.
func (s *Service) post(ctx context.Context, q store.Queries, g domain.TransactionGroup) (domain.TransactionGroup, error) {
	if g.Date.IsZero() {
		g.Date = s.now()
	}
	g.Status = domain.GroupPosted
	g.Actor = actorFrom(ctx)

	entries := make([]domain.AccountingEntry, len(g.Entries))
	accounts := make(map[int64]domain.Account, len(g.Entries))
	for i, entry := range g.Entries {
		account, err := s.lookupAccount(ctx, q, entry)
		if err != nil {
			return domain.TransactionGroup{}, err
		}
		entry.AccountID = account.ID
		entry.AccountCode = account.Code
		accounts[account.ID] = account
		entries[i] = entry
	}
	g.Entries = entries

	g = accounting.Normalize(g)
	if err := s.validator.Validate(g, accounts); err != nil {
		return domain.TransactionGroup{}, err
	}
	created, err := q.CreateTransactionGroup(ctx, g)
	if err != nil {
		return domain.TransactionGroup{}, fmt.Errorf("create transaction group: %w", err)
	}

	s.recorder.TransactionGroupPosted(created.SourceType)
	s.logger.Debug("transaction group posted",
		zap.String("group_id", created.ID.String()),
		zap.String("source_type", string(created.SourceType)),
		zap.String("total", created.Total.StringFixed(2)))
	return created, nil
}

func (s *Service) lookupAccount(ctx context.Context, q store.Queries, entry domain.AccountingEntry) (domain.Account, error) {
	var (
		account domain.Account
		err     error
		ref     string
	)
	if entry.AccountID != 0 {
		ref = fmt.Sprintf("id %d", entry.AccountID)
		account, err = q.GetAccount(ctx, entry.AccountID)
	} else {
		ref = "code " + entry.AccountCode
		account, err = q.GetAccountByCode(ctx, strings.TrimSpace(entry.AccountCode))
	}
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("%w: %s", accounting.ErrUnknownAccount, ref)
	}
	return account, err
}

// postTemplate posts entries built by the accounting posting templates.
func (s *Service) postTemplate(ctx context.Context, q store.Queries, source domain.SourceType, sourceID int64, description string, entries []domain.AccountingEntry) (domain.TransactionGroup, error) {
	return s.post(ctx, q, domain.TransactionGroup{
		Date:        s.now(),
		Description: description,
		SourceType:  source,
		SourceID:    &sourceID,
		Entries:     entries,
	})
}

func (s *Service) PostManualGroup(ctx context.Context, input ManualGroupInput) (domain.TransactionGroup, error) {
	g := domain.TransactionGroup{
		Description: strings.TrimSpace(input.Description),
		SourceType:  domain.SourceManual,
	}
	if input.Date != nil {
		g.Date = input.Date.UTC()
	}
	for _, e := range input.Entries {
		if e.AccountID == 0 && strings.TrimSpace(e.AccountCode) == "" {
			return domain.TransactionGroup{}, invalidf("every entry needs account_id or account_code")
		}
		g.Entries = append(g.Entries, domain.AccountingEntry{
			AccountID:   e.AccountID,
			AccountCode: strings.TrimSpace(e.AccountCode),
			Debit:       e.Debit,
			Credit:      e.Credit,
			Memo:        normalizeNullable(e.Memo),
		})
	}

	var posted domain.TransactionGroup
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		posted, err = s.post(ctx, q, g)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "transaction_group_post", "Journal entry posted",
			fmt.Sprintf("%s (%s)", posted.Description, posted.Total.StringFixed(2)))
	})
	return posted, err
}

// ReverseGroup posts the counter group of a posted manual group and marks
// the original reversed.
func (s *Service) ReverseGroup(ctx context.Context, id uuid.UUID, description string) (domain.TransactionGroup, error) {
	var reversal domain.TransactionGroup
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		g, err := q.GetTransactionGroup(ctx, id)
		if err != nil {
			return err
		}
		// Groups owned by a sale, purchase order or adjustment are reversed
		// through that document so stock and status stay in step.
		switch g.SourceType {
		case domain.SourceManual, domain.SourceReversal:
		case domain.SourceSale:
			return statef("transaction group %s belongs to a sale; void the sale instead", id)
		case domain.SourcePurchaseReceipt, domain.SourcePurchasePayment:
			return statef("transaction group %s belongs to a purchase order and cannot be reversed manually", id)
		default:
			return statef("transaction group %s was posted by %s and cannot be reversed manually", id, g.SourceType)
		}
		reversal, err = s.reverse(ctx, q, id, description, domain.SourceReversal)
		if err != nil {
			return err
		}
		return s.record(ctx, q, "transaction_group_reverse", "Transaction group reversed", id.String())
	})
	return reversal, err
}

func (s *Service) reverse(ctx context.Context, q store.Queries, id uuid.UUID, description string, source domain.SourceType) (domain.TransactionGroup, error) {
	g, err := q.GetTransactionGroup(ctx, id)
	if err != nil {
		return domain.TransactionGroup{}, err
	}
	if g.Status != domain.GroupPosted {
		return domain.TransactionGroup{}, statef("transaction group %s is already reversed", id)
	}
	if g.ReversalOf != nil || g.SourceType == domain.SourceReversal {
		return domain.TransactionGroup{}, statef("transaction group %s is itself a reversal", id)
	}

	counter := accounting.Reverse(g, strings.TrimSpace(description))
	counter.Date = s.now()
	counter.SourceType = source
	posted, err := s.post(ctx, q, counter)
	if err != nil {
		return domain.TransactionGroup{}, err
	}
	if err := q.MarkTransactionGroupReversed(ctx, g.ID, posted.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.TransactionGroup{}, statef("transaction group %s is already reversed", id)
		}
		return domain.TransactionGroup{}, err
	}
	return posted, nil
}

func (s *Service) ListTransactionGroups(ctx context.Context, filter store.TransactionGroupFilter) ([]domain.TransactionGroup, error) {
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	return s.store.ListTransactionGroups(ctx, filter)
}

func (s *Service) GetTransactionGroup(ctx context.Context, id uuid.UUID) (domain.TransactionGroup, error) {
	return s.store.GetTransactionGroup(ctx, id)
}

func (s *Service) AccountBalance(ctx context.Context, id int64, asOf *time.Time) (domain.AccountBalance, error) {
	return s.balances.Balance(ctx, id, asOf)
}

func (s *Service) AccountLedger(ctx context.Context, id int64, from, to *time.Time) ([]domain.LedgerLine, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	return s.balances.Ledger(ctx, id, from, to)
}

func (s *Service) TrialBalance(ctx context.Context, asOf *time.Time) (domain.TrialBalance, error) {
	return s.balances.TrialBalance(ctx, asOf)
}

func (s *Service) IncomeStatement(ctx context.Context, from, to *time.Time) (domain.IncomeStatement, error) {
	if err := checkRange(from, to); err != nil {
		return domain.IncomeStatement{}, err
	}
	return s.balances.IncomeStatement(ctx, from, to)
}

// IntegrityCheck builds the current trial balance and counts low-stock
// products. It reads only.
func (s *Service) IntegrityCheck(ctx context.Context) (IntegrityReport, error) {
	tb, err := s.balances.TrialBalance(ctx, nil)
	if err != nil {
		return IntegrityReport{}, err
	}
	low, err := s.store.LowStock(ctx, s.lowStockDefault)
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("low stock: %w", err)
	}
	return IntegrityReport{
		CheckedAt:     s.now(),
		Balanced:      tb.Balanced,
		TotalDebit:    tb.TotalDebit,
		TotalCredit:   tb.TotalCredit,
		Difference:    tb.Difference,
		LowStockCount: len(low),
	}, nil
}

func checkRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return invalidf("to must not be before from")
	}
	return nil
}
