package memstore

import (
	"context"
	"slices"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *Store) ListAccounts(_ context.Context, includeInactive bool) ([]domain.Account, error) {
	defer s.lock()()
	db := s.db()
	items := make([]domain.Account, 0, len(db.accounts))
	for _, id := range sortedIDs(db.accounts) {
		if a := db.accounts[id]; includeInactive || a.Active {
			items = append(items, a)
		}
	}
	sortBy(items, func(a domain.Account) string { return a.Code })
	return items, nil
}

func (s *Store) GetAccount(_ context.Context, id int64) (domain.Account, error) {
	defer s.lock()()
	a, ok := s.db().accounts[id]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetAccountByCode(_ context.Context, code string) (domain.Account, error) {
	defer s.lock()()
	code = strings.TrimSpace(code)
	for _, a := range s.db().accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return domain.Account{}, store.ErrNotFound
}

func (s *Store) CreateAccount(_ context.Context, a domain.Account) (domain.Account, error) {
	defer s.lock()()
	db := s.db()
	for _, other := range db.accounts {
		if other.Code == a.Code {
			return domain.Account{}, conflict("account code already exists")
		}
	}
	a.ID = db.next("accounts")
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	db.accounts[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a domain.Account) (domain.Account, error) {
	defer s.lock()()
	db := s.db()
	existing, ok := db.accounts[a.ID]
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}
	existing.Name = a.Name
	existing.Type = a.Type
	existing.Active = a.Active
	existing.System = a.System
	existing.UpdatedAt = s.now()
	db.accounts[a.ID] = existing
	return existing, nil
}

func (s *Store) AccountHasEntries(_ context.Context, id int64) (bool, error) {
	defer s.lock()()
	for _, g := range s.db().groups {
		for _, e := range g.Entries {
			if e.AccountID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) CreateTransactionGroup(_ context.Context, g domain.TransactionGroup) (domain.TransactionGroup, error) {
	defer s.lock()()
	db := s.db()
	if _, exists := db.groups[g.ID]; exists {
		return domain.TransactionGroup{}, conflict("transaction group %s already exists", g.ID)
	}
	g.CreatedAt = s.now()
	g.Entries = slices.Clone(g.Entries)
	for i := range g.Entries {
		account, ok := db.accounts[g.Entries[i].AccountID]
		if !ok {
			return domain.TransactionGroup{}, conflict("account %d does not exist", g.Entries[i].AccountID)
		}
		g.Entries[i].GroupID = g.ID
		g.Entries[i].AccountCode = account.Code
		g.Entries[i].Date = g.Date
	}
	db.groups[g.ID] = g
	db.groupOrder = append(db.groupOrder, g.ID)
	return g, nil
}

func (s *Store) GetTransactionGroup(_ context.Context, id uuid.UUID) (domain.TransactionGroup, error) {
	defer s.lock()()
	g, ok := s.db().groups[id]
	if !ok {
		return domain.TransactionGroup{}, store.ErrNotFound
	}
	g.Entries = slices.Clone(g.Entries)
	return g, nil
}

func (s *Store) ListTransactionGroups(_ context.Context, filter store.TransactionGroupFilter) ([]domain.TransactionGroup, error) {
	defer s.lock()()
	db := s.db()
	sourceType := strings.TrimSpace(filter.SourceType)
	items := make([]domain.TransactionGroup, 0)
	for _, id := range db.groupOrder {
		g := db.groups[id]
		if sourceType != "" && string(g.SourceType) != sourceType {
			continue
		}
		if !inRange(g.Date, filter.From, filter.To) {
			continue
		}
		if filter.AccountID != nil && !slices.ContainsFunc(g.Entries, func(e domain.AccountingEntry) bool {
			return e.AccountID == *filter.AccountID
		}) {
			continue
		}
		g.Entries = nil
		items = append(items, g)
	}
	// Newest first, matching the Postgres ordering.
	slices.SortStableFunc(items, func(a, b domain.TransactionGroup) int {
		if !a.Date.Equal(b.Date) {
			return b.Date.Compare(a.Date)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return page(items, filter.Limit, filter.Offset), nil
}

func (s *Store) MarkTransactionGroupReversed(_ context.Context, id, reversedBy uuid.UUID) error {
	defer s.lock()()
	db := s.db()
	g, ok := db.groups[id]
	if !ok || g.Status != domain.GroupPosted {
		return conflict("transaction group %s is not posted", id)
	}
	g.Status = domain.GroupReversed
	g.ReversedBy = &reversedBy
	db.groups[id] = g
	return nil
}

func (s *Store) ledgerEntries(filter store.EntryFilter) []store.LedgerEntry {
	db := s.db()
	items := make([]store.LedgerEntry, 0)
	for _, id := range db.groupOrder {
		g := db.groups[id]
		if !inRange(g.Date, filter.From, filter.To) {
			continue
		}
		for _, e := range g.Entries {
			if filter.AccountID != nil && e.AccountID != *filter.AccountID {
				continue
			}
			items = append(items, store.LedgerEntry{
				AccountingEntry: e,
				Description:     g.Description,
				SourceType:      g.SourceType,
				CreatedAt:       g.CreatedAt,
			})
		}
	}
	slices.SortStableFunc(items, func(a, b store.LedgerEntry) int { return a.Date.Compare(b.Date) })
	return items
}

func (s *Store) SumEntriesByAccount(_ context.Context, filter store.EntryFilter) ([]store.AccountTotals, error) {
	defer s.lock()()
	sums := make(map[int64]store.AccountTotals)
	for _, e := range s.ledgerEntries(filter) {
		t, ok := sums[e.AccountID]
		if !ok {
			t = store.AccountTotals{AccountID: e.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
		}
		t.Debit = t.Debit.Add(e.Debit)
		t.Credit = t.Credit.Add(e.Credit)
		sums[e.AccountID] = t
	}
	totals := make([]store.AccountTotals, 0, len(sums))
	for _, id := range sortedIDs(sums) {
		totals = append(totals, sums[id])
	}
	return totals, nil
}

func (s *Store) ListLedgerEntries(_ context.Context, filter store.EntryFilter) ([]store.LedgerEntry, error) {
	defer s.lock()()
	return s.ledgerEntries(filter), nil
}
