// Package memstore is an in-memory store.Store for tests. It enforces the
// same uniqueness and reference rules as the Postgres schema and rolls back
// a failed WithTx.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"pharmapos/internal/domain"
	"pharmapos/internal/store"
	"pharmapos/internal/textnorm"

	"github.com/google/uuid"
)

type state struct {
	seq            map[string]int64
	categories     map[int64]domain.Category
	descriptions   map[int64]domain.Description
	products       map[int64]domain.Product
	movements      []domain.StockMovement
	packageUnits   map[int64]domain.PackageUnit
	purchaseOrders map[int64]domain.PurchaseOrder
	sales          map[int64]domain.Sale
	accounts       map[int64]domain.Account
	groups         map[uuid.UUID]domain.TransactionGroup
	groupOrder     []uuid.UUID
	actions        []domain.ActionEntry
}

func newState() *state {
	return &state{
		seq:            make(map[string]int64),
		categories:     make(map[int64]domain.Category),
		descriptions:   make(map[int64]domain.Description),
		products:       make(map[int64]domain.Product),
		packageUnits:   make(map[int64]domain.PackageUnit),
		purchaseOrders: make(map[int64]domain.PurchaseOrder),
		sales:          make(map[int64]domain.Sale),
		accounts:       make(map[int64]domain.Account),
		groups:         make(map[uuid.UUID]domain.TransactionGroup),
	}
}

// clone copies every table. Stored values are replaced, never mutated in
// place, so copying the maps is enough.
func (s *state) clone() *state {
	return &state{
		seq:            maps.Clone(s.seq),
		categories:     maps.Clone(s.categories),
		descriptions:   maps.Clone(s.descriptions),
		products:       maps.Clone(s.products),
		movements:      slices.Clone(s.movements),
		packageUnits:   maps.Clone(s.packageUnits),
		purchaseOrders: maps.Clone(s.purchaseOrders),
		sales:          maps.Clone(s.sales),
		accounts:       maps.Clone(s.accounts),
		groups:         maps.Clone(s.groups),
		groupOrder:     slices.Clone(s.groupOrder),
		actions:        slices.Clone(s.actions),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

type Store struct {
	mu   *sync.Mutex
	data **state
	inTx bool

	// Clock stamps created_at and updated_at. Defaults to time.Now.
	Clock func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	data := newState()
	return &Store{mu: &sync.Mutex{}, data: &data, Clock: time.Now}
}

func (s *Store) db() *state {
	return *s.data
}

func (s *Store) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTx holds the store lock for the whole of fn and restores the previous
// state when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.db().clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true, Clock: s.Clock}
	if err := fn(tx); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{store.ErrConflict}, args...)...)
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func sameKey(a, b string) bool {
	return textnorm.Key(a) == textnorm.Key(b)
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func page[T any](items []T, limit, offset int) []T {
	limit = store.NormalizeLimit(limit)
	offset = store.NormalizeOffset(offset)
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := slices.Collect(maps.Keys(m))
	slices.Sort(ids)
	return ids
}

func (s *Store) LogAction(_ context.Context, a domain.ActionEntry) error {
	defer s.lock()()
	if strings.TrimSpace(a.ActionType) == "" || strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("action_type and title are required")
	}
	if a.Details == "" {
		a.Details = "-"
	}
	db := s.db()
	a.ActionID = db.next("actions")
	a.CreatedAt = s.now()
	db.actions = append(db.actions, a)
	return nil
}

func (s *Store) matchingActions(search string) []domain.ActionEntry {
	search = strings.TrimSpace(search)
	db := s.db()
	items := make([]domain.ActionEntry, 0, len(db.actions))
	for i := len(db.actions) - 1; i >= 0; i-- {
		a := db.actions[i]
		actor := ""
		if a.Actor != nil {
			actor = *a.Actor
		}
		if search == "" || contains(a.Title, search) || contains(a.Details, search) || contains(actor, search) {
			items = append(items, a)
		}
	}
	return items
}

func (s *Store) ListActions(_ context.Context, limit, offset int, search string) ([]domain.ActionEntry, error) {
	defer s.lock()()
	return page(s.matchingActions(search), limit, offset), nil
}

func (s *Store) CountActions(_ context.Context, search string) (int, error) {
	defer s.lock()()
	return len(s.matchingActions(search)), nil
}
