// Package service holds the pharmacy business rules on top of store.Store:
// catalog and stock upkeep, purchasing, point of sale and the ledger.
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

	"go.uber.org/zap"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientStock = errors.New("insufficient stock")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

func statef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidState}, args...)...)
}

// Recorder receives business counters. metrics.Registry implements it.
type Recorder interface {
	TransactionGroupPosted(source domain.SourceType)
	StockMoved(reason domain.MovementReason, delta int64)
}

type nopRecorder struct{}

func (nopRecorder) TransactionGroupPosted(domain.SourceType) {}
func (nopRecorder) StockMoved(domain.MovementReason, int64)  {}

type Options struct {
	Logger             *zap.Logger
	Chart              accounting.Chart
	AllowNegativeStock bool
	LowStockDefault    int64
	Recorder           Recorder
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Service struct {
	store           store.Store
	logger          *zap.Logger
	chart           accounting.Chart
	roles           accounting.Roles
	validator       accounting.DoubleEntryValidator
	balances        *accounting.AccountBalanceService
	allowNegative   bool
	lowStockDefault int64
	recorder        Recorder
	now             func() time.Time
}

func New(st store.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:           st,
		logger:          logger,
		chart:           opts.Chart,
		roles:           opts.Chart.Roles,
		validator:       accounting.NewDoubleEntryValidator(),
		balances:        accounting.NewAccountBalanceService(st),
		allowNegative:   opts.AllowNegativeStock,
		lowStockDefault: opts.LowStockDefault,
		recorder:        recorder,
		now:             func() time.Time { return clock().UTC() },
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health pings the backing database when the store supports it.
func (s *Service) Health(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type actorKey struct{}

// WithActor tags ctx with the user performing the request. The actor is
// stored on actions, stock movements and transaction groups.
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) *string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return &actor
	}
	return nil
}

// record writes an audit action in the caller's transaction.
func (s *Service) record(ctx context.Context, q store.Queries, actionType, title, details string) error {
	if err := q.LogAction(ctx, domain.ActionEntry{
		Actor:      actorFrom(ctx),
		ActionType: actionType,
		Title:      title,
		Details:    details,
	}); err != nil {
		return fmt.Errorf("record action %s: %w", actionType, err)
	}
	return nil
}

func (s *Service) ListActions(ctx context.Context, limit, offset int, search string) ([]domain.ActionEntry, error) {
	return s.store.ListActions(ctx, limit, offset, search)
}

func (s *Service) CountActions(ctx context.Context, search string) (int, error) {
	return s.store.CountActions(ctx, search)
}

func normalizeNullable(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
